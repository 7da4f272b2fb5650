package storage

import (
	"context"
	"testing"
	"time"

	pkgerrors "github.com/absmach/tuner/pkg/errors"
	"github.com/absmach/tuner/pkg/storage/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStorage(t *testing.T) {
	s := NewInMemoryStorage()
	ctx := context.Background()

	cases := []struct {
		desc string
		op   func() error
		err  error
	}{
		{
			desc: "create with empty key",
			op:   func() error { return s.Create(ctx, "", 1) },
			err:  pkgerrors.ErrEmptyKey,
		},
		{
			desc: "create new key",
			op:   func() error { return s.Create(ctx, "a", 1) },
		},
		{
			desc: "create existing key",
			op:   func() error { return s.Create(ctx, "a", 2) },
			err:  pkgerrors.ErrEntityExists,
		},
		{
			desc: "update missing key",
			op:   func() error { return s.Update(ctx, "b", 2) },
			err:  pkgerrors.ErrNotFound,
		},
		{
			desc: "update existing key",
			op:   func() error { return s.Update(ctx, "a", 3) },
		},
		{
			desc: "delete missing key",
			op:   func() error { return s.Delete(ctx, "b") },
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			err := tc.op()
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			assert.NoError(t, err)
		})
	}

	v, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestInMemoryStorageListKeepsInsertionOrder(t *testing.T) {
	s := NewInMemoryStorage()
	ctx := context.Background()

	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, s.Create(ctx, k, k))
	}
	require.NoError(t, s.Delete(ctx, "a"))

	items, total, err := s.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	assert.Equal(t, []any{"c", "b"}, items)

	items, total, err = s.List(ctx, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	assert.Empty(t, items)
}

func TestMemoryRunRepository(t *testing.T) {
	repos, err := NewRepositories(Config{Type: "memory"})
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	repo := repos.Runs

	first := testutil.TestRun(uuid.NewString())
	second := testutil.CompletedRun(uuid.NewString())
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	_, err = repo.Create(ctx, first)
	require.NoError(t, err)
	_, err = repo.Create(ctx, second)
	require.NoError(t, err)

	got, err := repo.Get(ctx, second.ID)
	require.NoError(t, err)
	testutil.AssertRunEqual(t, second, got)

	runs, total, err := repo.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)

	runs, _, err = repo.List(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, first.ID, runs[0].ID)

	err = repo.Update(ctx, testutil.TestRun(uuid.NewString()))
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, first.ID))
	_, err = repo.Get(ctx, first.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestNewRepositoriesUnsupportedType(t *testing.T) {
	_, err := NewRepositories(Config{Type: "etcd"})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestNewRepositoriesSQLite(t *testing.T) {
	repos, err := NewRepositories(Config{Type: "sqlite", SQLitePath: t.TempDir() + "/runs.db"})
	require.NoError(t, err)
	defer repos.Close()

	r := testutil.TestRun(uuid.NewString())
	_, err = repos.Runs.Create(context.Background(), r)
	require.NoError(t, err)
}
