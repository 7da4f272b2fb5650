package archive_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/absmach/tuner/pkg/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

func buildTar(t *testing.T, entries []entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Typeflag: e.typeflag,
			Linkname: e.linkname,
			Mode:     0o644,
		}
		switch e.typeflag {
		case tar.TypeReg:
			hdr.Size = int64(len(e.body))
		case tar.TypeDir:
			hdr.Mode = 0o755
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if e.typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())

	return buf.Bytes()
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(data)
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	return buf.Bytes()
}

func writeArchive(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

var dataset = []entry{
	{name: "aclImdb/", typeflag: tar.TypeDir},
	{name: "aclImdb/train/pos/0_9.txt", body: "a wonderful film", typeflag: tar.TypeReg},
	{name: "aclImdb/train/neg/0_3.txt", body: "a dreadful film", typeflag: tar.TypeReg},
	{name: "./aclImdb/README", body: "readme", typeflag: tar.TypeReg},
	{name: "aclImdb/latest", typeflag: tar.TypeSymlink, linkname: "train"},
}

func TestExtract(t *testing.T) {
	plain := buildTar(t, dataset)

	cases := []struct {
		desc string
		file string
		data []byte
	}{
		{
			desc: "plain tar",
			file: "data.tar",
			data: plain,
		},
		{
			desc: "gzip tar",
			file: "data.tar.gz",
			data: gzipped(t, plain),
		},
		{
			desc: "gzip detected by content not extension",
			file: "data.bin",
			data: gzipped(t, plain),
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			src := writeArchive(t, tc.file, tc.data)
			dst := filepath.Join(t.TempDir(), "out")

			err := archive.Extract(context.Background(), src, dst)
			require.NoError(t, err)

			body, err := os.ReadFile(filepath.Join(dst, "aclImdb", "train", "pos", "0_9.txt"))
			require.NoError(t, err)
			assert.Equal(t, "a wonderful film", string(body))

			body, err = os.ReadFile(filepath.Join(dst, "aclImdb", "README"))
			require.NoError(t, err)
			assert.Equal(t, "readme", string(body))

			target, err := os.Readlink(filepath.Join(dst, "aclImdb", "latest"))
			require.NoError(t, err)
			assert.Equal(t, "train", target)
		})
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	cases := []struct {
		desc    string
		entries []entry
	}{
		{
			desc: "parent directory entry",
			entries: []entry{
				{name: "../evil.txt", body: "x", typeflag: tar.TypeReg},
			},
		},
		{
			desc: "nested parent directory entry",
			entries: []entry{
				{name: "aclImdb/../../evil.txt", body: "x", typeflag: tar.TypeReg},
			},
		},
		{
			desc: "absolute entry",
			entries: []entry{
				{name: "/tmp/evil.txt", body: "x", typeflag: tar.TypeReg},
			},
		},
		{
			desc: "symlink escaping destination",
			entries: []entry{
				{name: "link", typeflag: tar.TypeSymlink, linkname: "../../etc"},
			},
		},
		{
			desc: "symlink to absolute path",
			entries: []entry{
				{name: "link", typeflag: tar.TypeSymlink, linkname: "/etc/passwd"},
			},
		},
		{
			desc: "hardlink escaping destination",
			entries: []entry{
				{name: "link", typeflag: tar.TypeLink, linkname: "../outside"},
			},
		},
		{
			desc: "file written through a symlink",
			entries: []entry{
				{name: "a", typeflag: tar.TypeSymlink, linkname: "."},
				{name: "a/b", typeflag: tar.TypeSymlink, linkname: ".."},
				{name: "a/b/evil.txt", body: "x", typeflag: tar.TypeReg},
			},
		},
		{
			desc: "symlink chained through another link",
			entries: []entry{
				{name: "d/", typeflag: tar.TypeDir},
				{name: "l1", typeflag: tar.TypeSymlink, linkname: "d/.."},
				{name: "esc", typeflag: tar.TypeSymlink, linkname: "l1/.."},
			},
		},
		{
			desc: "symlink with a parent reference that stays local",
			entries: []entry{
				{name: "aclImdb/train/", typeflag: tar.TypeDir},
				{name: "aclImdb/latest", typeflag: tar.TypeSymlink, linkname: "train/../train"},
			},
		},
		{
			desc: "valid entries before a bad one",
			entries: []entry{
				{name: "ok.txt", body: "fine", typeflag: tar.TypeReg},
				{name: "../evil.txt", body: "x", typeflag: tar.TypeReg},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			src := writeArchive(t, "data.tar", buildTar(t, tc.entries))
			dst := filepath.Join(t.TempDir(), "out")

			err := archive.Extract(context.Background(), src, dst)
			assert.ErrorIs(t, err, archive.ErrPathTraversal)

			_, statErr := os.Stat(dst)
			assert.True(t, os.IsNotExist(statErr), "nothing must be written when validation fails")
		})
	}
}

func TestExtractCorrupt(t *testing.T) {
	valid := buildTar(t, dataset)
	gz := gzipped(t, valid)

	cases := []struct {
		desc string
		data []byte
	}{
		{
			desc: "not an archive",
			data: bytes.Repeat([]byte("this is not a tar archive "), 40),
		},
		{
			desc: "empty file",
			data: nil,
		},
		{
			desc: "truncated gzip stream",
			data: gz[:16],
		},
		{
			desc: "gzip magic with garbage",
			data: append([]byte{0x1f, 0x8b}, bytes.Repeat([]byte{0}, 64)...),
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			src := writeArchive(t, "data.tar.gz", tc.data)
			err := archive.Extract(context.Background(), src, filepath.Join(t.TempDir(), "out"))
			assert.ErrorIs(t, err, archive.ErrCorrupt)
		})
	}
}

func TestExtractMissingFile(t *testing.T) {
	err := archive.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.tar"), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtractCanceled(t *testing.T) {
	src := writeArchive(t, "data.tar", buildTar(t, dataset))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := archive.NewExtractor().Extract(ctx, src, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}
