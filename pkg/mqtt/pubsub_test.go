package mqtt

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopics(t *testing.T) {
	assert.Equal(t, "tuner/runs/abc/events", RunEventsTopic("abc"))
	assert.Equal(t, "tuner/trainers/t1/status", StatusTopic("t1"))
}

func TestNewPubSubValidation(t *testing.T) {
	cases := []struct {
		desc string
		cfg  Config
		err  error
	}{
		{
			desc: "missing broker address",
			cfg:  Config{ClientID: "trainer"},
			err:  errEmptyAddress,
		},
		{
			desc: "missing client id",
			cfg:  Config{Address: "tcp://localhost:1883"},
			err:  errEmptyID,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := NewPubSub(tc.cfg, slog.Default())
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestPublishEmptyTopic(t *testing.T) {
	ps := &pubsub{logger: slog.Default()}

	assert.ErrorIs(t, ps.Publish(context.Background(), "", "x"), errEmptyTopic)
	assert.ErrorIs(t, ps.Subscribe(context.Background(), "", nil), errEmptyTopic)
	assert.ErrorIs(t, ps.Unsubscribe(context.Background(), ""), errEmptyTopic)
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Address: "tcp://localhost:1883"}.Enabled())
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NewNoopPublisher().Publish(context.Background(), "any", map[string]int{"a": 1}))
}
