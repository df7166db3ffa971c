package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), "http://localhost:6379")
	require.Error(t, err)
}

func TestUnreachableServerIsErrorNotMiss(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	c := New(client, time.Minute)
	_, ok, err := c.Get(context.Background(), "user:1")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Ping(context.Background()))
}
