package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decoded struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, "vin"), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var out decoded
	found, err := c.Get(ctx, "1HGBH41JXMN109186", &out)
	require.NoError(t, err)
	assert.False(t, found)

	in := decoded{Make: "HONDA", Model: "Civic", Year: 1991}
	require.NoError(t, c.Set(ctx, "1HGBH41JXMN109186", in, time.Hour))
	assert.True(t, mr.Exists("vin:1HGBH41JXMN109186"))

	found, err = c.Get(ctx, "1HGBH41JXMN109186", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)

	mr.FastForward(2 * time.Hour)
	found, err = c.Get(ctx, "1HGBH41JXMN109186", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCachePing(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	_, err = Connect(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestGetOrLoad(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (decoded, error) {
		calls++
		return decoded{Make: "TOYOTA", Year: 2020}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := GetOrLoad(ctx, c, "key", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, "TOYOTA", v.Make)
	}
	assert.Equal(t, 1, calls)

	_, err := GetOrLoad(ctx, c, "other", time.Minute, func(context.Context) (decoded, error) {
		return decoded{}, errors.New("upstream down")
	})
	assert.EqualError(t, err, "upstream down")

	var out decoded
	found, err := c.Get(ctx, "other", &out)
	require.NoError(t, err)
	assert.False(t, found, "failed loads are not cached")
}

func TestGetOrLoadWithNoop(t *testing.T) {
	calls := 0
	for i := 0; i < 2; i++ {
		_, err := GetOrLoad(context.Background(), Noop{}, "key", time.Minute, func(context.Context) (int, error) {
			calls++
			return 1, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}
