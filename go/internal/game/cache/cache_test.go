package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roster struct {
	Names []string `json:"names"`
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client), mr
}

func TestGetSetRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "players:s1", roster{Names: []string{"ann", "bob"}}, 30*time.Second))

	var got roster
	found, err := c.Get(ctx, "players:s1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"ann", "bob"}, got.Names)
	assert.Equal(t, 30*time.Second, mr.TTL("players:s1"))

	found, err = c.Get(ctx, "players:missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeletePatternOnlyTouchesMatchingKeys(t *testing.T) {
	c, mr := newTestCache(t)
	c.scanSize = 2
	ctx := context.Background()
	session, other := uuid.New(), uuid.New()
	q1, q2 := uuid.New(), uuid.New()

	for _, key := range []string{
		QueueKey(session, q1), QueueKey(session, q2), SessionKey(session),
		QueueKey(other, q1), RosterKey(session),
	} {
		require.NoError(t, mr.Set(key, "{}"))
	}

	require.NoError(t, c.DeletePattern(ctx, QueuePattern(session)))

	assert.False(t, mr.Exists(QueueKey(session, q1)))
	assert.False(t, mr.Exists(QueueKey(session, q2)))
	assert.True(t, mr.Exists(QueueKey(other, q1)))
	assert.True(t, mr.Exists(SessionKey(session)))
	assert.True(t, mr.Exists(RosterKey(session)))
}

func TestCachedReadsThrough(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (roster, error) {
		calls++
		return roster{Names: []string{"ann"}}, nil
	}

	first, err := Cached(ctx, c, "players:s2", time.Minute, load)
	require.NoError(t, err)
	second, err := Cached(ctx, c, "players:s2", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestCachedSurvivesBrokenCache(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	got, err := Cached(context.Background(), c, "players:s3", time.Minute, func(context.Context) (roster, error) {
		return roster{Names: []string{"bob"}}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, got.Names)
}

func TestCachedPropagatesLoaderError(t *testing.T) {
	boom := errors.New("db down")

	_, err := Cached(context.Background(), Noop{}, "k", time.Minute, func(context.Context) (roster, error) {
		return roster{}, boom
	})

	assert.ErrorIs(t, err, boom)
}
