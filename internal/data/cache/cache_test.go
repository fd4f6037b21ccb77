package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/investrun/internal/market"
)

func TestMemory_GetSetExpire(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok, _ = c.Get(ctx, "short")
	assert.False(t, ok)
}

func TestRedisCache_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, "investrun:")
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		mock.ExpectGet("investrun:prices:a").SetVal("payload")

		v, ok, err := c.Get(ctx, "prices:a")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "payload", string(v))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss", func(t *testing.T) {
		mock.ExpectGet("investrun:prices:b").RedisNil()

		v, ok, err := c.Get(ctx, "prices:b")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error", func(t *testing.T) {
		mock.ExpectGet("investrun:prices:c").SetErr(redis.TxFailedErr)

		_, _, err := c.Get(ctx, "prices:c")
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedisCache_Set(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, "investrun:")

	mock.ExpectSet("investrun:k", []byte("v"), time.Hour).SetVal("OK")
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

type countingSource struct {
	calls  int
	series *market.Series
	err    error
}

func (s *countingSource) Name() string { return "fake" }

func (s *countingSource) Fetch(context.Context, string, market.Date, market.Date) (*market.Series, error) {
	s.calls++
	return s.series, s.err
}

func TestKey(t *testing.T) {
	start := market.Date{Year: 1983, Month: time.January, Day: 1}
	end := market.Date{Year: 2024, Month: time.December, Day: 30}

	assert.Equal(t, "prices:yahoo:^GSPC:1983-01-01:2024-12-30", Key("yahoo", "^GSPC", start, end))
	assert.NotEqual(t, Key("yahoo", "^GSPC", start, end), Key("csv", "^GSPC", start, end))
}

func TestCachedSource_ServesSecondFetchFromCache(t *testing.T) {
	src := &countingSource{series: &market.Series{Symbol: "TQQQ", Bars: []market.Bar{
		{Date: market.Date{Year: 2014, Month: time.January, Day: 2}, Open: 5.5},
	}}}
	cs := NewCachedSource(src, NewMemory(), time.Hour, nil)

	start := market.Date{Year: 2014, Month: time.January, Day: 1}
	end := market.Date{Year: 2024, Month: time.December, Day: 30}

	first, err := cs.Fetch(context.Background(), "TQQQ", start, end)
	require.NoError(t, err)
	second, err := cs.Fetch(context.Background(), "TQQQ", start, end)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first.Bars, second.Bars)
	assert.Equal(t, "fake+cache", cs.Name())
}

func TestCachedSource_RedisErrorFallsThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	src := &countingSource{series: &market.Series{Symbol: "HIBL"}}
	cs := NewCachedSource(src, NewRedis(db, ""), time.Hour, nil)

	start := market.Date{Year: 2020, Month: time.January, Day: 1}
	end := market.Date{Year: 2020, Month: time.December, Day: 30}
	key := Key("fake", "HIBL", start, end)

	raw, err := json.Marshal(src.series)
	require.NoError(t, err)

	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectSet(key, raw, time.Hour).SetVal("OK")

	_, err = cs.Fetch(context.Background(), "HIBL", start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedSource_SourceErrorNotCached(t *testing.T) {
	src := &countingSource{err: errors.New("upstream down")}
	c := NewMemory()
	cs := NewCachedSource(src, c, time.Hour, nil)

	start := market.Date{Year: 2020, Month: time.January, Day: 1}
	end := market.Date{Year: 2020, Month: time.December, Day: 30}

	_, err := cs.Fetch(context.Background(), "X", start, end)
	assert.Error(t, err)

	_, ok, _ := c.Get(context.Background(), Key("fake", "X", start, end))
	assert.False(t, ok)
}
