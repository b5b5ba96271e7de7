package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
)

func newStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, ttl), mr
}

func sample() *assessment.Session {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s := &assessment.Session{
		ID:        "5f0c6a1e-8d1b-4c55-9a43-3c1f2f0c1d2e",
		Tool:      "oral-health",
		Stage:     assessment.StageQuestions,
		Page:      2,
		Pages:     3,
		Answers:   assessment.AnswerSet{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Answers[1] = assessment.NewYesNo(true)
	s.Answers[2] = assessment.NewNumber(4)
	return s
}

func TestSaveGetRoundTrip(t *testing.T) {
	store, mr := newStore(t, time.Minute)
	ctx := context.Background()
	s := sample()

	require.NoError(t, store.Save(ctx, s))
	assert.True(t, mr.Exists("assess:session:oral-health:"+s.ID))
	assert.Equal(t, time.Minute, mr.TTL("assess:session:oral-health:"+s.ID))

	got, err := store.Get(ctx, s.Tool, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Stage, got.Stage)
	assert.Equal(t, 2, got.Page)
	assert.True(t, got.CreatedAt.Equal(s.CreatedAt))
	assert.Equal(t, s.Answers[1], got.Answers[1])
	assert.Equal(t, s.Answers[2], got.Answers[2])
}

func TestGetIsScopedByTool(t *testing.T) {
	store, _ := newStore(t, time.Minute)
	ctx := context.Background()
	s := sample()
	require.NoError(t, store.Save(ctx, s))

	_, err := store.Get(ctx, "cogni-track", s.ID)
	assert.True(t, errors.Is(err, assessment.ErrSessionNotFound))
}

func TestSessionExpires(t *testing.T) {
	store, mr := newStore(t, time.Minute)
	ctx := context.Background()
	s := sample()
	require.NoError(t, store.Save(ctx, s))

	mr.FastForward(30 * time.Second)
	require.NoError(t, store.Save(ctx, s)) // renews the ttl
	mr.FastForward(45 * time.Second)
	_, err := store.Get(ctx, s.Tool, s.ID)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, s.Tool, s.ID)
	assert.True(t, errors.Is(err, assessment.ErrSessionNotFound))
}

func TestDelete(t *testing.T) {
	store, _ := newStore(t, 0)
	ctx := context.Background()
	s := sample()
	require.NoError(t, store.Save(ctx, s))
	require.NoError(t, store.Delete(ctx, s.Tool, s.ID))

	_, err := store.Get(ctx, s.Tool, s.ID)
	assert.True(t, errors.Is(err, assessment.ErrSessionNotFound))
	assert.Equal(t, defaultTTL, store.ttl)
}

func TestCorruptValue(t *testing.T) {
	store, mr := newStore(t, time.Minute)
	require.NoError(t, mr.Set("assess:session:oral-health:x", "{not json"))
	_, err := store.Get(context.Background(), "oral-health", "x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, assessment.ErrSessionNotFound))
}

func TestCheck(t *testing.T) {
	store, mr := newStore(t, time.Minute)
	require.NoError(t, store.Check(context.Background()))
	mr.Close()
	assert.Error(t, store.Check(context.Background()))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	rdb.Close()

	_, err = Connect(context.Background(), "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
