package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"signupboard/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeStore struct {
	domain.EventRepository
	byGuild map[string][]*domain.Event
	calls   int
	err     error
}

func (f *fakeStore) ListByGuild(ctx context.Context, guildID string) ([]*domain.Event, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.byGuild[guildID], nil
}

func newCache(t *testing.T, store *fakeStore) (*EventCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	return NewEventCache(client, store, time.Minute, testLogger), mr
}

func sampleEvent(id string) *domain.Event {
	red := domain.NewCategory("Red", "🔴", domain.StyleRed, nil)
	red.Members = []string{"u1"}
	return &domain.Event{
		ID:         id,
		GuildID:    "g-1",
		ChannelID:  "c-1",
		MessageID:  "m-" + id,
		Title:      "Scrim",
		CreatedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Categories: domain.CategorySet{red, domain.NewCategory("Blue", "🔵", domain.StyleBlurple, nil)},
		Version:    1,
	}
}

func TestEventCache_GetReadsThrough(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{byGuild: map[string][]*domain.Event{"g-1": {sampleEvent("ev-1")}}}
	cache, mr := newCache(t, store)

	got, err := cache.Get(ctx, "g-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"Red", "Blue"}, got[0].Categories.Names())
	assert.True(t, mr.Exists(keyPrefix+"g-1"))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"g-1"))

	got, err = cache.Get(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, sampleEvent("ev-1"), got[0])
	assert.Equal(t, 1, store.calls)
}

func TestEventCache_GetServesStaleUntilRefresh(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{byGuild: map[string][]*domain.Event{"g-1": {sampleEvent("ev-1")}}}
	cache, _ := newCache(t, store)

	_, err := cache.Get(ctx, "g-1")
	require.NoError(t, err)

	store.byGuild["g-1"] = append(store.byGuild["g-1"], sampleEvent("ev-2"))
	got, err := cache.Get(ctx, "g-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, cache.Refresh(ctx, "g-1"))
	got, err = cache.Get(ctx, "g-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestEventCache_RefreshDropsEntryOnStoreError(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{byGuild: map[string][]*domain.Event{"g-1": {sampleEvent("ev-1")}}}
	cache, mr := newCache(t, store)

	_, err := cache.Get(ctx, "g-1")
	require.NoError(t, err)

	store.err = errors.New("db down")
	require.Error(t, cache.Refresh(ctx, "g-1"))
	assert.False(t, mr.Exists(keyPrefix+"g-1"))
}

func TestEventCache_FallsBackToStoreWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{byGuild: map[string][]*domain.Event{"g-1": {sampleEvent("ev-1")}}}
	cache, mr := newCache(t, store)
	mr.Close()

	got, err := cache.Get(ctx, "g-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestEventCache_DiscardsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{byGuild: map[string][]*domain.Event{"g-1": {sampleEvent("ev-1")}}}
	cache, mr := newCache(t, store)
	require.NoError(t, mr.Set(keyPrefix+"g-1", "not json"))

	got, err := cache.Get(ctx, "g-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, store.calls)
}
