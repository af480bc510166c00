package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

func sampleSession() *model.ImportSession {
	return &model.ImportSession{
		ID:       "sess-1",
		OwnerID:  "owner-1",
		FileName: "stats.xlsx",
		Step:     model.StepPreview,
		Mapping: &model.ColumnMapping{
			SheetName:  "Stats",
			DateColumn: 0,
			StartRow:   2,
			Metrics:    map[model.MetricKey]*int{model.MetricFollowers: model.IntPtr(1), model.MetricReach: nil},
			Confidence: model.ConfidenceHigh,
		},
		Rows: []model.NormalizedMonthRow{{
			Month:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			SourceLine: 2,
			Values:     map[model.MetricKey]model.MetricValue{model.MetricFollowers: model.NumberValue(1200)},
		}},
	}
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func assertRoundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if err := store.Save(ctx, sampleSession()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Step != model.StepPreview || got.OwnerID != "owner-1" {
		t.Fatalf("session=%+v", got)
	}
	if col, ok := got.Mapping.Column(model.MetricFollowers); !ok || col != 1 {
		t.Fatalf("mapping lost: %+v", got.Mapping)
	}
	if len(got.Rows) != 1 || got.Rows[0].MonthKey() != "2024-01-01" {
		t.Fatalf("rows=%+v", got.Rows)
	}

	got.Step = model.StepDone
	again, _ := store.Load(ctx, "sess-1")
	if again.Step != model.StepPreview {
		t.Fatalf("store returned shared state")
	}

	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	assertRoundTrip(t, NewMemoryStore(time.Hour))
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if err := store.Save(context.Background(), sampleSession()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.Load(context.Background(), "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after expiry, got %v", err)
	}
}

func TestMemoryStorePurgesExpiredOnSave(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		s := sampleSession()
		s.ID = fmt.Sprintf("old-%d", i)
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	now = now.Add(2 * time.Minute)
	for i := 0; i < 10; i++ {
		s := sampleSession()
		s.ID = fmt.Sprintf("new-%d", i)
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	if n := len(store.sessions); n != 10 {
		t.Fatalf("retained=%d, want 10", n)
	}
	if _, err := store.Load(ctx, "new-3"); err != nil {
		t.Fatalf("live session lost: %v", err)
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	_, client := setupTestRedis(t)
	assertRoundTrip(t, NewRedisStore(client, time.Hour))
}

func TestRedisStoreTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisStore(client, 30*time.Minute)

	if err := store.Save(context.Background(), sampleSession()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ttl := mr.TTL(KeyPrefix + "sess-1"); ttl != 30*time.Minute {
		t.Fatalf("ttl=%v", ttl)
	}

	mr.FastForward(31 * time.Minute)
	if _, err := store.Load(context.Background(), "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after expiry, got %v", err)
	}
}

func TestDialUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Dial(ctx, "127.0.0.1:1"); err == nil {
		t.Fatalf("expected dial error")
	}
}
