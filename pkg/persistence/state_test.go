package persistence

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchmore/alps-go/pkg/kvstore"
	"github.com/matchmore/alps-go/pkg/metrics"
	"github.com/matchmore/alps-go/pkg/model"
)

const ns = "state/test.example.com"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func openStore(t *testing.T, kv kvstore.Store, clock *fakeClock, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	s, err := Open(context.Background(), kv, ns, opts...)
	require.NoError(t, err)
	return s
}

func sub(id string, duration *int64) model.Subscription {
	return model.Subscription{ID: id, Topic: "t", Selector: "", Range: 100, Duration: duration}
}

func pub(id string, duration *int64) model.Publication {
	return model.Publication{ID: id, Topic: "t", Range: 100, Duration: duration}
}

func ids[T interface{ model.Subscription | model.Publication }](items []T) []string {
	var out []string
	for _, it := range items {
		switch v := any(it).(type) {
		case model.Subscription:
			out = append(out, v.ID)
		case model.Publication:
			out = append(out, v.ID)
		}
	}
	return out
}

func TestOpenMissingIsEmpty(t *testing.T) {
	s := openStore(t, kvstore.NewMemoryStore(), newFakeClock())

	_, ok := s.Device()
	assert.False(t, ok)
	assert.Empty(t, s.ActiveSubscriptions(context.Background()))
	assert.False(t, s.Recovered())
	assert.Equal(t, ns, s.Namespace())
}

func TestOpenCorruptRecovers(t *testing.T) {
	ctx := context.Background()

	for name, doc := range map[string]string{
		"garbage":        "{not json",
		"future version": `{"version": 99}`,
	} {
		t.Run(name, func(t *testing.T) {
			kv := kvstore.NewMemoryStore()
			require.NoError(t, kv.Save(ctx, ns, []byte(doc)))

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			s := openStore(t, kv, newFakeClock(), WithLogger(logger))
			assert.True(t, s.Recovered())
			_, ok := s.Device()
			assert.False(t, ok)
			assert.Contains(t, buf.String(), "discarding persisted state")
		})
	}
}

func TestOpenStorageErrorIsReturned(t *testing.T) {
	_, err := Open(context.Background(), failingLoad{kvstore.NewMemoryStore()}, ns)
	assert.Error(t, err)
}

type failingLoad struct{ *kvstore.MemoryStore }

func (failingLoad) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func TestPruneExcludesExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := openStore(t, kvstore.NewMemoryStore(), clock)

	require.NoError(t, s.AddSubscription(ctx, sub("short", model.Seconds(5))))
	require.NoError(t, s.AddSubscription(ctx, sub("long", model.Seconds(60))))
	require.NoError(t, s.AddSubscription(ctx, sub("forever", nil)))
	require.NoError(t, s.AddPublication(ctx, pub("p-short", model.Seconds(5))))
	require.NoError(t, s.AddPublication(ctx, pub("p-forever", nil)))

	clock.Advance(4 * time.Second)
	n, err := s.PruneExpired(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// createdAt + duration <= now is expired, so exactly 5s prunes.
	clock.Advance(time.Second)
	n, err = s.PruneExpired(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.ElementsMatch(t, []string{"long", "forever"}, ids(s.ActiveSubscriptions(ctx)))
	assert.ElementsMatch(t, []string{"p-forever"}, ids(s.ActivePublications(ctx)))
}

func TestActiveSetsPruneBeforeRead(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := kvstore.NewMemoryStore()
	s := openStore(t, kv, clock)

	require.NoError(t, s.AddSubscription(ctx, sub("a", model.Seconds(1))))
	clock.Advance(2 * time.Second)

	// No explicit prune tick.
	assert.Empty(t, s.ActiveSubscriptions(ctx))

	// The prune was persisted.
	reopened := openStore(t, kv, clock)
	assert.Empty(t, reopened.Snapshot().Subscriptions)
}

func TestNilDurationNeverPruned(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := openStore(t, kvstore.NewMemoryStore(), clock)

	require.NoError(t, s.AddSubscription(ctx, sub("forever", nil)))
	clock.Advance(100 * 365 * 24 * time.Hour)

	n, err := s.PruneExpired(ctx, clock.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{"forever"}, ids(s.ActiveSubscriptions(ctx)))
}

func TestRestartDurability(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := kvstore.NewFileStore(filepath.Join(t.TempDir(), "state"))

	s := openStore(t, kv, clock)
	main := model.NewMobileDevice("phone")
	main.ID = "dev-1"
	require.NoError(t, s.SetDevice(ctx, main))

	pin := model.NewPinDevice("pin", model.Location{Latitude: 46.5, Longitude: 6.6})
	pin.ID = "pin-1"
	require.NoError(t, s.AddPinDevice(ctx, pin))

	require.NoError(t, s.AddSubscription(ctx, sub("s-short", model.Seconds(10))))
	require.NoError(t, s.AddSubscription(ctx, sub("s-long", model.Seconds(3600))))
	require.NoError(t, s.AddPublication(ctx, pub("p-forever", nil)))

	clock.Advance(30 * time.Second)

	restarted := openStore(t, kv, clock)
	d, ok := restarted.Device()
	require.True(t, ok)
	assert.Equal(t, "dev-1", d.ID)
	assert.Equal(t, []string{"s-long"}, ids(restarted.ActiveSubscriptions(ctx)))
	assert.Equal(t, []string{"p-forever"}, ids(restarted.ActivePublications(ctx)))

	found, ok := restarted.FindDevice("pin-1")
	require.True(t, ok)
	require.NotNil(t, found.Location)
	assert.Equal(t, 46.5, found.Location.Latitude)
}

func TestFailedSaveRollsBack(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	s := openStore(t, kv, newFakeClock())

	require.NoError(t, s.AddSubscription(ctx, sub("a", nil)))

	kv.SetSaveError(errors.New("disk full"))
	assert.Error(t, s.AddSubscription(ctx, sub("b", nil)))

	d := model.NewMobileDevice("phone")
	d.ID = "dev-1"
	assert.Error(t, s.SetDevice(ctx, d))

	assert.Equal(t, []string{"a"}, ids(s.ActiveSubscriptions(ctx)))
	_, ok := s.Device()
	assert.False(t, ok)
}

func TestFailedPruneSaveStillHidesExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := kvstore.NewMemoryStore()
	s := openStore(t, kv, clock)

	require.NoError(t, s.AddSubscription(ctx, sub("a", model.Seconds(1))))
	clock.Advance(time.Minute)
	kv.SetSaveError(errors.New("disk full"))

	_, err := s.PruneExpired(ctx, clock.Now())
	assert.Error(t, err)
	assert.Empty(t, s.ActiveSubscriptions(ctx))

	// In-memory state was rolled back, so the entry is pruned once saves work.
	kv.SetSaveError(nil)
	n, err := s.PruneExpired(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAddRejectsUnassigned(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, kvstore.NewMemoryStore(), newFakeClock())

	assert.ErrorIs(t, s.SetDevice(ctx, model.NewMobileDevice("x")), model.ErrValidation)
	assert.ErrorIs(t, s.AddSubscription(ctx, model.Subscription{Topic: "t"}), model.ErrValidation)
	assert.ErrorIs(t, s.AddPublication(ctx, model.Publication{Topic: "t"}), model.ErrValidation)

	mobile := model.NewMobileDevice("x")
	mobile.ID = "m"
	assert.ErrorIs(t, s.AddPinDevice(ctx, mobile), model.ErrValidation)
}

func TestAddStampsCreatedAtAndReplaces(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := openStore(t, kvstore.NewMemoryStore(), clock)

	require.NoError(t, s.AddSubscription(ctx, sub("a", nil)))
	got := s.ActiveSubscriptions(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, clock.Now().UnixMilli(), got[0].CreatedAt)

	updated := sub("a", nil)
	updated.Topic = "other"
	require.NoError(t, s.AddSubscription(ctx, updated))
	got = s.ActiveSubscriptions(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, "other", got[0].Topic)
}

func TestActiveSetsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, kvstore.NewMemoryStore(), newFakeClock())
	require.NoError(t, s.AddSubscription(ctx, sub("a", model.Seconds(10))))

	got := s.ActiveSubscriptions(ctx)
	*got[0].Duration = 0
	got[0].Topic = "mutated"

	again := s.ActiveSubscriptions(ctx)
	require.Len(t, again, 1)
	assert.Equal(t, "t", again[0].Topic)
	assert.Equal(t, int64(10), *again[0].Duration)
}

func TestWipe(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := kvstore.NewMemoryStore()
	s := openStore(t, kv, clock)

	d := model.NewMobileDevice("phone")
	d.ID = "dev-1"
	require.NoError(t, s.SetDevice(ctx, d))
	require.NoError(t, s.AddSubscription(ctx, sub("a", nil)))

	require.NoError(t, s.Wipe(ctx))

	_, ok := s.Device()
	assert.False(t, ok)
	assert.Empty(t, s.ActiveSubscriptions(ctx))

	_, err := kv.Load(ctx, ns)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestPruneMetrics(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := metrics.New(nil)
	s := openStore(t, kvstore.NewMemoryStore(), clock, WithMetrics(m))

	require.NoError(t, s.AddPublication(ctx, pub("p", model.Seconds(1))))
	clock.Advance(time.Second)
	_, err := s.PruneExpired(ctx, clock.Now())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorePruned))
}

func TestConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := kvstore.NewMemoryStore()
	s := openStore(t, kv, clock)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.AddSubscription(ctx, sub(string(rune('a'+i)), nil))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.PruneExpired(ctx, clock.Now())
		}()
	}
	wg.Wait()

	assert.Len(t, s.ActiveSubscriptions(ctx), 20)
	reopened := openStore(t, kv, clock)
	assert.Len(t, reopened.Snapshot().Subscriptions, 20)
}
