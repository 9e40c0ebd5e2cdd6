package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/helio/internal/adapters/repository"
	"github.com/okian/helio/internal/adapters/worker"
	"github.com/okian/helio/internal/domain/contour"
	"github.com/okian/helio/internal/domain/fault"
	"github.com/okian/helio/internal/domain/slot"
	"github.com/okian/helio/pkg/logger"
	"github.com/okian/helio/pkg/retry"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

var t0 = slot.Floor(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))

type fixedLatest struct{ s slot.Slot }

func (f *fixedLatest) Get(ctx context.Context) (slot.Slot, error) {
	if err := ctx.Err(); err != nil {
		return slot.Slot{}, err
	}
	return f.s, nil
}

// cachedLatest also counts cache invalidations.
type cachedLatest struct {
	fixedLatest
	invalidated int
}

func (c *cachedLatest) Invalidate() { c.invalidated++ }

type fakeImages struct {
	mu    sync.Mutex
	calls map[int64]int
	// fail returns an error for the n-th call (0-based) of a slot, or nil.
	fail func(s slot.Slot, n int) error
}

func (f *fakeImages) FetchImage(_ context.Context, s slot.Slot, _ contour.Scale) (*contour.RawImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[int64]int{}
	}
	n := f.calls[s.Unix()]
	f.calls[s.Unix()]++
	if f.fail != nil {
		if err := f.fail(s, n); err != nil {
			return nil, err
		}
	}
	return contour.NewRawImage(4, 4), nil
}

func (f *fakeImages) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakeExtractor struct{ calls int }

func (f *fakeExtractor) Features(*contour.RawImage) contour.FeatureSet {
	f.calls++
	return contour.FeatureSet{
		Umbra:    []contour.Contour{{{X: 0.4, Y: 0.4}, {X: 0.5, Y: 0.4}, {X: 0.5, Y: 0.5}}},
		Penumbra: []contour.Contour{},
	}
}

// flakyStore fails the first putFailures puts, and reports duplicates when dup is set.
type flakyStore struct {
	*repository.MemoryStore
	putFailures int
	dup         bool
	puts        int
}

func (s *flakyStore) Exists(ctx context.Context, sl slot.Slot) (bool, error) {
	if s.dup {
		return false, nil
	}
	return s.MemoryStore.Exists(ctx, sl)
}

func (s *flakyStore) Put(ctx context.Context, sl slot.Slot, at time.Time, fs contour.FeatureSet) error {
	s.puts++
	if s.puts <= s.putFailures {
		return errors.New("connection refused")
	}
	if s.dup {
		return fault.NewKind("put", fault.ErrDuplicateSlot)
	}
	return s.MemoryStore.Put(ctx, sl, at, fs)
}

type sleepLog struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (l *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	l.mu.Lock()
	l.slept = append(l.slept, d)
	l.mu.Unlock()
	return ctx.Err()
}

func TestImageryIdempotence(t *testing.T) {
	Convey("Given a store that already holds the latest slot", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		So(store.Put(ctx, t0, t0.Time(), contour.FeatureSet{}), ShouldBeNil)

		images := &fakeImages{}
		ex := &fakeExtractor{}
		sleeps := &sleepLog{}
		w := worker.NewImagery(&fixedLatest{s: t0}, images, ex, store,
			worker.WithClock(func() time.Time { return t0.Time().Add(5 * time.Minute) }),
			worker.WithImageryRetry(retry.NewFixed(time.Second, retry.WithSleep(sleeps.sleep))),
		)

		Convey("When the loop steps twice", func() {
			So(w.Step(ctx), ShouldBeNil)
			So(w.Step(ctx), ShouldBeNil)

			Convey("Then nothing is fetched or extracted and the loop idles", func() {
				So(images.total(), ShouldEqual, 0)
				So(ex.calls, ShouldEqual, 0)
				So(sleeps.slept, ShouldResemble, []time.Duration{worker.DefaultIdleInterval, worker.DefaultIdleInterval})
				So(w.Stats().Skipped, ShouldEqual, 2)
				So(w.Cursor().Equal(t0), ShouldBeTrue)
			})
		})
	})
}

func TestImageryCatchUp(t *testing.T) {
	Convey("Given an empty store three slots behind the remote", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		latest := t0.Add(3)
		images := &fakeImages{}
		ex := &fakeExtractor{}
		sleeps := &sleepLog{}
		w := worker.NewImagery(&fixedLatest{s: latest}, images, ex, store,
			worker.WithClock(func() time.Time { return latest.Time() }),
			worker.WithLookback(3*slot.Period),
			worker.WithImageryRetry(retry.NewFixed(time.Second, retry.WithSleep(sleeps.sleep))),
		)

		Convey("When the loop steps until it idles", func() {
			for range 4 {
				So(w.Step(ctx), ShouldBeNil)
			}

			Convey("Then every slot after the start is stored once", func() {
				st, _ := store.Stats(ctx)
				So(st.Observations, ShouldEqual, 3)
				for i := 1; i <= 3; i++ {
					ok, _ := store.Exists(ctx, t0.Add(i))
					So(ok, ShouldBeTrue)
					So(images.calls[t0.Add(i).Unix()], ShouldEqual, 1)
				}
				So(ex.calls, ShouldEqual, 3)
				So(w.Stats().Stored, ShouldEqual, 3)
				So(sleeps.slept, ShouldResemble, []time.Duration{worker.DefaultIdleInterval})
			})
		})

		Convey("When a slot has no image", func() {
			images.fail = func(s slot.Slot, _ int) error {
				if s.Equal(t0.Add(1)) {
					return fault.NewKind("image", fault.ErrNotFound)
				}
				return nil
			}
			for range 3 {
				So(w.Step(ctx), ShouldBeNil)
			}

			Convey("Then it is skipped and the loop moves on", func() {
				ok, _ := store.Exists(ctx, t0.Add(1))
				So(ok, ShouldBeFalse)
				ok, _ = store.Exists(ctx, t0.Add(2))
				So(ok, ShouldBeTrue)
				So(images.calls[t0.Add(1).Unix()], ShouldEqual, 1)
				So(w.Stats().NotFound, ShouldEqual, 1)
				So(sleeps.slept, ShouldBeEmpty)
			})
		})

		Convey("When fetching fails transiently", func() {
			images.fail = func(_ slot.Slot, n int) error {
				if n < 2 {
					return fault.Wrap("image", fault.ErrTransient, errors.New("timeout"))
				}
				return nil
			}
			So(w.Step(ctx), ShouldBeNil)

			Convey("Then the same slot is retried after the fixed delay", func() {
				So(images.calls[t0.Add(1).Unix()], ShouldEqual, 3)
				So(sleeps.slept, ShouldResemble, []time.Duration{time.Second, time.Second})
				ok, _ := store.Exists(ctx, t0.Add(1))
				So(ok, ShouldBeTrue)
				So(w.Stats().Retries, ShouldEqual, 2)
			})
		})
	})
}

func TestImageryLiveEdge(t *testing.T) {
	Convey("Given an empty store whose next slot is the latest published one", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		latest := &cachedLatest{fixedLatest: fixedLatest{s: t0.Add(1)}}
		images := &fakeImages{}
		sleeps := &sleepLog{}
		w := worker.NewImagery(latest, images, &fakeExtractor{}, store,
			worker.WithClock(func() time.Time { return t0.Add(1).Time() }),
			worker.WithLookback(slot.Period),
			worker.WithImageryRetry(retry.NewFixed(time.Second, retry.WithSleep(sleeps.sleep))),
		)

		Convey("When its image is not published yet on the first fetch", func() {
			images.fail = func(_ slot.Slot, n int) error {
				if n == 0 {
					return fault.NewKind("image", fault.ErrNotFound)
				}
				return nil
			}
			So(w.Step(ctx), ShouldBeNil)
			So(w.Step(ctx), ShouldBeNil)

			Convey("Then the same slot is fetched again after a short pause and stored", func() {
				So(images.calls[t0.Add(1).Unix()], ShouldEqual, 2)
				So(images.total(), ShouldEqual, 2)
				ok, _ := store.Exists(ctx, t0.Add(1))
				So(ok, ShouldBeTrue)
				So(sleeps.slept, ShouldResemble, []time.Duration{worker.DefaultEdgePause})
				So(latest.invalidated, ShouldEqual, 1)
				So(w.Stats().NotFound, ShouldEqual, 1)
				So(w.Stats().Stored, ShouldEqual, 1)
				So(w.Cursor().Equal(t0.Add(1)), ShouldBeTrue)
			})
		})

		Convey("When the edge pause is configured", func() {
			w = worker.NewImagery(latest, images, &fakeExtractor{}, store,
				worker.WithClock(func() time.Time { return t0.Add(1).Time() }),
				worker.WithLookback(slot.Period),
				worker.WithEdgePause(3*time.Second),
				worker.WithImageryRetry(retry.NewFixed(time.Second, retry.WithSleep(sleeps.sleep))),
			)
			images.fail = func(slot.Slot, int) error { return fault.NewKind("image", fault.ErrNotFound) }
			So(w.Step(ctx), ShouldBeNil)

			Convey("Then that pause is used instead of the idle interval", func() {
				So(sleeps.slept, ShouldResemble, []time.Duration{3 * time.Second})
			})
		})
	})
}

func TestImageryStorageFailures(t *testing.T) {
	Convey("Given a loop one slot behind the remote", t, func() {
		ctx := context.Background()
		latest := t0.Add(1)
		images := &fakeImages{}
		sleeps := &sleepLog{}
		build := func(store worker.ObservationStore) *worker.Imagery {
			return worker.NewImagery(&fixedLatest{s: latest}, images, &fakeExtractor{}, store,
				worker.WithClock(func() time.Time { return latest.Time() }),
				worker.WithLookback(slot.Period),
				worker.WithImageryRetry(retry.NewFixed(time.Second, retry.WithSleep(sleeps.sleep))),
			)
		}

		Convey("When a put fails once", func() {
			store := &flakyStore{MemoryStore: repository.NewMemoryStore(), putFailures: 1}
			w := build(store)
			So(w.Step(ctx), ShouldBeNil)

			Convey("Then it is retried without refetching", func() {
				So(store.puts, ShouldEqual, 2)
				So(images.total(), ShouldEqual, 1)
				ok, _ := store.MemoryStore.Exists(ctx, latest)
				So(ok, ShouldBeTrue)
				So(sleeps.slept, ShouldResemble, []time.Duration{time.Second})
			})
		})

		Convey("When the store reports a duplicate", func() {
			store := &flakyStore{MemoryStore: repository.NewMemoryStore(), dup: true}
			w := build(store)
			So(w.Step(ctx), ShouldBeNil)

			Convey("Then it is reported once and not retried", func() {
				So(store.puts, ShouldEqual, 1)
				So(w.Stats().Duplicates, ShouldEqual, 1)
				So(sleeps.slept, ShouldBeEmpty)
			})

			Convey("Then the memo prevents another fetch", func() {
				So(w.Step(ctx), ShouldBeNil)
				So(images.total(), ShouldEqual, 1)
			})
		})
	})
}

func TestImageryRunShutdown(t *testing.T) {
	Convey("Given a running imagery loop that has caught up", t, func() {
		store := repository.NewMemoryStore()
		So(store.Put(context.Background(), t0, t0.Time(), contour.FeatureSet{}), ShouldBeNil)
		w := worker.NewImagery(&fixedLatest{s: t0}, &fakeImages{}, &fakeExtractor{}, store,
			worker.WithClock(func() time.Time { return t0.Time() }),
		)
		go w.Run(context.Background())

		Convey("When it is shut down", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := w.Shutdown(ctx)

			Convey("Then Run returns promptly", func() {
				So(err, ShouldBeNil)
				So(w.Shutdown(ctx), ShouldBeNil)
			})
		})
	})
}
