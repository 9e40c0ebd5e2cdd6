package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/helio/internal/adapters/repository"
	"github.com/okian/helio/internal/adapters/worker"
	"github.com/okian/helio/internal/domain/fault"
	"github.com/okian/helio/internal/domain/model"
	"github.com/okian/helio/pkg/retry"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeRegions struct {
	calls    int
	failures int
	records  []model.Region
}

func (f *fakeRegions) FetchAll(context.Context) ([]model.Region, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, fault.Wrap("regions", fault.ErrTransient, errors.New("502"))
	}
	return f.records, nil
}

type flakyRegionStore struct {
	*repository.MemoryStore
	failures int
	calls    int
}

func (s *flakyRegionStore) UpsertAll(ctx context.Context, rs []model.Region) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("disk full")
	}
	return s.MemoryStore.UpsertAll(ctx, rs)
}

func report() []model.Region {
	d := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	return []model.Region{
		{Region: 13664, ObservedDate: d, FirstDate: d, Latitude: -18, Longitude: 12},
		{Region: 13670, ObservedDate: d, FirstDate: d, Latitude: 9, Longitude: -60},
	}
}

func TestRegionsRunOnce(t *testing.T) {
	Convey("Given a region job", t, func() {
		ctx := context.Background()
		source := &fakeRegions{records: report()}
		store := &flakyRegionStore{MemoryStore: repository.NewMemoryStore()}
		sleeps := &sleepLog{}
		w := worker.NewRegions(source, store,
			worker.WithRegionRetry(retry.NewFixed(time.Second, retry.WithSleep(sleeps.sleep))))

		Convey("When a run succeeds", func() {
			So(w.RunOnce(ctx), ShouldBeNil)

			Convey("Then every record is stored", func() {
				st, _ := store.Stats(ctx)
				So(st.Regions, ShouldEqual, 2)
				So(w.Stats().Runs, ShouldEqual, 1)
				So(w.Stats().Records, ShouldEqual, 2)
				So(w.Stats().LastRun, ShouldNotBeEmpty)
			})

			Convey("And runs again", func() {
				So(w.RunOnce(ctx), ShouldBeNil)
				st, _ := store.Stats(ctx)
				So(st.Regions, ShouldEqual, 2)
			})
		})

		Convey("When the fetch and then the upsert fail", func() {
			source.failures = 2
			store.failures = 1
			So(w.RunOnce(ctx), ShouldBeNil)

			Convey("Then each step is retried after the fixed delay", func() {
				So(source.calls, ShouldEqual, 3)
				So(store.calls, ShouldEqual, 2)
				So(sleeps.slept, ShouldResemble, []time.Duration{time.Second, time.Second, time.Second})
				So(w.Stats().Retries, ShouldEqual, 3)
			})
		})

		Convey("When the context ends during a retry", func() {
			source.failures = 100
			cctx, cancel := context.WithCancel(ctx)
			w := worker.NewRegions(source, store,
				worker.WithRegionRetry(retry.NewFixed(time.Second, retry.WithSleep(func(ctx context.Context, _ time.Duration) error {
					cancel()
					return ctx.Err()
				}))))
			err := w.RunOnce(cctx)

			Convey("Then the run stops with the cancellation", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(source.calls, ShouldEqual, 1)
			})
		})
	})
}

func TestRegionsRunShutdown(t *testing.T) {
	Convey("Given a running region job", t, func() {
		store := repository.NewMemoryStore()
		w := worker.NewRegions(&fakeRegions{records: report()}, store, worker.WithRegionInterval(time.Hour))
		go w.Run(context.Background())

		Convey("When it is shut down", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			Convey("Then Run returns", func() {
				So(w.Shutdown(ctx), ShouldBeNil)
			})
		})
	})
}
