package facade_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/neighborhood-lab/care-commons-sub007/internal/clock"
	"github.com/neighborhood-lab/care-commons-sub007/internal/conflict"
	"github.com/neighborhood-lab/care-commons-sub007/internal/facade"
	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
	"github.com/neighborhood-lab/care-commons-sub007/internal/network"
	"github.com/neighborhood-lab/care-commons-sub007/internal/offlinequeue"
	"github.com/neighborhood-lab/care-commons-sub007/internal/optimistic"
	"github.com/neighborhood-lab/care-commons-sub007/internal/queuestore"
	"github.com/neighborhood-lab/care-commons-sub007/internal/staterules"
	"github.com/neighborhood-lab/care-commons-sub007/internal/store"
	"github.com/neighborhood-lab/care-commons-sub007/internal/syncmanager"
)

type testClock struct{ ms int64 }

func (c *testClock) NowMillis() int64         { c.ms++; return c.ms }
func (c *testClock) Now() time.Time           { return time.UnixMilli(c.ms) }
func (c *testClock) Monotonic() time.Duration { return time.Duration(c.ms) * time.Millisecond }

var _ clock.Clock = (*testClock)(nil)

type noopExecutor struct{}

func (noopExecutor) Execute(ctx context.Context, action model.QueuedAction) (int, bool, error) {
	return 200, true, nil
}

type emptyPuller struct{}

func (emptyPuller) Pull(ctx context.Context, since string) (syncmanager.PullResult, error) {
	return syncmanager.PullResult{}, nil
}

func newTestFacade() (*facade.Facade, store.Store) {
	ctx := context.Background()
	clk := &testClock{}

	db, err := store.Open(ctx, ":memory:", clk)
	Expect(err).ToNot(HaveOccurred())

	dir := GinkgoT().TempDir()
	qpersist := queuestore.Open[model.QueuedAction](dir, queuestore.KeyOfflineQueue)
	journal := queuestore.Open[model.OptimisticUpdate](dir, queuestore.KeyOptimisticUpdates)
	history := queuestore.Open[syncmanager.HistoryEntry](dir, syncmanager.KeyHistory)

	probe := network.New(true, 0, clk)
	optManager := optimistic.New(db, journal, clk, nil)
	queue := offlinequeue.New(qpersist, probe, noopExecutor{}, optManager, clk, offlinequeue.Config{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxRetries: 5}, nil, nil)
	excepts := conflict.NewExceptionQueue(queuestore.Open[model.ExceptionItem](dir, conflict.KeyExceptions), clk)
	cursors := syncmanager.NewCursorStore(dir)

	mgr := syncmanager.New(queue, emptyPuller{}, db, probe, excepts, clk, history, cursors, syncmanager.Config{}, nil)
	rules := staterules.New(nil)

	f := facade.New(db, optManager, queue, mgr, probe, rules, clk, 300, nil)
	return f, db
}

var _ = Describe("EVV Facade", func() {
	var f *facade.Facade
	var db store.Store

	BeforeEach(func() {
		f, db = newTestFacade()
	})

	It("clocks in and creates a PENDING evv record", func() {
		ctx := context.Background()
		result, err := f.ClockIn(ctx, facade.ClockInInput{
			VisitID: "visit-1", ClientID: "client-1", CaregiverID: "giver-1", OrganizationID: "org-1",
			StateCode: "TX", ServiceDate: "2026-07-30",
			ServiceAddress: model.ServiceAddress{Latitude: 30.27, Longitude: -97.74, GeofenceRadius: 100},
			Latitude: 30.27, Longitude: -97.74, Accuracy: 10, Timestamp: time.Now().UnixMilli(),
			Method: model.MethodGPS, Device: model.DeviceInfo{DeviceID: "d1", DeviceModel: "Pixel", DeviceOS: "Android 14", AppVersion: "1.0"},
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(result.EVVRecord.RecordStatus).To(Equal(model.RecordPending))
		Expect(result.Verification.IsWithinGeofence).To(BeTrue())
	})

	It("rejects a clock-in using a method the state does not allow, writing nothing", func() {
		ctx := context.Background()
		_, err := f.ClockIn(ctx, facade.ClockInInput{
			VisitID: "visit-blocked", ClientID: "client-1", CaregiverID: "giver-1", OrganizationID: "org-1",
			StateCode: "OH", ServiceDate: "2026-07-30",
			ServiceAddress: model.ServiceAddress{Latitude: 30.27, Longitude: -97.74, GeofenceRadius: 100},
			Latitude: 30.27, Longitude: -97.74, Accuracy: 10, Timestamp: time.Now().UnixMilli(),
			Method: model.MethodPhone, Device: model.DeviceInfo{DeviceID: "d1", DeviceModel: "Pixel", DeviceOS: "Android 14", AppVersion: "1.0"},
		})

		Expect(err).To(HaveOccurred())
		_, getErr := db.Get(ctx, model.EntityEVVRecord, "visit-blocked")
		Expect(getErr).To(HaveOccurred())
	})

	It("rejects a clock-in with missing device information", func() {
		ctx := context.Background()
		_, err := f.ClockIn(ctx, facade.ClockInInput{
			VisitID: "visit-2", StateCode: "TX",
			ServiceAddress: model.ServiceAddress{Latitude: 30.27, Longitude: -97.74, GeofenceRadius: 100},
			Latitude: 30.27, Longitude: -97.74, Accuracy: 10, Timestamp: time.Now().UnixMilli(),
			Method: model.MethodGPS, Device: model.DeviceInfo{},
		})
		Expect(err).To(HaveOccurred())
	})

	It("clocks out an existing PENDING visit and computes duration", func() {
		ctx := context.Background()
		now := time.Now().UnixMilli()
		_, err := f.ClockIn(ctx, facade.ClockInInput{
			VisitID: "visit-3", ClientID: "client-1", CaregiverID: "giver-1", OrganizationID: "org-1",
			StateCode: "TX", ServiceDate: "2026-07-30",
			ServiceAddress: model.ServiceAddress{Latitude: 30.27, Longitude: -97.74, GeofenceRadius: 100},
			Latitude: 30.27, Longitude: -97.74, Accuracy: 10, Timestamp: now,
			Method: model.MethodGPS, Device: model.DeviceInfo{DeviceID: "d1", DeviceModel: "Pixel", DeviceOS: "Android 14", AppVersion: "1.0"},
		})
		Expect(err).ToNot(HaveOccurred())

		result, err := f.ClockOut(ctx, facade.ClockOutInput{
			VisitID: "visit-3", OrganizationID: "org-1", StateCode: "TX",
			Latitude: 30.27, Longitude: -97.74, Accuracy: 10, Timestamp: now + 3600000,
			Method: model.MethodGPS, Device: model.DeviceInfo{DeviceID: "d1", DeviceModel: "Pixel", DeviceOS: "Android 14", AppVersion: "1.0"},
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(result.EVVRecord.RecordStatus).To(Equal(model.RecordComplete))
		Expect(result.EVVRecord.TotalDurationMinutes).To(Equal(int64(60)))
	})

	It("submits a note and reflects it in sync state queue size", func() {
		ctx := context.Background()
		before, err := f.GetSyncState(ctx)
		Expect(err).ToNot(HaveOccurred())

		err = f.SubmitNote(ctx, facade.SubmitNoteInput{VisitID: "visit-4", AuthorID: "giver-1", NoteText: "all good", CreatedAt: time.Now().UnixMilli()})
		Expect(err).ToNot(HaveOccurred())

		after, err := f.GetSyncState(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(after.QueueSize).To(Equal(before.QueueSize + 1))
	})

	It("runs a manual sync and reports success", func() {
		ctx := context.Background()
		entry, err := f.ManualSync(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(entry.Success).To(BeTrue())
	})
})
