// Package facade implements the EVV Facade (spec.md C11): the only public
// entry point callers use, composing state rules (C5), validation (C6),
// the optimistic update manager (C7), the offline queue (C8), and the
// sync manager (C10) behind eight operations. Grounded structurally on
// aghassemi-go.ref's services/syncbase/vsync package, which likewise
// exposes a small facade (AddWatch/GetDeltas) over a much larger internal
// machinery of stores, logs and conflict resolution.
package facade

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/neighborhood-lab/care-commons-sub007/internal/clock"
	"github.com/neighborhood-lab/care-commons-sub007/internal/corelog"
	"github.com/neighborhood-lab/care-commons-sub007/internal/corerrors"
	"github.com/neighborhood-lab/care-commons-sub007/internal/crypto"
	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
	"github.com/neighborhood-lab/care-commons-sub007/internal/network"
	"github.com/neighborhood-lab/care-commons-sub007/internal/offlinequeue"
	"github.com/neighborhood-lab/care-commons-sub007/internal/optimistic"
	"github.com/neighborhood-lab/care-commons-sub007/internal/staterules"
	"github.com/neighborhood-lab/care-commons-sub007/internal/store"
	"github.com/neighborhood-lab/care-commons-sub007/internal/syncmanager"
	"github.com/neighborhood-lab/care-commons-sub007/internal/validate"
)

// Syncer is the subset of the Sync Manager the facade drives directly.
type Syncer interface {
	ManualSync(ctx context.Context) (syncmanager.HistoryEntry, error)
}

// Facade is the EVV Facade.
type Facade struct {
	store      store.Store
	optimistic *optimistic.Manager
	queue      *offlinequeue.Queue
	sync       Syncer
	probe      *network.Probe
	rules      *staterules.Table
	clock      clock.Clock
	clockSkewS int64

	locks keyedLocks
	log   *zap.Logger
}

// New builds the EVV Facade.
func New(db store.Store, opt *optimistic.Manager, queue *offlinequeue.Queue, syncer Syncer, probe *network.Probe, rules *staterules.Table, clk clock.Clock, clockSkewToleranceS int64, log *zap.Logger) *Facade {
	if log == nil {
		log = zap.NewNop()
	}
	return &Facade{
		store: db, optimistic: opt, queue: queue, sync: syncer, probe: probe,
		rules: rules, clock: clk, clockSkewS: clockSkewToleranceS, log: log,
	}
}

// keyedLocks serializes facade entry points per (kind, id), per spec.md
// §5: "the sequence {validate → apply optimistic → enqueue} executes
// without interleaving any other facade call that mutates the same
// (kind, id)... across different keys, calls may interleave freely."
type keyedLocks struct {
	mu    sync.Mutex
	inUse map[string]*sync.Mutex
}

func (k *keyedLocks) lock(kind model.EntityKind, id string) func() {
	key := string(kind) + ":" + id
	k.mu.Lock()
	if k.inUse == nil {
		k.inUse = make(map[string]*sync.Mutex)
	}
	m, ok := k.inUse[key]
	if !ok {
		m = &sync.Mutex{}
		k.inUse[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// ClockInInput carries everything clockIn needs beyond scheduling
// metadata already known to the caller (spec.md §4.9).
type ClockInInput struct {
	VisitID        string
	ClientID       string
	CaregiverID    string
	OrganizationID string
	StateCode      string
	ServiceDate    string
	ServiceAddress model.ServiceAddress
	ScheduledStart int64 // ms since epoch; 0 skips the grace-period check

	Latitude             float64
	Longitude            float64
	Accuracy             float64
	Timestamp            int64
	TimestampSource      string
	Method               model.VerificationMethod
	LocationSource       string
	DeviceID             string
	MockLocationDetected bool
	PhotoURL             string
	BiometricVerified    *bool
	SupervisorOverrideID string

	Device model.DeviceInfo
}

// ClockInResult is clockIn's return value (spec.md §4.9).
type ClockInResult struct {
	EVVRecord    model.EVVRecord
	Verification model.Verification
}

// ClockIn implements spec.md §4.9's clockIn operation.
func (f *Facade) ClockIn(ctx context.Context, in ClockInInput) (*ClockInResult, error) {
	unlock := f.locks.lock(model.EntityEVVRecord, in.VisitID)
	defer unlock()

	verification, level, flags, err := f.buildVerification(in.StateCode, verificationInput{
		Latitude: in.Latitude, Longitude: in.Longitude, Accuracy: in.Accuracy,
		Timestamp: in.Timestamp, TimestampSource: in.TimestampSource, Method: in.Method,
		LocationSource: in.LocationSource, DeviceID: in.DeviceID, MockLocationDetected: in.MockLocationDetected,
		PhotoURL: in.PhotoURL, BiometricVerified: in.BiometricVerified, SupervisorOverrideID: in.SupervisorOverrideID,
		Device: in.Device, ServiceAddress: in.ServiceAddress, ScheduledTime: in.ScheduledStart, IsClockOut: false,
	})
	if err != nil {
		return nil, err
	}

	record := model.EVVRecord{
		VisitID: in.VisitID, ClientID: in.ClientID, CaregiverID: in.CaregiverID,
		ServiceDate: in.ServiceDate, ServiceAddress: in.ServiceAddress,
		ClockInTime: in.Timestamp, ClockInVerification: verification,
		RecordStatus: model.RecordPending, VerificationLevel: level, ComplianceFlags: flags,
	}
	validate.ApplyIntegrity(&record)

	fields, err := recordFields(in.VisitID, in.OrganizationID, record)
	if err != nil {
		return nil, err
	}

	update, err := f.optimistic.ApplyUpdate(ctx, model.EntityEVVRecord, in.VisitID, model.OpCreate, fields)
	if err != nil {
		return nil, err
	}

	if err := f.enqueue(ctx, model.ActionVisitCheckIn, record, update.ID, model.PriorityCritical); err != nil {
		return nil, err
	}

	f.log.Info("clock-in applied", corelog.NewFields().Component("facade").Operation("clockIn").Resource(string(model.EntityEVVRecord), in.VisitID)...)
	return &ClockInResult{EVVRecord: record, Verification: verification}, nil
}

// ClockOutInput carries everything clockOut needs (spec.md §4.9).
type ClockOutInput struct {
	VisitID        string
	OrganizationID string
	StateCode      string

	Latitude             float64
	Longitude            float64
	Accuracy             float64
	Timestamp            int64
	TimestampSource      string
	Method               model.VerificationMethod
	LocationSource       string
	DeviceID             string
	MockLocationDetected bool
	PhotoURL             string
	BiometricVerified    *bool
	SupervisorOverrideID string

	Device model.DeviceInfo
}

// ClockOut implements spec.md §4.9's clockOut operation.
func (f *Facade) ClockOut(ctx context.Context, in ClockOutInput) (*ClockInResult, error) {
	unlock := f.locks.lock(model.EntityEVVRecord, in.VisitID)
	defer unlock()

	current, err := f.store.Get(ctx, model.EntityEVVRecord, in.VisitID)
	if err != nil {
		return nil, err
	}
	var record model.EVVRecord
	if err := json.Unmarshal(current.Payload, &record); err != nil {
		return nil, corerrors.Wrapf(err, corerrors.KindStore, "decode evv-record %s", in.VisitID)
	}
	if record.RecordStatus != model.RecordPending {
		return nil, corerrors.Newf(corerrors.KindValidation, "visit %s is not PENDING, cannot clock out", in.VisitID)
	}

	verification, level, flags, err := f.buildVerification(in.StateCode, verificationInput{
		Latitude: in.Latitude, Longitude: in.Longitude, Accuracy: in.Accuracy,
		Timestamp: in.Timestamp, TimestampSource: in.TimestampSource, Method: in.Method,
		LocationSource: in.LocationSource, DeviceID: in.DeviceID, MockLocationDetected: in.MockLocationDetected,
		PhotoURL: in.PhotoURL, BiometricVerified: in.BiometricVerified, SupervisorOverrideID: in.SupervisorOverrideID,
		Device: in.Device, ServiceAddress: record.ServiceAddress, ScheduledTime: 0, IsClockOut: true,
	})
	if err != nil {
		return nil, err
	}

	record.ClockOutTime = in.Timestamp
	record.ClockOutVerification = &verification
	record.TotalDurationMinutes = (record.ClockOutTime - record.ClockInTime) / 60000
	record.RecordStatus = model.RecordComplete
	record.VerificationLevel = mergeVerificationLevel(record.VerificationLevel, level)
	record.ComplianceFlags = mergeComplianceFlags(record.ComplianceFlags, flags)
	validate.ApplyIntegrity(&record)

	fields, err := recordFields(in.VisitID, in.OrganizationID, record)
	if err != nil {
		return nil, err
	}

	update, err := f.optimistic.ApplyUpdate(ctx, model.EntityEVVRecord, in.VisitID, model.OpUpdate, fields)
	if err != nil {
		return nil, err
	}

	if err := f.enqueue(ctx, model.ActionVisitCheckOut, record, update.ID, model.PriorityCritical); err != nil {
		return nil, err
	}

	f.log.Info("clock-out applied", corelog.NewFields().Component("facade").Operation("clockOut").Resource(string(model.EntityEVVRecord), in.VisitID)...)
	return &ClockInResult{EVVRecord: record, Verification: verification}, nil
}

// CompleteTaskInput carries completeTask's parameters (spec.md §4.9).
type CompleteTaskInput struct {
	TaskID         string
	OrganizationID string
	CompletedAt    int64
	Notes          string
}

// CompleteTask implements spec.md §4.9's completeTask operation: it
// marks an existing time-entry completed and enqueues the replay.
func (f *Facade) CompleteTask(ctx context.Context, in CompleteTaskInput) error {
	unlock := f.locks.lock(model.EntityTimeEntry, in.TaskID)
	defer unlock()

	fields := store.Fields{
		"id": in.TaskID, "status": "completed", "completedAt": in.CompletedAt, "notes": in.Notes,
	}
	update, err := f.optimistic.ApplyUpdate(ctx, model.EntityTimeEntry, in.TaskID, model.OpUpdate, fields)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return corerrors.Wrapf(err, corerrors.KindValidation, "marshal task-complete payload")
	}
	_, err = f.queue.Enqueue(ctx, model.ActionTaskComplete, payload, update.ID, model.PriorityHigh)
	return err
}

// SubmitNoteInput carries submitNote's parameters (spec.md §4.9).
type SubmitNoteInput struct {
	VisitID        string
	OrganizationID string
	AuthorID       string
	NoteText       string
	CreatedAt      int64
}

// SubmitNote implements spec.md §4.9's submitNote operation.
func (f *Facade) SubmitNote(ctx context.Context, in SubmitNoteInput) error {
	if in.NoteText == "" {
		return corerrors.New(corerrors.KindValidation, "note text is required")
	}
	id := crypto.NewID()
	unlock := f.locks.lock(model.EntityNote, id)
	defer unlock()

	fields := store.Fields{
		"id": id, "visitId": in.VisitID, "authorId": in.AuthorID,
		"noteText": in.NoteText, "createdAt": in.CreatedAt, "updated_at": in.CreatedAt,
	}
	update, err := f.optimistic.ApplyUpdate(ctx, model.EntityNote, id, model.OpCreate, fields)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return corerrors.Wrapf(err, corerrors.KindValidation, "marshal note payload")
	}
	_, err = f.queue.Enqueue(ctx, model.ActionCareNote, payload, update.ID, model.PriorityHigh)
	return err
}

// AttachMediaInput carries attachMedia's parameters (spec.md §4.9).
type AttachMediaInput struct {
	VisitID        string
	OrganizationID string
	MediaURL       string
	MediaKind      string
	UploadedAt     int64
}

// AttachMedia implements spec.md §4.9's attachMedia operation.
func (f *Facade) AttachMedia(ctx context.Context, in AttachMediaInput) error {
	if in.MediaURL == "" {
		return corerrors.New(corerrors.KindValidation, "media URL is required")
	}
	id := crypto.NewID()
	unlock := f.locks.lock(model.EntityAttachment, id)
	defer unlock()

	fields := store.Fields{
		"id": id, "visitId": in.VisitID, "mediaUrl": in.MediaURL,
		"mediaKind": in.MediaKind, "uploadedAt": in.UploadedAt, "updated_at": in.UploadedAt,
	}
	update, err := f.optimistic.ApplyUpdate(ctx, model.EntityAttachment, id, model.OpCreate, fields)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return corerrors.Wrapf(err, corerrors.KindValidation, "marshal attachment payload")
	}
	_, err = f.queue.Enqueue(ctx, model.ActionAttachmentUpload, payload, update.ID, model.PriorityNormal)
	return err
}

// ReportIncidentInput carries reportIncident's parameters (spec.md §4.9).
// Incidents have no dedicated entity kind in the data model, so this
// stores them as notes tagged with an incident category, the same way
// aghassemi-go.ref folds distinct app-level object types into one
// generic syncbase collection rather than adding a table per type.
type ReportIncidentInput struct {
	VisitID        string
	OrganizationID string
	Severity       string
	Description    string
	ReportedAt     int64
}

// ReportIncident implements spec.md §4.9's reportIncident operation.
func (f *Facade) ReportIncident(ctx context.Context, in ReportIncidentInput) error {
	if in.Description == "" {
		return corerrors.New(corerrors.KindValidation, "incident description is required")
	}
	id := crypto.NewID()
	unlock := f.locks.lock(model.EntityNote, id)
	defer unlock()

	fields := store.Fields{
		"id": id, "visitId": in.VisitID, "noteText": in.Description,
		"category": "incident", "severity": in.Severity, "createdAt": in.ReportedAt, "updated_at": in.ReportedAt,
	}
	update, err := f.optimistic.ApplyUpdate(ctx, model.EntityNote, id, model.OpCreate, fields)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return corerrors.Wrapf(err, corerrors.KindValidation, "marshal incident payload")
	}
	_, err = f.queue.Enqueue(ctx, model.ActionIncidentReport, payload, update.ID, model.PriorityHigh)
	return err
}

// SyncStateView is getSyncState's return value (spec.md §4.9).
type SyncStateView struct {
	IsOnline          bool
	QueueSize         int
	QueueStats        offlinequeue.Stats
	PendingOptimistic int
	LastSyncAt        int64
	LastSyncSuccess   bool
}

// GetSyncState implements spec.md §4.9's getSyncState operation.
func (f *Facade) GetSyncState(ctx context.Context) (*SyncStateView, error) {
	stats, err := f.queue.Stats(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := f.optimistic.PendingCount(ctx)
	if err != nil {
		return nil, err
	}

	view := &SyncStateView{
		IsOnline:          f.probe.IsOnline(),
		QueueSize:         stats.Total,
		QueueStats:        stats,
		PendingOptimistic: pending,
	}

	if hm, ok := f.sync.(interface {
		GetSyncHistory(ctx context.Context) ([]syncmanager.HistoryEntry, error)
	}); ok {
		history, err := hm.GetSyncHistory(ctx)
		if err == nil && len(history) > 0 {
			last := history[len(history)-1]
			view.LastSyncAt = last.Timestamp
			view.LastSyncSuccess = last.Success
		}
	}

	return view, nil
}

// ManualSync implements spec.md §4.9's manualSync operation: it
// delegates to the Sync Manager (C10), which is itself idempotent.
func (f *Facade) ManualSync(ctx context.Context) (syncmanager.HistoryEntry, error) {
	return f.sync.ManualSync(ctx)
}

func (f *Facade) enqueue(ctx context.Context, kind model.ActionKind, record model.EVVRecord, optimisticUpdateID string, priority model.Priority) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return corerrors.Wrapf(err, corerrors.KindValidation, "marshal %s payload", kind)
	}
	_, err = f.queue.Enqueue(ctx, kind, payload, optimisticUpdateID, priority)
	return err
}

func recordFields(id, organizationID string, record model.EVVRecord) (store.Fields, error) {
	blob, err := json.Marshal(record)
	if err != nil {
		return nil, corerrors.Wrapf(err, corerrors.KindValidation, "marshal evv-record %s", id)
	}
	var fields store.Fields
	if err := json.Unmarshal(blob, &fields); err != nil {
		return nil, corerrors.Wrapf(err, corerrors.KindValidation, "unmarshal evv-record %s", id)
	}
	fields["id"] = id
	fields["organizationId"] = organizationID
	fields["updated_at"] = record.ClockInTime
	return fields, nil
}

func mergeVerificationLevel(a, b model.VerificationLevel) model.VerificationLevel {
	rank := func(l model.VerificationLevel) int {
		switch l {
		case model.VerificationException:
			return 2
		case model.VerificationPartial:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func mergeComplianceFlags(existing, incoming []model.ComplianceFlag) []model.ComplianceFlag {
	seen := make(map[model.ComplianceFlag]bool, len(existing)+len(incoming))
	var out []model.ComplianceFlag
	for _, f := range existing {
		if f == model.FlagCompliant {
			continue
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, f := range incoming {
		if f == model.FlagCompliant {
			continue
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return []model.ComplianceFlag{model.FlagCompliant}
	}
	return out
}
