package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"rollcall/core/faults"
	"rollcall/core/metrics"
	"rollcall/core/source"
	"rollcall/feature/troupe"
	"rollcall/feature/troupe/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reporter brings the troupe's external report up to date after a persisted
// sync. It returns the report URI, creating the document when none exists.
type Reporter interface {
	Refresh(ctx context.Context, tr *models.Troupe, types []*models.EventType, events []*models.Event, members []*models.Member, attendance map[string]map[string]models.AttendanceEntry) (string, error)
}

// Archiver exports post-sync artifacts such as the dashboard snapshot.
type Archiver interface {
	Export(ctx context.Context, tr *models.Troupe, members []*models.Member) error
}

// Deps wires an orchestrator. Reporter, Archiver and Metrics are optional;
// everything else is required.
type Deps struct {
	Store       *troupe.Store
	Folders     source.FolderProvider
	Forms       source.FormProvider
	Sheets      source.SheetProvider
	Reporter    Reporter
	Archiver    Archiver
	Metrics     *metrics.Manager
	Logger      *zap.Logger
	Parallelism int
}

// Result summarizes one completed sync pass.
type Result struct {
	Events         int           `json:"events"`
	EventsDeleted  int           `json:"events_deleted"`
	Members        int           `json:"members"`
	MembersDeleted int           `json:"members_deleted"`
	ReportURI      string        `json:"report_uri,omitempty"`
	ReportWarning  string        `json:"report_warning,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Orchestrator drives the full sync pass for one troupe: lock, discovery,
// exploration fan-out, reconciliation, atomic persist, report refresh,
// unlock. All mutation up to the persist phase is speculative and held in
// memory, so a failed pass leaves the stored ledger untouched.
type Orchestrator struct {
	store       *troupe.Store
	discovery   *Discovery
	explorers   map[source.Kind]Explorer
	reporter    Reporter
	archiver    Archiver
	metrics     *metrics.Manager
	logger      *zap.Logger
	parallelism int
}

func NewOrchestrator(d Deps) *Orchestrator {
	if d.Parallelism <= 0 {
		d.Parallelism = 4
	}
	return &Orchestrator{
		store:     d.Store,
		discovery: NewDiscovery(d.Folders, d.Logger),
		explorers: map[source.Kind]Explorer{
			source.KindForm:  NewFormExplorer(d.Forms, d.Logger),
			source.KindSheet: NewSheetExplorer(d.Sheets, d.Logger),
		},
		reporter:    d.Reporter,
		archiver:    d.Archiver,
		metrics:     d.Metrics,
		logger:      d.Logger,
		parallelism: d.Parallelism,
	}
}

// Sync runs one full pass for the troupe. A lock already held yields a
// ClientError with no mutation. The lock is released on every exit path; a
// failed report refresh is a warning on the result, not a sync failure.
func (o *Orchestrator) Sync(ctx context.Context, troupeID string) (*Result, error) {
	start := time.Now()
	status := "failure"
	defer func() {
		if o.metrics != nil {
			o.metrics.ObserveSync(status, time.Since(start))
		}
	}()

	if err := o.store.AcquireSyncLock(ctx, troupeID); err != nil {
		return nil, err
	}
	defer func() {
		// Release must not inherit a cancelled request context.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.store.ReleaseSyncLock(unlockCtx, troupeID); err != nil {
			o.logger.Error("failed to release sync lock", zap.String("troupe", troupeID), zap.Error(err))
		}
	}()

	tr, err := o.store.GetTroupe(ctx, troupeID)
	if err != nil {
		if faults.IsClient(err) {
			return nil, faults.Invariant("troupe %s vanished while holding the sync lock", troupeID)
		}
		return nil, err
	}
	types, err := o.store.ListEventTypes(ctx, troupeID)
	if err != nil {
		return nil, err
	}
	knownEvents, err := o.store.ListEvents(ctx, troupeID)
	if err != nil {
		return nil, err
	}
	members, err := o.store.ListMembers(ctx, troupeID)
	if err != nil {
		return nil, err
	}

	disc, err := o.discovery.Run(ctx, types, knownEvents)
	if err != nil {
		return nil, err
	}
	if disc.FoldersListed == 0 && disc.FoldersFailed > 0 {
		return nil, faults.Unavailable("discovery", errors.New("no declared folder could be listed"))
	}
	known := make(map[string]bool, len(knownEvents))
	for _, ev := range knownEvents {
		known[ev.ID] = true
	}
	for _, ev := range disc.Events {
		if ev.TroupeID == "" {
			ev.TroupeID = troupeID
		}
	}
	if o.metrics != nil {
		o.metrics.ObserveDiscovery(len(disc.Events))
	}

	aud := NewAudience(tr, members)

	var (
		mu   sync.Mutex
		gone []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for _, ev := range disc.Events {
		ev := ev
		x, ok := o.explorers[ev.Source.Kind]
		if !ok {
			continue
		}
		g.Go(func() error {
			err := x.Explore(gctx, tr, ev, aud)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, faults.ErrSourceGone):
				mu.Lock()
				gone = append(gone, ev.ID)
				mu.Unlock()
				o.logger.Info("source gone, retiring event",
					zap.String("event", ev.ID), zap.String("source", ev.Source.URI))
				return nil
			case faults.IsUnavailable(err):
				if o.metrics != nil {
					o.metrics.AddSourceError()
				}
				o.logger.Warn("source unavailable, skipping event this pass",
					zap.String("event", ev.ID), zap.Error(err))
				return nil
			default:
				return err
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	goneSet := make(map[string]bool, len(gone))
	for _, id := range gone {
		goneSet[id] = true
	}
	finalEvents := make([]*models.Event, 0, len(disc.Events))
	newEvents := 0
	for _, ev := range disc.Events {
		if goneSet[ev.ID] {
			continue
		}
		finalEvents = append(finalEvents, ev)
		if !known[ev.ID] {
			newEvents++
		}
	}

	rec := Finalize(tr, aud, members)

	tr.ConfirmedProperties = clonePropertySchema(tr.Properties)
	tr.ConfirmedPointTypes = clonePointTypes(tr.PointTypes)
	for _, et := range types {
		et.ConfirmedFolders = disc.Confirmed[et.ID]
		if removed := disc.Removed[et.ID]; len(removed) > 0 {
			et.Folders = without(et.Folders, removed)
		}
	}
	tr.Dashboard = ComputeDashboard(tr, types, finalEvents, rec.Save, rec.Attendance, time.Now())

	err = o.store.Transaction(ctx, func(tx *troupe.Store) error {
		if newEvents > 0 {
			ok, err := tx.TryConsumeLimit(ctx, troupeID, "event_slots", newEvents)
			if err != nil {
				return err
			}
			if !ok {
				return faults.Client("event slots exhausted for troupe %s", troupeID)
			}
		}
		if rec.Created > 0 {
			ok, err := tx.TryConsumeLimit(ctx, troupeID, "member_slots", rec.Created)
			if err != nil {
				return err
			}
			if !ok {
				return faults.Client("member slots exhausted for troupe %s", troupeID)
			}
		}
		if err := tx.SaveTroupe(ctx, tr); err != nil {
			return err
		}
		for _, et := range types {
			if err := tx.SaveEventType(ctx, et); err != nil {
				return err
			}
		}
		if err := tx.SaveEvents(ctx, finalEvents); err != nil {
			return err
		}
		if err := tx.DeleteEvents(ctx, troupeID, gone); err != nil {
			return err
		}
		if err := tx.SaveMembers(ctx, rec.Save); err != nil {
			return err
		}
		if err := tx.DeleteMembers(ctx, troupeID, rec.Delete); err != nil {
			return err
		}
		for memberID, entries := range rec.Attendance {
			if err := tx.ReplaceAttendance(ctx, troupeID, memberID, entries); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Events:         len(finalEvents),
		EventsDeleted:  len(gone),
		Members:        len(rec.Save),
		MembersDeleted: len(rec.Delete),
		ReportURI:      tr.ReportURI,
		Duration:       time.Since(start),
	}
	if o.metrics != nil {
		o.metrics.SetMembers(len(rec.Save))
	}

	o.refreshReport(ctx, tr, types, finalEvents, rec, res)
	o.export(ctx, tr, rec.Save)

	status = "success"
	res.Duration = time.Since(start)
	return res, nil
}

// refreshReport runs the report phase. It happens after the persist commits
// and before the lock releases; failure degrades to a warning because the
// ledger itself is already consistent.
func (o *Orchestrator) refreshReport(ctx context.Context, tr *models.Troupe, types []*models.EventType, events []*models.Event, rec *Reconciled, res *Result) {
	if o.reporter == nil {
		return
	}
	uri, err := o.reporter.Refresh(ctx, tr, types, events, rec.Save, rec.Attendance)
	if err != nil {
		err = faults.ReportFailure(err)
		if o.metrics != nil {
			o.metrics.AddReportFailure()
		}
		o.logger.Warn("report refresh failed", zap.String("troupe", tr.ID), zap.Error(err))
		res.ReportWarning = err.Error()
		return
	}
	res.ReportURI = uri
	if uri == tr.ReportURI {
		return
	}
	tr.ReportURI = uri
	if err := o.store.SaveTroupe(ctx, tr); err != nil {
		o.logger.Warn("failed to record report uri", zap.String("troupe", tr.ID), zap.Error(err))
		res.ReportWarning = err.Error()
	}
}

func (o *Orchestrator) export(ctx context.Context, tr *models.Troupe, members []*models.Member) {
	if o.archiver == nil {
		return
	}
	if err := o.archiver.Export(ctx, tr, members); err != nil {
		o.logger.Warn("artifact export failed", zap.String("troupe", tr.ID), zap.Error(err))
	}
}

// ForceUnlock clears a stuck sync lock, e.g. after a crashed process. It is
// an operator action; a healthy sync always releases its own lock.
func (o *Orchestrator) ForceUnlock(ctx context.Context, troupeID string) error {
	if _, err := o.store.GetTroupe(ctx, troupeID); err != nil {
		return err
	}
	return o.store.ReleaseSyncLock(ctx, troupeID)
}

func clonePropertySchema(in models.PropertySchema) models.PropertySchema {
	out := make(models.PropertySchema, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func clonePointTypes(in models.PointTypes) models.PointTypes {
	out := make(models.PointTypes, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func without(list models.StringList, remove []string) models.StringList {
	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[r] = true
	}
	out := make(models.StringList, 0, len(list))
	for _, v := range list {
		if !drop[v] {
			out = append(out, v)
		}
	}
	return out
}
