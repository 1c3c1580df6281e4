package sync

import (
	"context"
	"errors"

	"rollcall/core/faults"
	"rollcall/core/source"
	"rollcall/feature/troupe/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DiscoveryResult is everything a discovery walk learned: the merged event
// set keyed by source URI, the folders each type actually explored, and the
// declared folders that turned out to be gone.
type DiscoveryResult struct {
	// Events holds every known event after the walk, new and pre-existing,
	// keyed by source URI.
	Events map[string]*models.Event
	// Confirmed maps event type ID to the folder URIs listed successfully
	// under its claim this pass.
	Confirmed map[string][]string
	// Removed maps event type ID to declared folder URIs that no longer
	// exist and must be stripped from the type.
	Removed map[string][]string

	FoldersListed int
	FoldersFailed int
}

// Discovery walks the folder trees declared by a troupe's event types and
// attributes every form or sheet found to exactly one type.
type Discovery struct {
	folders source.FolderProvider
	logger  *zap.Logger
}

func NewDiscovery(folders source.FolderProvider, logger *zap.Logger) *Discovery {
	return &Discovery{folders: folders, logger: logger}
}

type folderClaim struct {
	folder string
	typeID string
}

// Run explores the declared folder trees depth-first. When two types reach
// the same folder the type with fewer files attributed so far at claim time
// wins; on a tie the earlier claimant keeps it. Folders that fail to list
// are dropped from their declaring type rather than failing the pass, and
// discovery never deletes events: sources that vanish are handled by the
// explorer phase.
func (d *Discovery) Run(ctx context.Context, types []*models.EventType, known []*models.Event) (*DiscoveryResult, error) {
	res := &DiscoveryResult{
		Events:    make(map[string]*models.Event, len(known)),
		Confirmed: make(map[string][]string),
		Removed:   make(map[string][]string),
	}
	for _, ev := range known {
		res.Events[ev.Source.URI] = ev
	}

	titles := make(map[string]string, len(types))
	declared := make(map[string]string)
	for _, t := range types {
		titles[t.ID] = t.Title
		for _, f := range t.Folders {
			if _, taken := declared[f]; !taken {
				declared[f] = t.ID
			}
		}
	}
	values := make(map[string]*models.EventType, len(types))
	for _, t := range types {
		values[t.ID] = t
	}

	owner := make(map[string]string)
	files := make(map[string]int)
	visited := make(map[string]bool)

	claim := func(folder, typeID string) {
		cur, ok := owner[folder]
		if !ok {
			owner[folder] = typeID
			return
		}
		if cur == typeID {
			return
		}
		if files[typeID] < files[cur] {
			owner[folder] = typeID
		}
	}

	for _, t := range types {
		for _, f := range t.Folders {
			claim(f, t.ID)
		}
	}
	// Seed in reverse so the LIFO work list explores declared trees in
	// declared order.
	var stack []folderClaim
	for i := len(types) - 1; i >= 0; i-- {
		t := types[i]
		for j := len(t.Folders) - 1; j >= 0; j-- {
			stack = append(stack, folderClaim{folder: t.Folders[j], typeID: t.ID})
		}
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[top.folder] {
			continue
		}
		visited[top.folder] = true

		typeID := owner[top.folder]
		entries, err := d.folders.List(ctx, top.folder)
		if err != nil {
			res.FoldersFailed++
			d.logger.Warn("folder listing failed, skipping subtree",
				zap.String("folder", top.folder),
				zap.String("event_type", typeID),
				zap.Error(err))
			if declaring, isDeclared := declared[top.folder]; isDeclared && errors.Is(err, faults.ErrSourceGone) {
				res.Removed[declaring] = append(res.Removed[declaring], top.folder)
			}
			continue
		}
		res.FoldersListed++
		res.Confirmed[typeID] = append(res.Confirmed[typeID], top.folder)

		for _, entry := range entries {
			switch entry.Kind {
			case source.KindFolder:
				claim(entry.ID, typeID)
				stack = append(stack, folderClaim{folder: entry.ID, typeID: typeID})
			case source.KindForm, source.KindSheet:
				d.attribute(res, values[typeID], titles, entry)
				files[typeID]++
			}
		}
	}
	return res, nil
}

// attribute registers one discovered file as an event. Existing events keep
// their identity; an existing untyped event is backfilled with the claiming
// type, never clobbered.
func (d *Discovery) attribute(res *DiscoveryResult, t *models.EventType, titles map[string]string, entry source.Entry) {
	if ev, ok := res.Events[entry.ID]; ok {
		if ev.EventTypeID == "" && t != nil {
			ev.EventTypeID = t.ID
			ev.EventTypeTitle = titles[t.ID]
			if ev.ValueSource != models.ValueManual {
				ev.Value = t.Value
				ev.ValueSource = models.ValueFromType
			}
		}
		if ev.Title == "" {
			ev.Title = entry.Name
		}
		return
	}
	ev := &models.Event{
		ID:          uuid.NewString(),
		Title:       entry.Name,
		Source:      source.Ref{Kind: entry.Kind, URI: entry.ID},
		ValueSource: models.ValueManual,
		Fields:      models.FieldMap{},
	}
	if t != nil {
		ev.TroupeID = t.TroupeID
		ev.EventTypeID = t.ID
		ev.EventTypeTitle = titles[t.ID]
		ev.Value = t.Value
		ev.ValueSource = models.ValueFromType
	}
	res.Events[entry.ID] = ev
}
