// Package sourcetest provides stateful in-memory fakes of the source
// provider contracts for use in tests.
package sourcetest

import (
	"context"
	"sync"

	"rollcall/core/faults"
	"rollcall/core/source"
)

// Tree is an in-memory FolderProvider. Folders map folder IDs to children;
// IDs present in Gone fail listing with ErrSourceGone.
type Tree struct {
	mu      sync.Mutex
	Folders map[string][]source.Entry
	Gone    map[string]bool
	// Fail injects a transient error per folder ID.
	Fail map[string]error
	// Listed records every folder ID listed, in order.
	Listed []string
}

// NewTree builds an empty fake folder tree.
func NewTree() *Tree {
	return &Tree{
		Folders: make(map[string][]source.Entry),
		Gone:    make(map[string]bool),
		Fail:    make(map[string]error),
	}
}

// Add appends a child entry under the given folder.
func (t *Tree) Add(folderID string, e source.Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Folders[folderID] = append(t.Folders[folderID], e)
}

func (t *Tree) List(_ context.Context, folderID string) ([]source.Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Listed = append(t.Listed, folderID)
	if err := t.Fail[folderID]; err != nil {
		return nil, err
	}
	if t.Gone[folderID] {
		return nil, faults.ErrSourceGone
	}
	entries, ok := t.Folders[folderID]
	if !ok {
		return nil, faults.ErrSourceGone
	}
	out := make([]source.Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// Form holds the fake contents of one form-like source.
type Form struct {
	Questions []source.Question
	Responses []source.Response
}

// Forms is an in-memory FormProvider keyed by source ID.
type Forms struct {
	mu    sync.Mutex
	Store map[string]*Form
	Gone  map[string]bool
	// Fail injects a transient error per source ID.
	Fail map[string]error
}

// NewForms builds an empty fake form provider.
func NewForms() *Forms {
	return &Forms{
		Store: make(map[string]*Form),
		Gone:  make(map[string]bool),
		Fail:  make(map[string]error),
	}
}

// Put registers or replaces the form behind sourceID.
func (f *Forms) Put(sourceID string, form *Form) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Store[sourceID] = form
}

func (f *Forms) get(sourceID string) (*Form, error) {
	if err := f.Fail[sourceID]; err != nil {
		return nil, err
	}
	if f.Gone[sourceID] {
		return nil, faults.ErrSourceGone
	}
	form, ok := f.Store[sourceID]
	if !ok {
		return nil, faults.ErrSourceGone
	}
	return form, nil
}

func (f *Forms) Questions(_ context.Context, sourceID string) ([]source.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	form, err := f.get(sourceID)
	if err != nil {
		return nil, err
	}
	return form.Questions, nil
}

func (f *Forms) Responses(_ context.Context, sourceID string) ([]source.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	form, err := f.get(sourceID)
	if err != nil {
		return nil, err
	}
	return form.Responses, nil
}

// Sheets is an in-memory SheetProvider keyed by source ID.
type Sheets struct {
	mu   sync.Mutex
	Data map[string][][]string
	Gone map[string]bool
}

// NewSheets builds an empty fake sheet provider.
func NewSheets() *Sheets {
	return &Sheets{
		Data: make(map[string][][]string),
		Gone: make(map[string]bool),
	}
}

func (s *Sheets) Rows(_ context.Context, sourceID string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Gone[sourceID] {
		return nil, faults.ErrSourceGone
	}
	rows, ok := s.Data[sourceID]
	if !ok {
		return nil, faults.ErrSourceGone
	}
	return rows, nil
}
