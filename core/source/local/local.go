// Package local implements the source provider contracts on top of a local
// directory tree, for development and one-shot CLI runs.
//
// Folder IDs are directory paths relative to the configured root. A *.csv
// file is a sheet source; a *.form.json file is a form source holding
// questions and responses. Everything else is ignored.
package local

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"rollcall/core/faults"
	"rollcall/core/source"
)

// Providers serves folders, forms and sheets from one root directory.
type Providers struct {
	root string
}

// New builds a provider set rooted at dir.
func New(dir string) *Providers {
	return &Providers{root: dir}
}

func (p *Providers) resolve(id string) string {
	return filepath.Join(p.root, filepath.FromSlash(id))
}

// List implements source.FolderProvider.
func (p *Providers) List(_ context.Context, folderID string) ([]source.Entry, error) {
	entries, err := os.ReadDir(p.resolve(folderID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, faults.ErrSourceGone
		}
		return nil, faults.Unavailable(folderID, err)
	}

	out := make([]source.Entry, 0, len(entries))
	for _, e := range entries {
		child := strings.TrimPrefix(folderID+"/"+e.Name(), "/")
		switch {
		case e.IsDir():
			out = append(out, source.Entry{ID: child, Name: e.Name(), Kind: source.KindFolder})
		case strings.HasSuffix(e.Name(), ".form.json"):
			name := strings.TrimSuffix(e.Name(), ".form.json")
			out = append(out, source.Entry{ID: child, Name: name, Kind: source.KindForm})
		case strings.HasSuffix(e.Name(), ".csv"):
			name := strings.TrimSuffix(e.Name(), ".csv")
			out = append(out, source.Entry{ID: child, Name: name, Kind: source.KindSheet})
		default:
			out = append(out, source.Entry{ID: child, Name: e.Name(), Kind: source.KindOther})
		}
	}
	return out, nil
}

// formFile is the on-disk layout of a *.form.json source.
type formFile struct {
	Questions []source.Question `json:"questions"`
	Responses []source.Response `json:"responses"`
}

func (p *Providers) readForm(sourceID string) (*formFile, error) {
	data, err := os.ReadFile(p.resolve(sourceID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, faults.ErrSourceGone
		}
		return nil, faults.Unavailable(sourceID, err)
	}
	var f formFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, faults.Unavailable(sourceID, fmt.Errorf("malformed form file: %w", err))
	}
	return &f, nil
}

// Questions implements source.FormProvider.
func (p *Providers) Questions(_ context.Context, sourceID string) ([]source.Question, error) {
	f, err := p.readForm(sourceID)
	if err != nil {
		return nil, err
	}
	return f.Questions, nil
}

// Responses implements source.FormProvider.
func (p *Providers) Responses(_ context.Context, sourceID string) ([]source.Response, error) {
	f, err := p.readForm(sourceID)
	if err != nil {
		return nil, err
	}
	return f.Responses, nil
}

// Rows implements source.SheetProvider.
func (p *Providers) Rows(_ context.Context, sourceID string) ([][]string, error) {
	file, err := os.Open(p.resolve(sourceID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, faults.ErrSourceGone
		}
		return nil, faults.Unavailable(sourceID, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, faults.Unavailable(sourceID, fmt.Errorf("malformed csv: %w", err))
	}
	return rows, nil
}
