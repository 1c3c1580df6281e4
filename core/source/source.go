package source

import "context"

// Kind classifies an entry discovered in an external folder.
type Kind string

const (
	// KindFolder is a sub-folder to descend into.
	KindFolder Kind = "folder"
	// KindForm is a question/response source.
	KindForm Kind = "form"
	// KindSheet is a tabular source whose first row carries the labels.
	KindSheet Kind = "sheet"
	// KindOther is anything unrecognized; discovery ignores it.
	KindOther Kind = "other"
)

// Ref identifies one external source by kind and URI.
type Ref struct {
	Kind Kind   `json:"kind"`
	URI  string `json:"uri"`
}

// Entry is one child of a listed folder.
type Entry struct {
	ID   string
	Name string
	Kind Kind
}

// FolderProvider lists the children of a hierarchical storage folder.
type FolderProvider interface {
	List(ctx context.Context, folderID string) ([]Entry, error)
}

// Widget is the native representation of a form field.
type Widget string

const (
	// WidgetText is free text; type fitness is decided per response row.
	WidgetText Widget = "text"
	// WidgetChoice is a closed option set (single or short choice).
	WidgetChoice Widget = "choice"
	// WidgetScale is a bounded numeric scale.
	WidgetScale Widget = "scale"
	// WidgetDate is a date/time picker.
	WidgetDate Widget = "date"
)

// Question describes one form field: its stable ID, human label, and shape.
type Question struct {
	FieldID string
	Label   string
	Widget  Widget
	// Options holds the admissible values for choice widgets.
	Options []string
}

// Response is one submitted form response. Answers map field IDs to the raw
// values given; multi-select fields carry more than one value.
type Response struct {
	Answers map[string][]string
	// Submitted is the response timestamp, used to default an event's start
	// date when the event itself carries none.
	Submitted string
}

// FormProvider reads questions and responses of a form-like source.
type FormProvider interface {
	Questions(ctx context.Context, sourceID string) ([]Question, error)
	Responses(ctx context.Context, sourceID string) ([]Response, error)
}

// SheetProvider reads a sheet-like source as raw rows. The first row holds
// the field labels; every later row is one record of raw string cells.
type SheetProvider interface {
	Rows(ctx context.Context, sourceID string) ([][]string, error)
}
