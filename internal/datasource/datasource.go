package datasource

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnknownSource is returned by the registry for an unregistered handle.
	ErrUnknownSource = errors.New("unknown data source")
	// ErrEntityNotFound is returned when a provider does not know the entity.
	ErrEntityNotFound = errors.New("entity not found")
)

// Entity is one reportable unit inside a data source (a form, a table, a
// collection). Count is a snapshot, not a guarantee.
type Entity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"handle"`
	Count  int64  `json:"count"`
}

// Field describes one exportable column of an entity.
type Field struct {
	Handle     string `json:"handle"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	Exportable bool   `json:"exportable"`
}

// DateRange is a named shorthand window. Explicit StartDate/EndDate on
// QueryOptions take precedence when both are present.
type DateRange string

const (
	RangeAll       DateRange = "all"
	RangeToday     DateRange = "today"
	RangeLast7Days DateRange = "last7days"
	RangeLast30    DateRange = "last30days"
	RangeLast90    DateRange = "last90days"
	RangeThisYear  DateRange = "thisYear"
)

// QueryOptions narrows a row extraction.
type QueryOptions struct {
	DateRange DateRange
	StartDate *time.Time
	EndDate   *time.Time
	SiteID    string
	Limit     int64
	Offset    int64
}

// Window resolves the effective [start, end) bounds. Explicit bounds win over
// the shorthand; a nil pointer on either side means unbounded.
func (o QueryOptions) Window(now time.Time) (*time.Time, *time.Time) {
	if o.StartDate != nil || o.EndDate != nil {
		return o.StartDate, o.EndDate
	}
	switch o.DateRange {
	case RangeToday:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return &start, nil
	case RangeLast7Days:
		start := now.AddDate(0, 0, -7)
		return &start, nil
	case RangeLast30:
		start := now.AddDate(0, 0, -30)
		return &start, nil
	case RangeLast90:
		start := now.AddDate(0, 0, -90)
		return &start, nil
	case RangeThisYear:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return &start, nil
	default:
		return nil, nil
	}
}

// ExportData is the structured output the pipeline encodes.
type ExportData struct {
	Headers []string
	Rows    [][]any
}

// DataSource is the contract every row provider implements. The export
// pipeline only ever talks to this interface; providers live behind the
// registry and are resolved by handle.
type DataSource interface {
	// Handle is the stable identifier used on reports and exports.
	Handle() string
	// Name is the display name shown in export output.
	Name() string
	// Available reports whether the underlying provider can serve requests.
	Available(ctx context.Context) bool
	// Entities lists the reportable entities of this source.
	Entities(ctx context.Context) ([]Entity, error)
	// Entity looks up a single entity by id.
	Entity(ctx context.Context, id string) (*Entity, error)
	// Fields lists the exportable fields of an entity.
	Fields(ctx context.Context, entityID string) ([]Field, error)
	// Export extracts rows for an entity. An empty fieldHandles slice means
	// all exportable fields.
	Export(ctx context.Context, entityID string, fieldHandles []string, opts QueryOptions) (*ExportData, error)
}
