package export

import (
	"time"

	"go-export/internal/datasource"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

func (f Format) Valid() bool {
	switch f {
	case FormatCSV, FormatJSON, FormatXLSX:
		return true
	}
	return false
}

// Status is the export lifecycle. Transitions are one-directional:
// pending -> processing -> completed | failed. Terminal states never change.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerAPI       Trigger = "api"
)

type TargetType string

const (
	TargetSingle   TargetType = "single"
	TargetCombined TargetType = "combined"
)

// Target says what the export covers: exactly one entity, or a combined
// merge over several. The variant is explicit; entity ids never hide in
// display fields.
type Target struct {
	Type      TargetType `json:"type" bson:"type"`
	EntityID  string     `json:"entity_id,omitempty" bson:"entity_id,omitempty"`
	EntityIDs []string   `json:"entity_ids,omitempty" bson:"entity_ids,omitempty"`
}

func SingleTarget(entityID string) Target {
	return Target{Type: TargetSingle, EntityID: entityID}
}

func CombinedTarget(entityIDs []string) Target {
	return Target{Type: TargetCombined, EntityIDs: entityIDs}
}

// FilterSnapshot is the filter state frozen onto the export when it is
// created. Editing the owning report afterwards does not change it.
type FilterSnapshot struct {
	DateRange    datasource.DateRange `json:"date_range,omitempty" bson:"date_range,omitempty"`
	StartDate    *time.Time           `json:"start_date,omitempty" bson:"start_date,omitempty"`
	EndDate      *time.Time           `json:"end_date,omitempty" bson:"end_date,omitempty"`
	FieldHandles []string             `json:"field_handles,omitempty" bson:"field_handles,omitempty"`
	SiteID       string               `json:"site_id,omitempty" bson:"site_id,omitempty"`
}

// QueryOptions converts the snapshot into the provider contract.
func (s FilterSnapshot) QueryOptions() datasource.QueryOptions {
	return datasource.QueryOptions{
		DateRange: s.DateRange,
		StartDate: s.StartDate,
		EndDate:   s.EndDate,
		SiteID:    s.SiteID,
	}
}

// Export is one generated artifact. FilePath/FileSize/RecordCount are only
// populated once Status is completed.
type Export struct {
	ID           primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	ReportID     *primitive.ObjectID `json:"report_id,omitempty" bson:"report_id,omitempty"`
	SourceHandle string              `json:"source_handle" bson:"source_handle"`
	Target       Target              `json:"target" bson:"target"`
	Snapshot     FilterSnapshot      `json:"snapshot" bson:"snapshot"`
	Format       Format              `json:"format" bson:"format"`
	FileName     string              `json:"file_name,omitempty" bson:"file_name,omitempty"`
	FilePath     string              `json:"file_path,omitempty" bson:"file_path,omitempty"`
	FileSize     int64               `json:"file_size,omitempty" bson:"file_size,omitempty"`
	RecordCount  int                 `json:"record_count,omitempty" bson:"record_count,omitempty"`
	Status       Status              `json:"status" bson:"status"`
	Progress     int                 `json:"progress" bson:"progress"`
	Error        string              `json:"error,omitempty" bson:"error,omitempty"`
	Trigger      Trigger             `json:"trigger" bson:"trigger"`
	TriggeredBy  string              `json:"triggered_by,omitempty" bson:"triggered_by,omitempty"`
	StartedAt    *time.Time          `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at" bson:"updated_at"`
}

// Spec carries everything needed to create a pending export.
type Spec struct {
	ReportID     *primitive.ObjectID
	SourceHandle string
	Target       Target
	Snapshot     FilterSnapshot
	Format       Format
	Trigger      Trigger
	TriggeredBy  string
}

// NewPending builds the initial record for a Spec.
func NewPending(spec Spec) *Export {
	return &Export{
		ID:           primitive.NewObjectID(),
		ReportID:     spec.ReportID,
		SourceHandle: spec.SourceHandle,
		Target:       spec.Target,
		Snapshot:     spec.Snapshot,
		Format:       spec.Format,
		Status:       StatusPending,
		Progress:     0,
		Trigger:      spec.Trigger,
		TriggeredBy:  spec.TriggeredBy,
	}
}
