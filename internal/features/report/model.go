package report

import (
	"time"

	"go-export/internal/datasource"
	"go-export/internal/features/export"
	"go-export/internal/schedule"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Mode string

const (
	// ModeSeparate writes one file per entity.
	ModeSeparate Mode = "separate"
	// ModeCombined merges every entity into one column-aligned file.
	ModeCombined Mode = "combined"
)

func (m Mode) Valid() bool {
	return m == ModeSeparate || m == ModeCombined
}

// Report is a saved export definition. NextScheduledAt is non-nil exactly
// when EnableSchedule is true; the scheduler queries on it to find due work.
type Report struct {
	ID           primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Name         string               `json:"name" bson:"name"`
	Slug         string               `json:"slug" bson:"slug"`
	SourceHandle string               `json:"source_handle" bson:"source_handle"`
	EntityIDs    []string             `json:"entity_ids" bson:"entity_ids"`
	SiteID       string               `json:"site_id,omitempty" bson:"site_id,omitempty"`
	DateRange    datasource.DateRange `json:"date_range,omitempty" bson:"date_range,omitempty"`
	StartDate    *time.Time           `json:"start_date,omitempty" bson:"start_date,omitempty"`
	EndDate      *time.Time           `json:"end_date,omitempty" bson:"end_date,omitempty"`
	FieldHandles []string             `json:"field_handles,omitempty" bson:"field_handles,omitempty"`
	Format       export.Format        `json:"format" bson:"format"`
	Mode         Mode                 `json:"mode" bson:"mode"`

	EnableSchedule  bool                `json:"enable_schedule" bson:"enable_schedule"`
	ScheduleID      schedule.ScheduleID `json:"schedule_id,omitempty" bson:"schedule_id,omitempty"`
	LastGeneratedAt *time.Time          `json:"last_generated_at,omitempty" bson:"last_generated_at,omitempty"`
	NextScheduledAt *time.Time          `json:"next_scheduled_at,omitempty" bson:"next_scheduled_at,omitempty"`

	Enabled   bool      `json:"enabled" bson:"enabled"`
	SortOrder int       `json:"sort_order" bson:"sort_order"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Snapshot freezes the report's current filter state onto a new export.
func (r *Report) Snapshot() export.FilterSnapshot {
	return export.FilterSnapshot{
		DateRange:    r.DateRange,
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		FieldHandles: append([]string(nil), r.FieldHandles...),
		SiteID:       r.SiteID,
	}
}

// Targets expands the report into export targets per its mode.
func (r *Report) Targets() []export.Target {
	if r.Mode == ModeCombined {
		return []export.Target{export.CombinedTarget(r.EntityIDs)}
	}
	targets := make([]export.Target, 0, len(r.EntityIDs))
	for _, entityID := range r.EntityIDs {
		targets = append(targets, export.SingleTarget(entityID))
	}
	return targets
}
