package settings

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SettingsType string

const (
	SettingsTypeExport SettingsType = "export"
)

// ExportConfig is the system-wide knob set for scheduled exports. The
// scheduler loop reads ScheduleEnabled/DefaultSchedule on every pass; the
// retention cleaner reads AutoCleanup/RetentionDays; the CSV encoder reads
// the rest.
type ExportConfig struct {
	ScheduleEnabled bool   `json:"schedule_enabled" bson:"schedule_enabled"`
	DefaultSchedule string `json:"default_schedule" bson:"default_schedule"`
	AutoCleanup     bool   `json:"auto_cleanup" bson:"auto_cleanup"`
	// RetentionDays <= 0 means keep exports forever.
	RetentionDays int    `json:"retention_days" bson:"retention_days"`
	CSVDelimiter  string `json:"csv_delimiter" bson:"csv_delimiter"`
	CSVEnclosure  string `json:"csv_enclosure" bson:"csv_enclosure"`
	CSVWithBOM    bool   `json:"csv_with_bom" bson:"csv_with_bom"`
}

type Settings struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Type      SettingsType       `json:"type" bson:"type"` // Unique index on type
	Export    *ExportConfig      `json:"export,omitempty" bson:"export,omitempty"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}
