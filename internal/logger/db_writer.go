package logger

import (
	"context"
	"fmt"
	"time"

	"go-export/internal/database"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zapcore"
)

// LogEntry holds the data passed from Zap to our worker
type LogEntry struct {
	Level    zapcore.Level
	Message  string
	TaskKind string
	ExportID string
	Caller   string // Function name
}

type logRecord struct {
	Message      string    `bson:"message"`
	Level        string    `bson:"level"`
	TaskKind     string    `bson:"task_kind,omitempty"`
	ExportID     string    `bson:"export_id,omitempty"`
	Caller       string    `bson:"caller,omitempty"`
	CreatedOnUtc time.Time `bson:"created_on_utc"`
}

// DBLogWriter handles the async writing
type DBLogWriter struct {
	db      *mongo.Database
	logChan chan LogEntry
}

// NewDBLogWriter initializes the worker
func NewDBLogWriter(mongodb *database.MongodbDB) *DBLogWriter {
	writer := &DBLogWriter{
		db:      mongodb.DB,
		logChan: make(chan LogEntry, 1000),
	}

	// Start the background worker immediately
	go writer.processLogs()

	return writer
}

// AddLog is called by our Zap hook
func (w *DBLogWriter) AddLog(entry LogEntry) {
	select {
	case w.logChan <- entry:
	default:
		// Channel full: drop instead of blocking a request or a pipeline run.
		fmt.Println("DB Log Channel Full! Dropping log:", entry.Message)
	}
}

func (w *DBLogWriter) processLogs() {
	for entry := range w.logChan {
		record := logRecord{
			Message:      entry.Message,
			Level:        entry.Level.String(),
			TaskKind:     entry.TaskKind,
			ExportID:     entry.ExportID,
			Caller:       entry.Caller,
			CreatedOnUtc: time.Now().UTC(),
		}

		// Insert errors are ignored on purpose; logging must never take the
		// application down with it.
		w.db.Collection("logs").InsertOne(context.Background(), record)
	}
}
