package storage

import (
	"fmt"

	"go-export/internal/config"
)

// NewBackend selects the storage backend from configuration. The pipeline
// and the retention cleaner only ever see the Backend interface.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.StorageDriver {
	case "", "local":
		return NewLocal(cfg.FSPath)
	case "s3":
		return NewS3(S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
