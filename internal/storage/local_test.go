package storage

import (
	"context"
	"errors"
	"testing"
)

func TestLocalRoundTrip(t *testing.T) {
	backend, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	ctx := context.Background()

	payload := []byte("id,name\n1,test\n")
	if err := backend.Write(ctx, "records_orders_2024-01-01_02-00-00.csv", payload); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	exists, err := backend.Exists(ctx, "records_orders_2024-01-01_02-00-00.csv")
	if err != nil || !exists {
		t.Fatalf("Exists() = %v, %v, want true", exists, err)
	}

	got, err := backend.Read(ctx, "records_orders_2024-01-01_02-00-00.csv")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Read() = %q, want %q", got, payload)
	}

	if err := backend.Delete(ctx, "records_orders_2024-01-01_02-00-00.csv"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := backend.Read(ctx, "records_orders_2024-01-01_02-00-00.csv"); !errors.Is(err, ErrNotExist) {
		t.Errorf("Read() after delete error = %v, want ErrNotExist", err)
	}
}

func TestLocalDeleteMissingIsNotAnError(t *testing.T) {
	backend, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	if err := backend.Delete(context.Background(), "never_written.csv"); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	backend, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	if err := backend.Write(context.Background(), "../outside.csv", []byte("x")); err == nil {
		t.Error("Write(../outside.csv) should error")
	}
}
