package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	blobstore "fileflow/blobStore"
	"fileflow/config"
	"fileflow/converter"
	"fileflow/pipeline"
	"fileflow/records"
	"fileflow/registry"
)

func TestJanitorExitsBeforeStoresClose(t *testing.T) {
	blobs, err := blobstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	reg, err := registry.New(nil)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	store, err := records.OpenPebbleStore(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("OpenPebbleStore: %v", err)
	}
	orch := pipeline.New(blobs, reg, converter.NewTable(), nil, pipeline.Options{MaxUploadBytes: 1 << 20})
	cfg := &config.Config{
		JanitorInterval: 5 * time.Millisecond,
		OutputTTL:       time.Hour,
		UploadTTL:       time.Hour,
		RecordRetention: time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := startJanitor(ctx, cfg, orch, store)
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("janitor did not stop after cancellation")
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
