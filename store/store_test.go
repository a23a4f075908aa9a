package store

import (
	"context"
	"testing"
	"time"
)

func TestMemory_PutAndGet(t *testing.T) {
	mem := NewMemory()
	mem.Put(&Service{ID: "svc-1", Name: "movies", Type: "radarr"})

	svc, err := mem.GetService(context.Background(), "svc-1")
	if err != nil {
		t.Fatal(err)
	}
	if svc.Status != StatusUnknown {
		t.Errorf("status = %q, want unknown default", svc.Status)
	}

	// Mutating the returned copy must not touch the stored record.
	svc.Name = "changed"
	again, _ := mem.GetService(context.Background(), "svc-1")
	if again.Name != "movies" {
		t.Errorf("stored record mutated through a copy: %q", again.Name)
	}

	if _, err := mem.GetService(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestMemory_SetStatus(t *testing.T) {
	mem := NewMemory()
	mem.Put(&Service{ID: "svc-1"})

	at := time.Now().UTC()
	if err := mem.SetStatus(context.Background(), "svc-1", StatusOnline, at); err != nil {
		t.Fatal(err)
	}

	svc, _ := mem.GetService(context.Background(), "svc-1")
	if svc.Status != StatusOnline || !svc.LastCheckedAt.Equal(at) {
		t.Errorf("record = %+v", svc)
	}

	if err := mem.SetStatus(context.Background(), "nope", StatusOffline, at); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestMemory_List(t *testing.T) {
	mem := NewMemory()
	mem.Put(&Service{ID: "a"})
	mem.Put(&Service{ID: "b"})
	if got := len(mem.List()); got != 2 {
		t.Errorf("len = %d", got)
	}
}
