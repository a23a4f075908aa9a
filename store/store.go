// Package store defines the persistence collaborator consumed by the
// dispatch layer: lookup of installed service records and the single write
// this layer performs, the reachability status update. Real persistence
// lives in the host application; the in-memory implementation here backs
// the daemon's standalone mode and tests.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TOoSmOotH/homie-sub000/manifest"
)

// Status is a service's last observed reachability.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Service is an installed service record as stored by the host application.
type Service struct {
	// ID is the stored record identifier.
	ID string `json:"id"`
	// Name is the user-assigned instance name.
	Name string `json:"name"`
	// Type is the service family (radarr, proxmox, ...).
	Type string `json:"type"`
	// Config is the instance configuration: host, port, credentials, and any
	// values endpoint templates interpolate against.
	Config map[string]any `json:"config"`
	// Manifest is the installed marketplace manifest.
	Manifest *manifest.Manifest `json:"manifest"`
	// Status is the last observed reachability.
	Status Status `json:"status"`
	// LastCheckedAt is when Status was last written.
	LastCheckedAt time.Time `json:"lastCheckedAt"`
}

// ServiceStore looks up installed service records.
type ServiceStore interface {
	// GetService returns the service record by id.
	GetService(ctx context.Context, id string) (*Service, error)
}

// StatusWriter records a service's reachability. Implementations should be
// cheap; the dispatcher calls this on every dispatch and treats failures as
// best-effort.
type StatusWriter interface {
	// SetStatus records reachability and the time it was observed.
	SetStatus(ctx context.Context, serviceID string, status Status, checkedAt time.Time) error
}

// Memory is an in-memory ServiceStore and StatusWriter.
type Memory struct {
	mu       sync.RWMutex
	services map[string]*Service
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{services: make(map[string]*Service)}
}

// Put inserts or replaces a service record.
func (m *Memory) Put(svc *Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if svc.Status == "" {
		svc.Status = StatusUnknown
	}
	m.services[svc.ID] = svc
}

// GetService returns a copy of the service record by id.
func (m *Memory) GetService(_ context.Context, id string) (*Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[id]
	if !ok {
		return nil, fmt.Errorf("store: service %q not found", id)
	}
	cp := *svc
	return &cp, nil
}

// SetStatus records reachability for a service.
func (m *Memory) SetStatus(_ context.Context, serviceID string, status Status, checkedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	svc, ok := m.services[serviceID]
	if !ok {
		return fmt.Errorf("store: service %q not found", serviceID)
	}
	svc.Status = status
	svc.LastCheckedAt = checkedAt
	return nil
}

// List returns all service records.
func (m *Memory) List() []*Service {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Service, 0, len(m.services))
	for _, svc := range m.services {
		cp := *svc
		out = append(out, &cp)
	}
	return out
}

var (
	_ ServiceStore = (*Memory)(nil)
	_ StatusWriter = (*Memory)(nil)
)
