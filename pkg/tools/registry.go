// Package tools talks to the remote tools that own the repositories under
// refactoring.
package tools

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrToolNotRegistered is returned for sessions without a tool location.
var ErrToolNotRegistered = errors.New("tool not registered")

// Registry maps session ids to the location of their remote tool.
type Registry struct {
	mu        sync.RWMutex
	locations map[string]string
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		locations: make(map[string]string),
	}
}

// Register records the tool location for a session, replacing any previous
// one. A location without a scheme is taken as plain http.
func (r *Registry) Register(sessionID, location string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations[sessionID] = normalizeLocation(location)
}

// Lookup returns the tool location of a session.
func (r *Registry) Lookup(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.locations[sessionID]
	return loc, ok
}

// Remove forgets a session and reports the location it had.
func (r *Registry) Remove(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locations[sessionID]
	delete(r.locations, sessionID)
	return loc, ok
}

func (r *Registry) location(sessionID string) (string, error) {
	loc, ok := r.Lookup(sessionID)
	if !ok {
		return "", fmt.Errorf("session %s: %w", sessionID, ErrToolNotRegistered)
	}
	return loc, nil
}

func normalizeLocation(location string) string {
	location = strings.TrimRight(strings.TrimSpace(location), "/")
	if !strings.Contains(location, "://") {
		location = "http://" + location
	}
	return location
}
