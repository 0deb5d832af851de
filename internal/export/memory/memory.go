// Package memory is an in-process bundle writer for tests and demos.
package memory

import (
	"context"
	"fmt"
	"sync"

	"pfm/internal/report"
)

type exported struct {
	UserID string
	Year   int
	Bundle *report.Bundle
}

type Store struct {
	mu    sync.Mutex
	items []exported
}

func New() *Store {
	return &Store{}
}

// ExportBundle records the bundle and returns a synthetic reference.
func (s *Store) ExportBundle(_ context.Context, userID string, year int, b *report.Bundle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, exported{UserID: userID, Year: year, Bundle: b})
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Last returns the most recently exported bundle, or nil.
func (s *Store) Last() *report.Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil
	}
	return s.items[len(s.items)-1].Bundle
}

// Count returns how many bundles were exported.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
