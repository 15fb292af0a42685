package storage

import (
	"context"
	"sync"
)

// Memory is an in-process catalogue with the same load surface as Store.
type Memory struct {
	mu         sync.RWMutex
	projects   []ProjectRow
	intercepts []InterceptRow
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) LoadActiveProjects(context.Context) ([]ProjectRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ProjectRow
	for _, p := range m.projects {
		if p.Status == "ACTIVE" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) LoadActiveIntercepts(context.Context) ([]InterceptRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []InterceptRow
	for _, ic := range m.intercepts {
		if ic.Status == "ACTIVE" {
			out = append(out, ic)
		}
	}
	return out, nil
}

// Update replaces the whole catalogue.
func (m *Memory) Update(projects []ProjectRow, intercepts []InterceptRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects = append([]ProjectRow(nil), projects...)
	m.intercepts = append([]InterceptRow(nil), intercepts...)
}
