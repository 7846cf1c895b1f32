package relation

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory es un Store en memoria. Modela las mismas reglas de propiedad que el agente:
// la unidad local sólo escribe su bucket y el de su app.
type Memory struct {
	mu    sync.RWMutex
	unit  string
	rels  map[string]*memRel
	names map[string][]string

	// Writes cuenta las escrituras efectivas (tests de idempotencia).
	Writes int
	// NonLeader simula una unidad no líder: SetAppData devuelve ErrNotLeader.
	NonLeader bool
}

type memRel struct {
	units map[string]Bucket
	apps  map[string]Bucket
}

// NewMemory crea un store vacío para la unidad local.
func NewMemory(unit string) *Memory {
	return &Memory{unit: unit, rels: map[string]*memRel{}, names: map[string][]string{}}
}

// Add crea la relación relID con nombre name. La unidad local queda unida.
func (m *Memory) Add(name, relID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rels[relID]; ok {
		return
	}
	m.rels[relID] = &memRel{
		units: map[string]Bucket{m.unit: {}},
		apps:  map[string]Bucket{},
	}
	m.names[name] = append(m.names[name], relID)
}

// Join agrega (o reemplaza) una unidad remota con su bucket.
func (m *Memory) Join(relID, unit string, data Bucket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.mustRel(relID)
	r.units[unit] = clone(data)
}

// Depart quita una unidad remota.
func (m *Memory) Depart(relID, unit string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mustRel(relID).units, unit)
}

// PutApp reemplaza el bucket de una aplicación (remota o local).
func (m *Memory) PutApp(relID, app string, data Bucket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mustRel(relID).apps[app] = clone(data)
}

func (m *Memory) mustRel(relID string) *memRel {
	r, ok := m.rels[relID]
	if !ok {
		panic(fmt.Sprintf("relation %s not added", relID))
	}
	return r
}

func (m *Memory) LocalUnit() string { return m.unit }

func (m *Memory) IDs(_ context.Context, name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.names[name]...), nil
}

func (m *Memory) Units(_ context.Context, relID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rels[relID]
	if !ok {
		return nil, fmt.Errorf("relation %s not found", relID)
	}
	out := make([]string, 0, len(r.units))
	for u := range r.units {
		if u != m.unit {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) UnitData(_ context.Context, relID, unit string) (Bucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rels[relID]
	if !ok {
		return nil, fmt.Errorf("relation %s not found", relID)
	}
	return clone(r.units[unit]), nil
}

func (m *Memory) AppData(_ context.Context, relID, app string) (Bucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rels[relID]
	if !ok {
		return nil, fmt.Errorf("relation %s not found", relID)
	}
	return clone(r.apps[app]), nil
}

func (m *Memory) SetUnitData(_ context.Context, relID string, kv Bucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rels[relID]
	if !ok {
		return fmt.Errorf("relation %s not found", relID)
	}
	r.units[m.unit] = merge(r.units[m.unit], kv)
	m.Writes++
	return nil
}

func (m *Memory) SetAppData(_ context.Context, relID string, kv Bucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rels[relID]
	if !ok {
		return fmt.Errorf("relation %s not found", relID)
	}
	if m.NonLeader {
		return ErrNotLeader
	}
	app := AppOf(m.unit)
	r.apps[app] = merge(r.apps[app], kv)
	m.Writes++
	return nil
}

func clone(b Bucket) Bucket {
	out := make(Bucket, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

func merge(dst, kv Bucket) Bucket {
	if dst == nil {
		dst = Bucket{}
	}
	for k, v := range kv {
		if v == "" {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
	return dst
}
