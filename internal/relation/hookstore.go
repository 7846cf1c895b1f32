package relation

import (
	"context"
	"sort"

	"github.com/dropDatabas3/kafkabroker/internal/hooktools"
)

// HookStore implementa Store sobre los hook tools del agente.
type HookStore struct {
	tools *hooktools.Tools
	unit  string
}

// NewHookStore crea el store para la unidad local.
func NewHookStore(tools *hooktools.Tools, unit string) *HookStore {
	return &HookStore{tools: tools, unit: unit}
}

func (s *HookStore) LocalUnit() string { return s.unit }

func (s *HookStore) IDs(ctx context.Context, name string) ([]string, error) {
	return s.tools.RelationIDs(ctx, name)
}

func (s *HookStore) Units(ctx context.Context, relID string) ([]string, error) {
	units, err := s.tools.RelationList(ctx, relID)
	if err != nil {
		return nil, err
	}
	out := units[:0]
	for _, u := range units {
		if u != s.unit {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *HookStore) UnitData(ctx context.Context, relID, unit string) (Bucket, error) {
	m, err := s.tools.RelationGet(ctx, relID, unit, false)
	return Bucket(m), err
}

func (s *HookStore) AppData(ctx context.Context, relID, app string) (Bucket, error) {
	m, err := s.tools.RelationGet(ctx, relID, app, true)
	return Bucket(m), err
}

func (s *HookStore) SetUnitData(ctx context.Context, relID string, kv Bucket) error {
	return s.tools.RelationSet(ctx, relID, false, kv)
}

func (s *HookStore) SetAppData(ctx context.Context, relID string, kv Bucket) error {
	return s.tools.RelationSet(ctx, relID, true, kv)
}
