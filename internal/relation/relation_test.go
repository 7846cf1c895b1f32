package relation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/kafkabroker/internal/hooktools"
)

func TestBucket_EqualAndDiff(t *testing.T) {
	a := Bucket{"az": "zone-a", "cert": ""}
	b := Bucket{"az": "zone-a"}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Bucket{"az": "zone-b"}))
	assert.False(t, b.Equal(Bucket{"az": "zone-a", "x": "1"}))

	assert.Equal(t, Bucket{"az": "zone-c"}, b.Diff(Bucket{"az": "zone-c"}))
	assert.Empty(t, b.Diff(Bucket{"az": "zone-a"}))
}

func TestMemory_Ownership(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("kafka/0")
	m.Add(Peer, "cluster:0")
	m.Join("cluster:0", "kafka/2", Bucket{"az": "zone-b"})
	m.Join("cluster:0", "kafka/1", nil)

	units, err := m.Units(ctx, "cluster:0")
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka/1", "kafka/2"}, units)

	require.NoError(t, m.SetUnitData(ctx, "cluster:0", Bucket{"az": "zone-a"}))
	own, err := m.UnitData(ctx, "cluster:0", "kafka/0")
	require.NoError(t, err)
	assert.Equal(t, Bucket{"az": "zone-a"}, own)

	require.NoError(t, m.SetAppData(ctx, "cluster:0", Bucket{"listeners": "{}"}))
	app, err := m.AppData(ctx, "cluster:0", "kafka")
	require.NoError(t, err)
	assert.Equal(t, "{}", app["listeners"])

	require.NoError(t, m.SetUnitData(ctx, "cluster:0", Bucket{"az": ""}))
	own, _ = m.UnitData(ctx, "cluster:0", "kafka/0")
	assert.Empty(t, own)
	assert.Equal(t, 3, m.Writes)

	m.Depart("cluster:0", "kafka/2")
	units, _ = m.Units(ctx, "cluster:0")
	assert.Equal(t, []string{"kafka/1"}, units)

	id, err := First(ctx, m, Zookeeper)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestMemory_AppBucketIsLeaderOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("kafka/1")
	m.Add(Peer, "cluster:0")
	m.NonLeader = true

	err := m.SetAppData(ctx, "cluster:0", Bucket{"listeners": "{}"})
	require.ErrorIs(t, err, ErrNotLeader)
	assert.Equal(t, 0, m.Writes)

	// el bucket propio sigue siendo escribible
	require.NoError(t, m.SetUnitData(ctx, "cluster:0", Bucket{"az": "zone-b"}))
}

func TestHookStore_FiltersLocalUnit(t *testing.T) {
	ctx := context.Background()
	f := hooktools.NewFakeRunner()
	f.Outputs["relation-list -r cluster:4 --format=json"] = `["kafka/3","kafka/0","kafka/1"]`
	f.Outputs["relation-get -r cluster:4 --format=json --app - kafka"] = `{"listeners":"{}"}`
	s := NewHookStore(hooktools.New(f), "kafka/0")

	units, err := s.Units(ctx, "cluster:4")
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka/1", "kafka/3"}, units)

	app, err := s.AppData(ctx, "cluster:4", "kafka")
	require.NoError(t, err)
	assert.Equal(t, "{}", app["listeners"])

	require.NoError(t, s.SetUnitData(ctx, "cluster:4", Bucket{"az": "z1"}))
	require.Len(t, f.CallsTo("relation-set"), 1)
}

func TestAppOf(t *testing.T) {
	assert.Equal(t, "zookeeper", AppOf("zookeeper/3"))
	assert.Equal(t, "kafka", AppOf("kafka"))
}
