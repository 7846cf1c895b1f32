package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveHook(t *testing.T) {
	m := New()
	m.ObserveHook("config-changed", "active", 300*time.Millisecond)
	m.ObserveHook("update-status", "blocked", time.Second)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	got := map[string]int{}
	for _, f := range families {
		got[f.GetName()] = len(f.GetMetric())
	}
	assert.Equal(t, 2, got["kafka_broker_hook_duration_seconds"])
	assert.Equal(t, 2, got["kafka_broker_hook_outcomes_total"])
	assert.Equal(t, 1, got["kafka_broker_blocked_total"])
}

func TestWriteTextfile(t *testing.T) {
	dir := t.TempDir()
	m := New()
	m.Keystore("broker", "self-signed")

	require.NoError(t, m.WriteTextfile(dir, "kafka-broker/0"))
	b, err := os.ReadFile(filepath.Join(dir, "kafka_broker_kafka_broker_0.prom"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), `kafka_broker_keystore_regenerations_total{domain="broker",mode="self-signed"} 1`))

	require.NoError(t, m.WriteTextfile("", "kafka-broker/0"))
}
