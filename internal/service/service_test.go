package service

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastManager(sd Systemd, name string) *Manager {
	return NewManager(sd, name, WithRetry(3, time.Millisecond))
}

func TestManager_ReloadRetriesRestart(t *testing.T) {
	sd := &FakeSystemd{RestartErrs: []error{errors.New("busy")}}
	m := fastManager(sd, "confluent-server")

	require.NoError(t, m.Reload(context.Background(), true))
	assert.Equal(t, 1, sd.DaemonReloads)
	assert.Equal(t, []string{"confluent-server.service", "confluent-server.service"}, sd.Restarts)
}

func TestManager_ReloadWithoutDaemonReload(t *testing.T) {
	sd := &FakeSystemd{}
	m := fastManager(sd, "kafka.service")
	require.NoError(t, m.Reload(context.Background(), false))
	assert.Zero(t, sd.DaemonReloads)
	assert.Equal(t, []string{"kafka.service"}, sd.Restarts)
}

func TestManager_ReloadGivesUp(t *testing.T) {
	boom := errors.New("boom")
	sd := &FakeSystemd{RestartErrs: []error{boom, boom, boom}}
	err := fastManager(sd, "kafka").Reload(context.Background(), false)
	require.ErrorIs(t, err, boom)
	assert.Len(t, sd.Restarts, 3)
}

func TestManager_Running(t *testing.T) {
	cases := []struct {
		name   string
		states []string
		want   bool
	}{
		{"active", []string{"active"}, true},
		{"activating then active", []string{"activating", "active"}, true},
		{"failed", []string{"failed"}, false},
		{"stuck activating", []string{"activating"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sd := &FakeSystemd{States: tc.states}
			ok, err := fastManager(sd, "kafka").Running(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestManager_Enable(t *testing.T) {
	sd := &FakeSystemd{}
	require.NoError(t, fastManager(sd, "kafka").Enable(context.Background()))
	assert.Equal(t, []string{"kafka.service"}, sd.Enabled)
}

func TestProbe_Unreachable(t *testing.T) {
	// puerto reservado y cerrado enseguida: nadie escucha.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	err = Probe{Seeds: []string{addr}, Timeout: 2 * time.Second}.Ping(context.Background())
	require.Error(t, err)
}

func TestProbe_NoSeeds(t *testing.T) {
	require.Error(t, Probe{}.Ping(context.Background()))
}

func TestTLSConfig(t *testing.T) {
	cfg, err := TLSConfig("")
	require.NoError(t, err)
	assert.NotNil(t, cfg.RootCAs)

	_, err = TLSConfig("not a pem")
	require.Error(t, err)
}
