package charm

import (
	"context"
	"strings"
)

// EventKind es un evento del ciclo de vida que el charm atiende.
type EventKind string

const (
	EventInstall       EventKind = "install"
	EventConfigChanged EventKind = "config-changed"
	EventUpgradeCharm  EventKind = "upgrade-charm"
	EventLeaderElected EventKind = "leader-elected"
	EventUpdateStatus  EventKind = "update-status"

	EventClusterJoined   EventKind = "cluster-relation-joined"
	EventClusterChanged  EventKind = "cluster-relation-changed"
	EventClusterDeparted EventKind = "cluster-relation-departed"

	EventZookeeperJoined   EventKind = "zookeeper-relation-joined"
	EventZookeeperChanged  EventKind = "zookeeper-relation-changed"
	EventZookeeperDeparted EventKind = "zookeeper-relation-departed"
)

// Handler procesa un evento sobre el Dispatch en curso.
type Handler func(ctx context.Context, d *Dispatch) error

// Registry asocia cada evento con sus handlers, que corren en orden.
type Registry map[EventKind][]Handler

// Lookup devuelve los handlers de name. ok=false para eventos que el charm no conoce.
func (r Registry) Lookup(name string) (EventKind, []Handler, bool) {
	k := EventKind(strings.TrimSpace(name))
	hs, ok := r[k]
	return k, hs, ok
}

// Events lista los eventos registrados (CLI, tests).
func (r Registry) Events() []EventKind {
	out := make([]EventKind, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	return out
}

func (c *Charm) registry() Registry {
	reconcile := []Handler{c.reconcile}
	return Registry{
		EventInstall:           {c.install, c.reconcile},
		EventConfigChanged:     reconcile,
		EventUpgradeCharm:      reconcile,
		EventLeaderElected:     reconcile,
		EventUpdateStatus:      {c.updateStatus},
		EventClusterJoined:     reconcile,
		EventClusterChanged:    reconcile,
		EventClusterDeparted:   reconcile,
		EventZookeeperJoined:   reconcile,
		EventZookeeperChanged:  reconcile,
		EventZookeeperDeparted: reconcile,
	}
}
