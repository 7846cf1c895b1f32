// Package cluster coordina la membresía del broker a través de la relación de pares.
//
// Cada unidad publica en su propio bucket la AZ, el certificado TLS y sus listeners
// anunciados. El líder publica en el bucket de la aplicación el mapa canónico de
// listeners. Todo lo agregado (conteo de pares, AZs, readiness) se deriva en cada
// llamada y nunca se persiste.
package cluster

import (
	"context"
	"fmt"
	"sort"

	"github.com/dropDatabas3/kafkabroker/internal/observability/logger"
	"github.com/dropDatabas3/kafkabroker/internal/relation"
)

// Claves de los buckets de la relación de pares.
const (
	KeyAZ                  = "az"
	KeyCert                = "cert"
	KeyTLSCert             = "tls_cert"
	KeyAdvertisedListeners = "advertised_listeners"
	KeyListeners           = "listeners"
)

// LeaderChecker reporta si la unidad local es líder de la aplicación.
type LeaderChecker interface {
	IsLeader(ctx context.Context) (bool, error)
}

// Options configuran el Coordinator.
type Options struct {
	// MinUnits: cantidad de pares a partir de la cual el cluster está listo.
	MinUnits int
	// AZAware corresponde a customize-failure-domain.
	AZAware bool
	// AZ de la unidad local (JUJU_AVAILABILITY_ZONE).
	AZ string
}

// PeerUnit es la vista de una unidad sobre la relación de pares.
type PeerUnit struct {
	Name                string
	AZ                  string
	Cert                string
	TLSCert             bool
	AdvertisedListeners string
}

// View es el agregado derivado de la relación.
type View struct {
	PeerCount       int
	DistinctAZCount int
	Ready           bool
}

// Coordinator lee y escribe el estado de pares.
type Coordinator struct {
	store  relation.Store
	leader LeaderChecker
	opts   Options
}

// New crea un Coordinator sobre store.
func New(store relation.Store, leader LeaderChecker, opts Options) *Coordinator {
	if opts.MinUnits < 1 {
		opts.MinUnits = 1
	}
	return &Coordinator{store: store, leader: leader, opts: opts}
}

func (c *Coordinator) relID(ctx context.Context) (string, error) {
	id, err := relation.First(ctx, c.store, relation.Peer)
	if err != nil {
		return "", fmt.Errorf("peer relation: %w", err)
	}
	return id, nil
}

// setOwn escribe sólo las claves que cambian en el bucket propio.
func (c *Coordinator) setOwn(ctx context.Context, relID string, want relation.Bucket) error {
	own, err := c.store.UnitData(ctx, relID, c.store.LocalUnit())
	if err != nil {
		return err
	}
	diff := own.Diff(want)
	if len(diff) == 0 {
		return nil
	}
	return c.store.SetUnitData(ctx, relID, diff)
}

// RegisterSelf publica la AZ local. Sólo con AZ awareness y cuando cambió.
func (c *Coordinator) RegisterSelf(ctx context.Context, az string) error {
	if !c.opts.AZAware {
		return nil
	}
	id, err := c.relID(ctx)
	if err != nil || id == "" {
		return err
	}
	return c.setOwn(ctx, id, relation.Bucket{KeyAZ: az})
}

// Peers devuelve la unidad local seguida de las remotas (orden por nombre).
func (c *Coordinator) Peers(ctx context.Context) ([]PeerUnit, error) {
	self := PeerUnit{Name: c.store.LocalUnit(), AZ: c.opts.AZ}
	id, err := c.relID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return []PeerUnit{self}, nil
	}
	units, err := c.store.Units(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]PeerUnit, 0, len(units)+1)
	for _, name := range append([]string{self.Name}, units...) {
		b, err := c.store.UnitData(ctx, id, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		p := PeerUnit{
			Name:                name,
			AZ:                  b[KeyAZ],
			Cert:                b[KeyCert],
			TLSCert:             b[KeyTLSCert] == "true",
			AdvertisedListeners: b[KeyAdvertisedListeners],
		}
		if name == self.Name && p.AZ == "" {
			p.AZ = self.AZ
		}
		out = append(out, p)
	}
	return out, nil
}

// PeerCount = unidades remotas + la local; 1 sin relación.
func (c *Coordinator) PeerCount(ctx context.Context) (int, error) {
	id, err := c.relID(ctx)
	if err != nil || id == "" {
		return 1, err
	}
	units, err := c.store.Units(ctx, id)
	if err != nil {
		return 0, err
	}
	return len(units) + 1, nil
}

// DistinctAZCount cuenta AZs no vacías entre todos los pares; 0 sin AZ awareness.
func (c *Coordinator) DistinctAZCount(ctx context.Context) (int, error) {
	if !c.opts.AZAware {
		return 0, nil
	}
	peers, err := c.Peers(ctx)
	if err != nil {
		return 0, err
	}
	seen := map[string]struct{}{}
	for _, p := range peers {
		if p.AZ != "" {
			seen[p.AZ] = struct{}{}
		}
	}
	return len(seen), nil
}

// IsReady: MinUnits == 1 o hay al menos MinUnits pares.
func (c *Coordinator) IsReady(ctx context.Context) (bool, error) {
	if c.opts.MinUnits == 1 {
		return true, nil
	}
	n, err := c.PeerCount(ctx)
	if err != nil {
		return false, err
	}
	return n >= c.opts.MinUnits, nil
}

// View agrega PeerCount, DistinctAZCount e IsReady.
func (c *Coordinator) View(ctx context.Context) (View, error) {
	n, err := c.PeerCount(ctx)
	if err != nil {
		return View{}, err
	}
	azs, err := c.DistinctAZCount(ctx)
	if err != nil {
		return View{}, err
	}
	return View{
		PeerCount:       n,
		DistinctAZCount: azs,
		Ready:           c.opts.MinUnits == 1 || n >= c.opts.MinUnits,
	}, nil
}

// SetCert publica el certificado propio y el flag tls_cert. "" retira ambos.
func (c *Coordinator) SetCert(ctx context.Context, pem string) error {
	id, err := c.relID(ctx)
	if err != nil || id == "" {
		return err
	}
	flag := "true"
	if pem == "" {
		flag = ""
	}
	return c.setOwn(ctx, id, relation.Bucket{KeyCert: pem, KeyTLSCert: flag})
}

// TrustedCerts devuelve los certificados de los pares (incluida la unidad local)
// que publicaron tls_cert=true.
func (c *Coordinator) TrustedCerts(ctx context.Context) ([]string, error) {
	peers, err := c.Peers(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range peers {
		if p.TLSCert && p.Cert != "" {
			out = append(out, p.Cert)
		}
	}
	return out, nil
}

// SetAdvertisedListeners publica la cadena advertised.listeners de la unidad local.
func (c *Coordinator) SetAdvertisedListeners(ctx context.Context, s string) error {
	id, err := c.relID(ctx)
	if err != nil || id == "" {
		return err
	}
	return c.setOwn(ctx, id, relation.Bucket{KeyAdvertisedListeners: s})
}

// SetListeners publica el mapa canónico en el bucket de la app. No-op sin relación,
// para no líderes o si el valor publicado ya es el mismo.
func (c *Coordinator) SetListeners(ctx context.Context, m ListenerMap) error {
	id, err := c.relID(ctx)
	if err != nil || id == "" {
		return err
	}
	ok, err := c.leader.IsLeader(ctx)
	if err != nil {
		return fmt.Errorf("is-leader: %w", err)
	}
	if !ok {
		logger.From(ctx).Debug("skip listeners publish: not leader", logger.Component("cluster"))
		return nil
	}
	enc, err := m.Canonical()
	if err != nil {
		return err
	}
	app := relation.AppOf(c.store.LocalUnit())
	cur, err := c.store.AppData(ctx, id, app)
	if err != nil {
		return err
	}
	if cur[KeyListeners] == enc {
		return nil
	}
	return c.store.SetAppData(ctx, id, relation.Bucket{KeyListeners: enc})
}

// Listeners lee el mapa publicado por el líder. Sin relación devuelve nil;
// con relación pero sin publicar devuelve un mapa vacío.
func (c *Coordinator) Listeners(ctx context.Context) (ListenerMap, error) {
	id, err := c.relID(ctx)
	if err != nil || id == "" {
		return nil, err
	}
	cur, err := c.store.AppData(ctx, id, relation.AppOf(c.store.LocalUnit()))
	if err != nil {
		return nil, err
	}
	return ParseListenerMap(cur[KeyListeners])
}

// AZs devuelve las AZs distintas ordenadas; el controller las loguea al bloquear.
func (c *Coordinator) AZs(ctx context.Context) ([]string, error) {
	peers, err := c.Peers(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	for _, p := range peers {
		if p.AZ != "" {
			seen[p.AZ] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for az := range seen {
		out = append(out, az)
	}
	sort.Strings(out)
	return out, nil
}
