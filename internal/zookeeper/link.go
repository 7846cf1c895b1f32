// Package zookeeper lee el endpoint publicado por la aplicación Zookeeper relacionada
// y publica del lado del broker el material de autenticación mTLS.
package zookeeper

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dropDatabas3/kafkabroker/internal/relation"
)

// Claves publicadas por las unidades de Zookeeper.
const (
	KeyEndpoint = "endpoint"
	KeySASL     = "sasl"
	KeyMTLS     = "mtls"
	KeyTLSCert  = "tls_cert"
	KeyChroot   = "chroot"
)

// Claves publicadas por el broker.
const (
	KeyMTLSCert           = "mtls_cert"
	KeyMTLSTruststorePath = "mtls_truststore_path"
	KeyMTLSTruststorePwd  = "mtls_truststore_pwd"
)

// Endpoint es la vista agregada de las unidades de Zookeeper.
type Endpoint struct {
	Servers []string // host:port ordenados y sin duplicados
	Chroot  string
	SASL    bool
	MTLS    bool
	Certs   []string
}

// ConnectString arma zookeeper.connect: servidores separados por coma más el chroot.
func (e Endpoint) ConnectString() string {
	if len(e.Servers) == 0 {
		return ""
	}
	s := strings.Join(e.Servers, ",")
	if c := strings.Trim(e.Chroot, "/"); c != "" {
		s += "/" + c
	}
	return s
}

// Link accede a la relación zookeeper.
type Link struct {
	store relation.Store
}

func New(store relation.Store) *Link { return &Link{store: store} }

// Endpoint lee todas las unidades remotas. Sin relación devuelve un Endpoint vacío.
func (l *Link) Endpoint(ctx context.Context) (Endpoint, error) {
	var ep Endpoint
	id, err := relation.First(ctx, l.store, relation.Zookeeper)
	if err != nil || id == "" {
		return ep, err
	}
	units, err := l.store.Units(ctx, id)
	if err != nil {
		return ep, err
	}
	servers := map[string]struct{}{}
	certs := map[string]struct{}{}
	for _, u := range units {
		b, err := l.store.UnitData(ctx, id, u)
		if err != nil {
			return ep, fmt.Errorf("read %s: %w", u, err)
		}
		if e := strings.TrimSpace(b[KeyEndpoint]); e != "" {
			servers[e] = struct{}{}
		}
		if b[KeySASL] == "true" {
			ep.SASL = true
		}
		if b[KeyMTLS] == "true" {
			ep.MTLS = true
		}
		if c := strings.TrimSpace(b[KeyTLSCert]); c != "" {
			certs[c] = struct{}{}
		}
	}
	ep.Servers = keys(servers)
	ep.Certs = keys(certs)

	if len(units) > 0 {
		app, err := l.store.AppData(ctx, id, relation.AppOf(units[0]))
		if err != nil {
			return ep, err
		}
		ep.Chroot = app[KeyChroot]
	}
	return ep, nil
}

// Joined: la relación existe y al menos una unidad publicó su endpoint.
func (l *Link) Joined(ctx context.Context) (bool, error) {
	ep, err := l.Endpoint(ctx)
	if err != nil {
		return false, err
	}
	return len(ep.Servers) > 0, nil
}

// SetMTLSAuth publica el certificado cliente y el truststore del broker. Sólo escribe
// las claves que cambiaron; sin relación no hace nada.
func (l *Link) SetMTLSAuth(ctx context.Context, cert, truststorePath, truststorePwd string) error {
	id, err := relation.First(ctx, l.store, relation.Zookeeper)
	if err != nil || id == "" {
		return err
	}
	own, err := l.store.UnitData(ctx, id, l.store.LocalUnit())
	if err != nil {
		return err
	}
	diff := own.Diff(relation.Bucket{
		KeyMTLSCert:           cert,
		KeyMTLSTruststorePath: truststorePath,
		KeyMTLSTruststorePwd:  truststorePwd,
	})
	if len(diff) == 0 {
		return nil
	}
	return l.store.SetUnitData(ctx, id, diff)
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
