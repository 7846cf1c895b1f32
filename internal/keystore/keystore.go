// Package keystore mantiene los keystores/truststores PKCS12 de los dos dominios de
// confianza del broker: listeners de clientes (broker) y mTLS contra Zookeeper (zookeeper).
//
// Cada dominio está en uno de tres modos: Unset, SelfSigned o External. Con inputs
// iguales Ensure devuelve el mismo Bundle (mismos passwords) y no toca disco.
package keystore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/dropDatabas3/kafkabroker/internal/observability/logger"
	tokens "github.com/dropDatabas3/kafkabroker/internal/security/token"
	"github.com/dropDatabas3/kafkabroker/internal/util/atomicwrite"
)

// Domain identifica un dominio de confianza.
type Domain string

const (
	Broker    Domain = "broker"
	Zookeeper Domain = "zookeeper"
)

// Mode del material de un dominio.
type Mode string

const (
	Unset      Mode = ""
	SelfSigned Mode = "self-signed"
	External   Mode = "external"
)

// Bundle es el estado persistido de un dominio.
type Bundle struct {
	Domain              Domain   `json:"domain"`
	Mode                Mode     `json:"mode"`
	Cert                string   `json:"cert,omitempty"`
	Key                 string   `json:"key,omitempty"`
	CACert              string   `json:"ca_cert,omitempty"`
	KeystorePath        string   `json:"keystore_path,omitempty"`
	KeystorePassword    string   `json:"keystore_password,omitempty"`
	TruststorePath      string   `json:"truststore_path,omitempty"`
	TruststorePassword  string   `json:"truststore_password,omitempty"`
	TrustedFingerprints []string `json:"trusted_fingerprints,omitempty"`
}

// Enabled reporta si el dominio tiene material TLS.
func (b Bundle) Enabled() bool { return b.Mode != Unset && b.Cert != "" && b.Key != "" }

// Equal compara todos los campos.
func (b Bundle) Equal(o Bundle) bool {
	return b.Domain == o.Domain && b.Mode == o.Mode && b.Cert == o.Cert && b.Key == o.Key &&
		b.CACert == o.CACert && b.KeystorePath == o.KeystorePath &&
		b.KeystorePassword == o.KeystorePassword && b.TruststorePath == o.TruststorePath &&
		b.TruststorePassword == o.TruststorePassword &&
		slices.Equal(b.TrustedFingerprints, o.TrustedFingerprints)
}

// Request es lo que el operador pide para un dominio.
type Request struct {
	Domain         Domain
	GenerateRootCA bool
	// Material externo ya decodificado de base64 (GenerateRootCA=false).
	Cert string
	Key  string

	KeystorePath   string
	TruststorePath string

	// Identidad de la hoja autofirmada.
	CN    string
	Hosts []string
}

// Manager aplica Requests sobre Bundles.
type Manager struct {
	issuer Issuer
	owner  atomicwrite.Options

	// OnRegenerate se invoca por cada bundle regenerado (métricas).
	OnRegenerate func(Domain, Mode)
}

// NewManager crea el Manager. user/group son los dueños de los archivos escritos.
func NewManager(issuer Issuer, user, group string) *Manager {
	if issuer == nil {
		issuer = DefaultIssuer()
	}
	return &Manager{issuer: issuer, owner: atomicwrite.Options{Perm: 0o640, User: user, Group: group}}
}

// Ensure lleva cur al estado pedido por req. changed=true si el bundle cambió o se
// reescribió el keystore.
func (m *Manager) Ensure(ctx context.Context, cur Bundle, req Request) (Bundle, bool, error) {
	log := logger.From(ctx).With(logger.Component("keystore"), logger.Domain(string(req.Domain)))

	next, regenerate, err := m.plan(cur, req)
	if err != nil {
		return cur, false, err
	}

	if regenerate {
		if next.KeystorePassword, err = tokens.GeneratePassword(); err != nil {
			return cur, false, fmt.Errorf("keystore password: %w", err)
		}
		if next.TruststorePassword, err = tokens.GeneratePassword(); err != nil {
			return cur, false, fmt.Errorf("truststore password: %w", err)
		}
		// el truststore nuevo se arma en SyncTruststore
		next.TrustedFingerprints = nil
		log.Info("keystore regenerated", logger.String("mode", string(next.Mode)))
		if m.OnRegenerate != nil {
			m.OnRegenerate(req.Domain, next.Mode)
		}
	}

	wrote := false
	if next.Enabled() && (regenerate || next.KeystorePath != cur.KeystorePath || missing(next.KeystorePath)) {
		ks, err := encodeKeystore(next.Cert, next.Key, next.CACert, next.KeystorePassword)
		if err != nil {
			return cur, false, fmt.Errorf("%s keystore: %w", req.Domain, err)
		}
		if wrote, err = atomicwrite.WriteFile(next.KeystorePath, ks, m.owner); err != nil {
			return cur, false, err
		}
		log.Debug("keystore written", logger.Path(next.KeystorePath))
	}

	return next, wrote || !next.Equal(cur), nil
}

// plan decide el bundle destino y si hay que regenerar passwords y keystore.
func (m *Manager) plan(cur Bundle, req Request) (Bundle, bool, error) {
	next := cur
	next.Domain = req.Domain
	next.KeystorePath = req.KeystorePath
	next.TruststorePath = req.TruststorePath

	if req.GenerateRootCA {
		if cur.Mode == SelfSigned && cur.Enabled() {
			return next, false, nil
		}
		issued, err := m.issuer.Issue(req.CN, req.Hosts)
		if err != nil {
			return cur, false, fmt.Errorf("%s: %w", req.Domain, err)
		}
		next.Mode = SelfSigned
		next.Cert, next.Key, next.CACert = issued.Cert, issued.Key, issued.CACert
		return next, true, nil
	}

	if req.Cert == "" || req.Key == "" {
		return Bundle{Domain: req.Domain, Mode: Unset}, false, nil
	}
	if cur.Mode == External && cur.Cert == req.Cert && cur.Key == req.Key {
		return next, false, nil
	}
	next.Mode = External
	next.Cert, next.Key, next.CACert = req.Cert, req.Key, ""
	return next, true, nil
}

// SyncTruststore reescribe el truststore sólo si cambió el conjunto de certificados
// confiables (por fingerprint) o el archivo no existe. Siempre incluye el anchor propio:
// el CA autofirmado o, en modo External, la cadena del cert externo. Un bundle habilitado
// siempre termina con el truststore en disco.
// written=true cuando se escribió el archivo.
func (m *Manager) SyncTruststore(ctx context.Context, b Bundle, certs []string) (Bundle, bool, error) {
	if !b.Enabled() || b.TruststorePath == "" {
		return b, false, nil
	}
	own := b.CACert
	if own == "" {
		own = b.Cert
	}
	trusted, fps, err := parseTrusted(append([]string{own}, certs...))
	if err != nil {
		return b, false, fmt.Errorf("%s truststore: %w", b.Domain, err)
	}
	if len(trusted) == 0 {
		return b, false, fmt.Errorf("%s truststore: no trust anchor", b.Domain)
	}
	if slices.Equal(fps, b.TrustedFingerprints) && !missing(b.TruststorePath) {
		return b, false, nil
	}

	next := b
	if next.TruststorePassword == "" {
		if next.TruststorePassword, err = tokens.GeneratePassword(); err != nil {
			return b, false, fmt.Errorf("truststore password: %w", err)
		}
	}
	ts, err := encodeTruststore(trusted, next.TruststorePassword)
	if err != nil {
		return b, false, fmt.Errorf("%s truststore: %w", b.Domain, err)
	}
	if _, err := atomicwrite.WriteFile(next.TruststorePath, ts, m.owner); err != nil {
		return b, false, err
	}
	next.TrustedFingerprints = fps
	logger.From(ctx).Info("truststore updated",
		logger.Component("keystore"), logger.Domain(string(b.Domain)), logger.Count(len(fps)))
	return next, true, nil
}

func missing(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}
