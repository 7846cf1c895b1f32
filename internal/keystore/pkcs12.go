package keystore

import (
	"crypto/x509"
	"errors"
	"fmt"
	"sort"

	"github.com/cloudflare/cfssl/helpers"
	pkcs12 "software.sslmate.com/src/go-pkcs12"

	tokens "github.com/dropDatabas3/kafkabroker/internal/security/token"
)

// encodeKeystore arma el PKCS12 con la clave, la hoja y el resto de la cadena.
func encodeKeystore(certPEM, keyPEM, caPEM, password string) ([]byte, error) {
	certs, err := helpers.ParseCertificatesPEM([]byte(certPEM))
	if err != nil {
		return nil, fmt.Errorf("parse cert: %w", err)
	}
	if len(certs) == 0 {
		return nil, errors.New("no certificate in PEM")
	}
	key, err := helpers.ParsePrivateKeyPEM([]byte(keyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse key: %w", err)
	}
	chain := certs[1:]
	if caPEM != "" {
		ca, err := helpers.ParseCertificatesPEM([]byte(caPEM))
		if err != nil {
			return nil, fmt.Errorf("parse ca: %w", err)
		}
		chain = append(chain, ca...)
	}
	return pkcs12.Modern.Encode(key, certs[0], chain, password)
}

// parseTrusted junta todos los certificados de los PEMs, deduplicados por fingerprint
// y ordenados por fingerprint.
func parseTrusted(pems []string) ([]*x509.Certificate, []string, error) {
	byFP := map[string]*x509.Certificate{}
	for _, p := range pems {
		if p == "" {
			continue
		}
		certs, err := helpers.ParseCertificatesPEM([]byte(p))
		if err != nil {
			return nil, nil, fmt.Errorf("parse trusted cert: %w", err)
		}
		for _, c := range certs {
			byFP[tokens.Fingerprint(c.Raw)] = c
		}
	}
	fps := make([]string, 0, len(byFP))
	for fp := range byFP {
		fps = append(fps, fp)
	}
	sort.Strings(fps)
	out := make([]*x509.Certificate, 0, len(fps))
	for _, fp := range fps {
		out = append(out, byFP[fp])
	}
	return out, fps, nil
}

func encodeTruststore(certs []*x509.Certificate, password string) ([]byte, error) {
	return pkcs12.Modern.EncodeTrustStore(certs, password)
}
