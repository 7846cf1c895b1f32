package keystore

import (
	"fmt"
	"time"

	"github.com/cloudflare/cfssl/config"
	"github.com/cloudflare/cfssl/csr"
	"github.com/cloudflare/cfssl/helpers"
	"github.com/cloudflare/cfssl/initca"
	"github.com/cloudflare/cfssl/signer"
	"github.com/cloudflare/cfssl/signer/local"
)

const year = (24 * time.Hour) * 365

// Issued es el material PEM de un certificado emitido.
type Issued struct {
	Cert   string
	Key    string
	CACert string
}

// Issuer emite un CA propio y un certificado hoja firmado por él.
type Issuer interface {
	Issue(cn string, hosts []string) (Issued, error)
}

// CFSSLIssuer emite con cfssl: CA con initca y hoja con el signer local.
type CFSSLIssuer struct {
	KeyAlgo    string // ecdsa | rsa
	KeySize    int
	CAExpiry   time.Duration
	CertExpiry time.Duration
	Usages     []string
}

// DefaultIssuer: ECDSA P-256, 10 años, server + client auth (el broker usa la misma
// hoja para listeners y para mTLS contra Zookeeper).
func DefaultIssuer() *CFSSLIssuer {
	return &CFSSLIssuer{
		KeyAlgo:    "ecdsa",
		KeySize:    256,
		CAExpiry:   year * 10,
		CertExpiry: year * 10,
		Usages:     []string{"signing", "key encipherment", "server auth", "client auth"},
	}
}

func (i *CFSSLIssuer) keyRequest() *csr.KeyRequest {
	return &csr.KeyRequest{A: i.KeyAlgo, S: i.KeySize}
}

func (i *CFSSLIssuer) Issue(cn string, hosts []string) (Issued, error) {
	caPEM, _, caKeyPEM, err := initca.New(&csr.CertificateRequest{
		CN:         cn + " CA",
		KeyRequest: i.keyRequest(),
		CA:         &csr.CAConfig{Expiry: i.CAExpiry.String()},
	})
	if err != nil {
		return Issued{}, fmt.Errorf("generate ca: %w", err)
	}

	caCert, err := helpers.ParseCertificatePEM(caPEM)
	if err != nil {
		return Issued{}, fmt.Errorf("parse ca: %w", err)
	}
	caKey, err := helpers.ParsePrivateKeyPEM(caKeyPEM)
	if err != nil {
		return Issued{}, fmt.Errorf("parse ca key: %w", err)
	}

	csrPEM, keyPEM, err := csr.ParseRequest(&csr.CertificateRequest{
		CN:         cn,
		Hosts:      hosts,
		KeyRequest: i.keyRequest(),
	})
	if err != nil {
		return Issued{}, fmt.Errorf("generate csr: %w", err)
	}

	s, err := local.NewSigner(caKey, caCert, signer.DefaultSigAlgo(caKey), &config.Signing{
		Default: &config.SigningProfile{
			Usage:        i.Usages,
			Expiry:       i.CertExpiry,
			ExpiryString: i.CertExpiry.String(),
		},
	})
	if err != nil {
		return Issued{}, fmt.Errorf("create signer: %w", err)
	}

	certPEM, err := s.Sign(signer.SignRequest{Hosts: hosts, Request: string(csrPEM)})
	if err != nil {
		return Issued{}, fmt.Errorf("sign: %w", err)
	}

	return Issued{Cert: string(certPEM), Key: string(keyPEM), CACert: string(caPEM)}, nil
}
