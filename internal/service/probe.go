package service

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Probe verifica que el broker acepte conexiones Kafka.
type Probe struct {
	Seeds   []string
	TLS     *tls.Config
	Timeout time.Duration
}

// Ping abre un cliente contra Seeds y espera una respuesta de metadata.
func (p Probe) Ping(ctx context.Context) error {
	if len(p.Seeds) == 0 {
		return errors.New("probe: no seed brokers")
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(p.Seeds...),
		kgo.ClientID("kafka-broker-probe"),
		kgo.DialTimeout(timeout),
		kgo.RequestRetries(0),
	}
	if p.TLS != nil {
		opts = append(opts, kgo.DialTLSConfig(p.TLS))
	}
	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return fmt.Errorf("probe client: %w", err)
	}
	defer cl.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := cl.Ping(ctx); err != nil {
		return fmt.Errorf("probe %v: %w", p.Seeds, err)
	}
	return nil
}

// TLSConfig arma la configuración de cliente que confía en los CAs dados.
func TLSConfig(caPEMs ...string) (*tls.Config, error) {
	pool := x509.NewCertPool()
	for _, pem := range caPEMs {
		if pem == "" {
			continue
		}
		if !pool.AppendCertsFromPEM([]byte(pem)) {
			return nil, errors.New("probe: invalid CA PEM")
		}
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
