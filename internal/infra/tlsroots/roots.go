package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// ErrNoCertsFound reports PEM input without a single CERTIFICATE block.
var ErrNoCertsFound = errors.New("tlsroots: no certificates found in PEM data")

// Pool is a set of trusted CA certificates used when dialing peer
// receptionists over HTTPS. A nil *Pool stands for the system roots.
type Pool struct {
	roots *x509.CertPool
}

// NewPool starts from the system roots, or from nothing when the platform
// does not expose them.
func NewPool() *Pool {
	roots, err := x509.SystemCertPool()
	if err != nil {
		roots = x509.NewCertPool()
	}
	return &Pool{roots: roots}
}

// NewEmptyPool starts from nothing.
func NewEmptyPool() *Pool { return &Pool{roots: x509.NewCertPool()} }

// LoadPool extends the system roots with caFile. It returns nil for an
// empty path.
func LoadPool(caFile string) (*Pool, error) {
	if caFile == "" {
		return nil, nil
	}
	p := NewPool()
	if err := p.AddCertFile(caFile); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pool) AddCertFile(path string) error {
	data, err := os.ReadFile(path)
	if err == nil {
		err = p.AddCertPEM(data)
	}
	if err != nil {
		return fmt.Errorf("tlsroots: load %s: %w", path, err)
	}
	return nil
}

// AddCertPEM trusts every CERTIFICATE block in data. Other block types are
// skipped; a block that fails to parse aborts the load.
func (p *Pool) AddCertPEM(data []byte) error {
	n := 0
	for block, rest := pem.Decode(data); block != nil; block, rest = pem.Decode(rest) {
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("parse certificate %d: %w", n+1, err)
		}
		p.roots.AddCert(cert)
		n++
	}
	if n == 0 {
		return ErrNoCertsFound
	}
	return nil
}

func (p *Pool) Pool() *x509.CertPool { return p.roots }

// ClientTLSConfig is the config the forwarder dials peers with.
func (p *Pool) ClientTLSConfig() *tls.Config {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if p != nil {
		cfg.RootCAs = p.roots
	}
	return cfg
}
