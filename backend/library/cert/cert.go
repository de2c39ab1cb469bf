// Package cert keeps the server's self-signed PKCS#12 certificate usable.
package cert

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"quickshare/backend/common"
	"quickshare/backend/library/codec"
	"quickshare/backend/library/network"

	"software.sslmate.com/src/go-pkcs12"
)

const (
	CommonName     = "quickshare.local"
	ValidityPeriod = 3650 * 24 * time.Hour
	MinRemaining   = 7 * 24 * time.Hour
	rsaBits        = 2048
)

var ErrCertificate = errors.New("certificate failure")

type Manager struct {
	path     string
	password string
	hostname string
	now      func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithHostname(hostname string) Option {
	return func(m *Manager) { m.hostname = hostname }
}

// NewManager manages the certificate at path. The file password is derived
// from the AES key.
func NewManager(path string, key []byte, opts ...Option) *Manager {
	m := &Manager{
		path:     path,
		password: codec.KeyBase64URL(key),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.hostname == "" {
		m.hostname = network.LocalHostName()
	}
	return m
}

func (m *Manager) Path() string {
	return m.path
}

// EnsureCertificateExists regenerates the certificate unless the file on
// disk decodes and is valid for at least MinRemaining.
func (m *Manager) EnsureCertificateExists() error {
	if err := m.validate(); err == nil {
		common.SysLog("existing certificate is valid at " + m.path)
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		common.SysError("certificate validation failed: " + err.Error())
	}

	common.SysLog("no valid certificate found, generating new self-signed certificate")
	if err := m.generate(); err != nil {
		common.SysError("failed to generate certificate: " + err.Error())
		return fmt.Errorf("%w: %v", ErrCertificate, err)
	}
	common.SysLog("certificate generated at " + m.path)
	return nil
}

// LoadTLSCertificate decodes the certificate file for a TLS listener.
func (m *Manager) LoadTLSCertificate() (tls.Certificate, error) {
	key, leaf, err := m.decode()
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %v", ErrCertificate, err)
	}
	return tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

func (m *Manager) decode() (any, *x509.Certificate, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, nil, err
	}
	key, leaf, err := pkcs12.Decode(data, m.password)
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", m.path, err)
	}
	return key, leaf, nil
}

func (m *Manager) validate() error {
	_, leaf, err := m.decode()
	if err != nil {
		return err
	}
	now := m.now()
	switch {
	case leaf.NotBefore.After(now):
		return fmt.Errorf("certificate not valid before %s", leaf.NotBefore)
	case leaf.NotAfter.Before(now.Add(MinRemaining)):
		return fmt.Errorf("certificate expires at %s", leaf.NotAfter)
	case leaf.Subject.CommonName != CommonName:
		return fmt.Errorf("unexpected certificate subject %q", leaf.Subject.CommonName)
	}
	return nil
}

func (m *Manager) generate() error {
	key, err := rsa.GenerateKey(rand.Reader, rsaBits)
	if err != nil {
		return fmt.Errorf("generate rsa key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generate serial: %w", err)
	}

	now := m.now().UTC()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: CommonName},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(ValidityPeriod),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  false,
		DNSNames:              []string{m.hostname + ".local", CommonName, "localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1)},
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return fmt.Errorf("parse certificate: %w", err)
	}

	pfx, err := pkcs12.Modern.Encode(key, leaf, nil, m.password)
	if err != nil {
		return fmt.Errorf("encode pkcs12: %w", err)
	}
	return writeFileAtomic(m.path, pfx)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create certificate directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".server-*.pfx")
	if err != nil {
		return fmt.Errorf("create temp certificate file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write certificate: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close certificate: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace certificate: %w", err)
	}
	return nil
}
