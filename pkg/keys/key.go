// Package keys manages the RSA signing key material: generation, PEM
// load/save, rotation, and export of the public halves as a JWK set.
package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// MinRSAKeySize is the smallest accepted RSA modulus in bits
const MinRSAKeySize = 2048

// SigningAlgorithm is the JWS algorithm used for all issued tokens
const SigningAlgorithm = "RS256"

// SigningKey is one RSA key pair plus its key id. The private half never
// leaves this package.
type SigningKey struct {
	KID        string
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	createdAt  time.Time
}

// Private returns the private key for signing
func (k *SigningKey) Private() *rsa.PrivateKey { return k.privateKey }

// Public returns the public key for verification
func (k *SigningKey) Public() *rsa.PublicKey { return k.publicKey }

// Manager holds the current signing key behind an atomically-swappable
// reference so rotation is a single consistent swap for in-flight
// verifications. Retired public keys stay published until pruned, so
// verifiers never see a signature they cannot check.
type Manager struct {
	current atomic.Pointer[SigningKey]

	mu      sync.Mutex
	retired []*SigningKey
}

// NewManager creates an empty Manager; a key must be generated or loaded
// before tokens can be signed.
func NewManager() *Manager {
	return &Manager{}
}

// GenerateKeyPair generates a new RSA key pair and makes it current. A
// previously current key is retired, keeping its public half published.
func (m *Manager) GenerateKeyPair(bits int) error {
	if bits < MinRSAKeySize {
		return fmt.Errorf("RSA key size %d is below minimum required %d bits", bits, MinRSAKeySize)
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return fmt.Errorf("failed to generate RSA key pair: %w", err)
	}
	return m.install(privateKey)
}

// Rotate is an alias for GenerateKeyPair that reads as an operation
func (m *Manager) Rotate(bits int) error {
	return m.GenerateKeyPair(bits)
}

// LoadPrivateKey loads a PKCS#1 private key from a PEM file and makes it
// current
func (m *Manager) LoadPrivateKey(keyPath string) error {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}

	block, _ := pem.Decode(keyData)
	if block == nil {
		return fmt.Errorf("failed to decode PEM block")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}
	if privateKey.N.BitLen() < MinRSAKeySize {
		return fmt.Errorf("RSA key size %d is below minimum required %d bits", privateKey.N.BitLen(), MinRSAKeySize)
	}
	return m.install(privateKey)
}

func (m *Manager) install(privateKey *rsa.PrivateKey) error {
	kid, err := keyID(&privateKey.PublicKey)
	if err != nil {
		return err
	}
	key := &SigningKey{
		KID:        kid,
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		createdAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old := m.current.Load(); old != nil {
		m.retired = append(m.retired, old)
	}
	m.current.Store(key)
	return nil
}

// keyID derives a stable key id from the SHA-256 JWK thumbprint
func keyID(pub *rsa.PublicKey) (string, error) {
	jwkKey, err := jwk.FromRaw(pub)
	if err != nil {
		return "", fmt.Errorf("failed to build JWK for key id: %w", err)
	}
	thumb, err := jwkKey.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute key thumbprint: %w", err)
	}
	return hex.EncodeToString(thumb[:16]), nil
}

// Current returns the current signing key
func (m *Manager) Current() (*SigningKey, error) {
	key := m.current.Load()
	if key == nil {
		return nil, fmt.Errorf("no signing key available")
	}
	return key, nil
}

// VerificationKey returns the public key for the given kid, searching the
// current key first and then the retired set.
func (m *Manager) VerificationKey(kid string) (*rsa.PublicKey, bool) {
	if key := m.current.Load(); key != nil && key.KID == kid {
		return key.publicKey, true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range m.retired {
		if key.KID == kid {
			return key.publicKey, true
		}
	}
	return nil, false
}

// PublicKeySet exports the current and retired public keys as a JWK set.
// Only public material is included; the set supports more than one entry so
// rotation needs no contract change.
func (m *Manager) PublicKeySet() (jwk.Set, error) {
	set := jwk.NewSet()

	add := func(key *SigningKey) error {
		jwkKey, err := jwk.FromRaw(key.publicKey)
		if err != nil {
			return fmt.Errorf("failed to create public JWK: %w", err)
		}
		if err := jwkKey.Set(jwk.KeyIDKey, key.KID); err != nil {
			return fmt.Errorf("failed to set key id: %w", err)
		}
		if err := jwkKey.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
			return fmt.Errorf("failed to set key algorithm: %w", err)
		}
		if err := jwkKey.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
			return fmt.Errorf("failed to set key usage: %w", err)
		}
		return set.AddKey(jwkKey)
	}

	current := m.current.Load()
	if current == nil {
		return nil, fmt.Errorf("no signing key available")
	}
	if err := add(current); err != nil {
		return nil, err
	}

	m.mu.Lock()
	retired := make([]*SigningKey, len(m.retired))
	copy(retired, m.retired)
	m.mu.Unlock()

	for _, key := range retired {
		if err := add(key); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// PruneRetired drops retired keys older than maxAge. maxAge should be at
// least the longest token TTL issued under the old key.
func (m *Manager) PruneRetired(maxAge time.Duration) {
	cutoff := time.Now().UTC().Add(-maxAge)
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.retired[:0]
	for _, key := range m.retired {
		if key.createdAt.After(cutoff) {
			kept = append(kept, key)
		}
	}
	m.retired = kept
}

// SavePrivateKey saves the current private key to a PEM file
func (m *Manager) SavePrivateKey(keyPath string) error {
	key := m.current.Load()
	if key == nil {
		return fmt.Errorf("no private key available")
	}

	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key.privateKey),
	})

	if err := os.WriteFile(keyPath, privateKeyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key file: %w", err)
	}
	return nil
}

// SavePublicKey saves the current public key to a PEM file
func (m *Manager) SavePublicKey(keyPath string) error {
	key := m.current.Load()
	if key == nil {
		return fmt.Errorf("no public key available")
	}

	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	publicKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(key.publicKey),
	})

	if err := os.WriteFile(keyPath, publicKeyPEM, 0644); err != nil {
		return fmt.Errorf("failed to write public key file: %w", err)
	}
	return nil
}
