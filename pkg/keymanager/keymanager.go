// Package keymanager derives validator/bundler addresses from RSA public
// keys and signs/verifies receipts with RSA-PSS over SHA-256, the scheme
// bundlers and validators use to authenticate co-signed receipts.
package keymanager

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
)

// addressEncoding matches the bundler's own address derivation: unpadded
// base64url over the SHA-256 digest of the RSA modulus bytes.
var addressEncoding = base64.RawURLEncoding

// minValidatorKeyBits is the smallest RSA modulus size accepted for the
// validator's own signing key. A 2048-bit key is rejected; production
// deployments use 4096-bit keys.
const minValidatorKeyBits = 4096

// pssOptions fixes the PSS salt length to the digest length, matching the
// signature scheme bundlers and validators both sign and verify against.
var pssOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}

// KeyManager signs receipts as the validator and verifies signatures
// produced by either the bundler or another validator.
type KeyManager interface {
	// ValidatorAddress returns this validator's own address.
	ValidatorAddress() string
	// BundlerAddress returns the address of the bundler this validator cosigns for.
	BundlerAddress() string
	// ValidatorSign signs message with the validator's private key.
	ValidatorSign(message []byte) ([]byte, error)
	// VerifyBundlerSignature checks a signature against the bundler's public key.
	VerifyBundlerSignature(message, signature []byte) bool
	// VerifyValidatorSignature checks a signature against an arbitrary validator's public key.
	VerifyValidatorSignature(pub *rsa.PublicKey, message, signature []byte) bool
}

// InMemoryKeyManager holds the validator's private key and the bundler's
// public key entirely in memory.
type InMemoryKeyManager struct {
	validatorKey    *rsa.PrivateKey
	validatorAddr   string
	bundlerPub      *rsa.PublicKey
	bundlerAddr     string
}

// New builds an InMemoryKeyManager from the validator's private key and the
// bundler's public key.
func New(validatorKey *rsa.PrivateKey, bundlerPub *rsa.PublicKey) (*InMemoryKeyManager, error) {
	if validatorKey == nil {
		return nil, fmt.Errorf("validator private key is required")
	}
	if bundlerPub == nil {
		return nil, fmt.Errorf("bundler public key is required")
	}
	if validatorKey.N.BitLen() < minValidatorKeyBits {
		return nil, fmt.Errorf("validator key must be at least %d bits, got %d", minValidatorKeyBits, validatorKey.N.BitLen())
	}

	return &InMemoryKeyManager{
		validatorKey:  validatorKey,
		validatorAddr: AddressFromPublicKey(&validatorKey.PublicKey),
		bundlerPub:    bundlerPub,
		bundlerAddr:   AddressFromPublicKey(bundlerPub),
	}, nil
}

// AddressFromPublicKey derives an address from an RSA public key's modulus.
func AddressFromPublicKey(pub *rsa.PublicKey) string {
	digest := sha256.Sum256(pub.N.Bytes())
	return addressEncoding.EncodeToString(digest[:])
}

// ValidatorAddress implements KeyManager.
func (k *InMemoryKeyManager) ValidatorAddress() string { return k.validatorAddr }

// BundlerAddress implements KeyManager.
func (k *InMemoryKeyManager) BundlerAddress() string { return k.bundlerAddr }

// ValidatorSign signs message with RSA-PSS/SHA-256. Signing failures are
// not expected in normal operation (an undersized key is rejected by New
// before any signing happens), so callers should treat
// an error here as fatal to the request being signed.
func (k *InMemoryKeyManager) ValidatorSign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPSS(rand.Reader, k.validatorKey, crypto.SHA256, digest[:], pssOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return sig, nil
}

// VerifyBundlerSignature checks signature against the configured bundler
// public key. Any verification error is treated as an invalid signature.
func (k *InMemoryKeyManager) VerifyBundlerSignature(message, signature []byte) bool {
	return verify(k.bundlerPub, message, signature)
}

// VerifyValidatorSignature checks signature against an arbitrary
// validator's public key, used when validating a cosigner's response.
func (k *InMemoryKeyManager) VerifyValidatorSignature(pub *rsa.PublicKey, message, signature []byte) bool {
	return verify(pub, message, signature)
}

func verify(pub *rsa.PublicKey, message, signature []byte) bool {
	if pub == nil {
		return false
	}
	digest := sha256.Sum256(message)
	err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], signature, pssOptions)
	return err == nil
}

// LoadOrGenerate loads a PEM-encoded RSA private key from path, generating
// and persisting a new 4096-bit (minValidatorKeyBits) key if the file does
// not exist.
func LoadOrGenerate(path string) (*rsa.PrivateKey, error) {
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat key file %s: %w", path, err)
	}

	key, err := rsa.GenerateKey(rand.Reader, minValidatorKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate validator key: %w", err)
	}
	if err := save(path, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Load reads a PEM-encoded PKCS#1 RSA private key from path.
func Load(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key in %s: %w", path, err)
	}
	return key, nil
}

func save(path string, key *rsa.PrivateKey) error {
	if err := os.WriteFile(path, EncodePrivateKeyPEM(key), 0o600); err != nil {
		return fmt.Errorf("failed to write key file %s: %w", path, err)
	}
	return nil
}

// GenerateKey generates a new RSA private key of the given bit size,
// exported for CLIs that mint a new wallet outside of LoadOrGenerate's
// fixed validator key size.
func GenerateKey(bits int) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %d-bit key: %w", bits, err)
	}
	return key, nil
}

// EncodePrivateKeyPEM encodes key as a PKCS#1 PEM block, the same
// encoding LoadOrGenerate persists to disk.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) []byte {
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	return pem.EncodeToMemory(block)
}

// ParsePrivateKeyPEM parses a PEM-encoded PKCS#1 RSA private key from raw
// bytes, used by CLIs that read a wallet file or stdin directly rather
// than through Load's fixed file path.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in private key data")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

// ParsePublicKeyPEM parses a PEM-encoded PKIX RSA public key, as served by
// the bundler's /pubkey endpoint.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in public key data")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return rsaPub, nil
}
