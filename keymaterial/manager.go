package keymaterial

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/medarchive/content-pipeline/interfaces"
)

// MinimumKeyBits is the provider-mandated minimum RSA modulus size.
const MinimumKeyBits = 2048

// DefaultKeyBits is the modulus size used when none is configured.
const DefaultKeyBits = 4096

// PrivateKeySecretName returns the secret store name for the private key.
func PrivateKeySecretName(baseName string) string {
	return baseName + "-private-key"
}

// PublicKeyParamName returns the parameter store name for the public key PEM.
func PublicKeyParamName(baseName string) string {
	return "/" + baseName + "/public-key"
}

// JWKSParamName returns the parameter store name for the JWKS document.
func JWKSParamName(baseName string) string {
	return "/" + baseName + "/jwks"
}

// Manager generates key material and persists it to the external stores.
type Manager struct {
	baseName string
	bits     int
	secrets  interfaces.SecretStore
	params   interfaces.ParameterStore
	log      *slog.Logger
}

// Result reports where the generated material was stored. The key ID equals
// the base identifier and is what the provider registration form asks for.
type Result struct {
	KeyID            string
	PrivateKeySecret string
	PublicKeyParam   string
	JWKSParam        string
}

// New creates a manager. bits of 0 selects DefaultKeyBits; anything below
// MinimumKeyBits is rejected.
func New(baseName string, bits int, secrets interfaces.SecretStore, params interfaces.ParameterStore, log *slog.Logger) (*Manager, error) {
	if baseName == "" {
		return nil, errors.New("base identifier is required")
	}
	if bits == 0 {
		bits = DefaultKeyBits
	}
	if bits < MinimumKeyBits {
		return nil, fmt.Errorf("key size %d below provider minimum of %d bits", bits, MinimumKeyBits)
	}
	return &Manager{
		baseName: baseName,
		bits:     bits,
		secrets:  secrets,
		params:   params,
		log:      log,
	}, nil
}

// GenerateAndStore generates a fresh RSA key pair, derives the JWKS, and
// writes all three artifacts to their stores, overwriting prior material.
// Any failure is fatal for the rotation; nothing is rolled back because the
// writes are plain overwrites and re-running recovers a consistent state.
func (m *Manager) GenerateAndStore(ctx context.Context) (Result, error) {
	m.log.Info("Generating RSA key pair", slog.Int("bits", m.bits))

	key, err := rsa.GenerateKey(rand.Reader, m.bits)
	if err != nil {
		return Result{}, fmt.Errorf("generating RSA key: %w", err)
	}

	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return Result{}, fmt.Errorf("encoding public key: %w", err)
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicDER,
	})

	jwksJSON, err := DeriveJWKS(&key.PublicKey, m.baseName)
	if err != nil {
		return Result{}, fmt.Errorf("deriving JWKS: %w", err)
	}

	result := Result{
		KeyID:            m.baseName,
		PrivateKeySecret: PrivateKeySecretName(m.baseName),
		PublicKeyParam:   PublicKeyParamName(m.baseName),
		JWKSParam:        JWKSParamName(m.baseName),
	}

	if err := m.secrets.PutSecret(ctx, result.PrivateKeySecret, string(privatePEM)); err != nil {
		return Result{}, fmt.Errorf("%w: storing private key: %v", interfaces.ErrStore, err)
	}
	if err := m.params.PutParameter(ctx, result.PublicKeyParam, string(publicPEM)); err != nil {
		return Result{}, fmt.Errorf("%w: storing public key: %v", interfaces.ErrStore, err)
	}
	if err := m.params.PutParameter(ctx, result.JWKSParam, string(jwksJSON)); err != nil {
		return Result{}, fmt.Errorf("%w: storing JWKS: %v", interfaces.ErrStore, err)
	}

	m.log.Info("Key material stored",
		slog.String("key_id", result.KeyID),
		slog.String("private_key_secret", result.PrivateKeySecret),
		slog.String("jwks_param", result.JWKSParam))

	return result, nil
}

// DeriveJWKS builds the public key-set document for the given public key.
// The result is a pure function of the key and key ID: kty RSA, use sig,
// alg RS512, modulus and exponent base64url-encoded without padding.
func DeriveJWKS(pub *rsa.PublicKey, keyID string) ([]byte, error) {
	key, err := jwk.FromRaw(pub)
	if err != nil {
		return nil, fmt.Errorf("converting public key: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyUsageKey, string(jwk.ForSignature)); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS512); err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, err
	}

	return json.Marshal(set)
}

// LoadPrivateKey fetches and parses the stored private key PEM. Both PKCS#1
// and PKCS#8 encodings are accepted so material imported from elsewhere
// still loads.
func LoadPrivateKey(ctx context.Context, secrets interfaces.SecretStore, baseName string) (*rsa.PrivateKey, error) {
	value, err := secrets.GetSecret(ctx, PrivateKeySecretName(baseName))
	if err != nil {
		return nil, fmt.Errorf("%w: reading private key: %v", interfaces.ErrStore, err)
	}

	block, _ := pem.Decode([]byte(value))
	if block == nil {
		return nil, errors.New("stored private key is not valid PEM")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("stored private key is not RSA")
	}
	return key, nil
}
