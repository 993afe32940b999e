package backendstub

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v4"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwk"
)

var (
	ErrFailedToSignJWT      = errors.New("failed to sign JWT")
	ErrFailedToCastKey      = errors.New("failed to cast key to jwk.Key")
	ErrNoSuitablePrivateKey = errors.New("no suitable private key found")
	ErrFailedToGetRawKey    = errors.New("failed to get raw key")
)

const (
	privateKeyPrefix = "private:"
	publicKeyPrefix  = "public:"
)

// GenerateKeySet creates n RSA signing keys with "private:key-N" ids.
func GenerateKeySet(n int) (jwk.Set, error) {
	if n < 1 {
		n = 1
	}

	set := jwk.NewSet()
	for i := 0; i < n; i++ {
		raw, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("generate rsa key: %w", err)
		}

		key, err := jwk.New(raw)
		if err != nil {
			return nil, fmt.Errorf("wrap rsa key: %w", err)
		}
		if err := key.Set(jwk.KeyIDKey, fmt.Sprintf("%skey-%d", privateKeyPrefix, i)); err != nil {
			return nil, err
		}
		if err := key.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
			return nil, err
		}
		if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
			return nil, err
		}
		set.Add(key)
	}
	return set, nil
}

// PublicKeySet derives the verification set served on the JWKS endpoint.
// Key ids swap the private prefix for the public one.
func PublicKeySet(ctx context.Context, keys jwk.Set) (jwk.Set, error) {
	public, err := jwk.PublicSetOf(keys)
	if err != nil {
		return nil, fmt.Errorf("derive public keys: %w", err)
	}

	for it := public.Iterate(ctx); it.Next(ctx); {
		key, ok := it.Pair().Value.(jwk.Key)
		if !ok {
			return nil, ErrFailedToCastKey
		}
		kid := strings.TrimPrefix(key.KeyID(), privateKeyPrefix)
		if err := key.Set(jwk.KeyIDKey, publicKeyPrefix+kid); err != nil {
			return nil, err
		}
	}
	return public, nil
}

// signingKey is a key from the set resolved to its raw private form.
type signingKey struct {
	kid    string
	method jwt.SigningMethod
	raw    any
}

// signer signs tokens with the private keys of a set, rotating between them.
type signer struct {
	keys   []signingKey
	logger *slog.Logger
	mu     sync.Mutex
	next   int
}

type Signer interface {
	Sign(claims jwt.MapClaims) (string, error)
}

// NewJWTSigner creates a signer over keys. Keys without private material
// are skipped; at least one must remain.
func NewJWTSigner(keys jwk.Set, logger *slog.Logger) (Signer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	resolved, err := signingKeys(context.Background(), keys)
	if err != nil {
		return nil, err
	}
	return &signer{keys: resolved, logger: logger}, nil
}

// Sign signs claims with the next key in rotation.
func (s *signer) Sign(claims jwt.MapClaims) (string, error) {
	s.mu.Lock()
	key := s.keys[s.next]
	s.next = (s.next + 1) % len(s.keys)
	s.mu.Unlock()

	token := jwt.NewWithClaims(key.method, claims)
	token.Header["kid"] = key.kid

	signed, err := token.SignedString(key.raw)
	if err != nil {
		s.logger.Error("sign token", "kid", key.kid, "error", err)
		return "", ErrFailedToSignJWT
	}
	return signed, nil
}

// signingKeys keeps the keys whose raw form is an RSA or EC private key, in
// set order. A key without an id is named after its position.
func signingKeys(ctx context.Context, set jwk.Set) ([]signingKey, error) {
	var out []signingKey

	for it := set.Iterate(ctx); it.Next(ctx); {
		key, ok := it.Pair().Value.(jwk.Key)
		if !ok {
			return nil, ErrFailedToCastKey
		}

		var raw any
		if err := key.Raw(&raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFailedToGetRawKey, key.KeyID(), err)
		}

		var method jwt.SigningMethod
		switch raw.(type) {
		case *rsa.PrivateKey:
			method = jwt.SigningMethodRS256
		case *ecdsa.PrivateKey:
			method = jwt.SigningMethodES256
		default:
			continue
		}

		kid := key.KeyID()
		if kid == "" {
			kid = fmt.Sprintf("%skey-%d", privateKeyPrefix, len(out))
		}
		out = append(out, signingKey{kid: kid, method: method, raw: raw})
	}

	if len(out) == 0 {
		return nil, ErrNoSuitablePrivateKey
	}
	return out, nil
}
