package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var ErrUnknownKey = errors.New("unknown signing key")

type jsonWebKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeySet caches the RSA signing keys published at a JWKS endpoint. Unknown
// key ids trigger at most one concurrent refresh, and refresh attempts,
// failed ones included, are spaced at least minRefresh apart.
type KeySet struct {
	url          string
	httpClient   *http.Client
	minRefresh   time.Duration
	fetchTimeout time.Duration

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	attempted time.Time
	lastErr   error

	group singleflight.Group
}

func NewKeySet(url string) *KeySet {
	return &KeySet{
		url:          url,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		minRefresh:   30 * time.Second,
		fetchTimeout: 10 * time.Second,
		keys:         make(map[string]*rsa.PublicKey),
	}
}

func (k *KeySet) lookup(kid string) (*rsa.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[kid]
	return key, ok
}

func (k *KeySet) lastAttempt() (time.Time, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.attempted, k.lastErr
}

func (k *KeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := k.lookup(kid); ok {
		return key, nil
	}

	v, err, _ := k.group.Do(kid, func() (any, error) {
		if key, ok := k.lookup(kid); ok {
			return key, nil
		}
		if attempted, lastErr := k.lastAttempt(); !attempted.IsZero() && time.Since(attempted) < k.minRefresh {
			if lastErr != nil {
				return nil, fmt.Errorf("%w %q: %w", ErrUnknownKey, kid, lastErr)
			}
			return nil, fmt.Errorf("%w %q", ErrUnknownKey, kid)
		}

		// Shared by every waiter: detached from the first caller's cancellation.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.fetchTimeout)
		defer cancel()
		err := k.refresh(fetchCtx)

		k.mu.Lock()
		k.attempted = time.Now()
		k.lastErr = err
		k.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if key, ok := k.lookup(kid); ok {
			return key, nil
		}
		return nil, fmt.Errorf("%w %q", ErrUnknownKey, kid)
	})
	if err != nil {
		return nil, err
	}
	return v.(*rsa.PublicKey), nil
}

func (k *KeySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return err
	}
	resp, err := k.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("fetch jwks: %d %s", resp.StatusCode, string(body))
	}

	var doc struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, jwk := range doc.Keys {
		if jwk.Kty != "RSA" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		pub, err := jwk.rsaKey()
		if err != nil {
			return fmt.Errorf("jwks key %q: %w", jwk.Kid, err)
		}
		keys[jwk.Kid] = pub
	}

	k.mu.Lock()
	k.keys = keys
	k.mu.Unlock()
	return nil
}

func (j jsonWebKey) rsaKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(j.N)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(j.E)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(e)
	if len(n) == 0 || !exp.IsInt64() || exp.Int64() < 3 || exp.Int64() > 1<<31-1 {
		return nil, errors.New("malformed rsa key")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
