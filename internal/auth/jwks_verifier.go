package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/videoflix/backend/internal/config"
)

const discoveryPath = "/.well-known/openid-configuration"

var ErrDiscovery = errors.New("oidc discovery failed")

// asymmetric algorithms only; a JWKS never holds the HMAC secret
var jwksAlgorithms = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "PS256"}

// JWKSVerifier accepts tokens signed by an OIDC issuer's published keys.
// The key set is refreshed in the background until Close.
type JWKSVerifier struct {
	keys    keyfunc.Keyfunc
	options []jwt.ParserOption
	stop    context.CancelFunc
}

// NewJWKSVerifier looks up the issuer's jwks_uri and loads its keys. ctx
// bounds the discovery and the first key fetch only.
func NewJWKSVerifier(ctx context.Context, cfg *config.AuthConfig) (*JWKSVerifier, error) {
	issuer := strings.TrimSuffix(cfg.JWKSIssuer, "/")
	if issuer == "" {
		return nil, fmt.Errorf("%w: issuer is required", ErrDiscovery)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	jwksURL, err := discoverJWKSURL(lookupCtx, issuer)
	if err != nil {
		return nil, err
	}

	refreshCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	keys, err := keyfunc.NewDefaultCtx(refreshCtx, []string{jwksURL})
	if err != nil {
		stop()
		return nil, fmt.Errorf("load key set %s: %w", jwksURL, err)
	}

	options := []jwt.ParserOption{
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods(jwksAlgorithms),
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	return &JWKSVerifier{keys: keys, options: options, stop: stop}, nil
}

type discoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// discoverJWKSURL reads the discovery document. Its issuer must match the
// configured one, otherwise tokens could never validate.
func discoverJWKSURL(ctx context.Context, issuer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuer+discoveryPath, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrDiscovery, resp.StatusCode)
	}

	var doc discoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	switch {
	case doc.JWKSURI == "":
		return "", fmt.Errorf("%w: no jwks_uri", ErrDiscovery)
	case strings.TrimSuffix(doc.Issuer, "/") != issuer:
		return "", fmt.Errorf("%w: document is for issuer %q", ErrDiscovery, doc.Issuer)
	}
	return doc.JWKSURI, nil
}

func (v *JWKSVerifier) Validate(tokenString string) (*Claims, error) {
	return parseAccessToken(tokenString, v.keys.Keyfunc, v.options...)
}

// Close stops the background key refresh.
func (v *JWKSVerifier) Close() error {
	v.stop()
	return nil
}
