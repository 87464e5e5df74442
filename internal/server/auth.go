package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/iwvelando/premium-engine/internal/config"
	"github.com/iwvelando/premium-engine/pkg/constants"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var errUnauthorized = errors.New("missing or invalid credentials")

// Claims are the bearer token claims accepted by the API.
type Claims struct {
	Partner string `json:"partner,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 bearer token for subject, valid for ttl.
func IssueToken(secret, issuer, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := &Claims{
		Partner: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// HashAPIKey returns the bcrypt hash of key, for the apiKeyHashes setting.
func HashAPIKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("api key is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(hash), nil
}

type authenticator struct {
	keyHashes [][]byte
	secret    []byte
	issuer    string
	logger    *zap.Logger
}

func newAuthenticator(cfg config.AuthConfig, logger *zap.Logger) *authenticator {
	a := &authenticator{issuer: cfg.JWTIssuer, logger: logger}
	for _, h := range cfg.APIKeyHashes {
		a.keyHashes = append(a.keyHashes, []byte(h))
	}
	if cfg.JWTSecret != "" {
		a.secret = []byte(cfg.JWTSecret)
	}
	return a
}

func (a *authenticator) enabled() bool {
	return len(a.keyHashes) > 0 || a.secret != nil
}

// authenticate returns the caller identity, or errUnauthorized.
func (a *authenticator) authenticate(r *http.Request) (string, error) {
	if key := r.Header.Get(constants.APIKeyHeader); key != "" && len(a.keyHashes) > 0 {
		for _, h := range a.keyHashes {
			if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
				return "api-key", nil
			}
		}
		return "", errUnauthorized
	}

	header := r.Header.Get("Authorization")
	if a.secret == nil || !strings.HasPrefix(header, "Bearer ") {
		return "", errUnauthorized
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), &Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", errUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return "", errUnauthorized
	}
	return claims.Subject, nil
}

func (a *authenticator) middleware(next http.Handler) http.Handler {
	if !a.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := a.authenticate(r)
		if err != nil {
			a.logger.Warn("rejected request",
				zap.String("op", "server.authenticate"),
				zap.String("path", r.URL.Path),
				zap.Error(err))
			w.Header().Set("WWW-Authenticate", `Bearer realm="premium-engine"`)
			writeJSON(a.logger, w, http.StatusUnauthorized, errorResponse{Error: errUnauthorized.Error()})
			return
		}
		a.logger.Debug("authenticated request",
			zap.String("op", "server.authenticate"),
			zap.String("caller", caller),
			zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}
