package rpcutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const RoleHost = "host"

// HostClaims identify the operator running a session.
type HostClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type hostKey struct{}

// HostFromContext returns the host claims attached by HostGuard, if any.
func HostFromContext(ctx context.Context) (*HostClaims, bool) {
	c, ok := ctx.Value(hostKey{}).(*HostClaims)
	return c, ok
}

// IssueHostToken signs an HS256 host token.
func IssueHostToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &HostClaims{
		Role: RoleHost,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign host token: %w", err)
	}
	return signed, nil
}

func parseHostToken(token, secret string) (*HostClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &HostClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*HostClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Role != RoleHost {
		return nil, fmt.Errorf("role %q is not allowed", claims.Role)
	}
	return claims, nil
}

// HostGuard returns an interceptor that requires a host token on the listed procedures.
// An empty secret disables the check.
func HostGuard(secret string, procedures ...string) connect.UnaryInterceptorFunc {
	guarded := make(map[string]struct{}, len(procedures))
	for _, p := range procedures {
		guarded[p] = struct{}{}
	}
	if secret == "" {
		log.Warn().Msg("JWT_SECRET is empty, host procedures are unauthenticated")
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if _, ok := guarded[req.Spec().Procedure]; !ok || secret == "" {
				return next(ctx, req)
			}
			token := bearerToken(req.Header())
			if token == "" {
				return nil, unauthenticated(errors.New("missing host token"))
			}
			claims, err := parseHostToken(token, secret)
			if err != nil {
				log.Debug().Err(err).Str("procedure", req.Spec().Procedure).Msg("rejected host token")
				return nil, unauthenticated(errors.New("invalid host token"))
			}
			return next(context.WithValue(ctx, hostKey{}, claims), req)
		}
	}
}

func unauthenticated(err error) *connect.Error {
	cerr := connect.NewError(connect.CodeUnauthenticated, err)
	cerr.Meta().Set(ErrorKindHeader, "unauthenticated")
	return cerr
}
