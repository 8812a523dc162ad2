package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type callerKey struct{}

var (
	errNoSecret     = errors.New("token verification is not configured")
	errInvalidToken = errors.New("invalid or expired token")
)

// Auth resolves the caller's account address from an HS256 bearer token
// (the "sub" claim). Requests without a token pass through anonymous; a
// token that does not verify is rejected.
func Auth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			caller, err := verifyToken(secret, raw)
			tr := traceFrom(r.Context())
			if err != nil {
				if tr != nil {
					tr.authErr = err.Error()
				}
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
				return
			}
			if tr != nil {
				tr.caller = caller
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
		})
	}
}

// CallerFrom returns the authenticated account address, if any.
func CallerFrom(ctx context.Context) (string, bool) {
	c, ok := ctx.Value(callerKey{}).(string)
	return c, ok && c != ""
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	t := strings.TrimSpace(h[7:])
	return t, t != ""
}

func verifyToken(secret []byte, raw string) (string, error) {
	if len(secret) == 0 {
		return "", errNoSecret
	}
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid || claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}
