// Package auth resolves the caller of a request to a verified user id.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Identity struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
}

// Verifier authenticates an incoming request.
type Verifier interface {
	Verify(ctx context.Context, r *http.Request) (Identity, error)
}

// HeaderVerifier trusts X-User-ID and X-Username. It is only meant for the
// local environment or behind a gateway that sets those headers.
type HeaderVerifier struct{}

func (HeaderVerifier) Verify(_ context.Context, r *http.Request) (Identity, error) {
	id := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if id == "" {
		return Identity{}, ErrUnauthenticated
	}
	name := strings.TrimSpace(r.Header.Get("X-Username"))
	if name == "" {
		name = id
	}
	return Identity{UserID: id, Username: name}, nil
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
