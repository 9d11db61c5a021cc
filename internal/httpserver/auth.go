package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenCookie is the cookie the web client stores its session token in.
const tokenCookie = "token"

type viewerKey struct{}

// Claims are the JWT claims issued to signed-in readers. ID carries the user's
// id; tokens without it fall back to the subject.
type Claims struct {
	ID string `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 session tokens and resolves the viewer.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator returns an Authenticator for tokens signed with secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Sign issues a token for viewer that expires after ttl.
func (a *Authenticator) Sign(viewer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ID: viewer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   viewer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Viewer parses token and returns the viewer it names.
func (a *Authenticator) Viewer(token string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if claims.ID != "" {
		return claims.ID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", errors.New("token names no user")
}

// Required rejects requests without a valid token.
func (a *Authenticator) Required(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "not authorized, please log in")
			return
		}
		viewer, err := a.Viewer(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "not authorized, token failed")
			return
		}
		next(w, r.WithContext(withViewer(r.Context(), viewer)))
	}
}

// Optional resolves the viewer when a valid token is present and otherwise
// lets the request through anonymously.
func (a *Authenticator) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := requestToken(r); token != "" {
			if viewer, err := a.Viewer(token); err == nil {
				r = r.WithContext(withViewer(r.Context(), viewer))
			}
		}
		next(w, r)
	}
}

func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	if c, err := r.Cookie(tokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func withViewer(ctx context.Context, viewer string) context.Context {
	return context.WithValue(ctx, viewerKey{}, viewer)
}

// viewerFrom returns the authenticated viewer, or "" for anonymous requests.
func viewerFrom(ctx context.Context) string {
	v, _ := ctx.Value(viewerKey{}).(string)
	return v
}
