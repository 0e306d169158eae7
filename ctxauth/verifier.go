package ctxauth

import (
	"fmt"
	"os"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier decodes and validates HS256 bearer tokens into an
// ActorContext. It is built the same way security.JWTService is (same
// jwx/v2 key + jwt.Parse call), narrowed to verification only.
type Verifier struct {
	secret   []byte
	disabled bool
}

// NewVerifier builds a Verifier from a shared secret. An empty secret with
// disabled=false is a configuration error the caller should catch at
// startup, not at request time.
func NewVerifier(secret string, disabled bool) *Verifier {
	return &Verifier{secret: []byte(secret), disabled: disabled}
}

// FromEnv builds a Verifier from AUTH_SECRET / AUTH_DISABLED, matching the
// original's environment-driven AuthConfig::from_env. AUTH_DISABLED
// defaults to enabled (disabled=true) for frictionless local development,
// exactly as the original documents.
func FromEnv() *Verifier {
	disabled := true
	if v, ok := os.LookupEnv("AUTH_DISABLED"); ok {
		disabled = v == "1" || strings.EqualFold(v, "true")
	}
	return NewVerifier(os.Getenv("AUTH_SECRET"), disabled)
}

// Disabled reports whether this verifier bypasses auth entirely.
func (v *Verifier) Disabled() bool { return v.disabled }

// VerifyHeader extracts and verifies a "Bearer <token>" Authorization
// header value, returning the resolved ActorContext.
func (v *Verifier) VerifyHeader(authorization string) (ActorContext, error) {
	if v.disabled {
		return DevDefault(), nil
	}
	if authorization == "" {
		return ActorContext{}, fmt.Errorf("ctxauth: missing Authorization header")
	}
	token := strings.TrimPrefix(authorization, "Bearer ")
	token = strings.TrimPrefix(token, "bearer ")
	if token == authorization {
		return ActorContext{}, fmt.Errorf("ctxauth: invalid Authorization scheme, expected Bearer")
	}
	if len(v.secret) == 0 {
		return ActorContext{}, fmt.Errorf("ctxauth: AUTH_SECRET not configured")
	}
	return v.verifyToken(token)
}

func (v *Verifier) verifyToken(tokenString string) (ActorContext, error) {
	parsed, err := jwt.Parse([]byte(tokenString), jwt.WithKey(jwa.HS256, v.secret))
	if err != nil {
		return ActorContext{}, fmt.Errorf("ctxauth: %w", err)
	}

	actor := ActorContext{ActorID: parsed.Subject(), ActorType: ActorHuman}

	if raw, ok := parsed.Get("actor_type"); ok {
		if s, ok := raw.(string); ok && s != "" {
			actor.ActorType = ActorType(s)
		}
	}

	if raw, ok := parsed.Get("roles"); ok {
		if list, ok := raw.([]interface{}); ok {
			for _, r := range list {
				if s, ok := r.(string); ok {
					actor.Roles = append(actor.Roles, Role(s))
				}
			}
		}
	}
	if len(actor.Roles) == 0 {
		actor.Roles = []Role{RoleReader}
	}
	return actor, nil
}
