package muxhandlers

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/vitalvas/waypoint/mux"
	"golang.org/x/crypto/bcrypt"
)

// ErrNoAuthSource is returned when BasicAuthConfig has no ValidateFunc,
// Credentials or HashedCredentials configured.
var ErrNoAuthSource = errors.New("basic auth: at least one of ValidateFunc, Credentials or HashedCredentials must be set")

// ErrInvalidHash is returned when a HashedCredentials entry is not a bcrypt
// hash.
var ErrInvalidHash = errors.New("basic auth: invalid bcrypt hash")

// BasicAuthUserKey is the context key under which the authenticated user
// name is stored.
const BasicAuthUserKey = "muxhandlers.basic_auth_user"

// dummyHash is compared against when the user is unknown so the response
// time does not reveal which user names exist.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("waypoint"), bcrypt.MinCost)

// BasicAuthConfig configures the Basic Auth stage.
//
// Reference: https://www.rfc-editor.org/rfc/rfc7617
type BasicAuthConfig struct {
	// Realm is sent in the WWW-Authenticate header. Defaults to "Restricted".
	Realm string

	// ValidateFunc validates credentials dynamically. Takes priority over
	// the static maps.
	ValidateFunc func(username, password string) bool

	// Credentials maps user names to plain passwords.
	Credentials map[string]string

	// HashedCredentials maps user names to bcrypt password hashes. It is
	// consulted before Credentials.
	HashedCredentials map[string]string
}

// BasicAuthStage returns a stage that enforces HTTP Basic Authentication.
// Missing or invalid credentials finalize the response with 401; on success
// the user name is stored under BasicAuthUserKey.
func BasicAuthStage(cfg BasicAuthConfig) (mux.StageFunc, error) {
	if cfg.ValidateFunc == nil && len(cfg.Credentials) == 0 && len(cfg.HashedCredentials) == 0 {
		return nil, ErrNoAuthSource
	}

	for user, hash := range cfg.HashedCredentials {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("%w for user %q", ErrInvalidHash, user)
		}
	}

	realm := cfg.Realm
	if realm == "" {
		realm = "Restricted"
	}

	wwwAuthenticate := fmt.Sprintf("Basic realm=%q", realm)

	validate := cfg.ValidateFunc
	if validate == nil {
		validate = staticValidator(cfg.Credentials, cfg.HashedCredentials)
	}

	return func(c *mux.Context) mux.Result {
		username, password, ok := c.Request.BasicAuth()
		if !ok || !validate(username, password) {
			c.Writer.Header().Set("WWW-Authenticate", wwwAuthenticate)
			return c.NoContent(http.StatusUnauthorized)
		}

		c.Set(BasicAuthUserKey, username)

		return mux.Next()
	}, nil
}

// BasicAuthUser returns the user authenticated by BasicAuthStage.
func BasicAuthUser(c *mux.Context) string {
	v, _ := c.Get(BasicAuthUserKey)
	user, _ := v.(string)

	return user
}

func staticValidator(plain, hashed map[string]string) func(string, string) bool {
	return func(username, password string) bool {
		if hash, ok := hashed[username]; ok {
			return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
		}

		expected, exists := plain[username]
		if !exists && len(hashed) > 0 {
			bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return false
		}

		// Compare even for unknown users to avoid a timing oracle.
		match := constantTimeEqual(password, expected)

		return exists && match
	}
}

// constantTimeEqual compares two strings in constant time by hashing them
// first, which also hides length differences.
func constantTimeEqual(a, b string) bool {
	aHash := sha256.Sum256([]byte(a))
	bHash := sha256.Sum256([]byte(b))

	return subtle.ConstantTimeCompare(aHash[:], bHash[:]) == 1
}
