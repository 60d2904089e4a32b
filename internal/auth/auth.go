package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderUserRoles = "X-User-Roles"

	identityKey = "identity"
)

var (
	ErrMissingIdentity = errors.New("missing user identity")
	ErrRoleRequired    = errors.New("caller has no role that grants access")
)

// Identity is the caller as supplied by the authentication layer in front of the API.
type Identity struct {
	UserID string
	Roles  []string
}

// HasAnyRole reports whether the identity holds at least one of roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if slices.Contains(i.Roles, role) {
			return true
		}
	}
	return false
}

// Verifier resolves the caller of a request.
type Verifier interface {
	Verify(r *http.Request) (*Identity, error)
}

var _ Verifier = HeaderVerifier{}

// HeaderVerifier trusts the identity headers set by the gateway that issued the session.
type HeaderVerifier struct{}

func NewHeaderVerifier() HeaderVerifier {
	return HeaderVerifier{}
}

func (HeaderVerifier) Verify(r *http.Request) (*Identity, error) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return nil, ErrMissingIdentity
	}

	return &Identity{
		UserID: userID,
		Roles:  ParseRoles(r.Header.Get(HeaderUserRoles)),
	}, nil
}

// ParseRoles splits a comma separated role list, dropping blanks and duplicates.
func ParseRoles(value string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	roles := make([]string, 0)
	for _, role := range strings.Split(value, ",") {
		role = strings.TrimSpace(role)
		if role == "" || seen.Contains(role) {
			continue
		}
		seen.Add(role)
		roles = append(roles, role)
	}

	return roles
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok && id != nil
}

// Authenticate resolves the caller and stores it in the request context.
// Requests without an identity are rejected with 401.
func Authenticate(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := verifier.Verify(c.Request)
		if err != nil {
			logrus.Debugf("unauthenticated request %s %s: %v", c.Request.Method, c.FullPath(), err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(identityKey, id)
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireRole rejects callers holding none of roles with 403. Roles come from the caller's licences.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := FromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingIdentity.Error()})
			return
		}

		if len(roles) > 0 && !id.HasAnyRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": ErrRoleRequired.Error()})
			return
		}

		c.Next()
	}
}

// Caller returns the identity resolved by Authenticate.
func Caller(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok
}
