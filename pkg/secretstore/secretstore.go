// Package secretstore implements the client contract for the external
// secret store: encrypting and persisting a payload on write, retrieving it
// by reference on read, and recognizing references by a URL heuristic.
package secretstore

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ErrorKind enumerates the store's failure modes.
type ErrorKind string

const ErrSecretStoreError ErrorKind = "secret-store-error"

// Error wraps a store failure, identifying whether it is worth retrying.
type Error struct {
	Kind  ErrorKind
	Msg   string
	Retry bool
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

// Client is the contract a secret store backend must satisfy.
type Client interface {
	// Store persists payload under (kind, name) and returns an opaque
	// reference URL recognized by IsReference.
	Store(ctx context.Context, kind, name string, payload []byte) (string, error)
	// Fetch retrieves the payload identified by reference.
	Fetch(ctx context.Context, reference string) ([]byte, error)
}

var uuidLike = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsReference is the heuristic recognizer: a value is a reference iff it is
// a string, a syntactically valid URL, contains the substring "secrets", and
// ends with a UUID-like final path component.
func IsReference(value interface{}) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	if !strings.Contains(s, "secrets") {
		return false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 {
		return false
	}
	last := segments[len(segments)-1]
	return uuidLike.MatchString(last)
}

// KindFromSchema derives the secret store's kind taxonomy entry from a
// document schema's second component, e.g. "certificates/Certificate/v1"
// yields "Certificate".
func KindFromSchema(schema string) string {
	parts := strings.Split(schema, "/")
	if len(parts) < 2 {
		return schema
	}
	return parts[1]
}

// NewReferenceID mints the UUID-like path component used in a reference URL.
func NewReferenceID() string {
	return uuid.NewString()
}
