// Package apierr is Deckhand's typed error taxonomy and HTTP envelope
// rendering, adapted from the teacher's pkg/api/apierror.go: the same split
// between a Go error type and its wire serialization, with Deckhand's YAML
// envelope in place of the teacher's RFC 7807 Problem Detail JSON.
package apierr

import (
	"fmt"
	"log/slog"
	"net/http"
)

// Kind is one member of the closed error taxonomy.
type Kind string

const (
	KindMalformedYAML             Kind = "malformed-yaml"
	KindStructuralInvalid         Kind = "structural-invalid"
	KindDataInvalid                Kind = "data-invalid"
	KindUnknownKind                Kind = "unknown-kind"
	KindLayeringPolicyMissing      Kind = "layering-policy-missing"
	KindLayeringPolicyMalformed    Kind = "layering-policy-malformed"
	KindMissingParent              Kind = "missing-parent"
	KindIndeterminateParent        Kind = "indeterminate-parent"
	KindInvalidAction               Kind = "invalid-action"
	KindMissingKey                  Kind = "missing-key"
	KindSubstitutionSourceNotFound   Kind = "substitution-source-not-found"
	KindSubstitutionSourceDataMissing Kind = "substitution-source-data-missing"
	KindSecretStoreError            Kind = "secret-store-error"
	KindCycleDetected               Kind = "cycle-detected"
	KindRevisionNotFound            Kind = "revision-not-found"
	KindConflict                    Kind = "conflict"
	KindForbidden                   Kind = "forbidden"
	KindInternal                    Kind = "internal"
)

// httpStatus maps each Kind to the status spec §7 assigns it. Kinds outside
// the closed taxonomy (a bug, not a user error) default to 500 in HTTPStatus.
var httpStatus = map[Kind]int{
	KindMalformedYAML:                http.StatusBadRequest,
	KindStructuralInvalid:            http.StatusBadRequest,
	KindDataInvalid:                  http.StatusBadRequest,
	KindUnknownKind:                  http.StatusBadRequest,
	KindLayeringPolicyMissing:        http.StatusConflict,
	KindLayeringPolicyMalformed:      http.StatusBadRequest,
	KindMissingParent:                http.StatusBadRequest,
	KindIndeterminateParent:          http.StatusBadRequest,
	KindInvalidAction:                http.StatusBadRequest,
	KindMissingKey:                   http.StatusBadRequest,
	KindSubstitutionSourceNotFound:   http.StatusBadRequest,
	KindSubstitutionSourceDataMissing: http.StatusBadRequest,
	KindSecretStoreError:             http.StatusBadGateway,
	KindCycleDetected:                http.StatusBadRequest,
	KindRevisionNotFound:             http.StatusNotFound,
	KindConflict:                     http.StatusConflict,
	KindForbidden:                    http.StatusForbidden,
	KindInternal:                     http.StatusInternalServerError,
}

// retryable lists the Kinds spec §7 calls transient: only these ever set
// Envelope.Retry to true.
var retryable = map[Kind]bool{
	KindSecretStoreError: true,
	KindConflict:         true,
}

// Error is Deckhand's internal error type: a Kind from the closed taxonomy,
// a client-facing message, and optional structured detail entries. It plays
// the role the teacher's *ProblemDetail played, except the wire rendering
// (ToEnvelope) is a separate step rather than baked into the type itself.
type Error struct {
	Kind    Kind
	Message string
	Details []MessageListEntry
	cause   error
}

// MessageListEntry is one entry of the envelope's details.messageList.
type MessageListEntry struct {
	Message string `yaml:"message"`
	Error   bool   `yaml:"error"`
	Kind    Kind   `yaml:"kind,omitempty"`
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Message: cause.Error(), cause: cause}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus is the status code spec §7's table assigns e.Kind. An
// unrecognized Kind (should not happen for well-formed code) maps to 500.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatus[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Retry reports whether this failure is transient per spec §7.
func (e *Error) Retry() bool {
	return retryable[e.Kind]
}

// WithDetail appends one messageList entry built from a sub-failure (a
// single validation error, a single DAG node failure, etc).
func (e *Error) WithDetail(kind Kind, message string) *Error {
	e.Details = append(e.Details, MessageListEntry{Message: message, Error: true, Kind: kind})
	return e
}

// Combine folds many per-node/per-document errors into a single Error whose
// Kind is the given kind, carrying every error as a messageList detail (each
// detail keeps its own *Error Kind, or the given kind otherwise) —
// spec §7's "accumulator is returned as a single response" behavior.
func Combine(kind Kind, errs []error) *Error {
	out := &Error{Kind: kind, Message: fmt.Sprintf("%d error(s)", len(errs))}
	for _, err := range errs {
		k := kind
		var ae *Error
		if asError(err, &ae) {
			k = ae.Kind
		}
		out.Details = append(out.Details, MessageListEntry{Message: err.Error(), Error: true, Kind: k})
	}
	return out
}

func asError(err error, target **Error) bool {
	ae, ok := err.(*Error)
	if ok {
		*target = ae
	}
	return ok
}

// Envelope is the YAML wire shape spec §6 specifies for every error
// response: `{status, kind, apiVersion, code, reason, retry, metadata,
// message, details}`.
type Envelope struct {
	Status     string                 `yaml:"status"`
	Kind       string                 `yaml:"kind"`
	APIVersion string                 `yaml:"apiVersion"`
	Code       string                 `yaml:"code"`
	Reason     Kind                   `yaml:"reason"`
	Retry      bool                   `yaml:"retry"`
	Metadata   map[string]interface{} `yaml:"metadata"`
	Message    string                 `yaml:"message"`
	Details    EnvelopeDetails        `yaml:"details"`
}

// EnvelopeDetails is the envelope's details sub-object.
type EnvelopeDetails struct {
	ErrorType   Kind                `yaml:"errorType"`
	ErrorCount  int                 `yaml:"errorCount"`
	MessageList []MessageListEntry  `yaml:"messageList"`
}

// ToEnvelope renders e into the YAML error envelope spec §6 requires.
func (e *Error) ToEnvelope() *Envelope {
	messages := e.Details
	if len(messages) == 0 {
		messages = []MessageListEntry{{Message: e.Message, Error: true, Kind: e.Kind}}
	}
	return &Envelope{
		Status:     "Failure",
		Kind:       "status",
		APIVersion: "v1.0",
		Code:       fmt.Sprintf("%d", e.HTTPStatus()),
		Reason:     e.Kind,
		Retry:      e.Retry(),
		Metadata:   map[string]interface{}{},
		Message:    e.Message,
		Details: EnvelopeDetails{
			ErrorType:   e.Kind,
			ErrorCount:  len(messages),
			MessageList: messages,
		},
	}
}

// LogInternal logs an internal-error cause the way the teacher's
// WriteInternal does (logged server-side, never reflected to the client).
func LogInternal(err error) {
	slog.Error("internal server error", "error", err)
}
