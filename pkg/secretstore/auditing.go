package secretstore

import (
	"context"

	"github.com/deckhand/deckhand/pkg/auditlog"
)

// AuditedClient wraps a Client, recording a SecretAccess event around every
// Store and Fetch call.
type AuditedClient struct {
	Client
	audit auditlog.Logger
}

// NewAuditedClient wraps backing with audit logging via l.
func NewAuditedClient(backing Client, l auditlog.Logger) *AuditedClient {
	if l == nil {
		l = auditlog.NopLogger{}
	}
	return &AuditedClient{Client: backing, audit: l}
}

func (a *AuditedClient) Store(ctx context.Context, kind, name string, payload []byte) (string, error) {
	ref, err := a.Client.Store(ctx, kind, name, payload)
	_ = a.audit.Record(ctx, auditlog.EventSecretAccess, kind+"/"+name, map[string]interface{}{"op": "store", "error": errString(err)})
	return ref, err
}

func (a *AuditedClient) Fetch(ctx context.Context, reference string) ([]byte, error) {
	payload, err := a.Client.Fetch(ctx, reference)
	_ = a.audit.Record(ctx, auditlog.EventSecretAccess, reference, map[string]interface{}{"op": "fetch", "error": errString(err)})
	return payload, err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var _ Client = (*AuditedClient)(nil)
