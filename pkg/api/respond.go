package api

import (
	"errors"
	"io"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/deckhand/deckhand/pkg/apierr"
)

// decodeYAMLBody decodes a single-document YAML request body into v.
func decodeYAMLBody(r *http.Request, v interface{}) error {
	if err := yaml.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		return apierr.New(apierr.KindMalformedYAML, err.Error())
	}
	return nil
}

const yamlContentType = "application/x-yaml"

// writeYAML writes v as a successful YAML body.
func writeYAML(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", yamlContentType)
	w.WriteHeader(status)
	_ = yaml.NewEncoder(w).Encode(v)
}

// writeErr renders err as the YAML error envelope. Non-*apierr.Error values
// are treated as internal failures and never have their message exposed —
// apierr.LogInternal records the real cause server-side instead.
func writeErr(w http.ResponseWriter, err error) {
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		apierr.LogInternal(err)
		ae = apierr.New(apierr.KindInternal, "an internal error occurred")
	}
	writeError(w, ae.HTTPStatus(), ae)
}

// writeError renders ae with an explicit status, used where the transport
// concern (rate limiting) doesn't map onto ae.Kind's own HTTP status.
func writeError(w http.ResponseWriter, status int, ae *apierr.Error) {
	w.Header().Set("Content-Type", yamlContentType)
	w.WriteHeader(status)
	_ = yaml.NewEncoder(w).Encode(ae.ToEnvelope())
}
