package api

import (
	"io"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/deckhand/deckhand/pkg/apierr"
	"github.com/deckhand/deckhand/pkg/document"
)

// decodeDocumentStream reads a multi-document YAML body into a slice of
// Documents, in the order they appear.
func decodeDocumentStream(r io.Reader) ([]*document.Document, error) {
	dec := yaml.NewDecoder(r)
	var docs []*document.Document
	for {
		var d document.Document
		if err := dec.Decode(&d); err != nil {
			if err == io.EOF {
				break
			}
			return nil, apierr.New(apierr.KindMalformedYAML, err.Error())
		}
		docs = append(docs, &d)
	}
	return docs, nil
}

type putBucketResponse struct {
	RevisionID int64    `yaml:"revisionId"`
	Created    []string `yaml:"created,omitempty"`
	Updated    []string `yaml:"updated,omitempty"`
	Deleted    []string `yaml:"deleted,omitempty"`
	Unchanged  []string `yaml:"unchanged,omitempty"`
}

func keyStrings(keys []document.Key) []string {
	if len(keys) == 0 {
		return nil
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

// handlePutBucket implements PUT /buckets/{bucket}/documents.
func (s *Server) handlePutBucket(w http.ResponseWriter, r *http.Request) {
	bucket := r.PathValue("bucket")

	r.Body = http.MaxBytesReader(w, r.Body, 64<<20)
	docs, err := decodeDocumentStream(r.Body)
	if err != nil {
		writeErr(w, err)
		return
	}
	for _, d := range docs {
		d.Bucket = bucket
	}

	result, err := s.deps.Store.PutBucket(bucket, docs)
	if err != nil {
		writeErr(w, mapErr(err))
		return
	}

	writeYAML(w, http.StatusOK, putBucketResponse{
		RevisionID: result.RevisionID,
		Created:    keyStrings(result.Created),
		Updated:    keyStrings(result.Updated),
		Deleted:    keyStrings(result.Deleted),
		Unchanged:  keyStrings(result.Unchanged),
	})
}

// handleListDocuments implements GET /revisions/{id}/documents.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeErr(w, apierr.New(apierr.KindRevisionNotFound, "invalid revision id"))
		return
	}

	docs, err := s.deps.Store.Documents(id)
	if err != nil {
		writeErr(w, mapErr(err))
		return
	}

	f, err := parseDocumentFilter(r)
	if err != nil {
		writeErr(w, apierr.New(apierr.KindStructuralInvalid, err.Error()))
		return
	}

	writeYAML(w, http.StatusOK, sanitizedView(document.Apply(docs, f)))
}

// sanitizedView redacts every substitution destination and secret-reference
// scalar before a pre-render document leaves the process — the
// /documents endpoint returns stored, unrendered documents, so any secret
// data present is leftover rather than a value the caller asked to resolve
// (that's what /rendered-documents is for).
func sanitizedView(docs []*document.Document) []*document.Document {
	out := make([]*document.Document, len(docs))
	for i, d := range docs {
		cp := *d
		cp.Data = apierr.SanitizeDocumentData(d)
		out[i] = &cp
	}
	return out
}

func parseDocumentFilter(r *http.Request) (document.Filter, error) {
	q := r.URL.Query()
	abstract, err := document.ParseAbstract(q.Get("metadata.layeringDefinition.abstract"))
	if err != nil {
		return document.Filter{}, err
	}

	f := document.Filter{
		Schema:   q.Get("schema"),
		Name:     q.Get("metadata.name"),
		Layer:    q.Get("metadata.layeringDefinition.layer"),
		Abstract: abstract,
		Bucket:   q.Get("status.bucket"),
	}
	if label := q.Get("metadata.label"); label != "" {
		if k, v, ok := splitLabel(label); ok {
			f.Label = map[string]string{k: v}
		}
	}
	return f, nil
}

func splitLabel(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

// handleRenderedDocuments implements GET /revisions/{id}/rendered-documents.
func (s *Server) handleRenderedDocuments(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeErr(w, apierr.New(apierr.KindRevisionNotFound, "invalid revision id"))
		return
	}

	result, err := s.deps.Orchestrator.Render(r.Context(), id)
	if err != nil {
		writeErr(w, mapErr(err))
		return
	}
	if result.Failed() {
		errs := make([]error, 0, len(result.Eval.Errors))
		for _, nodeErr := range result.Eval.Errors {
			errs = append(errs, nodeErr)
		}
		combined := apierr.Combine(apierr.KindDataInvalid, errs)
		writeError(w, combined.HTTPStatus(), combined)
		return
	}

	writeYAML(w, http.StatusOK, result.Documents)
}
