package api

import (
	"net/http"
	"strconv"

	"github.com/deckhand/deckhand/pkg/apierr"
	"github.com/deckhand/deckhand/pkg/revision"
)

func pathInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// handleListRevisions implements GET /revisions.
func (s *Server) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	revs, err := s.deps.Store.ListRevisions()
	if err != nil {
		writeErr(w, mapErr(err))
		return
	}
	writeYAML(w, http.StatusOK, revs)
}

// handleGetRevision implements GET /revisions/{id}.
func (s *Server) handleGetRevision(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeErr(w, apierr.New(apierr.KindRevisionNotFound, "invalid revision id"))
		return
	}
	rev, err := s.deps.Store.GetRevision(id)
	if err != nil {
		writeErr(w, mapErr(err))
		return
	}
	writeYAML(w, http.StatusOK, rev)
}

// handleDeleteAllRevisions implements DELETE /revisions.
func (s *Server) handleDeleteAllRevisions(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.DeleteAllRevisions(); err != nil {
		writeErr(w, mapErr(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDiff implements GET /revisions/{from}/diff/{to}.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	from, err := pathInt64(r, "from")
	if err != nil {
		writeErr(w, apierr.New(apierr.KindRevisionNotFound, "invalid from revision id"))
		return
	}
	to, err := pathInt64(r, "to")
	if err != nil {
		writeErr(w, apierr.New(apierr.KindRevisionNotFound, "invalid to revision id"))
		return
	}
	diff, err := s.deps.Store.Diff(from, to)
	if err != nil {
		writeErr(w, mapErr(err))
		return
	}
	writeYAML(w, http.StatusOK, diff)
}

// handleRollback implements POST /rollback/{id}.
func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeErr(w, apierr.New(apierr.KindRevisionNotFound, "invalid revision id"))
		return
	}
	rev, err := s.deps.Store.Rollback(id)
	if err != nil {
		writeErr(w, mapErr(err))
		return
	}
	writeYAML(w, http.StatusOK, rev)
}

type tagBody struct {
	Data interface{} `yaml:"data"`
}

// handleTags implements GET /revisions/{id}/tags[/{tag}] and
// PUT/DELETE /revisions/{id}/tags/{tag}.
func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeErr(w, apierr.New(apierr.KindRevisionNotFound, "invalid revision id"))
		return
	}
	tag := r.PathValue("tag")

	switch {
	case r.Method == http.MethodGet && tag == "":
		tags, err := s.deps.Store.ListTags(id)
		if err != nil {
			writeErr(w, mapErr(err))
			return
		}
		writeYAML(w, http.StatusOK, tags)

	case r.Method == http.MethodGet:
		t, ok, err := s.deps.Store.GetTag(id, tag)
		if err != nil {
			writeErr(w, mapErr(err))
			return
		}
		if !ok {
			writeErr(w, apierr.New(apierr.KindRevisionNotFound, "tag not found: "+tag))
			return
		}
		writeYAML(w, http.StatusOK, t)

	case r.Method == http.MethodPut:
		var body tagBody
		if err := decodeYAMLBody(r, &body); err != nil {
			writeErr(w, err)
			return
		}
		if err := s.deps.Store.PutTag(id, tag, body.Data); err != nil {
			writeErr(w, mapErr(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodDelete:
		if err := s.deps.Store.DeleteTag(id, tag); err != nil {
			writeErr(w, mapErr(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeErr(w, apierr.New(apierr.KindInvalidAction, "method not allowed"))
	}
}

type validationPolicyBody struct {
	Status string `yaml:"status"`
}

type validationEntryBody struct {
	Status  string                 `yaml:"status"`
	Details map[string]interface{} `yaml:"details"`
}

// handleValidations implements GET /revisions/{id}/validations[/{name}] and
// POST /revisions/{id}/validations/{name}[/{entry}].
func (s *Server) handleValidations(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeErr(w, apierr.New(apierr.KindRevisionNotFound, "invalid revision id"))
		return
	}
	name := r.PathValue("name")
	entry := r.PathValue("entry")

	switch {
	case r.Method == http.MethodGet && name == "":
		policies, err := s.deps.Store.ListValidationPolicies(id)
		if err != nil {
			writeErr(w, mapErr(err))
			return
		}
		writeYAML(w, http.StatusOK, policies)

	case r.Method == http.MethodGet && entry == "":
		entries, err := s.deps.Store.ListValidationEntries(id, name)
		if err != nil {
			writeErr(w, mapErr(err))
			return
		}
		writeYAML(w, http.StatusOK, entries)

	case r.Method == http.MethodPost && entry == "":
		var body validationPolicyBody
		if err := decodeYAMLBody(r, &body); err != nil {
			writeErr(w, err)
			return
		}
		p := revision.ValidationPolicy{RevisionID: id, Name: name, Status: body.Status}
		if err := s.deps.Store.PutValidationPolicy(p); err != nil {
			writeErr(w, mapErr(err))
			return
		}
		writeYAML(w, http.StatusOK, p)

	case r.Method == http.MethodPost:
		var body validationEntryBody
		if err := decodeYAMLBody(r, &body); err != nil {
			writeErr(w, err)
			return
		}
		e := revision.ValidationEntry{RevisionID: id, PolicyName: name, EntryID: entry, Status: body.Status, Details: body.Details}
		if err := s.deps.Store.PutValidationEntry(e); err != nil {
			writeErr(w, mapErr(err))
			return
		}
		writeYAML(w, http.StatusOK, e)

	default:
		writeErr(w, apierr.New(apierr.KindInvalidAction, "method not allowed"))
	}
}

// handleVersions implements GET /versions.
func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	writeYAML(w, http.StatusOK, map[string]interface{}{
		"versions": []string{"v1.0"},
	})
}
