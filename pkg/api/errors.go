package api

import (
	"errors"

	"github.com/deckhand/deckhand/pkg/apierr"
	"github.com/deckhand/deckhand/pkg/dag"
	"github.com/deckhand/deckhand/pkg/layering"
	"github.com/deckhand/deckhand/pkg/revision"
	"github.com/deckhand/deckhand/pkg/schema"
	"github.com/deckhand/deckhand/pkg/secretstore"
	"github.com/deckhand/deckhand/pkg/substitution"
)

// mapErr translates an internal package error into the closed HTTP error
// taxonomy. Every concern (C4 layering, C6 substitution, C7 secret store, C8
// DAG cycles, C9 revision store) already uses the taxonomy's Kind strings
// for its own errors, so this is a type switch, not a translation table.
func mapErr(err error) *apierr.Error {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}

	var revErr *revision.Error
	if errors.As(err, &revErr) {
		return apierr.New(apierr.Kind(revErr.Kind), revErr.Msg)
	}

	var layerErr *layering.Error
	if errors.As(err, &layerErr) {
		return apierr.New(apierr.Kind(layerErr.Kind), layerErr.Error())
	}

	var subErr *substitution.Error
	if errors.As(err, &subErr) {
		return apierr.New(apierr.Kind(subErr.Kind), subErr.Error())
	}

	var secErr *secretstore.Error
	if errors.As(err, &secErr) {
		e := apierr.New(apierr.Kind(secErr.Kind), secErr.Msg)
		return e
	}

	var valErr *schema.ValidationError
	if errors.As(err, &valErr) {
		return apierr.New(apierr.Kind(valErr.Kind), valErr.Error())
	}

	var cycleErr *dag.CycleError
	if errors.As(err, &cycleErr) {
		return apierr.New(apierr.KindCycleDetected, cycleErr.Error())
	}

	return apierr.Wrap(apierr.KindInternal, err)
}
