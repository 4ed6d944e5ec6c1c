package layering

import (
	"fmt"

	"github.com/deckhand/deckhand/pkg/document"
	"github.com/deckhand/deckhand/pkg/jsonpath"
)

// Apply computes D's rendered data: a deep copy of parentRendered with D's
// layeringDefinition.actions applied in order. A bottom-layer document (no
// parent) renders as its own data unchanged; callers should not call Apply
// for those and should pass through d.Data directly.
func Apply(d *document.Document, parentRendered interface{}) (interface{}, error) {
	working := document.DeepCopy(parentRendered)

	for _, action := range d.Metadata.LayeringDefinition.Actions {
		path, err := jsonpath.Parse(action.Path)
		if err != nil {
			return nil, &Error{Kind: ErrMissingKey, Doc: document.KeyOf(d), Msg: err.Error()}
		}

		switch action.Method {
		case document.ActionMerge:
			working, err = applyMerge(d, path, working)
		case document.ActionReplace:
			working, err = applyReplace(d, path, working)
		case document.ActionDelete:
			working, err = applyDelete(d, path, working)
		default:
			return nil, &Error{Kind: ErrInvalidAction, Doc: document.KeyOf(d),
				Msg: fmt.Sprintf("unrecognized action method %q", action.Method)}
		}
		if err != nil {
			return nil, err
		}
	}

	return working, nil
}

func applyMerge(d *document.Document, path *jsonpath.Path, working interface{}) (interface{}, error) {
	childVal, err := path.Get(d.Data)
	if err != nil {
		return nil, &Error{Kind: ErrMissingKey, Doc: document.KeyOf(d), Msg: "merge source path missing in child data"}
	}
	existing, err := path.Get(working)
	if err != nil {
		return nil, &Error{Kind: ErrMissingKey, Doc: document.KeyOf(d), Msg: "merge target path missing in parent"}
	}
	merged := deepMerge(existing, childVal)
	out, err := path.Inject(working, merged)
	if err != nil {
		return nil, &Error{Kind: ErrMissingKey, Doc: document.KeyOf(d), Msg: err.Error()}
	}
	return out, nil
}

func applyReplace(d *document.Document, path *jsonpath.Path, working interface{}) (interface{}, error) {
	childVal, err := path.Get(d.Data)
	if err != nil {
		return nil, &Error{Kind: ErrMissingKey, Doc: document.KeyOf(d), Msg: "replace source path missing in child data"}
	}
	if _, err := path.Get(working); err != nil {
		return nil, &Error{Kind: ErrMissingKey, Doc: document.KeyOf(d), Msg: "replace target path missing in parent"}
	}
	out, err := path.Inject(working, childVal)
	if err != nil {
		return nil, &Error{Kind: ErrMissingKey, Doc: document.KeyOf(d), Msg: err.Error()}
	}
	return out, nil
}

func applyDelete(d *document.Document, path *jsonpath.Path, working interface{}) (interface{}, error) {
	out, deleted, err := path.Delete(working)
	if err != nil {
		return nil, &Error{Kind: ErrMissingKey, Doc: document.KeyOf(d), Msg: err.Error()}
	}
	if !deleted {
		return nil, &Error{Kind: ErrMissingKey, Doc: document.KeyOf(d), Msg: "delete target path missing"}
	}
	// A delete at the root removes the entire data section; reinstate it as
	// an empty object rather than leaving a nil rendered document.
	if path.String() == "." || path.String() == "$" {
		if m, ok := out.(map[string]interface{}); !ok || m == nil {
			return map[string]interface{}{}, nil
		}
	}
	return out, nil
}

// deepMerge recursively merges override onto base: keys present in both
// where both values are objects recurse; otherwise override wins.
func deepMerge(base, override interface{}) interface{} {
	baseMap, baseOK := base.(map[string]interface{})
	overrideMap, overrideOK := override.(map[string]interface{})
	if !baseOK || !overrideOK {
		return override
	}
	out := make(map[string]interface{}, len(baseMap)+len(overrideMap))
	for k, v := range baseMap {
		out[k] = v
	}
	for k, v := range overrideMap {
		if existing, ok := out[k]; ok {
			out[k] = deepMerge(existing, v)
		} else {
			out[k] = v
		}
	}
	return out
}
