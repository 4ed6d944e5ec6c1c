package layering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deckhand/deckhand/pkg/document"
)

func newPolicy(order ...string) *document.Document {
	raw := make([]interface{}, len(order))
	for i, l := range order {
		raw[i] = l
	}
	return &document.Document{
		Schema: document.SchemaLayeringPolicy,
		Metadata: document.Metadata{
			Schema: document.MetaSchemaControl,
			Name:   "layering-policy",
		},
		Data: map[string]interface{}{"layerOrder": raw},
	}
}

func doc(schema, name, layer string, labels map[string]string, selector map[string]string, data interface{}) *document.Document {
	return &document.Document{
		Schema: schema,
		Metadata: document.Metadata{
			Schema: document.MetaSchemaDocument,
			Name:   name,
			Labels: labels,
			LayeringDefinition: document.LayeringDefinition{
				Layer:          layer,
				ParentSelector: selector,
			},
		},
		Data: data,
	}
}

func TestResolver_BottomLayerHasNoParent(t *testing.T) {
	policy := newPolicy("global", "region", "site")
	r, err := NewResolver(policy)
	require.NoError(t, err)

	global := doc("pkg/Kind/v1", "global-doc", "global", nil, nil, map[string]interface{}{})
	p, err := r.Resolve(global, nil)
	require.NoError(t, err)
	assert.Nil(t, p.Parent)
	assert.True(t, r.IsTopmost("site"))
	assert.False(t, r.IsTopmost("global"))
}

func TestResolver_MissingParent(t *testing.T) {
	policy := newPolicy("global", "site")
	r, err := NewResolver(policy)
	require.NoError(t, err)

	site := doc("pkg/Kind/v1", "site-doc", "site", nil, map[string]string{"env": "prod"}, map[string]interface{}{})
	_, err = r.Resolve(site, nil)
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ErrMissingParent, lerr.Kind)
}

func TestResolver_IndeterminateParent(t *testing.T) {
	policy := newPolicy("global", "site")
	r, err := NewResolver(policy)
	require.NoError(t, err)

	selector := map[string]string{"env": "prod"}
	p1 := doc("pkg/Kind/v1", "g1", "global", map[string]string{"env": "prod"}, nil, map[string]interface{}{})
	p2 := doc("pkg/Kind/v1", "g2", "global", map[string]string{"env": "prod"}, nil, map[string]interface{}{})
	site := doc("pkg/Kind/v1", "site-doc", "site", nil, selector, map[string]interface{}{})

	_, err = r.Resolve(site, []*document.Document{p1, p2})
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ErrIndeterminateParent, lerr.Kind)
}

func TestResolver_UniqueParentMatchesLabelSubset(t *testing.T) {
	policy := newPolicy("global", "site")
	r, err := NewResolver(policy)
	require.NoError(t, err)

	selector := map[string]string{"env": "prod"}
	wrongSchema := doc("other/Kind/v1", "g0", "global", map[string]string{"env": "prod"}, nil, nil)
	wrongLabel := doc("pkg/Kind/v1", "g1", "global", map[string]string{"env": "dev"}, nil, nil)
	match := doc("pkg/Kind/v1", "g2", "global", map[string]string{"env": "prod", "extra": "x"}, nil, nil)
	site := doc("pkg/Kind/v1", "site-doc", "site", nil, selector, nil)

	p, err := r.Resolve(site, []*document.Document{wrongSchema, wrongLabel, match})
	require.NoError(t, err)
	require.NotNil(t, p.Parent)
	assert.Equal(t, "g2", p.Parent.Metadata.Name)
}

func TestApply_LayeringMerge(t *testing.T) {
	global := map[string]interface{}{
		"a": map[string]interface{}{"x": 1, "y": 2},
		"b": 4,
	}
	site := doc("pkg/Kind/v1", "site-doc", "site", nil, nil,
		map[string]interface{}{"a": map[string]interface{}{"z": 3}})
	site.Metadata.LayeringDefinition.Actions = []document.Action{
		{Path: ".", Method: document.ActionMerge},
	}

	out, err := Apply(site, global)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"a": map[string]interface{}{"x": 1, "y": 2, "z": 3},
		"b": 4,
	}, out)
}

func TestApply_LayeringReplaceAtSubpath(t *testing.T) {
	global := map[string]interface{}{
		"a": map[string]interface{}{"x": 1, "y": 2},
		"b": 4,
	}
	site := doc("pkg/Kind/v1", "site-doc", "site", nil, nil,
		map[string]interface{}{"a": map[string]interface{}{"z": 5}})
	site.Metadata.LayeringDefinition.Actions = []document.Action{
		{Path: ".a", Method: document.ActionReplace},
	}

	out, err := Apply(site, global)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"a": map[string]interface{}{"z": 5},
		"b": 4,
	}, out)
}

func TestApply_DeleteAndReinstate(t *testing.T) {
	global := map[string]interface{}{
		"a": map[string]interface{}{"x": 1},
		"b": 4,
	}
	site := doc("pkg/Kind/v1", "site-doc", "site", nil, nil, map[string]interface{}{})
	site.Metadata.LayeringDefinition.Actions = []document.Action{
		{Path: ".a", Method: document.ActionDelete},
	}

	out, err := Apply(site, global)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"b": 4}, out)
}

func TestApply_DeleteRootReinstatesEmptyObject(t *testing.T) {
	global := map[string]interface{}{"a": 1}
	site := doc("pkg/Kind/v1", "site-doc", "site", nil, nil, map[string]interface{}{})
	site.Metadata.LayeringDefinition.Actions = []document.Action{
		{Path: ".", Method: document.ActionDelete},
	}

	out, err := Apply(site, global)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{}, out)
}

func TestApply_MissingKeyOnReplace(t *testing.T) {
	global := map[string]interface{}{"a": 1}
	site := doc("pkg/Kind/v1", "site-doc", "site", nil, nil, map[string]interface{}{})
	site.Metadata.LayeringDefinition.Actions = []document.Action{
		{Path: ".missing", Method: document.ActionReplace},
	}

	_, err := Apply(site, global)
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ErrMissingKey, lerr.Kind)
}

func TestApply_InvalidAction(t *testing.T) {
	global := map[string]interface{}{"a": 1}
	site := doc("pkg/Kind/v1", "site-doc", "site", nil, nil, map[string]interface{}{"a": 2})
	site.Metadata.LayeringDefinition.Actions = []document.Action{
		{Path: ".a", Method: "rename"},
	}

	_, err := Apply(site, global)
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ErrInvalidAction, lerr.Kind)
}

func TestApply_DoesNotMutateParent(t *testing.T) {
	global := map[string]interface{}{"a": map[string]interface{}{"x": 1}}
	site := doc("pkg/Kind/v1", "site-doc", "site", nil, nil,
		map[string]interface{}{"a": map[string]interface{}{"y": 2}})
	site.Metadata.LayeringDefinition.Actions = []document.Action{
		{Path: ".", Method: document.ActionMerge},
	}

	_, err := Apply(site, global)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"x": 1}, global["a"])
}
