package revision

import (
	"testing"

	"github.com/deckhand/deckhand/pkg/document"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_RepeatedIdenticalWriteIsIdempotent checks spec scenario (f)
// as a property over arbitrary string-keyed scalar payloads: writing the
// same bucket contents twice in a row never mints a second revision.
func TestProperty_RepeatedIdenticalWriteIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("identical bucket write is a no-op the second time", prop.ForAll(
		func(name, value string) bool {
			s := NewMemoryStore()
			d := doc("certificates/Certificate/v1", name, map[string]interface{}{"value": value})

			r1, err := s.PutBucket("b1", []*document.Document{d})
			if err != nil {
				return false
			}
			r2, err := s.PutBucket("b1", []*document.Document{d})
			if err != nil {
				return false
			}
			return !r2.Changed() && r1.RevisionID == r2.RevisionID
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
