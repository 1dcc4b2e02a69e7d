//go:build property

package cache

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/refract/internal/types"
)

// TestStoreProperties validates storage round-trip and isolation properties
// over arbitrary inputs.
func TestStoreProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("stored entries round-trip exactly", prop.ForAll(
		func(key, input, code string) bool {
			if key == "" {
				return true
			}
			store := NewStore(nil)
			entry := Entry{Input: input, Code: code, Map: &types.SourceMap{Version: 3}}
			store.Store(key, entry)

			got, ok := store.Lookup(key, input)
			return ok && got.Input == input && got.Code == code
		},
		gen.Identifier(),
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("a changed input never matches the stored one", prop.ForAll(
		func(key, input, other string) bool {
			if key == "" || input == other {
				return true
			}
			store := NewStore(nil)
			store.Store(key, Entry{Input: input, Code: "c"})

			// Exact-input equality is the hit condition; any other input
			// must miss regardless of how close it is.
			_, ok := store.Lookup(key, other)
			return !ok
		},
		gen.Identifier(),
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("persisted entries survive a restart byte-for-byte", prop.ForAll(
		func(input, code string) bool {
			root := t.TempDir()
			ctx := context.Background()

			store := NewStore(nil)
			if err := store.Initialize(ctx, root, "cache", "1.0.0"); err != nil {
				return false
			}
			store.Store("k", Entry{Input: input, Code: code})
			store.Flush()

			restored := NewStore(nil)
			if err := restored.Initialize(ctx, root, "cache", "1.0.0"); err != nil {
				return false
			}
			got, ok := restored.Lookup("k", input)
			return ok && got.Input == input && got.Code == code
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
