// Package identifier issues type-tagged unique ids for uplift entities.
// Every id is a short kind prefix joined to a ULID suffix, so the id alone
// tells you which table it belongs to and ids from different entity kinds
// can never be confused for one another.
package identifier

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// Kind identifies an entity type by its id prefix.
type Kind string

const (
	KindExperiment Kind = "e"
	KindVariant    Kind = "v"
	KindAgent      Kind = "a"
	KindCodeAgent  Kind = "ca"
)

const separator = "_"

var kinds = []Kind{KindExperiment, KindVariant, KindAgent, KindCodeAgent}

// New returns a fresh id for the given kind, e.g. "e_01JF8Z...".
func New(kind Kind) string {
	return string(kind) + separator + ulid.Make().String()
}

// KindOf reports the kind encoded in an id and whether the id is well formed.
// "ca" is matched before "a" since prefixes are checked longest-first.
func KindOf(id string) (Kind, bool) {
	prefix, suffix, found := strings.Cut(id, separator)
	if !found || suffix == "" {
		return "", false
	}
	for _, kind := range kinds {
		if prefix == string(kind) {
			if _, err := ulid.ParseStrict(suffix); err != nil {
				return "", false
			}
			return kind, true
		}
	}
	return "", false
}

// Is reports whether id is a well-formed id of the given kind.
func Is(id string, kind Kind) bool {
	got, ok := KindOf(id)
	return ok && got == kind
}
