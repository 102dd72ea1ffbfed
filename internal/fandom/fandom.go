// Package fandom decides the single label a work or series is filed under
// from its noisy set of fandom tags.
package fandom

import (
	"sort"

	"github.com/antzucaro/matchr"
)

const (
	// LabelMultiple is returned when more than one fandom survives suppression.
	LabelMultiple = "Multiple"
	// LabelUnknown is returned when there are no fandom tags at all.
	LabelUnknown = "Unknown"
)

// Tables are the two static lookup tables read from configuration.
//
// Map renames raw tags to a canonical name, Filter lists for a canonical
// name the narrower canonical names its presence suppresses.
type Tables struct {
	Map    map[string]string
	Filter map[string][]string
}

// Mapped returns the distinct canonical names of `raw` after renaming.
func (t Tables) Mapped(raw []string) map[string]struct{} {
	mapped := make(map[string]struct{}, len(raw))
	for _, tag := range raw {
		if canonical, ok := t.Map[tag]; ok {
			mapped[canonical] = struct{}{}
			continue
		}
		mapped[tag] = struct{}{}
	}
	return mapped
}

// Remaining returns the canonical names left after suppression, sorted.
//
// Suppression is triggered by the mapped set and not by what is left, so in a
// chain A -> B -> C both B and C are removed even though B is removed too.
func (t Tables) Remaining(raw []string) []string {
	mapped := t.Mapped(raw)

	result := make(map[string]struct{}, len(mapped))
	for name := range mapped {
		result[name] = struct{}{}
	}
	for name := range mapped {
		for _, suppressed := range t.Filter[name] {
			if _, ok := mapped[suppressed]; ok {
				delete(result, suppressed)
			}
		}
	}

	out := make([]string, 0, len(result))
	for name := range result {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Canonicalize returns the filing label for a collection of raw fandom tags.
func Canonicalize(raw []string, tables Tables) string {
	remaining := tables.Remaining(raw)
	switch len(remaining) {
	case 0:
		return LabelUnknown
	case 1:
		return remaining[0]
	default:
		return LabelMultiple
	}
}

// Suggestion is a canonical name that a raw tag is likely to mean.
type Suggestion struct {
	Canonical  string
	Similarity float64
}

// minSimilarity is the Jaro-Winkler score below which a canonical name is not
// worth suggesting.
const minSimilarity = 0.75

// Suggest ranks the known canonical names by similarity to a raw tag that is
// not present in the rename map, returning at most `n` of them. Mapped tags
// get no suggestions.
func (t Tables) Suggest(tag string, n int) []Suggestion {
	if _, ok := t.Map[tag]; ok {
		return nil
	}

	known := map[string]struct{}{}
	for _, canonical := range t.Map {
		known[canonical] = struct{}{}
	}
	for canonical, suppressed := range t.Filter {
		known[canonical] = struct{}{}
		for _, s := range suppressed {
			known[s] = struct{}{}
		}
	}
	delete(known, tag)

	var out []Suggestion
	for canonical := range known {
		similarity := matchr.JaroWinkler(tag, canonical, false)
		if similarity < minSimilarity {
			continue
		}
		out = append(out, Suggestion{Canonical: canonical, Similarity: similarity})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Canonical < out[j].Canonical
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
