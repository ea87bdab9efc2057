package obs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
)

// KeyVantage names the vantage point that measured a set.
const KeyVantage = "vantage"

// Metadata is the key/value header of an observation set.
type Metadata map[string]any

// Has reports whether key is present. A nil Metadata has no keys.
func (md Metadata) Has(key string) bool {
	_, ok := md[key]
	return ok
}

// Conditions returns the declared condition list (_conditions). Entries
// that are not strings are skipped; a missing key yields nil.
func (md Metadata) Conditions() []string {
	return stringList(md[KeyConditions])
}

// Vantage returns the vantage key, or "" when it is missing or not a
// string.
func (md Metadata) Vantage() string {
	v, _ := md[KeyVantage].(string)
	return v
}

// Sources returns the _sources list.
func (md Metadata) Sources() []string {
	return stringList(md[KeySources])
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return slices.Clone(l)
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ReadMetadata decodes one JSON object from r.
func ReadMetadata(r io.Reader) (Metadata, error) {
	var md Metadata
	if err := json.NewDecoder(r).Decode(&md); err != nil {
		return nil, fmt.Errorf("obs: decode metadata: %w", err)
	}
	if md == nil {
		return nil, errors.New("obs: metadata is not a JSON object")
	}
	return md, nil
}

// SetInfo identifies one input set for MergeMetadata.
type SetInfo struct {
	// Link names where the set came from; empty links are not recorded.
	Link     string
	Metadata Metadata
}

// MergeMetadata combines the metadata of several input sets into the
// metadata inherited by a derived set. A key is inherited only if every set
// carrying it agrees on the value; conflicting keys are dropped. The links
// and upstream _sources of all inputs are collected under _sources.
// _conditions, _analyzer and _run_id describe a single set and are never
// inherited.
func MergeMetadata(sets ...SetInfo) Metadata {
	out := make(Metadata)
	conflicting := make(map[string]struct{})
	var sources []string
	seen := make(map[string]struct{})

	addSource := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		sources = append(sources, s)
	}

	for _, set := range sets {
		for _, s := range set.Metadata.Sources() {
			addSource(s)
		}
		addSource(set.Link)

		// deterministic iteration keeps the conflict bookkeeping stable
		keys := make([]string, 0, len(set.Metadata))
		for k := range set.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			switch k {
			case KeyConditions, KeyAnalyzer, KeyRunID, KeySources:
				continue
			}
			if _, ok := conflicting[k]; ok {
				continue
			}
			newval := set.Metadata[k]
			existval, ok := out[k]
			if !ok {
				out[k] = newval
			} else if fmt.Sprintf("%v", existval) != fmt.Sprintf("%v", newval) {
				delete(out, k)
				conflicting[k] = struct{}{}
			}
		}
	}

	if len(sources) > 0 {
		out[KeySources] = sources
	}
	return out
}
