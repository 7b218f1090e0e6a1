package servient

import (
	"reflect"
	"time"

	"github.com/linksmart/wot-servient/wot"
)

// Discovery methods
const (
	DiscoveryAny       = "any"
	DiscoveryLocal     = "local"
	DiscoveryDirectory = "directory"
	DiscoveryMulticast = "multicast"
	DiscoveryNearby    = "nearby"
	DiscoveryBroadcast = "broadcast"
	DiscoveryOther     = "other"
)

// ThingFilter selects the Things yielded by a discovery
type ThingFilter struct {
	// One of the discovery methods, "any" when empty
	Method string
	// Directory or Thing to query
	URL string
	// JSONPath or XPath query a TD has to satisfy
	Query string
	// Template a TD has to match
	Fragment map[string]any
	// Bounds network discovery; zero for none
	Timeout time.Duration
}

// matcher decides whether a candidate TD satisfies a filter
type matcher struct {
	query    string
	fragment any
	eval     QueryEvaluator
}

func newMatcher(filter ThingFilter, eval QueryEvaluator) (*matcher, error) {
	m := &matcher{query: filter.Query, eval: eval}
	if len(filter.Fragment) > 0 {
		fragment, err := wot.Normalize(filter.Fragment)
		if err != nil {
			return nil, schemaViolation("", "", err)
		}
		m.fragment = fragment
	}
	return m, nil
}

// match applies the fragment and, unless the source already evaluated it, the query
func (m *matcher) match(td map[string]any, applyQuery bool) (bool, error) {
	if m.fragment != nil && !matchFragment(m.fragment, td, true) {
		return false, nil
	}
	if applyQuery && m.query != "" {
		return m.eval.Evaluate(m.query, td)
	}
	return true, nil
}

// matchFragment reports whether every member of the fragment is present in the candidate with an equal value.
// Objects are matched recursively, every element of a fragment array must match some candidate element.
func matchFragment(fragment, candidate any, root bool) bool {
	switch f := fragment.(type) {
	case map[string]any:
		c, ok := candidate.(map[string]any)
		if !ok {
			return false
		}
		for k, fv := range f {
			cv, found := c[k]
			if !found && root && k == "name" {
				// the Thing's name is its title
				cv, found = c["title"]
			}
			if !found || !matchFragment(fv, cv, false) {
				return false
			}
		}
		return true
	case []any:
		c, ok := candidate.([]any)
		if !ok {
			// a single value matches a singleton array, e.g. "security"
			return len(f) == 1 && matchFragment(f[0], candidate, false)
		}
		for _, fe := range f {
			var found bool
			for _, ce := range c {
				if matchFragment(fe, ce, false) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	if c, ok := candidate.([]any); ok && len(c) == 1 {
		return reflect.DeepEqual(fragment, c[0])
	}
	return reflect.DeepEqual(fragment, candidate)
}
