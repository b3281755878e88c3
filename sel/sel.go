package sel

import "slices"

// CollFilter returns true if a collection is allowed.
type CollFilter func(coll string) bool

func AllowAllFilter(string) bool {
	return true
}

// MakeFilter builds a collection filter from include and exclude lists.
// Exclusion takes precedence. An empty include list allows everything
// that is not excluded.
func MakeFilter(include, exclude []string) CollFilter {
	if len(include) == 0 && len(exclude) == 0 {
		return AllowAllFilter
	}

	return func(coll string) bool {
		if slices.Contains(exclude, coll) {
			return false
		}

		if len(include) > 0 {
			return slices.Contains(include, coll)
		}

		return true
	}
}
