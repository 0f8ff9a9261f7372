package stringset

import (
	"sort"
	"strings"
)

// StringSet holds every string at most once.
type StringSet map[string]struct{}

// New builds a set from the given elements.
func New(elems ...string) StringSet {
	set := make(StringSet, len(elems))
	for _, str := range elems {
		set[str] = struct{}{}
	}
	return set
}

// Contains checks if the set includes a given string.
func (set StringSet) Contains(str string) bool {
	_, ok := set[str]
	return ok
}

// ContainsFold is Contains ignoring case.
func (set StringSet) ContainsFold(str string) bool {
	return set.Contains(strings.ToLower(str))
}

// Sorted returns the elements in lexical order.
func (set StringSet) Sorted() []string {
	result := make([]string, 0, len(set))
	for str := range set {
		result = append(result, str)
	}
	sort.Strings(result)
	return result
}

// String renders the set as a comma separated list, handy in error messages.
func (set StringSet) String() string {
	return strings.Join(set.Sorted(), ", ")
}
