package services

import "sort"

// IDSet is a set of question ids
type IDSet map[string]struct{}

// NewIDSet builds a set from any number of id slices
func NewIDSet(groups ...[]string) IDSet {
	s := make(IDSet)
	for _, ids := range groups {
		s.AddAll(ids)
	}
	return s
}

// Add inserts id
func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

// AddAll inserts every id
func (s IDSet) AddAll(ids []string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Merge inserts every member of other
func (s IDSet) Merge(other IDSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Has reports membership. A nil set contains nothing.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in lexical order
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
