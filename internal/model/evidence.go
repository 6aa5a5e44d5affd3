package model

import (
	"sort"
	"strconv"
)

// LocationKey formats the occurrence location of a slice: "<fileName>" or
// "<fileName>#<lineNumber>".
func LocationKey(fileName string, lineNumber *int) string {
	if lineNumber == nil {
		return fileName
	}
	return fileName + "#" + strconv.Itoa(*lineNumber)
}

// StringSet is an unordered set of strings.
type StringSet map[string]struct{}

// Add inserts v and reports whether it was new.
func (s StringSet) Add(v string) bool {
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = struct{}{}
	return true
}

// Has reports whether v is in the set.
func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Merge adds every element of other.
func (s StringSet) Merge(other StringSet) {
	for v := range other {
		s[v] = struct{}{}
	}
}

// Sorted returns the elements in ascending order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// PurlLocationMap maps a purl to the set of source locations it was used at.
type PurlLocationMap map[string]StringSet

// Add records location for purl.
func (m PurlLocationMap) Add(purl, location string) {
	set, ok := m[purl]
	if !ok {
		set = StringSet{}
		m[purl] = set
	}
	set.Add(location)
}

// FrameEntry is one element of a call-stack frame. Every field defaults to the
// empty string when the slicer did not report it.
type FrameEntry struct {
	Package      string `json:"package"`
	Module       string `json:"module"`
	Function     string `json:"function"`
	Line         string `json:"line"`
	Column       string `json:"column"`
	FullFilename string `json:"fullFilename"`
}

// Frame is an ordered call sequence; entry order mirrors node order on the
// data-flow path it was built from.
type Frame []FrameEntry

// DataFlowFrames maps a purl to every candidate frame that implicates it.
type DataFlowFrames map[string][]Frame

// Service is a web service detected from annotation usages.
type Service struct {
	Name          string
	Endpoints     StringSet
	Authenticated *bool
	// XTrustBoundary mirrors Authenticated when it is true and is unset otherwise.
	XTrustBoundary *bool
}

// ServicesMap indexes detected services by name.
type ServicesMap map[string]*Service

// Names returns the service names in ascending order.
func (m ServicesMap) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
