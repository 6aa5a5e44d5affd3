package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestLocationKey(t *testing.T) {
	line := 42
	if got := LocationKey("App.java", nil); got != "App.java" {
		t.Errorf("without line = %q", got)
	}
	if got := LocationKey("App.java", &line); got != "App.java#42" {
		t.Errorf("with line = %q", got)
	}
}

func TestHasFileName(t *testing.T) {
	for name, want := range map[string]bool{
		"App.java": true,
		"":         false,
		"   ":      false,
		"<empty>":  false,
	} {
		s := ObjectSlice{FileName: name}
		if got := s.HasFileName(); got != want {
			t.Errorf("HasFileName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestAllUsages_TopLevelMembers(t *testing.T) {
	var s ObjectSlice
	raw := `{"fileName":"Model.java","usages":[{"targetObj":{"typeFullName":"a.B"}}],
		"fields":[{"name":"f","typeFullName":"c.D"}],"procedures":[{"resolvedMethod":"e.F.g:void()"}]}`
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatal(err)
	}
	all := s.AllUsages()
	if len(all) != 2 {
		t.Fatalf("usages = %d, want 2", len(all))
	}
	if all[1].Fields[0].TypeFullName != "c.D" || all[1].Procedures[0].ResolvedMethod != "e.F.g:void()" {
		t.Errorf("implicit usage = %+v", all[1])
	}

	plain := ObjectSlice{Usages: s.Usages}
	if !reflect.DeepEqual(plain.AllUsages(), s.Usages) {
		t.Error("slices without top-level members should return their usages unchanged")
	}
}

func TestStringSetSorted(t *testing.T) {
	s := StringSet{}
	s.Add("b")
	s.Add("a")
	if s.Add("a") {
		t.Error("duplicate Add reported as new")
	}
	if got := s.Sorted(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Sorted = %v", got)
	}
}
