package evinser

import (
	"context"
	"reflect"
	"testing"

	"github.com/StinkyLord/sbom-evinser/internal/model"
)

func TestCandidateTypes(t *testing.T) {
	usages := []model.Usage{{
		TargetObj: &model.UsageTarget{TypeFullName: "com.acme.Bar", ResolvedMethod: "com.acme.Bar.run:void()"},
		DefinedBy: &model.UsageTarget{TypeFullName: "java.lang.String"},
		Fields:    []model.Field{{TypeFullName: "org.lib.Field$Inner"}},
		InvokedCalls: []model.Call{{
			ResolvedMethod: "<operator>.assignment",
			ParamTypes:     []string{"ANY", "org.param.Type"},
		}},
		ArgToCalls: []model.Call{{ResolvedMethod: "@Annotation"}},
	}}
	got := CandidateTypes("java", usages).Sorted()
	want := []string{
		"com.acme",
		"com.acme.Bar",
		"com.acme.Bar.run:void()",
		"org.lib.Field",
		"org.lib.Field$Inner",
		"org.param.Type",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CandidateTypes = %v\nwant %v", got, want)
	}
}

func TestObjectSlices_Dedup(t *testing.T) {
	a := model.ObjectSlice{FileName: "A.java"}
	b := model.ObjectSlice{FileName: "B.java", Fields: []model.Field{{TypeFullName: "com.acme.B"}}}
	got := ObjectSlices(&model.UsageSlice{
		ObjectSlices:     []model.ObjectSlice{a, b},
		UserDefinedTypes: []model.ObjectSlice{b, {FileName: "C.java"}},
	})
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[2].FileName != "C.java" {
		t.Errorf("order = %s %s %s", got[0].FileName, got[1].FileName, got[2].FileName)
	}
	if ObjectSlices(nil) != nil {
		t.Error("nil slice should yield nil")
	}
}

func TestLink_EndToEnd(t *testing.T) {
	st := seededStore(t, map[string][]string{
		"pkg:maven/com.acme/bar@1.0":  {"com.acme.Bar"},
		"pkg:maven/org.other/x@2.0":   {"org.other.X"},
		"pkg:maven/com.acme/util@1.0": {"com.acme.util.Helper"},
	})
	l := &Linker{Language: "java", Resolver: newResolver(st)}

	u := &model.UsageSlice{ObjectSlices: []model.ObjectSlice{
		{
			FileName: "Foo.java",
			Usages:   []model.Usage{{TargetObj: &model.UsageTarget{TypeFullName: "com.acme.Bar"}}},
		},
		{
			FileName:   "Foo.java",
			LineNumber: intPtr(42),
			Usages:     []model.Usage{{Fields: []model.Field{{TypeFullName: "com.acme.Bar"}}}},
		},
		{
			// no real file: contributes nothing
			FileName: "<empty>",
			Usages:   []model.Usage{{TargetObj: &model.UsageTarget{TypeFullName: "org.other.X"}}},
		},
	}}

	ev, err := l.Link(context.Background(), u)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	got := ev.Locations["pkg:maven/com.acme/bar@1.0"].Sorted()
	if !reflect.DeepEqual(got, []string{"Foo.java", "Foo.java#42"}) {
		t.Errorf("locations = %v", got)
	}
	if _, ok := ev.Locations["pkg:maven/org.other/x@2.0"]; ok {
		t.Error("slice without a file name produced evidence")
	}
	if len(ev.Locations) != 1 {
		t.Errorf("unexpected purls: %v", ev.Locations)
	}
}

func TestLink_SingleSliceScenario(t *testing.T) {
	st := seededStore(t, map[string][]string{"pkg:maven/com.acme/bar@1.0": {"com.acme.Bar"}})
	l := &Linker{Language: "java", Resolver: newResolver(st)}
	ev, err := l.Link(context.Background(), &model.UsageSlice{ObjectSlices: []model.ObjectSlice{{
		FileName: "Foo.java",
		Usages:   []model.Usage{{TargetObj: &model.UsageTarget{TypeFullName: "com.acme.Bar"}}},
	}}})
	if err != nil {
		t.Fatal(err)
	}
	want := model.PurlLocationMap{"pkg:maven/com.acme/bar@1.0": model.StringSet{"Foo.java": {}}}
	if !reflect.DeepEqual(ev.Locations, want) {
		t.Errorf("locations = %v, want %v", ev.Locations, want)
	}
}

func TestLink_UserDefinedTypeTopLevelMembers(t *testing.T) {
	st := seededStore(t, map[string][]string{"pkg:maven/org.lib/proc@3.0": {"org.lib.Proc"}})
	l := &Linker{Language: "java", Resolver: newResolver(st)}
	ev, err := l.Link(context.Background(), &model.UsageSlice{UserDefinedTypes: []model.ObjectSlice{{
		FileName:   "Model.java",
		Procedures: []model.Call{{ResolvedMethod: "org.lib.Proc.call:void()"}},
	}}})
	if err != nil {
		t.Fatal(err)
	}
	if !ev.Locations["pkg:maven/org.lib/proc@3.0"].Has("Model.java") {
		t.Errorf("locations = %v", ev.Locations)
	}
}

func TestLink_CollectsServices(t *testing.T) {
	st := seededStore(t, nil)
	l := &Linker{Language: "java", Resolver: newResolver(st)}
	ev, err := l.Link(context.Background(), &model.UsageSlice{ObjectSlices: []model.ObjectSlice{
		{FileName: "Api.java", Usages: []model.Usage{annotationUsage(`@GetMapping("/token")`)}},
		{FileName: "", Usages: []model.Usage{annotationUsage(`@GetMapping("/hidden")`)}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if names := ev.Services.Names(); !reflect.DeepEqual(names, []string{"Api-service"}) {
		t.Errorf("services = %v", names)
	}
}
