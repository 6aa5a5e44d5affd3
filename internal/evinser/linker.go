// Package evinser turns usage and data-flow slices into CycloneDX evidence:
// occurrence locations, call-stack frames and detected services.
package evinser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/StinkyLord/sbom-evinser/internal/logging"
	"github.com/StinkyLord/sbom-evinser/internal/model"
	"github.com/StinkyLord/sbom-evinser/internal/resolver"
)

// TypeResolver resolves a batch of raw type strings to purls.
type TypeResolver interface {
	ResolveAll(ctx context.Context, types model.StringSet) (model.StringSet, error)
	Resolve(ctx context.Context, typeFullName string) (model.StringSet, error)
}

// UsageEvidence is the output of linking a usage slice.
type UsageEvidence struct {
	Locations model.PurlLocationMap
	Services  model.ServicesMap
}

// Linker maps usage slices to purl locations.
type Linker struct {
	Language string
	Resolver TypeResolver
	Log      *logging.Logger
}

// ObjectSlices returns objectSlices followed by userDefinedTypes with exact
// duplicates removed.
func ObjectSlices(u *model.UsageSlice) []model.ObjectSlice {
	if u == nil {
		return nil
	}
	seen := model.StringSet{}
	out := make([]model.ObjectSlice, 0, len(u.ObjectSlices)+len(u.UserDefinedTypes))
	for _, group := range [][]model.ObjectSlice{u.ObjectSlices, u.UserDefinedTypes} {
		for _, s := range group {
			key, err := json.Marshal(s)
			if err == nil && !seen.Add(string(key)) {
				continue
			}
			out = append(out, s)
		}
	}
	return out
}

// Link walks every object slice of u and returns the purl locations and the
// services detected along the way.
func (l *Linker) Link(ctx context.Context, u *model.UsageSlice) (*UsageEvidence, error) {
	ev := &UsageEvidence{
		Locations: model.PurlLocationMap{},
		Services:  model.ServicesMap{},
	}
	for _, s := range ObjectSlices(u) {
		if err := l.ParseSliceUsages(ctx, &s, ev); err != nil {
			return ev, err
		}
	}
	return ev, nil
}

// ParseSliceUsages links a single object slice into ev.
func (l *Linker) ParseSliceUsages(ctx context.Context, s *model.ObjectSlice, ev *UsageEvidence) error {
	if !s.HasFileName() {
		return nil
	}
	location := model.LocationKey(s.FileName, s.LineNumber)

	types := CandidateTypes(l.Language, s.AllUsages())
	purls, err := l.Resolver.ResolveAll(ctx, types)
	if err != nil {
		return fmt.Errorf("resolve types for %s: %w", location, err)
	}
	for p := range purls {
		ev.Locations.Add(p, location)
	}

	DetectServices(l.Language, s, ev.Services)
	return nil
}

// CandidateTypes collects the type strings of usages that are worth looking
// up. Each kept raw type is accompanied by its class-only form.
func CandidateTypes(language string, usages []model.Usage) model.StringSet {
	types := model.StringSet{}
	add := func(t string) {
		if resolver.IsFilterableType(language, t) {
			return
		}
		types.Add(t)
		if class, ok := resolver.ClassTypeFromSignature(language, t); ok && !resolver.IsFilterableType(language, class) {
			types.Add(class)
		}
	}

	for _, u := range usages {
		for _, target := range []*model.UsageTarget{u.TargetObj, u.DefinedBy} {
			if target == nil {
				continue
			}
			add(target.TypeFullName)
			add(target.ResolvedMethod)
		}
		for _, f := range u.Fields {
			add(f.TypeFullName)
		}
		for _, group := range [][]model.Call{u.InvokedCalls, u.ArgToCalls, u.Procedures} {
			for _, c := range group {
				add(c.ResolvedMethod)
				for _, p := range c.ParamTypes {
					add(p)
				}
			}
		}
	}
	return types
}
