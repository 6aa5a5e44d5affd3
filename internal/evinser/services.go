package evinser

import (
	"path/filepath"
	"strings"

	"github.com/StinkyLord/sbom-evinser/internal/model"
)

const serviceSuffix = "-service"

// ServiceName derives the service name of a slice from its fullName, or from
// the file basename when fullName is absent.
func ServiceName(s *model.ObjectSlice) string {
	var name string
	if s.FullName != "" {
		name, _, _ = strings.Cut(s.FullName, ":")
		name = strings.ReplaceAll(name, ".", "-")
	} else {
		base := filepath.Base(s.FileName)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if !strings.HasSuffix(name, serviceSuffix) {
		name += serviceSuffix
	}
	return name
}

// DetectServices records the endpoints declared by annotation usages of s
// into services. Only java and jar slices carry route annotations.
func DetectServices(language string, s *model.ObjectSlice, services model.ServicesMap) {
	if language != "java" && language != "jar" {
		return
	}
	name := ServiceName(s)

	// the auth hint belongs to the slice, whatever usage carries it
	authenticated := false
	for _, u := range s.Usages {
		var endpoints []string
		for _, target := range []*model.UsageTarget{u.TargetObj, u.DefinedBy} {
			if target == nil || target.Label != model.LabelAnnotation || target.ResolvedMethod == "" {
				continue
			}
			endpoints = append(endpoints, ExtractEndpoints(language, target.ResolvedMethod)...)
			if strings.Contains(strings.ToLower(target.ResolvedMethod), "auth") {
				authenticated = true
			}
		}
		if len(endpoints) == 0 {
			continue
		}
		svc, ok := services[name]
		if !ok {
			svc = &model.Service{Name: name, Endpoints: model.StringSet{}}
			services[name] = svc
		}
		for _, e := range endpoints {
			svc.Endpoints.Add(e)
		}
	}

	if svc, ok := services[name]; ok && authenticated {
		t := true
		svc.Authenticated = &t
		svc.XTrustBoundary = &t
	}
}

// ExtractEndpoints returns the route paths declared by an annotation call such
// as `@GetMapping(value = { "/", "/home" })`. It returns nil for anything it
// does not recognise.
func ExtractEndpoints(language, code string) []string {
	if language != "java" && language != "jar" {
		return nil
	}
	if !strings.HasPrefix(code, "@") {
		return nil
	}
	open := strings.Index(code, "(")
	end := strings.LastIndex(code, ")")
	if open < 0 || end <= open {
		return nil
	}
	args := code[open+1 : end]

	lb := strings.LastIndex(args, "{")
	rb := -1
	if lb >= 0 {
		rb = strings.Index(args[lb:], "}")
	}
	if rb >= 0 {
		args = args[lb+1 : lb+rb]
	} else if first, _, found := strings.Cut(args, ","); found {
		// unbalanced or absent braces: only the first argument is a route
		args = first
	}
	if eq := strings.LastIndex(args, "="); eq >= 0 {
		args = args[eq+1:]
	}
	args = strings.NewReplacer(`"`, "", "'", "", " ", "", "{", "").Replace(args)

	var endpoints []string
	for _, e := range strings.Split(args, ",") {
		if e != "" {
			endpoints = append(endpoints, e)
		}
	}
	return endpoints
}
