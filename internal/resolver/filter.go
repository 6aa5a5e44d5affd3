package resolver

import "strings"

// Markers the slicer uses for operators and types it could not resolve.
var markerPrefixes = []string{"<operator", "<unresolved"}

// Sentinel type names that never map to a package (compared upper-case).
var sentinelTypes = map[string]bool{
	"ANY":     true,
	"UNKNOWN": true,
	"VOID":    true,
	"IMPORT":  true,
}

// Standard-library namespaces of the JVM.
var javaStdPrefixes = []string{"java.", "sun.", "jdk.", "org.w3c.", "org.xml.", "javax.xml."}

// IsFilterableType reports whether typeFullName should be skipped instead of
// being looked up in the namespace store.
func IsFilterableType(language, typeFullName string) bool {
	if typeFullName == "" {
		return true
	}
	if sentinelTypes[strings.ToUpper(typeFullName)] {
		return true
	}
	for _, p := range markerPrefixes {
		if strings.HasPrefix(typeFullName, p) {
			return true
		}
	}

	switch language {
	case "java", "jar":
		if !strings.Contains(typeFullName, ".") || strings.HasPrefix(typeFullName, "@") {
			return true
		}
		for _, p := range javaStdPrefixes {
			if strings.HasPrefix(typeFullName, p) {
				return true
			}
		}
	case "javascript", "js", "ts", "typescript":
		if strings.Contains(typeFullName, ".js") || strings.Contains(typeFullName, "=>") {
			return true
		}
		for _, p := range []string{"__", "{ ", "JSON", "void:", "node:"} {
			if strings.HasPrefix(typeFullName, p) {
				return true
			}
		}
	case "python", "py":
		for _, p := range []string{"builtins", "tmp", "self.", "def "} {
			if strings.HasPrefix(typeFullName, p) {
				return true
			}
		}
	}
	return false
}

// ClassTypeFromSignature reduces a raw method or type signature to the name
// that is looked up in the store.
//
// For java and jar a method signature "pkg.Class.method:ret(args)" loses its
// signature suffix and method name, and the owning class is then reduced to
// its package namespace. Inner-class suffixes after '$' are dropped for every
// language. The boolean is false when the input still carries an
// unresolved or operator marker, or nothing is left.
func ClassTypeFromSignature(language, typeFullName string) (string, bool) {
	t := typeFullName
	if (language == "java" || language == "jar") && strings.Contains(t, ":") {
		t, _, _ = strings.Cut(t, ":")
		t = dropLastSegment(t)
		t = dropLastSegment(t)
	}
	for _, p := range markerPrefixes {
		if strings.HasPrefix(t, p) {
			return "", false
		}
	}
	if i := strings.IndexByte(t, '$'); i >= 0 {
		t = t[:i]
	}
	if t == "" {
		return "", false
	}
	return t, true
}

func dropLastSegment(s string) string {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return ""
	}
	return s[:i]
}
