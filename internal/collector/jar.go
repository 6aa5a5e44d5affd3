package collector

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/package-url/packageurl-go"

	"github.com/StinkyLord/sbom-evinser/internal/store"
)

// ListClasses returns the fully qualified class names packaged in a jar.
// Entries under META-INF, WEB-INF and similar directories are skipped, as are
// module descriptors.
func ListClasses(jarPath string) ([]string, error) {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return nil, fmt.Errorf("open jar %s: %w", jarPath, err)
	}
	defer r.Close()

	seen := map[string]bool{}
	var classes []string
	for _, f := range r.File {
		name := strings.TrimSpace(f.Name)
		if !strings.HasSuffix(name, ".class") || strings.Contains(name, "-INF") {
			continue
		}
		if strings.HasSuffix(name, "module-info.class") {
			continue
		}
		class := strings.ReplaceAll(strings.TrimSuffix(name, ".class"), "/", ".")
		if !seen[class] {
			seen[class] = true
			classes = append(classes, class)
		}
	}
	sort.Strings(classes)
	return classes, nil
}

type pomParent struct {
	GroupID string `xml:"groupId"`
	Version string `xml:"version"`
}

type pomProject struct {
	GroupID     string    `xml:"groupId"`
	ArtifactID  string    `xml:"artifactId"`
	Version     string    `xml:"version"`
	Name        string    `xml:"name"`
	Description string    `xml:"description"`
	URL         string    `xml:"url"`
	Parent      pomParent `xml:"parent"`
}

// ReadPom parses the coordinates and descriptive fields of a maven pom.
// groupId and version fall back to the parent's when not declared.
func ReadPom(path string) (*store.Pom, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p pomProject
	if err := xml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse pom %s: %w", path, err)
	}
	pom := &store.Pom{
		GroupID:     strings.TrimSpace(p.GroupID),
		ArtifactID:  strings.TrimSpace(p.ArtifactID),
		Version:     strings.TrimSpace(p.Version),
		Name:        strings.TrimSpace(p.Name),
		Description: strings.Join(strings.Fields(p.Description), " "),
		URL:         strings.TrimSpace(p.URL),
	}
	if pom.GroupID == "" {
		pom.GroupID = strings.TrimSpace(p.Parent.GroupID)
	}
	if pom.Version == "" {
		pom.Version = strings.TrimSpace(p.Parent.Version)
	}
	return pom, nil
}

// Artifact locates one maven artifact in a local repository.
type Artifact struct {
	Purl    string
	JarPath string
	PomPath string
}

// ArtifactForPurl maps a pkg:maven purl to its jar and pom under repo. It
// returns false for non-maven or incomplete purls.
func ArtifactForPurl(repo, purl string) (Artifact, bool) {
	p, err := packageurl.FromString(purl)
	if err != nil || p.Type != packageurl.TypeMaven {
		return Artifact{}, false
	}
	if p.Namespace == "" || p.Name == "" || p.Version == "" {
		return Artifact{}, false
	}
	dir := filepath.Join(repo, filepath.FromSlash(strings.ReplaceAll(p.Namespace, ".", "/")), p.Name, p.Version)
	base := p.Name + "-" + p.Version
	return Artifact{
		Purl:    purl,
		JarPath: filepath.Join(dir, base+".jar"),
		PomPath: filepath.Join(dir, base+".pom"),
	}, true
}

// ArtifactForJar derives maven coordinates from a jar laid out as
// <repo>/<group path>/<name>/<version>/<name>-<version>.jar. Classifier jars
// and jars outside that layout return false.
func ArtifactForJar(repo, jarPath string) (Artifact, bool) {
	rel, err := filepath.Rel(repo, filepath.Dir(jarPath))
	if err != nil || strings.HasPrefix(rel, "..") {
		return Artifact{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 {
		return Artifact{}, false
	}
	version := parts[len(parts)-1]
	name := parts[len(parts)-2]
	group := strings.Join(parts[:len(parts)-2], ".")
	if filepath.Base(jarPath) != name+"-"+version+".jar" {
		return Artifact{}, false
	}
	purl := packageurl.NewPackageURL(packageurl.TypeMaven, group, name, version, nil, "").ToString()
	return Artifact{
		Purl:    purl,
		JarPath: jarPath,
		PomPath: strings.TrimSuffix(jarPath, ".jar") + ".pom",
	}, true
}
