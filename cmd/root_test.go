package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/StinkyLord/sbom-evinser/internal/store"
)

const cliBOM = `{
  "bomFormat": "CycloneDX",
  "specVersion": "1.5",
  "version": 1,
  "components": [
    {"type": "library", "name": "bar", "version": "1.0", "purl": "pkg:maven/com.acme/bar@1.0"}
  ]
}`

const cliUsages = `{"objectSlices": [{"fileName": "Foo.java", "usages": [{"targetObj": {"typeFullName": "com.acme.Bar"}}]}]}`

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportThenEvinse(t *testing.T) {
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "atomdb")
	t.Setenv("ATOM_CMD", filepath.Join(dir, "no-atom"))
	t.Setenv("MAVEN_REPO", filepath.Join(dir, "m2"))

	records := writeTemp(t, dir, "namespaces.json", `{"pkg:maven/com.acme/bar@1.0": {"namespaces": ["com.acme.Bar"]}}`)
	rootCmd.SetArgs([]string{"db", "import", records, "--db-path", dbDir})
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("db import: %v", err)
	}

	st, err := store.Open(context.Background(), store.Options{Path: filepath.Join(dbDir, "evinser.db")})
	if err != nil {
		t.Fatal(err)
	}
	n, err := st.Count(context.Background())
	st.Close()
	if err != nil || n != 1 {
		t.Fatalf("count = %d, %v", n, err)
	}

	in := writeTemp(t, dir, "bom.json", cliBOM)
	out := filepath.Join(dir, "bom.evinse.json")
	metricsFile := filepath.Join(dir, "evinse.prom")
	rootCmd.SetArgs([]string{
		"-i", in, "-o", out, "-l", "java", "--dir", dir,
		"--db-path", dbDir,
		"--skip-maven-collector",
		"--annotate=false",
		"--usages-slices-file", writeTemp(t, dir, "usages.slices.json", cliUsages),
		"--metrics-textfile", metricsFile,
	})
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("evinse: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"location": "Foo.java"`) {
		t.Errorf("occurrence missing from output:\n%s", data)
	}
	prom, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("metrics textfile: %v", err)
	}
	if !strings.Contains(string(prom), "evinse_evidence_total") {
		t.Errorf("metrics textfile missing evidence counter:\n%s", prom)
	}
}

func TestEvinse_RejectsUnknownLanguage(t *testing.T) {
	dir := t.TempDir()
	rootCmd.SetArgs([]string{"-l", "cobol", "--db-path", filepath.Join(dir, "db"), "--dir", dir})
	defer func() { flagLanguage = "" }()
	if err := rootCmd.ExecuteContext(context.Background()); err == nil {
		t.Error("expected an error for an unsupported language")
	}
}
