package evinser

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/StinkyLord/sbom-evinser/internal/resolver"
	"github.com/StinkyLord/sbom-evinser/internal/store"
)

// seededStore opens a sqlite store in a temp dir and inserts one record per
// purl with the given namespaces.
func seededStore(t *testing.T, records map[string][]string) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.Options{Path: filepath.Join(t.TempDir(), "evinser.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	for purl, ns := range records {
		if _, _, err := st.Upsert(context.Background(), purl, &store.Data{Namespaces: ns}); err != nil {
			t.Fatalf("seed %s: %v", purl, err)
		}
	}
	return st
}

func newResolver(st *store.Store) *resolver.Resolver {
	return resolver.New(st, resolver.NewCache(), nil, 2)
}

func intPtr(v int) *int { return &v }
