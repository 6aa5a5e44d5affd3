package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/StinkyLord/sbom-evinser/internal/store"
)

// Import reads a {"<purl>": {"pom": ..., "namespaces": [...]}} document from
// path and upserts every entry. Files ending in .zst or .gz are decompressed.
// It returns the number of records inserted.
func Import(ctx context.Context, st Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r, closeFn, err := decompressor(path, f)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	var doc map[string]*store.Data
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}

	inserted := 0
	for purl, data := range doc {
		_, ok, err := st.Upsert(ctx, purl, data)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

// Lister returns every stored record.
type Lister interface {
	All(ctx context.Context) ([]*store.Record, error)
}

// Export writes every record in the format read by Import. A .zst path is
// zstd-compressed.
func Export(ctx context.Context, st Lister, path string) (int, error) {
	recs, err := st.All(ctx)
	if err != nil {
		return 0, err
	}
	doc := make(map[string]json.RawMessage, len(recs))
	for _, rec := range recs {
		doc[rec.Purl] = json.RawMessage(rec.Raw)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".zst") {
		if err := json.NewEncoder(f).Encode(doc); err != nil {
			return 0, fmt.Errorf("encode %s: %w", path, err)
		}
		return len(recs), f.Close()
	}

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return 0, fmt.Errorf("zstd writer error: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(doc); err != nil {
		enc.Close()
		return 0, fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("zstd close error: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return len(recs), nil
}

func decompressor(path string, r io.Reader) (io.Reader, func(), error) {
	switch {
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd reader error: %w", err)
		}
		return dec, dec.Close, nil
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip reader error: %w", err)
		}
		return gz, func() { gz.Close() }, nil
	default:
		return r, func() {}, nil
	}
}
