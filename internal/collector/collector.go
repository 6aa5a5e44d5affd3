// Package collector fills the namespace store with the classes packaged in
// maven artifacts found in a local repository.
package collector

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"golang.org/x/sync/errgroup"

	"github.com/StinkyLord/sbom-evinser/internal/logging"
	"github.com/StinkyLord/sbom-evinser/internal/metrics"
	"github.com/StinkyLord/sbom-evinser/internal/output"
	"github.com/StinkyLord/sbom-evinser/internal/store"
)

// Store is the part of the namespace store the collector writes to.
type Store interface {
	Upsert(ctx context.Context, purl string, data *store.Data) (*store.Record, bool, error)
	Get(ctx context.Context, purl string) (*store.Record, error)
}

// Collector indexes jars into a Store.
type Collector struct {
	Store       Store
	RepoDir     string
	Log         *logging.Logger
	Concurrency int
}

// DefaultRepoDir returns $MAVEN_REPO or ~/.m2/repository.
func DefaultRepoDir() string {
	if dir := os.Getenv("MAVEN_REPO"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".m2", "repository")
}

// CollectBOM indexes the jar of every pkg:maven component of bom that is not
// yet in the store. It returns the number of records inserted.
func (c *Collector) CollectBOM(ctx context.Context, bom *cdx.BOM) (int, error) {
	seen := map[string]bool{}
	var artifacts []Artifact
	output.WalkComponents(bom, func(comp *cdx.Component) {
		if comp.PackageURL == "" || seen[comp.PackageURL] {
			return
		}
		seen[comp.PackageURL] = true
		if a, ok := ArtifactForPurl(c.RepoDir, comp.PackageURL); ok {
			artifacts = append(artifacts, a)
		}
	})
	return c.index(ctx, artifacts, true)
}

// CollectRepo indexes every jar under dir, which must be laid out as a maven
// repository.
func (c *Collector) CollectRepo(ctx context.Context, dir string) (int, error) {
	var artifacts []Artifact
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".jar") {
			return nil
		}
		if a, ok := ArtifactForJar(dir, path); ok {
			artifacts = append(artifacts, a)
		} else {
			c.logger().Debugw("skipping jar outside repository layout", "jar", path)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return c.index(ctx, artifacts, false)
}

func (c *Collector) index(ctx context.Context, artifacts []Artifact, skipKnown bool) (int, error) {
	log := c.logger()
	var inserted atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.Concurrency, 1))
	for _, a := range artifacts {
		g.Go(func() error {
			if skipKnown {
				if _, err := c.Store.Get(gctx, a.Purl); err == nil {
					return nil
				} else if !errors.Is(err, store.ErrNotFound) {
					return err
				}
			}
			if _, err := os.Stat(a.JarPath); err != nil {
				log.Debugw("jar not in local repository", "purl", a.Purl, "jar", a.JarPath)
				return nil
			}
			classes, err := ListClasses(a.JarPath)
			if err != nil {
				log.Warnw("failed to read jar", "jar", a.JarPath, "error", err)
				return nil
			}
			data := &store.Data{Namespaces: classes}
			if pom, err := ReadPom(a.PomPath); err == nil {
				data.Pom = pom
			}
			_, ok, err := c.Store.Upsert(gctx, a.Purl, data)
			if err != nil {
				return err
			}
			if ok {
				inserted.Add(1)
				metrics.Namespaces.Inc()
				log.Debugw("indexed jar", "purl", a.Purl, "classes", len(classes))
			}
			return nil
		})
	}
	err := g.Wait()
	return int(inserted.Load()), err
}

func (c *Collector) logger() *logging.Logger {
	if c.Log == nil {
		return logging.Nop()
	}
	return c.Log
}
