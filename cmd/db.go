package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/StinkyLord/sbom-evinser/internal/collector"
	"github.com/StinkyLord/sbom-evinser/internal/config"
	"github.com/StinkyLord/sbom-evinser/internal/logging"
	"github.com/StinkyLord/sbom-evinser/internal/store"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect and populate the namespace database",
}

var dbIndexCmd = &cobra.Command{
	Use:   "index [maven-repo-dir]",
	Short: "Index every jar of a maven repository layout (default: the local repository)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store, log *logging.Logger, cfg *config.Config) error {
			repo := cfg.Collector.MavenRepo
			if len(args) == 1 {
				repo = args[0]
			}
			c := &collector.Collector{Store: st, RepoDir: repo, Log: log, Concurrency: cfg.Resolver.Concurrency}
			n, err := c.CollectRepo(ctx, repo)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Indexed %d new package(s) from %s\n", n, repo)
			return nil
		})
	},
}

var dbImportCmd = &cobra.Command{
	Use:   "import <file.json[.zst|.gz]>",
	Short: "Import namespace records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store, _ *logging.Logger, _ *config.Config) error {
			n, err := collector.Import(ctx, st, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Imported %d new record(s)\n", n)
			return nil
		})
	},
}

var dbExportCmd = &cobra.Command{
	Use:   "export <file.json[.zst]>",
	Short: "Export every namespace record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store, _ *logging.Logger, _ *config.Config) error {
			n, err := collector.Export(ctx, st, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Exported %d record(s) to %s\n", n, args[0])
			return nil
		})
	},
}

var dbGetCmd = &cobra.Command{
	Use:   "get <purl>",
	Short: "Print the record stored for a purl",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store, _ *logging.Logger, _ *config.Config) error {
			rec, err := st.Get(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(rec.Raw)
			return nil
		})
	},
}

var dbSearchCmd = &cobra.Command{
	Use:   "search <type>",
	Short: "List the purls whose record contains the given text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store, _ *logging.Logger, _ *config.Config) error {
			recs, err := st.FindBySubstring(ctx, args[0])
			if err != nil {
				return err
			}
			for _, rec := range recs {
				fmt.Println(rec.Purl)
			}
			return nil
		})
	},
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number of stored records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store, _ *logging.Logger, _ *config.Config) error {
			n, err := st.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("records: %d\n", n)
			return nil
		})
	},
}

func init() {
	dbCmd.AddCommand(dbIndexCmd, dbImportCmd, dbExportCmd, dbGetCmd, dbSearchCmd, dbStatsCmd)
}

// withStore loads the configuration, opens the namespace database and hands
// it to fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store, log *logging.Logger, cfg *config.Config) error) error {
	log := logging.New(flagVerbose)
	defer log.Sync()
	defer writeMetrics(log)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	st, err := store.Open(ctx, store.Options{
		Path:      cfg.StorePath(),
		DSN:       cfg.Store.DSN,
		CacheSize: cfg.Store.CacheSize,
	})
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st, log, cfg)
}
