package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/StinkyLord/sbom-evinser/internal/config"
	"github.com/StinkyLord/sbom-evinser/internal/evinser"
	"github.com/StinkyLord/sbom-evinser/internal/logging"
	"github.com/StinkyLord/sbom-evinser/internal/metrics"
	"github.com/StinkyLord/sbom-evinser/internal/telemetry"
)

const toolVersion = "1.0.0"

var (
	flagConfig          string
	flagDBPath          string
	flagVerbose         bool
	flagMetricsTextfile string
	flagOTELEndpoint    string

	flagInput                string
	flagOutput               string
	flagLanguage             string
	flagDir                  string
	flagForce                bool
	flagSkipMavenCollector   bool
	flagWithDeepJarCollector bool
	flagAnnotate             bool
	flagWithDataFlow         bool
	flagUsagesSlicesFile     string
	flagDataFlowSlicesFile   string
)

var rootCmd = &cobra.Command{
	Use:   "evinse",
	Short: "Add code evidence to a CycloneDX SBOM",
	Long: `evinse links the components of a CycloneDX SBOM to the source code that
uses them. It runs the atom slicer over the project, resolves the types found
in the slices to purls through a local namespace database, and writes:
  • evidence.occurrences     : source locations that use the component
  • evidence.callstack.frames: one data-flow call stack per component
  • services                 : endpoints declared by route annotations
  • annotations              : the raw slices, when --annotate is set`,
	Example: `  evinse -i bom.json -o bom.evinse.json -l java --dir .
  evinse -i bom.json -l java --with-data-flow --usages-slices-file usages.slices.json
  evinse -i bom.json -o - --skip-maven-collector`,
	SilenceUsage: true,
	RunE:         runEvinse,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "TOML config file overriding the built-in defaults")
	pf.StringVar(&flagDBPath, "db-path", "", "Namespace database directory (default: $ATOM_DB or the platform app-data dir)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&flagMetricsTextfile, "metrics-textfile", "", "Write run counters in Prometheus text format to this file")
	pf.StringVar(&flagOTELEndpoint, "otel-endpoint", "", "OTLP/HTTP endpoint for phase spans (host:port)")

	f := rootCmd.Flags()
	f.StringVarP(&flagInput, "input", "i", "bom.json", "Input SBOM file")
	f.StringVarP(&flagOutput, "output", "o", "bom.evinse.json", "Output file path (use '-' for stdout)")
	f.StringVarP(&flagLanguage, "language", "l", "", "Project language: java, jar, javascript, python, android, cpp")
	f.StringVarP(&flagDir, "dir", "d", ".", "Path to the project source directory")
	f.BoolVar(&flagForce, "force", false, "Empty the namespace database before collecting")
	f.BoolVar(&flagSkipMavenCollector, "skip-maven-collector", false, "Do not index jars from the local maven repository")
	f.BoolVar(&flagWithDeepJarCollector, "with-deep-jar-collector", false, "Index every jar in the local maven repository")
	f.BoolVar(&flagAnnotate, "annotate", true, "Attach the raw slices to the SBOM as annotations")
	f.BoolVar(&flagWithDataFlow, "with-data-flow", false, "Also build call-stack evidence from a data-flow slice (slow)")
	f.StringVar(&flagUsagesSlicesFile, "usages-slices-file", "", "Use this usages slice instead of running the slicer, if it exists")
	f.StringVar(&flagDataFlowSlicesFile, "data-flow-slices-file", "", "Use this data-flow slice instead of running the slicer, if it exists")

	rootCmd.AddCommand(dbCmd)
	rootCmd.Version = toolVersion
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds the configuration and applies the persistent flags on
// top of it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDBPath != "" {
		cfg.Store.Dir = flagDBPath
	}
	if flagLanguage != "" {
		cfg.Language = flagLanguage
	}
	if flagOTELEndpoint != "" {
		cfg.Telemetry.OTELEndpoint = flagOTELEndpoint
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeMetrics(log *logging.Logger) {
	if flagMetricsTextfile == "" {
		return
	}
	if err := metrics.WriteTextfile(flagMetricsTextfile); err != nil {
		log.Warnw("failed to write metrics textfile", "path", flagMetricsTextfile, "error", err)
	}
}

func runEvinse(cmd *cobra.Command, args []string) error {
	log := logging.New(flagVerbose)
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	absDir, err := filepath.Abs(flagDir)
	if err != nil {
		return fmt.Errorf("cannot resolve directory %q: %w", flagDir, err)
	}
	if info, err := os.Stat(absDir); err != nil || !info.IsDir() {
		return fmt.Errorf("%q is not a directory", absDir)
	}

	ctx := cmd.Context()
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry.OTELEndpoint, cfg.Telemetry.OTELService, cfg.Telemetry.OTELInsecure)
	if err != nil {
		log.Warnw("tracing disabled", "error", err)
	} else {
		defer shutdown(context.Background())
	}
	defer writeMetrics(log)

	fmt.Fprintf(os.Stderr, "evinse v%s\n", toolVersion)
	fmt.Fprintf(os.Stderr, "Project: %s (%s)\n", absDir, cfg.Language)
	fmt.Fprintf(os.Stderr, "Namespace database: %s\n", cfg.StorePath())

	r := &evinser.Runner{Config: cfg, Log: log}
	sum, err := r.Run(ctx, evinser.Options{
		Input:                flagInput,
		Output:               flagOutput,
		Language:             cfg.Language,
		ProjectDir:           absDir,
		Annotate:             flagAnnotate,
		WithDataFlow:         flagWithDataFlow,
		Force:                flagForce,
		SkipMavenCollector:   flagSkipMavenCollector,
		WithDeepJarCollector: flagWithDeepJarCollector,
		UsagesSlicesFile:     flagUsagesSlicesFile,
		DataFlowSlicesFile:   flagDataFlowSlicesFile,
	})
	if err != nil {
		return fmt.Errorf("evinse failed: %w", err)
	}

	if sum.HasEvidence {
		fmt.Fprintf(os.Stderr, "Evidence added: %d occurrence set(s), %d callstack(s), %d service(s)\n",
			sum.Occurrences, sum.Callstacks, sum.Services)
	} else {
		fmt.Fprintln(os.Stderr, "No occurrence or callstack evidence was found. Check that the slicer is installed and the namespace database is populated.")
	}
	if flagOutput != "-" {
		fmt.Fprintf(os.Stderr, "SBOM written to: %s\n", flagOutput)
	}
	return nil
}
