// fieldloc — batch translation of localized CMS record fields through an
// LLM proxy.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fieldloc/fieldloc/config"
	"github.com/fieldloc/fieldloc/i18n"
	"github.com/fieldloc/fieldloc/langmeta"
	"github.com/fieldloc/fieldloc/proxy"
	"github.com/fieldloc/fieldloc/recordfile"
	"github.com/fieldloc/fieldloc/scheduler"
	"github.com/fieldloc/fieldloc/schema"
	"github.com/fieldloc/fieldloc/settings"
	"github.com/fieldloc/fieldloc/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir string
	apiKey  string
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fieldloc",
		Short: "Batch translation of localized CMS record fields",
		Long: `fieldloc — batch translation of localized CMS record fields.

Reads a record file (field metadata plus per-locale values), translates every
eligible field into the configured target locales through an LLM proxy, and
writes the results back. Structured-text documents are taken apart, batch
translated, and reassembled with their tree shape, embedded blocks, and
non-text attributes intact.

Commands:
  translate   Translate the record's fields into the target locales
  status      Show configuration and per-locale translation coverage
  auth        Manage the proxy API key
  version     Show version information

Configuration lives in .fieldloc.yaml (found by walking up from --root).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags — inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().StringVar(&apiKey, "api-key", "", "Proxy API key (overrides env and stored key)")

	root.AddCommand(
		newTranslateCmd(),
		newStatusCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	_ = godotenv.Load()
	i18n.Init("")

	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Shared setup
// ---------------------------------------------------------------------------

// loadConfig finds .fieldloc.yaml starting at --root.
func loadConfig() (*config.File, error) {
	cfg, err := config.Find(rootDir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("no %s found (searched from %s upward)", config.FileName, rootDir)
	}
	return cfg, nil
}

// openRecord opens the record file named on the command line or in the
// config.
func openRecord(cfg *config.File, flagPath string) (*recordfile.File, error) {
	path := flagPath
	if path == "" {
		path = cfg.RecordPath()
	}
	if path == "" {
		return nil, fmt.Errorf("no record file: pass --record or set record in %s", config.FileName)
	}
	return recordfile.ParseFile(path)
}

// ---------------------------------------------------------------------------
// translate (run the scheduler over the record)
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		recordPath string
		locales    []string
		dryRun     bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate the record's fields into the target locales",
		Long: `Translate every eligible field of the record into the target locales.

Eligible fields are localized, of a translatable editor type, not excluded in
.fieldloc.yaml, and non-empty in the source locale. Jobs run through a small
worker pool; writes are coalesced. Ctrl-C stops scheduling new jobs and lets
in-flight ones finish.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			record, err := openRecord(cfg, recordPath)
			if err != nil {
				return err
			}

			targets := cfg.TargetLocales
			if len(locales) > 0 {
				targets = locales
			}

			if dryRun {
				return runDryRun(cfg, record, targets)
			}

			key := settings.ResolveAPIKey(apiKey)
			client := &proxy.Client{
				URL:        cfg.Proxy.URL,
				Model:      cfg.Proxy.Model,
				MaxTokens:  cfg.Proxy.MaxTokens,
				APIKey:     key,
				MaxRetries: cfg.Proxy.Retries,
			}
			if verbose {
				client.OnLog = logInfo
			}

			// Ctrl-C stops scheduling; in-flight jobs finish and flush.
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt)
			go func() {
				<-sigCh
				logWarning("Interrupted, finishing in-flight jobs...")
				cancel()
			}()

			record.OnNotify = func(kind, message string) {
				if kind == scheduler.NoticeError {
					logWarning("%s", message)
				} else {
					logSuccess("%s", message)
				}
			}

			opts := scheduler.Options{
				SourceLocale:   cfg.SourceLocale,
				TargetLocales:  targets,
				ExcludedFields: cfg.ExcludedFields,
				Concurrency:    cfg.Concurrency,
				NewTranslator: func(toLocale string) scheduler.Translator {
					return translate.New(translate.Options{
						Client:        client,
						FromLocale:    cfg.SourceLocale,
						ToLocale:      toLocale,
						RecordContext: cfg.RecordContext,
						ExtraPrompt:   cfg.Prompt,
						BatchBudget:   cfg.BatchBudget,
						ChunkSize:     cfg.ChunkSize,
						OnLog: func(format string, args ...any) {
							if verbose {
								logInfo(format, args...)
							}
						},
						OnError: logWarning,
					})
				},
				OnLog: func(format string, args ...any) {
					if verbose {
						logInfo(format, args...)
					}
				},
				OnError: logError,
				OnProgress: func(done, total int) {
					logInfo("  %d/%d", done, total)
				},
			}

			logInfo("%s", i18n.T("Translating record fields..."))
			summary, err := scheduler.Run(ctx, record, opts)
			if err != nil {
				return err
			}

			if summary.Jobs == 0 {
				logInfo("%s", i18n.T("Nothing to translate"))
				return nil
			}
			logSuccess(i18n.N("Translated %d value", "Translated %d values", summary.Written), summary.Written)
			if summary.Failed > 0 {
				logWarning(i18n.N("%d job failed", "%d jobs failed", summary.Failed), summary.Failed)
			}
			if summary.Canceled {
				logWarning("%s", i18n.T("Canceled"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&recordPath, "record", "", "Record file to translate")
	cmd.Flags().StringSliceVar(&locales, "locales", nil, "Target locales (overrides config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the jobs without calling the proxy")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every request")

	return cmd
}

// runDryRun lists what would be translated without touching the proxy.
func runDryRun(cfg *config.File, record *recordfile.File, targets []string) error {
	fields, err := record.Fields()
	if err != nil {
		return err
	}

	jobs := 0
	for _, f := range fields {
		value, err := record.Value(f.APIKey, cfg.SourceLocale)
		if err != nil {
			return err
		}
		if !schema.Eligible(f, cfg.ExcludedFields, value) {
			continue
		}
		for _, loc := range targets {
			if loc == cfg.SourceLocale {
				continue
			}
			logInfo("would translate %s (%s) → %s", f.APIKey, f.EditorType, loc)
			jobs++
		}
	}
	if jobs == 0 {
		logInfo("%s", i18n.T("Nothing to translate"))
	} else {
		logInfo("%d job(s) total", jobs)
	}
	return nil
}

// ---------------------------------------------------------------------------
// status (configuration and coverage)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var recordPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration and per-locale translation coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "\n%sConfiguration%s\n", colorBlue, colorReset)
			fmt.Fprintf(os.Stderr, "  Config:  %s\n", cfg.Dir())
			fmt.Fprintf(os.Stderr, "  Proxy:   %s (model %s)\n", cfg.Proxy.URL, orUnset(cfg.Proxy.Model))
			fmt.Fprintf(os.Stderr, "  Source:  %s (%s)\n", cfg.SourceLocale, langmeta.DisplayName(cfg.SourceLocale))
			fmt.Fprintf(os.Stderr, "  Targets: %s\n", describeLocales(cfg.TargetLocales))
			if len(cfg.ExcludedFields) > 0 {
				fmt.Fprintf(os.Stderr, "  Excluded fields: %s\n", strings.Join(cfg.ExcludedFields, ", "))
			}

			if key := settings.ResolveAPIKey(apiKey); key != "" {
				fmt.Fprintf(os.Stderr, "  API key: %s\n", settings.MaskKey(key))
			} else {
				fmt.Fprintf(os.Stderr, "  API key: %snot configured%s\n", colorYellow, colorReset)
			}

			record, err := openRecord(cfg, recordPath)
			if err != nil {
				logWarning("%v", err)
				return nil
			}
			return showCoverage(cfg, record)
		},
	}

	cmd.Flags().StringVar(&recordPath, "record", "", "Record file to inspect")
	return cmd
}

// showCoverage prints how many eligible fields already carry a value per
// target locale.
func showCoverage(cfg *config.File, record *recordfile.File) error {
	fields, err := record.Fields()
	if err != nil {
		return err
	}

	var eligible []schema.Field
	for _, f := range fields {
		value, err := record.Value(f.APIKey, cfg.SourceLocale)
		if err != nil {
			return err
		}
		if schema.Eligible(f, cfg.ExcludedFields, value) {
			eligible = append(eligible, f)
		}
	}

	fmt.Fprintf(os.Stderr, "\n%sTranslation Coverage%s\n", colorBlue, colorReset)
	fmt.Fprintf(os.Stderr, "  Record: %s (%d fields, %d eligible)\n",
		record.Path(), len(fields), len(eligible))
	if len(eligible) == 0 {
		return nil
	}

	for _, loc := range cfg.TargetLocales {
		if loc == cfg.SourceLocale {
			continue
		}
		done := 0
		for _, f := range eligible {
			v, err := record.Value(f.APIKey, loc)
			if err != nil {
				return err
			}
			if !schema.IsEmptyValue(v) {
				done++
			}
		}
		percent := 100 * done / len(eligible)
		statusColor := colorGreen
		switch {
		case done == 0:
			statusColor = colorRed
		case done < len(eligible):
			statusColor = colorYellow
		}
		fmt.Fprintf(os.Stderr, "  %s%-8s%s %3d%% (%d/%d)\n",
			statusColor, loc, colorReset, percent, done, len(eligible))
	}
	return nil
}

func describeLocales(locales []string) string {
	parts := make([]string, len(locales))
	for i, loc := range locales {
		parts[i] = fmt.Sprintf("%s (%s)", loc, langmeta.DisplayName(loc))
	}
	return strings.Join(parts, ", ")
}

func orUnset(s string) string {
	if s == "" {
		return "unset"
	}
	return s
}

// ---------------------------------------------------------------------------
// auth (set / status / clear)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the proxy API key",
		Long: `Manage the proxy API key.

The key is stored in ` + settings.FilePath() + ` with 0600 permissions.
Lookup order at runtime: --api-key flag, then ` + settings.EnvAPIKey + `, then
the stored key.

Examples:
  fieldloc auth set sk-...     Store the key
  fieldloc auth status         Show where the key comes from
  fieldloc auth clear          Remove the stored key`,
	}

	cmd.AddCommand(newAuthSetCmd(), newAuthStatusCmd(), newAuthClearCmd())
	return cmd
}

func newAuthSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key>",
		Short: "Store the proxy API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.SetAPIKey(args[0]); err != nil {
				return err
			}
			logSuccess("%s", i18n.T("API key saved"))
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configured API key (masked)",
		Run: func(cmd *cobra.Command, args []string) {
			switch {
			case apiKey != "":
				logInfo("Using key from --api-key: %s", settings.MaskKey(apiKey))
			case os.Getenv(settings.EnvAPIKey) != "":
				logInfo("Using key from %s: %s", settings.EnvAPIKey, settings.MaskKey(os.Getenv(settings.EnvAPIKey)))
			case settings.GetAPIKey() != "":
				logInfo("Using stored key: %s (%s)", settings.MaskKey(settings.GetAPIKey()), settings.FilePath())
			default:
				logWarning("%s", i18n.T("No API key configured"))
			}
		},
	}
}

func newAuthClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.Clear(); err != nil {
				return err
			}
			logSuccess("%s", i18n.T("API key removed"))
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fieldloc version %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}
