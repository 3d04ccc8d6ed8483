// Command sdkget is a headless, scriptable installer for Qt-style SDK
// archives: it resolves a package selection against a mirrored repository,
// downloads and verifies archives concurrently, extracts them, and patches
// the installed qmake, qt.conf, qconfig.pri, pkg-config and libtool files
// for their new prefix.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdkget/sdkget/internal/httpclient"
	"github.com/sdkget/sdkget/internal/installer"
	"github.com/sdkget/sdkget/internal/mirror"
	"github.com/sdkget/sdkget/internal/settings"
)

// logLevelFlag implements pflag.Value for slog.Level.
type logLevelFlag struct {
	level slog.Level
}

func (f *logLevelFlag) String() string { return strings.ToLower(f.level.String()) }
func (f *logLevelFlag) Type() string   { return "string" }
func (f *logLevelFlag) Set(s string) error {
	switch strings.ToLower(s) {
	case "debug":
		f.level = slog.LevelDebug
	case "info":
		f.level = slog.LevelInfo
	case "warn":
		f.level = slog.LevelWarn
	case "error":
		f.level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", s)
	}
	return nil
}

func (f *logLevelFlag) Level() slog.Level { return f.level }

var (
	globalLogLevel = &logLevelFlag{level: slog.LevelWarn}
	flagConfigFile string
	flagOutputDir  string
	flagNoColor    bool
	flagDryRun     bool
	flagPlanFormat string
)

var rootCmd = &cobra.Command{
	Use:           "sdkget",
	Short:         "Headless installer for Qt-style SDK archives",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: globalLogLevel.Level()})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Var(globalLogLevel, "log-level", "Log level (debug, info, warn, error)")
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "Path to an sdkget.ini settings file")
	rootCmd.PersistentFlags().StringVarP(&flagOutputDir, "outputdir", "o", "", "Installation root directory (required for install-* operations)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "Resolve and print the install plan without downloading anything")
	rootCmd.PersistentFlags().StringVar(&flagPlanFormat, "plan-format", "text", "Plan rendering for --dry-run: text or yaml")

	rootCmd.AddCommand(
		newInstallCmd("install-qt", "qt"),
		newInstallCmd("install-src", "src"),
		newInstallCmd("install-doc", "doc"),
		newInstallCmd("install-example", "example"),
		newInstallCmd("install-tool", "tool"),
		newListCmd("list-qt", "qt"),
		newListCmd("list-src", "src"),
		newListCmd("list-doc", "doc"),
		newListCmd("list-example", "example"),
		newListCmd("list-tool", "tool"),
	)
}

// loadSettings reads flagConfigFile if given, otherwise falls back to the
// built-in defaults; --outputdir and --no-color never reach Settings
// because they are per-invocation CLI concerns, not persisted configuration.
func loadSettings() (settings.Settings, error) {
	if flagConfigFile == "" {
		return settings.Default(), nil
	}
	return settings.Load(flagConfigFile)
}

// newFacade wires an installer.Facade from loaded Settings: httpclient.Client
// serves directory-index pages and Updates.xml, mirror.Selector serves
// archive bytes and checksums with trust separation enforced.
func newFacade(s settings.Settings) *installer.Facade {
	hc := httpclient.New(s)
	var s3 mirror.S3Fetcher
	if hasS3Mirror(s) {
		if client, err := mirror.NewS3Client(context.Background()); err == nil {
			s3 = client
		} else {
			slog.Warn("s3 mirror configured but credentials unavailable, skipping s3 support", "error", err)
		}
	}
	sel := mirror.New(s, hc, s3)
	stagingDir := s.ArchiveDownloadLocation
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}
	lockPath := stagingDir + "/.sdkget.lock"
	return installer.New(s, hc, sel, stagingDir, lockPath)
}

func hasS3Mirror(s settings.Settings) bool {
	for _, m := range append(append([]string{}, s.TrustedMirrors...), s.FallbackMirrors...) {
		if strings.HasPrefix(m, "s3://") {
			return true
		}
	}
	return false
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
