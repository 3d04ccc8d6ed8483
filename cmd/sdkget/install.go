package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdkget/sdkget/internal/installer"
	"github.com/sdkget/sdkget/internal/resolve"
	"github.com/sdkget/sdkget/internal/target"
)

// installFlags holds the flags shared by every install-* subcommand.
type installFlags struct {
	host        string
	kind        string
	arch        string
	modules     []string
	archives    []string
	noArchives  bool
	autoDesktop bool
	toolName    string
}

func (f *installFlags) registerFlags(cmd *cobra.Command, hasModules, hasTool bool) {
	cmd.Flags().StringVar(&f.host, "host", "", "Host OS running sdkget (linux, mac, windows)")
	cmd.Flags().StringVar(&f.kind, "target", "desktop", "Target device class (desktop, android, ios, winrt)")
	cmd.Flags().StringVar(&f.arch, "arch", "", "Architecture/ABI folder name (e.g. gcc_64, win64_mingw81)")
	cmd.MarkFlagRequired("host")
	cmd.MarkFlagRequired("arch")
	if hasModules {
		cmd.Flags().StringSliceVar(&f.modules, "modules", nil, "Module short names to install, or \"all\"")
	}
	cmd.Flags().StringSliceVar(&f.archives, "archives", nil, "Restrict to a subset of the base package's archives")
	cmd.Flags().BoolVar(&f.noArchives, "no-archives", false, "Skip the base package's own archives (modules only)")
	cmd.Flags().BoolVar(&f.autoDesktop, "autodesktop", false, "Also resolve the desktop base package mobile tooling needs")
	if hasTool {
		cmd.Flags().StringVar(&f.toolName, "tool-name", "", "Tool package to install (required for install-tool)")
		cmd.MarkFlagRequired("tool-name")
	}
}

func (f *installFlags) buildRequest(op resolve.Operation, versionConstraint string) (resolve.Request, error) {
	key, err := target.New(target.Host(f.host), target.Kind(f.kind), f.arch)
	if err != nil {
		return resolve.Request{}, err
	}
	modules := f.modules
	if modules == nil {
		modules = []string{}
	}
	return resolve.Request{
		Operation:         op,
		Target:            key,
		VersionConstraint: versionConstraint,
		ToolName:          f.toolName,
		Modules:           modules,
		ArchivesSubset:    f.archives,
		NoArchives:        f.noArchives,
		AutoDesktop:       f.autoDesktop,
	}, nil
}

// newInstallCmd builds one install-<op> subcommand. name is the cobra "Use"
// string ("install-qt"); op is the resolve.Operation it issues.
func newInstallCmd(name string, op resolve.Operation) *cobra.Command {
	flags := &installFlags{}
	cmd := &cobra.Command{
		Use:   name + " <version>",
		Short: fmt.Sprintf("Install %s archives for a version", op),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, op, flags, args[0])
		},
	}
	flags.registerFlags(cmd, op != resolve.OperationTool, op == resolve.OperationTool)
	return cmd
}

func runInstall(cmd *cobra.Command, op resolve.Operation, flags *installFlags, versionConstraint string) error {
	if flagOutputDir == "" {
		return fmt.Errorf("--outputdir is required")
	}

	s, err := loadSettings()
	if err != nil {
		return err
	}
	req, err := flags.buildRequest(op, versionConstraint)
	if err != nil {
		return err
	}

	f := newFacade(s)

	if flagDryRun {
		plan, err := f.Resolve(cmd.Context(), req, flagOutputDir)
		if err != nil {
			return err
		}
		return printPlan(cmd, plan)
	}

	style := newOutputStyle(flagNoColor)
	reporter := newProgressReporter(cmd.OutOrStdout(), style)
	f = f.WithReporter(reporter)

	prefix := installPrefix(flagOutputDir, req.Target, versionConstraint)
	outcome, err := f.Install(cmd.Context(), req, flagOutputDir, prefix)
	reporter.Wait()
	printInstallSummary(cmd, style, outcome)
	if err != nil {
		return err
	}
	return outcome.PatchResult
}

// installPrefix mirrors the persisted layout "{outputdir}/{version}/{arch}"
// every Patcher action is grounded on.
func installPrefix(outputDir string, t target.Key, versionConstraint string) string {
	return outputDir + string(os.PathSeparator) + strings.TrimPrefix(versionConstraint, "v") + string(os.PathSeparator) + t.Arch
}

func printPlan(cmd *cobra.Command, plan resolve.InstallPlan) error {
	if flagPlanFormat == "yaml" {
		out, err := installer.RenderPlanYAML(plan)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "destination: %s\n", plan.Destination)
	fmt.Fprintf(w, "target: %s\n", plan.Target.String())
	fmt.Fprintf(w, "version: %s\n", plan.Version.String())
	fmt.Fprintln(w, "archives:")
	for _, a := range plan.Archives {
		fmt.Fprintf(w, "  - %s (%s)\n", a.ArchiveFilename, a.PackageName)
	}
	return nil
}

func printInstallSummary(cmd *cobra.Command, style *outputStyle, outcome installer.Outcome) {
	w := cmd.OutOrStdout()
	var failed int
	for _, r := range outcome.Results {
		if r.Err != nil {
			failed++
		}
	}
	fmt.Fprintln(w)
	if failed == 0 && outcome.PatchResult == nil {
		style.success.Fprintf(w, "%s Installed %d archive(s)\n", style.successMark, len(outcome.Results))
		return
	}
	style.fail.Fprintf(w, "%s %d of %d archive(s) failed\n", style.failMark, failed, len(outcome.Results))
	if outcome.PatchResult != nil {
		fmt.Fprintf(w, "  %s patching failed: %v\n", style.warnMark, outcome.PatchResult)
	}
}
