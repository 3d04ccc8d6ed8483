package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdkget/sdkget/internal/target"
	"github.com/sdkget/sdkget/internal/version"
)

// newListCmd builds one list-<op> subcommand: by default it prints the
// versions published for the target; with --version it instead prints the
// module names published for that one version.
func newListCmd(name string, op string) *cobra.Command {
	var host, kind, arch, versionFlag string
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("List published %s versions or modules", op),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			key, err := target.New(target.Host(host), target.Kind(kind), arch)
			if err != nil {
				return err
			}
			f := newFacade(s)

			if versionFlag == "" {
				versions, err := f.ListVersions(cmd.Context(), key)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for _, v := range versions {
					fmt.Fprintln(w, v.String())
				}
				return nil
			}

			v, err := version.Parse(versionFlag)
			if err != nil {
				return err
			}
			modules, err := f.ListModules(cmd.Context(), key, v)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, m := range modules {
				fmt.Fprintln(w, m)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Host OS running sdkget (linux, mac, windows)")
	cmd.Flags().StringVar(&kind, "target", "desktop", "Target device class (desktop, android, ios, winrt)")
	cmd.Flags().StringVar(&arch, "arch", "", "Architecture/ABI folder name")
	cmd.Flags().StringVar(&versionFlag, "version", "", "List modules published for this exact version instead of listing versions")
	cmd.MarkFlagRequired("host")
	cmd.MarkFlagRequired("arch")
	return cmd
}
