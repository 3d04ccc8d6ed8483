// Command browse is an interactive terminal front end for sdkget: it lets a
// user page through the versions published for a target, then the modules
// published for the chosen version, and prints the equivalent non-interactive
// install-qt command line on selection instead of installing anything itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sdkget/sdkget/internal/httpclient"
	"github.com/sdkget/sdkget/internal/installer"
	"github.com/sdkget/sdkget/internal/mirror"
	"github.com/sdkget/sdkget/internal/settings"
	"github.com/sdkget/sdkget/internal/target"
)

func main() {
	host := flag.String("host", "linux", "Host OS running sdkget")
	kind := flag.String("target", "desktop", "Target device class")
	arch := flag.String("arch", "", "Architecture/ABI folder name")
	configPath := flag.String("config", "", "Path to an sdkget.ini settings file")
	flag.Parse()

	if *arch == "" {
		fmt.Fprintln(os.Stderr, "browse: -arch is required")
		os.Exit(1)
	}
	key, err := target.New(target.Host(*host), target.Kind(*kind), *arch)
	if err != nil {
		fmt.Fprintln(os.Stderr, "browse:", err)
		os.Exit(1)
	}

	s := settings.Default()
	if *configPath != "" {
		s, err = settings.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "browse:", err)
			os.Exit(1)
		}
	}
	hc := httpclient.New(s)
	sel := mirror.New(s, hc, nil)
	stagingDir := s.ArchiveDownloadLocation
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}
	f := installer.New(s, hc, sel, stagingDir, stagingDir+"/.sdkget-browse.lock")

	m := newModel(context.Background(), f, key)
	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "browse:", err)
		os.Exit(1)
	}

	fm := finalModel.(*model)
	if fm.err != nil {
		fmt.Fprintln(os.Stderr, "browse:", fm.err)
		os.Exit(1)
	}
	if fm.selectedCommand != "" {
		fmt.Println(fm.selectedCommand)
	}
}
