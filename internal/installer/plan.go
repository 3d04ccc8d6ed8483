package installer

import (
	"github.com/goccy/go-yaml"

	"github.com/sdkget/sdkget/internal/resolve"
)

// planDocument is the YAML-friendly projection of a resolve.InstallPlan:
// the same data, shaped for a scripting consumer rather than for the
// Pipeline that would otherwise execute it.
type planDocument struct {
	Destination  string        `yaml:"destination"`
	Target       string        `yaml:"target"`
	Version      string        `yaml:"version"`
	Archives     []planArchive `yaml:"archives"`
	PatchActions []string      `yaml:"patch_actions,omitempty"`
}

type planArchive struct {
	Package  string `yaml:"package"`
	Filename string `yaml:"filename"`
	Version  string `yaml:"version"`
	URL      string `yaml:"url"`
}

// RenderPlanYAML renders a resolved InstallPlan for "--dry-run
// --plan-format yaml": everything a CI pipeline needs to know what would
// be downloaded and extracted, without running the Pipeline at all.
func RenderPlanYAML(plan resolve.InstallPlan) ([]byte, error) {
	doc := planDocument{
		Destination: plan.Destination,
		Target:      plan.Target.String(),
		Version:     plan.Version.String(),
	}
	for _, a := range plan.Archives {
		doc.Archives = append(doc.Archives, planArchive{
			Package:  a.PackageName,
			Filename: a.ArchiveFilename,
			Version:  a.Version,
			URL:      a.URL,
		})
	}
	for _, action := range plan.PatchActions {
		doc.PatchActions = append(doc.PatchActions, string(action))
	}
	return yaml.Marshal(doc)
}
