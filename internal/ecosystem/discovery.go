package ecosystem

import (
	"fmt"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"mcpvet/pkg/logging"
)

// knownImplementations are the repositories validated when no targets file
// is supplied, grouped by maintainer category.
var knownImplementations = map[string][]string{
	"anthropic": {
		"https://github.com/anthropic/mcp-server-sqlite",
		"https://github.com/anthropic/mcp-server-filesystem",
		"https://github.com/anthropic/mcp-server-git",
		"https://github.com/anthropic/mcp-server-brave-search",
	},
	"modelcontextprotocol": {
		"https://github.com/modelcontextprotocol/python-sdk",
		"https://github.com/modelcontextprotocol/typescript-sdk",
	},
}

// DefaultTargets lists the built-in validation targets in a stable order.
// Target names follow the <category>/<repository> convention.
func DefaultTargets() []Target {
	categories := make([]string, 0, len(knownImplementations))
	for category := range knownImplementations {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var targets []Target
	for _, category := range categories {
		for _, repo := range knownImplementations[category] {
			targets = append(targets, Target{
				Name: category + "/" + path.Base(repo),
				Repo: repo,
			})
		}
	}
	return targets
}

// targetsFile is the YAML shape of a targets override file:
//
//	targets:
//	  - name: community/weather-server
//	    repo: https://github.com/example/weather-server
type targetsFile struct {
	Targets []Target `yaml:"targets"`
}

// LoadTargets returns the targets to validate. An empty path selects the
// built-in list; otherwise the YAML file at path replaces it. Entries
// without a name are named after their repository.
func LoadTargets(filePath string) ([]Target, error) {
	if filePath == "" {
		targets := DefaultTargets()
		logging.Info(logSubsystem, "using %d built-in targets", len(targets))
		return targets, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading targets file: %w", err)
	}
	var tf targetsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing targets file %s: %w", filePath, err)
	}
	if len(tf.Targets) == 0 {
		return nil, fmt.Errorf("targets file %s lists no targets", filePath)
	}

	for i, target := range tf.Targets {
		if target.Repo == "" {
			return nil, fmt.Errorf("targets file %s: entry %d has no repo", filePath, i+1)
		}
		if target.Name == "" {
			tf.Targets[i].Name = path.Base(target.Repo)
		}
	}
	logging.Info(logSubsystem, "loaded %d targets from %s", len(tf.Targets), filePath)
	return tf.Targets, nil
}
