package langserver

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	multierror "github.com/hashicorp/go-multierror"
	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	yaml "gopkg.in/yaml.v2"

	"github.com/sourcegraph/refsearch/findrefs"
	"github.com/sourcegraph/refsearch/langserver/internal/workspace"
	"github.com/sourcegraph/refsearch/pkg/lspext"
)

// ConfigFiles are the names LoadConfig looks for in the workspace root, in
// order.
var ConfigFiles = []string{"refsearch.toml", "refsearch.yaml", "refsearch.yml"}

// Project is a named group of documents under a directory of the workspace.
type Project = workspace.Project

// Config adjusts the behaviour of the server. It is read from a config file
// in the workspace root and can be overridden by InitializationOptions.
type Config struct {
	// Projects groups the workspace documents. When empty the whole
	// workspace is one project.
	Projects []Project `json:"projects" toml:"projects" yaml:"projects"`

	// Exclude holds gitignore-style patterns of paths to leave out, in
	// addition to the workspace .gitignore.
	Exclude []string `json:"exclude" toml:"exclude" yaml:"exclude"`

	// Search holds the default search options.
	Search findrefs.SearchOptions `json:"search" toml:"search" yaml:"search"`

	// IndexSize is the number of document index entries kept in memory.
	IndexSize int `json:"indexSize" toml:"index_size" yaml:"index_size"`

	// MaxParallelism bounds concurrent file reads and parses.
	MaxParallelism int `json:"maxParallelism" toml:"max_parallelism" yaml:"max_parallelism"`
}

// Apply sets the corresponding field in c for each non-nil field in o.
func (c Config) Apply(o *InitializationOptions) Config {
	if o == nil {
		return c
	}
	if o.Projects != nil {
		c.Projects = o.Projects
	}
	if o.Exclude != nil {
		c.Exclude = o.Exclude
	}
	c.Search = o.Search.Apply(c.Search)
	if o.IndexSize != nil {
		c.IndexSize = *o.IndexSize
	}
	if o.MaxParallelism != nil {
		c.MaxParallelism = *o.MaxParallelism
	}
	return c
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.IndexSize < 1 {
		result = multierror.Append(result, fmt.Errorf("index_size must be positive, got %d", c.IndexSize))
	}
	if c.MaxParallelism < 1 {
		result = multierror.Append(result, fmt.Errorf("max_parallelism must be positive, got %d", c.MaxParallelism))
	}
	for i, p := range c.Projects {
		if p.Name == "" {
			result = multierror.Append(result, fmt.Errorf("project %d has no name", i))
		}
	}
	return result.ErrorOrNil()
}

// NewDefaultConfig returns the default config.
func NewDefaultConfig() Config {
	maxparallelism := runtime.NumCPU()
	if maxparallelism < 2 {
		maxparallelism = 2
	}
	return Config{
		Search:         findrefs.DefaultSearchOptions(),
		IndexSize:      4096,
		MaxParallelism: maxparallelism * 2,
	}
}

// LoadConfig reads the first config file found in dir on fs over base.
// Without a config file base is returned.
func LoadConfig(fs afero.Fs, dir string, base Config) (Config, error) {
	cfg := base
	for _, name := range ConfigFiles {
		p := filepath.Join(dir, name)
		data, err := afero.ReadFile(fs, p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return cfg, errors.Wrapf(err, "read %s", p)
		}
		var fc fileConfig
		switch filepath.Ext(name) {
		case ".toml":
			err = toml.Unmarshal(data, &fc)
		default:
			err = yaml.Unmarshal(data, &fc)
		}
		if err != nil {
			return cfg, errors.Wrapf(err, "parse %s", p)
		}
		cfg = cfg.Apply(fc.options())
		if err := cfg.Validate(); err != nil {
			return cfg, errors.Wrapf(err, "invalid %s", p)
		}
		return cfg, nil
	}
	return cfg, nil
}

// fileConfig is the config file layout. Absent keys keep the defaults.
type fileConfig struct {
	Projects       []Project `toml:"projects" yaml:"projects"`
	Exclude        []string  `toml:"exclude" yaml:"exclude"`
	IndexSize      *int      `toml:"index_size" yaml:"index_size"`
	MaxParallelism *int      `toml:"max_parallelism" yaml:"max_parallelism"`
	Search         struct {
		CascadeThroughAliases                    *bool `toml:"cascade_through_aliases" yaml:"cascade_through_aliases"`
		ConsiderSuppressions                     *bool `toml:"consider_suppressions" yaml:"consider_suppressions"`
		AssociatePropertyReferencesWithAccessors *bool `toml:"associate_property_references_with_accessors" yaml:"associate_property_references_with_accessors"`
		MaxDegreeOfParallelism                   *int  `toml:"max_degree_of_parallelism" yaml:"max_degree_of_parallelism"`
	} `toml:"search" yaml:"search"`
}

func (fc *fileConfig) options() *InitializationOptions {
	return &InitializationOptions{
		Projects: fc.Projects,
		Exclude:  fc.Exclude,
		Search: &lspext.SearchOptions{
			CascadeThroughAliases:                    fc.Search.CascadeThroughAliases,
			ConsiderSuppressions:                     fc.Search.ConsiderSuppressions,
			AssociatePropertyReferencesWithAccessors: fc.Search.AssociatePropertyReferencesWithAccessors,
			MaxDegreeOfParallelism:                   fc.Search.MaxDegreeOfParallelism,
		},
		IndexSize:      fc.IndexSize,
		MaxParallelism: fc.MaxParallelism,
	}
}

// InitializationOptions are the options supported by the server. It is
// possible to override the default and file config values.
type InitializationOptions struct {
	Projects       []Project             `json:"projects,omitempty"`
	Exclude        []string              `json:"exclude,omitempty"`
	Search         *lspext.SearchOptions `json:"search,omitempty"`
	IndexSize      *int                  `json:"indexSize,omitempty"`
	MaxParallelism *int                  `json:"maxParallelism,omitempty"`
}
