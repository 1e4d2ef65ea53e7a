// config/loader.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/component-manager/fusionctl/consts"
	"github.com/component-manager/fusionctl/engine"
	"github.com/component-manager/fusionctl/manager"
)

// Loader reads a YAML or JSON configuration file into a manager.Config.
type Loader struct {
	env        string
	configPath string
}

// NewLoader creates a loader for configPath, defaulting env and
// configPath when empty.
func NewLoader(env string, configPath string) *Loader {
	if env == "" {
		env = consts.ENV_DEVELOPMENT
	}
	if configPath == "" {
		configPath = consts.DEFAULT_CONFIG_PATH
	}
	return &Loader{env: env, configPath: configPath}
}

// Env returns the environment name this loader was constructed with.
func (l *Loader) Env() string { return l.env }

// Path returns the configuration file path this loader reads from.
func (l *Loader) Path() string { return l.configPath }

// Load reads the configured file and decodes it into a manager.Config,
// translating each named subtree under components: into the
// json.RawMessage a component's Registration.New factory unmarshals
// itself.
func (l *Loader) Load() (manager.Config, error) {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return manager.Config{}, fmt.Errorf("config: read %s: %w", l.configPath, err)
	}

	var doc Document
	switch ext := strings.ToLower(filepath.Ext(l.configPath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return manager.Config{}, fmt.Errorf("config: parse %s: %w", l.configPath, err)
		}
	case ".json":
		// Round trip JSON through the generic YAML decoder: the two
		// libraries agree on map[string]interface{} closely enough for
		// this flat, mapping-based config shape to survive the hop.
		var generic map[string]interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return manager.Config{}, fmt.Errorf("config: parse %s: %w", l.configPath, err)
		}
		reencoded, err := yaml.Marshal(generic)
		if err != nil {
			return manager.Config{}, fmt.Errorf("config: re-encode %s: %w", l.configPath, err)
		}
		if err := yaml.Unmarshal(reencoded, &doc); err != nil {
			return manager.Config{}, fmt.Errorf("config: parse %s: %w", l.configPath, err)
		}
	default:
		return manager.Config{}, fmt.Errorf("config: unsupported config file format: %s", ext)
	}

	return docToConfig(doc)
}

func docToConfig(doc Document) (manager.Config, error) {
	cfg := manager.Config{
		EnginePool: engine.PoolConfig{
			InitialCoroPoolSize: doc.EnginePool.InitialCoroPoolSize,
			EventThreadsCount:   doc.EnginePool.EventThreadsCount,
		},
		DefaultTaskProcessor: doc.DefaultTaskProcessor,
	}

	for _, tp := range doc.TaskProcessors {
		cfg.TaskProcessors = append(cfg.TaskProcessors, manager.TaskProcessorConfig{
			Name:                tp.Name,
			WorkerThreads:       tp.WorkerThreads,
			ShouldGuessCPULimit: tp.ShouldGuessCPULimit,
		})
	}

	// Components is a map in the document but manager.Config wants a
	// slice; sorting by name keeps the boot log and any serialized
	// re-dump of the resolved config deterministic across loads.
	names := make([]string, 0, len(doc.Components))
	for name := range doc.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		node := doc.Components[name]
		raw, err := nodeToJSON(node)
		if err != nil {
			return manager.Config{}, fmt.Errorf("config: component %s: %w", name, err)
		}
		cfg.Components = append(cfg.Components, manager.ComponentConfig{Name: name, Raw: raw})
	}

	return cfg, nil
}

// nodeToJSON re-marshals a YAML subtree to JSON: decode the node into a
// generic interface{} tree, then hand it to encoding/json, since every
// component factory decodes its own config from a json.RawMessage
// rather than walking a yaml.Node directly.
func nodeToJSON(node yaml.Node) (json.RawMessage, error) {
	var generic interface{}
	if err := node.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode yaml node: %w", err)
	}
	raw, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("marshal to json: %w", err)
	}
	return raw, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
