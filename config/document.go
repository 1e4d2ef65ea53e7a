// document.go describes the on-disk shape of a YAML configuration
// file before it is translated into a manager.Config.
package config

import "gopkg.in/yaml.v3"

// Document is the top-level shape of a configuration file. Components
// is a name -> subtree map; each subtree is handed to the matching
// manager.Registration's factory as a json.RawMessage, undecoded here.
type Document struct {
	App                  *AppInfo             `yaml:"app"`
	EnginePool           EnginePoolDoc        `yaml:"engine_pool"`
	TaskProcessors       []TaskProcessorDoc   `yaml:"task_processors"`
	DefaultTaskProcessor string               `yaml:"default_task_processor"`
	Components           map[string]yaml.Node `yaml:"components"`
}

// AppInfo names the running application.
type AppInfo struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
}

// EnginePoolDoc is the YAML view of engine.PoolConfig.
type EnginePoolDoc struct {
	InitialCoroPoolSize int `yaml:"initial_coro_pool_size"`
	EventThreadsCount   int `yaml:"event_threads_count"`
}

// TaskProcessorDoc is the YAML view of manager.TaskProcessorConfig.
type TaskProcessorDoc struct {
	Name                string `yaml:"name"`
	WorkerThreads       int    `yaml:"worker_threads"`
	ShouldGuessCPULimit bool   `yaml:"should_guess_cpu_limit"`
}
