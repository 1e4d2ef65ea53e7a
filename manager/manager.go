// Package manager implements the Component Manager: it owns the task
// processor storage, boots every configured component concurrently on
// the default task processor, resolving inter-component dependencies
// through component.Context, and tears everything down in reverse order.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/component-manager/fusionctl/component"
	"github.com/component-manager/fusionctl/cpulimit"
	"github.com/component-manager/fusionctl/engine"
	"github.com/component-manager/fusionctl/storage"
)

// Manager owns the task processor storage, brings every configured
// component up in a dependency-respecting manner, and tears everything
// down in reverse on Close.
type Manager struct {
	config Config
	logger *zap.Logger

	storage          *storage.ProcessorsStorage
	defaultProcessor *engine.TaskProcessor

	// componentContext, componentsCleared and loggingComponent are all
	// guarded by mu: componentsCleared transitions false->true exactly
	// once, and the log-rotation dispatcher takes the read side of the
	// same lock ClearComponents takes the write side of.
	mu                sync.RWMutex
	componentContext  *component.Context
	componentsCleared bool
	loggingComponent  component.LogRotateHook

	startTime    time.Time
	loadDuration time.Duration

	bootDurationsMu sync.Mutex
	bootDurations   map[string]time.Duration
}

// New validates cfg and components, builds the task processor storage,
// and boots every component on the default task processor before
// returning. Logger, if nil, defaults to a production zap logger; it is
// used for the Manager's own diagnostics and as the base for every
// component's child logger (component.Context.Logger).
func New(cfg Config, components ComponentList, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = BootstrapLogger()
	}

	if err := validateTaskProcessors(cfg); err != nil {
		return nil, err
	}
	if err := validateComponentList(components, cfg); err != nil {
		return nil, err
	}

	m := &Manager{
		config:        cfg,
		logger:        logger,
		bootDurations: make(map[string]time.Duration),
	}

	pool := engine.NewPool(cfg.EnginePool)
	st := storage.New(pool)

	for _, desc := range cfg.TaskProcessors {
		workers := desc.WorkerThreads
		switch {
		case desc.Name == cfg.DefaultTaskProcessor && desc.ShouldGuessCPULimit:
			if guess, ok := cpulimit.Guess(logger, desc.Name); ok {
				workers = guess
			}
		case desc.ShouldGuessCPULimit:
			logger.Warn("should_guess_cpu_limit set on non-default task processor, ignoring",
				zap.String("task_processor", desc.Name))
		}

		tp := engine.NewTaskProcessor(desc.Name, workers, pool)
		if err := st.Add(desc.Name, tp); err != nil {
			st.Reset()
			return nil, err
		}
	}

	defaultTP, ok := st.GetMap()[cfg.DefaultTaskProcessor]
	if !ok {
		st.Reset()
		return nil, fmt.Errorf("%w: %q", ErrMissingDefaultProcessor, cfg.DefaultTaskProcessor)
	}

	m.storage = st
	m.defaultProcessor = defaultTP

	_, err := engine.RunInCoro(context.Background(), defaultTP, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.boot(ctx, components)
	})
	if err != nil {
		st.Reset()
		return nil, err
	}

	return m, nil
}

// boot runs on the default task processor (via RunInCoro in New) and
// launches every registered component concurrently, letting
// component.Context.FindComponent serialize the ones with dependencies.
func (m *Manager) boot(ctx context.Context, components ComponentList) error {
	cfgByName := make(map[string]ComponentConfig, len(m.config.Components))
	for _, c := range m.config.Components {
		cfgByName[c.Name] = c
	}

	m.componentContext = component.NewContext(m.logger)
	m.startTime = time.Now()

	type outcome struct {
		name string
		err  error
	}
	results := make(chan outcome, len(components))

	for _, reg := range components {
		reg := reg
		taskName := "boot/" + reg.Name
		err := m.defaultProcessor.Schedule(ctx, true, func(taskCtx context.Context) {
			results <- outcome{name: taskName, err: m.runRegistration(taskCtx, reg, cfgByName)}
		})
		if err != nil {
			results <- outcome{name: taskName, err: err}
		}
	}

	var firstFailure error
	sawCancelled := false
	for collected := 0; collected < len(components); collected++ {
		o := <-results
		switch {
		case o.err == nil:
		case errors.Is(o.err, component.ErrLoadCancelled):
			sawCancelled = true
		default:
			if firstFailure == nil {
				firstFailure = o.err
				m.componentContext.CancelComponentsLoad()
			}
		}
	}

	if firstFailure != nil {
		m.clearComponents(ctx)
		return firstFailure
	}
	if sawCancelled {
		m.clearComponents(ctx)
		return ErrLoadCancelledWithoutCause
	}

	if err := m.componentContext.OnAllComponentsLoaded(ctx); err != nil {
		m.clearComponents(ctx)
		return err
	}

	m.loadDuration = time.Since(m.startTime)
	return nil
}

// runRegistration classifies reg's configuration and, if the component
// should load, invokes its factory through component.Context.AddComponent.
func (m *Manager) runRegistration(ctx context.Context, reg Registration, cfgByName map[string]ComponentConfig) error {
	cfg, hasCfg := cfgByName[reg.Name]
	if !hasCfg {
		if reg.Required {
			return fmt.Errorf("missing config: %s", reg.Name)
		}
		m.logger.Info("component has no config section, skipping", zap.String("component", reg.Name))
		return nil
	}

	enabled, err := isLoadEnabled(cfg.Raw)
	if err != nil {
		return fmt.Errorf("component %s: invalid load_enabled: %w", reg.Name, err)
	}
	if !enabled {
		m.logger.Info("component disabled via load_enabled=false, skipping", zap.String("component", reg.Name))
		return nil
	}

	started := time.Now()
	comp, err := m.componentContext.AddComponent(ctx, reg.Name, func(ctx context.Context, cc *component.Context) (component.Component, error) {
		return reg.New(ctx, cc, cfg.Raw)
	})
	if err != nil {
		return err
	}
	m.recordBootDuration(reg.Name, time.Since(started))

	if sink, ok := comp.(component.LogRotateHook); ok {
		m.setLoggingComponent(sink)
	}
	return nil
}

func (m *Manager) recordBootDuration(name string, d time.Duration) {
	m.bootDurationsMu.Lock()
	defer m.bootDurationsMu.Unlock()
	m.bootDurations[name] = d
}

func (m *Manager) setLoggingComponent(sink component.LogRotateHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loggingComponent == nil {
		m.loggingComponent = sink
	}
}

// clearComponents tears every component down in reverse load order. It
// is idempotent and never returns an error to its caller:
// component.Context.ClearComponents logs per-component teardown
// failures itself rather than propagating them.
func (m *Manager) clearComponents(ctx context.Context) {
	m.mu.Lock()
	if m.componentsCleared {
		m.mu.Unlock()
		return
	}
	m.componentsCleared = true
	cc := m.componentContext
	m.mu.Unlock()

	if cc != nil {
		cc.ClearComponents(ctx)
	}
}

// Close runs the teardown sequence: clear every component (on the
// default task processor, via RunInCoro, exactly like boot ran), release
// the component context, then drain and destroy the task processor
// storage. Close never returns an error; failures are logged by
// component.Context.ClearComponents.
func (m *Manager) Close(ctx context.Context) {
	_, _ = engine.RunInCoro(ctx, m.defaultProcessor, func(taskCtx context.Context) (struct{}, error) {
		m.clearComponents(taskCtx)
		return struct{}{}, nil
	})

	m.mu.Lock()
	m.componentContext = nil
	m.mu.Unlock()

	m.storage.Reset()
}

// OnLogRotate is the public entry point for external signal handlers. It
// is safe to call from any goroutine, at any time after New returns and
// until Close begins clearing components.
func (m *Manager) OnLogRotate() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.componentsCleared {
		return
	}
	if m.loggingComponent == nil {
		return
	}
	if err := m.loggingComponent.Rotate(); err != nil {
		m.logger.Error("log rotation failed", zap.Error(err))
	}
}

// Config returns the Manager's immutable configuration.
func (m *Manager) Config() Config { return m.config }

// TaskProcessorPool returns the shared pool handle.
func (m *Manager) TaskProcessorPool() *engine.Pool { return m.storage.GetPool() }

// TaskProcessorsMap returns a read-only snapshot of every configured
// task processor, keyed by name.
func (m *Manager) TaskProcessorsMap() map[string]*engine.TaskProcessor { return m.storage.GetMap() }

// StartTime returns the monotonic timestamp fixed at the start of
// construction.
func (m *Manager) StartTime() time.Time { return m.startTime }

// LoadDuration returns the elapsed time between the start of parallel
// component boot and the return of OnAllComponentsLoaded. It is zero
// until boot has completed successfully.
func (m *Manager) LoadDuration() time.Duration { return m.loadDuration }

// ComponentBootDurations returns a snapshot of how long each component's
// AddComponent call took, supplementing the aggregate LoadDuration with
// per-component timing.
func (m *Manager) ComponentBootDurations() map[string]time.Duration {
	m.bootDurationsMu.Lock()
	defer m.bootDurationsMu.Unlock()
	out := make(map[string]time.Duration, len(m.bootDurations))
	for k, v := range m.bootDurations {
		out[k] = v
	}
	return out
}

func validateTaskProcessors(cfg Config) error {
	seen := make(map[string]bool, len(cfg.TaskProcessors))
	defaultCount := 0
	for _, desc := range cfg.TaskProcessors {
		if desc.Name == "" {
			return errors.New("manager: task processor name must not be empty")
		}
		if seen[desc.Name] {
			return fmt.Errorf("manager: duplicate task processor name %q", desc.Name)
		}
		seen[desc.Name] = true

		if desc.WorkerThreads < 1 {
			return fmt.Errorf("manager: task processor %q must have at least 1 worker thread", desc.Name)
		}
		if desc.Name == cfg.DefaultTaskProcessor {
			defaultCount++
		}
	}
	if defaultCount != 1 {
		return fmt.Errorf("%w: %q", ErrMissingDefaultProcessor, cfg.DefaultTaskProcessor)
	}
	return nil
}

func validateComponentList(components ComponentList, cfg Config) error {
	seen := make(map[string]bool, len(components))
	for _, reg := range components {
		if seen[reg.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateComponentName, reg.Name)
		}
		seen[reg.Name] = true
	}
	for _, c := range cfg.Components {
		if !seen[c.Name] {
			return fmt.Errorf("%w: %q", ErrUnknownComponentInConfig, c.Name)
		}
	}
	return nil
}
