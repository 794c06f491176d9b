package orchestrator

import (
	"github.com/builderpro/buildcheck/internal/config"
	"github.com/builderpro/buildcheck/internal/detector"
	iexec "github.com/builderpro/buildcheck/internal/exec"
	"github.com/builderpro/buildcheck/pkg/models"
)

// RequiredConfig contains the minimal required configuration for an
// Orchestrator. All fields are required and have no defaults.
type RequiredConfig struct {
	// ProjectPath is the root of the project under validation.
	ProjectPath string
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	cfg            *config.Config
	phases         []models.Phase
	url            string
	maxIterations  int
	autoFix        *bool
	stopOnCritical *bool
	logger         *DebugLogger
	emitter        *EventEmitter
	execRunner     iexec.CommandRunner

	// Injectable collaborators for testing
	detectors []detector.Detector
	fixers    map[models.Phase]detector.Fixer
}

// WithConfig sets the loaded configuration. Defaults are used otherwise.
func WithConfig(c *config.Config) Option {
	return func(o *orchestratorOptions) { o.cfg = c }
}

// WithPhases restricts the run to the given phases. The default is every
// phase except visual, which needs a URL.
func WithPhases(phases []models.Phase) Option {
	return func(o *orchestratorOptions) { o.phases = phases }
}

// WithURL sets the served URL for the visual phase and enables it.
func WithURL(url string) Option {
	return func(o *orchestratorOptions) { o.url = url }
}

// WithMaxIterations overrides the configured iteration budget.
func WithMaxIterations(n int) Option {
	return func(o *orchestratorOptions) { o.maxIterations = n }
}

// WithAutoFix overrides the configured auto-fix setting.
func WithAutoFix(b bool) Option {
	return func(o *orchestratorOptions) { o.autoFix = &b }
}

// WithStopOnCritical overrides the configured stop-on-critical setting.
func WithStopOnCritical(b bool) Option {
	return func(o *orchestratorOptions) { o.stopOnCritical = &b }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithEmitter sets the event emitter subscribers read from.
func WithEmitter(e *EventEmitter) Option {
	return func(o *orchestratorOptions) { o.emitter = e }
}

// WithExecRunner sets the command execution runner used by the port scan.
func WithExecRunner(r iexec.CommandRunner) Option {
	return func(o *orchestratorOptions) { o.execRunner = r }
}

// WithDetectors sets custom detectors (mainly for testing).
func WithDetectors(ds ...detector.Detector) Option {
	return func(o *orchestratorOptions) { o.detectors = ds }
}

// WithFixer sets the fixer for one phase (mainly for testing).
func WithFixer(phase models.Phase, f detector.Fixer) Option {
	return func(o *orchestratorOptions) {
		if o.fixers == nil {
			o.fixers = make(map[models.Phase]detector.Fixer)
		}
		o.fixers[phase] = f
	}
}
