package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/builderpro/buildcheck/internal/config"
	"github.com/builderpro/buildcheck/internal/configcheck"
	"github.com/builderpro/buildcheck/internal/deps"
	"github.com/builderpro/buildcheck/internal/detector"
	iexec "github.com/builderpro/buildcheck/internal/exec"
	"github.com/builderpro/buildcheck/internal/ports"
	"github.com/builderpro/buildcheck/internal/protect"
	"github.com/builderpro/buildcheck/internal/visual"
	"github.com/builderpro/buildcheck/pkg/models"
)

// TypeDetectorFailure marks a phase that threw while scanning. The failure
// is converted into a bug so one broken phase never aborts the run.
const TypeDetectorFailure = "detector_failure"

// Orchestrator runs detector phases over a project, normalizes findings
// into bugs, applies fixes, and reverifies until the project is clean or
// the iteration budget runs out. One Orchestrator owns one run at a time;
// concurrent runs against the same project path are unsupported.
type Orchestrator struct {
	projectPath    string
	phases         []models.Phase
	maxIterations  int
	autoFix        bool
	stopOnCritical bool

	detectors map[models.Phase]detector.Detector
	fixers    map[models.Phase]detector.Fixer

	logger  *DebugLogger
	emitter *EventEmitter
	runID   string
	state   RunState
}

// New creates an Orchestrator for the given project. Detectors and fixers
// default to the real phase implementations; tests inject fakes through
// options.
func New(req RequiredConfig, opts ...Option) (*Orchestrator, error) {
	if req.ProjectPath == "" {
		return nil, errors.New("project path is required")
	}
	abs, err := filepath.Abs(req.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("project path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project path %s is not a directory", abs)
	}

	var options orchestratorOptions
	for _, opt := range opts {
		opt(&options)
	}

	cfg := options.cfg
	if cfg == nil {
		cfg = config.Default()
	}

	o := &Orchestrator{
		projectPath:    abs,
		maxIterations:  cfg.Orchestrator.MaxIterations,
		autoFix:        cfg.Orchestrator.AutoFix,
		stopOnCritical: cfg.Orchestrator.StopOnCritical,
		logger:         options.logger,
		emitter:        options.emitter,
		runID:          shortID(),
	}
	if options.maxIterations != 0 {
		o.maxIterations = options.maxIterations
	}
	if options.autoFix != nil {
		o.autoFix = *options.autoFix
	}
	if options.stopOnCritical != nil {
		o.stopOnCritical = *options.stopOnCritical
	}
	if o.maxIterations <= 0 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", o.maxIterations)
	}
	if o.logger == nil {
		o.logger = NewDebugLoggerForProject(abs)
	}
	if o.emitter == nil {
		o.emitter = NewEventEmitter(128)
	}

	phases := options.phases
	if phases == nil {
		phases = []models.Phase{models.PhaseDependencies, models.PhaseConfig, models.PhasePorts}
		if options.url != "" {
			phases = append(phases, models.PhaseVisual)
		}
	}
	for _, p := range phases {
		if !p.Valid() {
			return nil, fmt.Errorf("unknown phase %q", p)
		}
		if p == models.PhaseVisual && options.url == "" && options.detectors == nil {
			return nil, errors.New("visual phase requires a URL")
		}
	}
	// Keep the canonical phase order regardless of how toggles arrived.
	enabled := make(map[models.Phase]bool, len(phases))
	for _, p := range phases {
		enabled[p] = true
	}
	o.phases = o.phases[:0]
	for _, p := range models.AllPhases() {
		if enabled[p] {
			o.phases = append(o.phases, p)
		}
	}

	if options.detectors != nil {
		o.detectors = make(map[models.Phase]detector.Detector, len(options.detectors))
		for _, d := range options.detectors {
			o.detectors[d.Phase()] = d
		}
		o.fixers = options.fixers
		return o, nil
	}

	guard, err := protect.NewGuard(abs)
	if err != nil {
		return nil, fmt.Errorf("init write guard: %w", err)
	}
	runner := options.execRunner
	if runner == nil {
		runner = iexec.NewRunner()
	}
	scanner := ports.NewScanner(runner, cfg.Timeouts.PortScan)

	o.detectors = map[models.Phase]detector.Detector{
		models.PhaseDependencies: deps.NewDetector(),
		models.PhaseConfig:       configcheck.NewDetector(cfg.Orchestrator.Workers),
		models.PhasePorts:        ports.NewDetector(scanner),
	}
	o.fixers = map[models.Phase]detector.Fixer{
		models.PhaseDependencies: deps.NewFixer(guard),
		models.PhaseConfig:       configcheck.NewFixer(guard),
		models.PhasePorts:        ports.NewFixer(scanner, guard, cfg.Ports),
	}
	if enabled[models.PhaseVisual] {
		o.detectors[models.PhaseVisual] = visual.NewDetector(options.url, cfg, nil)
	}
	return o, nil
}

// Events returns the event stream for this orchestrator.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.Events()
}

// CloseEvents closes the event stream. Call it after Run returns so that
// consumers ranging over Events terminate even when the buffer overflowed
// and the final event was dropped.
func (o *Orchestrator) CloseEvents() {
	o.emitter.Close()
}

// RunID returns the short identifier assigned to this orchestrator's run.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Run executes the scan/classify/fix/reverify loop and returns the final
// result. Detector failures, fix failures, and infrastructure problems are
// all captured inside the result; only programmer errors escape as errors.
func (o *Orchestrator) Run(ctx context.Context) (*models.OrchestrationResult, error) {
	result := &models.OrchestrationResult{
		RunID:       o.runID,
		ProjectPath: o.projectPath,
		StartedAt:   time.Now(),
	}
	registry := newBugRegistry()

	o.logger.Log("[run %s] starting: phases=%v maxIterations=%d autoFix=%v stopOnCritical=%v",
		o.runID, o.phases, o.maxIterations, o.autoFix, o.stopOnCritical)
	o.emit(Event{Type: EventRunStarted, Message: fmt.Sprintf("validating %s", o.projectPath)})

	var stopReason models.StopReason
	stoppedEarly := false

	for iter := 1; iter <= o.maxIterations; iter++ {
		iterResult := models.IterationResult{Number: iter, StartedAt: time.Now()}

		o.transition(StateScanning, iter)
		findings := o.runPhases(ctx, o.phases, iter)

		o.transition(StateClassifying, iter)
		present, fresh := registry.observe(findings, iter)
		for _, rec := range fresh {
			o.logger.Log("[run %s] iteration %d: new bug %s [%s/%s] %s",
				o.runID, iter, rec.bug.ID, rec.bug.Severity, rec.bug.Type, rec.bug.Message)
			o.emit(Event{Type: EventBugFound, Iteration: iter, Phase: rec.bug.Phase, Bug: rec.bug})
		}
		for _, rec := range present {
			iterResult.BugsFound = append(iterResult.BugsFound, *rec.bug)
		}

		if len(present) == 0 {
			stopReason = models.StopReasonClean
			iterResult.FinishedAt = time.Now()
			result.Iterations = append(result.Iterations, iterResult)
			o.emit(Event{Type: EventIterationCompleted, Iteration: iter, Message: "no bugs found"})
			break
		}

		if !o.autoFix {
			// Scan-only mode cannot converge, so a single pass is the
			// whole budget.
			stopReason = models.StopReasonExhausted
			iterResult.FinishedAt = time.Now()
			result.Iterations = append(result.Iterations, iterResult)
			o.emit(Event{Type: EventIterationCompleted, Iteration: iter, Message: "scan-only run complete"})
			break
		}

		o.transition(StateFixing, iter)
		fixes, targeted := o.applyFixes(ctx, registry, present, iter)
		iterResult.FixesApplied = fixes

		o.transition(StateReverifying, iter)
		if len(targeted) > 0 {
			reFindings := o.runPhases(ctx, targeted, iter)
			registry.reverify(targeted, reFindings)
		}

		iterResult.FinishedAt = time.Now()
		result.Iterations = append(result.Iterations, iterResult)
		o.emit(Event{Type: EventIterationCompleted, Iteration: iter,
			Message: fmt.Sprintf("%d bugs, %d fixes", len(present), len(fixes))})

		if o.stopOnCritical && registry.hasUnfixedCritical() {
			stoppedEarly = true
			stopReason = models.StopReasonCritical
			o.logger.Log("[run %s] iteration %d: unfixable CRITICAL bug, stopping early", o.runID, iter)
			break
		}
		if iter == o.maxIterations {
			stopReason = models.StopReasonExhausted
		}
	}

	total := registry.total()
	fixed := registry.fixedCount()
	result.Summary = models.Summary{
		TotalBugs:    total,
		Fixed:        fixed,
		Remaining:    total - fixed,
		SuccessRate:  successRate(fixed, total),
		StoppedEarly: stoppedEarly,
		StopReason:   stopReason,
	}
	result.FinishedAt = time.Now()

	if stoppedEarly {
		o.transition(StateStopped, 0)
	} else {
		o.transition(StateDone, 0)
	}
	o.logger.Log("[run %s] finished: total=%d fixed=%d remaining=%d reason=%s",
		o.runID, total, fixed, total-fixed, stopReason)
	o.emit(Event{Type: EventRunCompleted, Message: string(stopReason)})
	return result, nil
}

// runPhases runs each enabled detector in canonical order and returns the
// merged findings. A phase that errors or panics contributes a
// detector-failure finding instead of aborting the run.
func (o *Orchestrator) runPhases(ctx context.Context, phases []models.Phase, iter int) []detector.Finding {
	var all []detector.Finding
	for _, phase := range phases {
		d, ok := o.detectors[phase]
		if !ok {
			continue
		}
		o.emit(Event{Type: EventPhaseStarted, Iteration: iter, Phase: phase})
		start := time.Now()

		findings, err := o.detect(ctx, d)
		if err != nil {
			o.logger.Log("[run %s] phase %s failed: %v", o.runID, phase, err)
			findings = []detector.Finding{{
				Phase:    phase,
				Severity: models.SeverityMinor,
				Type:     TypeDetectorFailure,
				Message:  fmt.Sprintf("%s phase unavailable: %v", phase, err),
				Fixable:  false,
			}}
		}
		o.logger.Log("[run %s] phase %s: %d findings in %s", o.runID, phase, len(findings), time.Since(start).Round(time.Millisecond))
		o.emit(Event{Type: EventPhaseCompleted, Iteration: iter, Phase: phase,
			Message: fmt.Sprintf("%d findings", len(findings))})
		all = append(all, findings...)
	}
	return all
}

// detect runs one detector with panic containment.
func (o *Orchestrator) detect(ctx context.Context, d detector.Detector) (findings []detector.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.Detect(ctx, o.projectPath)
}

// applyFixes invokes the owning fixer for every fixable, still-open bug.
// It returns the fixes produced and the phases that were targeted, which
// are the ones reverification must rerun.
func (o *Orchestrator) applyFixes(ctx context.Context, registry *bugRegistry, present []*bugRecord, iter int) ([]models.Fix, []models.Phase) {
	var fixes []models.Fix
	targetedSet := make(map[models.Phase]bool)

	for _, rec := range present {
		if !rec.bug.Fixable || rec.fixed {
			continue
		}
		fixer, ok := o.fixers[rec.bug.Phase]
		if !ok {
			continue
		}

		action, err := o.fix(ctx, fixer, rec.finding)
		registry.markFixAttempt(rec.bug.Key(), err)
		targetedSet[rec.bug.Phase] = true

		fix := models.Fix{BugID: rec.bug.ID, Action: action, Success: err == nil}
		if err != nil {
			fix.Error = err.Error()
			o.logger.Log("[run %s] fix failed for bug %s: %v", o.runID, rec.bug.ID, err)
			o.emit(Event{Type: EventFixFailed, Iteration: iter, Phase: rec.bug.Phase, Bug: rec.bug, Fix: &fix, Error: err})
		} else {
			o.logger.Log("[run %s] fix applied for bug %s: %s", o.runID, rec.bug.ID, action)
			o.emit(Event{Type: EventFixApplied, Iteration: iter, Phase: rec.bug.Phase, Bug: rec.bug, Fix: &fix})
		}
		fixes = append(fixes, fix)
	}

	targeted := make([]models.Phase, 0, len(targetedSet))
	for _, p := range models.AllPhases() {
		if targetedSet[p] {
			targeted = append(targeted, p)
		}
	}
	return fixes, targeted
}

// fix runs one fixer with panic containment.
func (o *Orchestrator) fix(ctx context.Context, fixer detector.Fixer, f detector.Finding) (action string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fixer.Fix(ctx, o.projectPath, f)
}

// transition moves the loop to a new state, logging and emitting it.
func (o *Orchestrator) transition(next RunState, iter int) {
	o.logger.Log("[run %s] state %s -> %s (iteration %d)", o.runID, o.state, next, iter)
	o.state = next
	o.emit(Event{Type: EventStateChanged, Iteration: iter, State: next})
}

func (o *Orchestrator) emit(ev Event) {
	ev.RunID = o.runID
	ev.Timestamp = time.Now()
	o.emitter.Emit(ev)
}

func successRate(fixed, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(fixed) / float64(total)
}
