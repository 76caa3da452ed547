package utils

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// Instrumentation provides timing for pipeline stages
type Instrumentation struct {
	logger *slog.Logger
}

// NewInstrumentation creates a new instrumentation instance
func NewInstrumentation(logger *slog.Logger) *Instrumentation {
	return &Instrumentation{logger: logger}
}

// TimedOperation wraps a function with timing instrumentation
func (i *Instrumentation) TimedOperation(name string, operation func() error) error {
	start := time.Now()
	i.logger.Debug("Starting operation", "operation", name)

	err := operation()
	duration := time.Since(start)

	if err != nil {
		i.logger.Error("Operation failed", "operation", name, "duration_seconds", duration.Seconds(), "error", err)
	} else {
		i.logger.Debug("Operation completed", "operation", name, "duration_seconds", duration.Seconds())
	}

	return err
}

// GetMemoryUsage returns current memory usage in a human-readable format
func GetMemoryUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	allocMB := float64(m.Alloc) / 1024 / 1024
	sysMB := float64(m.Sys) / 1024 / 1024

	return fmt.Sprintf("%.1fMB allocated, %.1fMB system", allocMB, sysMB)
}

// PhaseTracker tracks the phases of one program unit's run
type PhaseTracker struct {
	name         string
	phases       map[string]time.Time
	currentPhase string
	startTime    time.Time
	logger       *slog.Logger
}

// NewPhaseTracker creates a new phase tracker
func (i *Instrumentation) NewPhaseTracker(name string) *PhaseTracker {
	i.logger.Debug("Starting operation", "operation", name)

	return &PhaseTracker{
		name:      name,
		phases:    make(map[string]time.Time),
		startTime: time.Now(),
		logger:    i.logger,
	}
}

// StartPhase begins tracking a new phase, closing the current one
func (pt *PhaseTracker) StartPhase(phaseName string) {
	if pt.currentPhase != "" {
		pt.EndPhase()
	}

	pt.currentPhase = phaseName
	pt.phases[phaseName] = time.Now()

	pt.logger.Debug("Starting phase", "phase", phaseName, "parent_operation", pt.name)
}

// EndPhase ends the current phase
func (pt *PhaseTracker) EndPhase() {
	if pt.currentPhase == "" {
		return
	}

	if start, exists := pt.phases[pt.currentPhase]; exists {
		pt.logger.Debug("Phase completed", "phase", pt.currentPhase, "duration_seconds", time.Since(start).Seconds(), "parent_operation", pt.name)
	}

	pt.currentPhase = ""
}

// Complete finishes the entire operation
func (pt *PhaseTracker) Complete(checks int) {
	pt.EndPhase()

	pt.logger.Debug("Operation completed",
		"operation", pt.name,
		"checks", checks,
		"duration_seconds", time.Since(pt.startTime).Seconds(),
		"memory_usage", GetMemoryUsage())
}
