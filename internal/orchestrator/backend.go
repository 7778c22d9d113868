package orchestrator

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/quanta/internal/models"
)

// ExecutionPlan is the backend's prepared view of a payload
type ExecutionPlan struct {
	Qubits int
	Depth  int
	Shots  int
}

// Backend validates a payload before execution and computes the result
// once the run loop reaches 100%. Implementations must be safe for use
// from the orchestrator's background goroutine.
type Backend interface {
	Prepare(payload models.JobPayload) (*ExecutionPlan, error)
	Finalize(plan *ExecutionPlan, elapsed time.Duration) (*models.JobResult, error)
}

// SimBackend is a simulated circuit execution backend. It derives the
// circuit shape from the payload source and synthesizes a measurement
// distribution; it stands in for a real simulator or hardware gateway.
type SimBackend struct {
	defaultShots int
	validate     *validator.Validate

	// rngMu guards rng: a superseded job's goroutine can still be inside
	// Finalize when the next job reaches it.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSimBackend creates a simulated backend
func NewSimBackend(defaultShots int) *SimBackend {
	if defaultShots <= 0 {
		defaultShots = 1024
	}
	return &SimBackend{
		defaultShots: defaultShots,
		validate:     validator.New(),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Prepare validates the payload and derives the execution plan.
// Gate count comes from non-empty, non-comment source lines; qubit count
// from "qubit"/"qreg" declarations, defaulting to 2.
func (b *SimBackend) Prepare(payload models.JobPayload) (*ExecutionPlan, error) {
	if err := b.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	qubits := 0
	depth := 0
	for _, line := range strings.Split(payload.Source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "qubit") || strings.HasPrefix(lower, "qreg") {
			qubits++
			continue
		}
		depth++
	}

	if depth == 0 {
		return nil, fmt.Errorf("invalid payload: source contains no executable statements")
	}
	if qubits == 0 {
		qubits = 2
	}
	if qubits > 16 {
		// Histogram keys grow as 2^qubits; clamp to keep results bounded.
		qubits = 16
	}

	shots := payload.Shots
	if shots <= 0 {
		shots = b.defaultShots
	}

	return &ExecutionPlan{Qubits: qubits, Depth: depth, Shots: shots}, nil
}

// Finalize synthesizes the measurement distribution and fidelity for a
// plan that ran to completion
func (b *SimBackend) Finalize(plan *ExecutionPlan, elapsed time.Duration) (*models.JobResult, error) {
	if plan == nil {
		return nil, fmt.Errorf("finalize called without an execution plan")
	}

	states := 1 << plan.Qubits
	counts := make(map[string]int)

	// Weight the all-zeros and all-ones states heavily, spreading the
	// remainder as noise, which mimics a GHZ-like outcome.
	primary := plan.Shots * 45 / 100
	counts[bitString(0, plan.Qubits)] = primary
	counts[bitString(states-1, plan.Qubits)] = primary

	b.rngMu.Lock()
	remaining := plan.Shots - 2*primary
	for remaining > 0 {
		state := b.rng.Intn(states)
		counts[bitString(state, plan.Qubits)]++
		remaining--
	}

	// Fidelity decays with circuit depth.
	fidelity := 1.0 - 0.002*float64(plan.Depth) - b.rng.Float64()*0.01
	b.rngMu.Unlock()
	if fidelity < 0 {
		fidelity = 0
	}

	return &models.JobResult{
		Counts:   counts,
		Fidelity: fidelity,
		Depth:    plan.Depth,
		Shots:    plan.Shots,
		Duration: elapsed.Seconds(),
	}, nil
}

func bitString(state, qubits int) string {
	return fmt.Sprintf("%0*b", qubits, state)
}
