package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/spigell/legallens/internal/tender"
)

// State is the externally observable progress of a run.
type State string

const (
	StateIdle              State = "idle"
	StateRetrievingContext State = "retrieving_context"
	StateAnalyzing         State = "analyzing"
	StateComposed          State = "composed"
	StateFailed            State = "failed"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateComposed || s == StateFailed
}

// Policy tells the pipeline what to do when a stage fails.
type Policy int

const (
	// PropagateFailure ends the run in StateFailed.
	PropagateFailure Policy = iota
	// FallbackOnFailure substitutes a static value and continues.
	FallbackOnFailure
)

func (p Policy) String() string {
	if p == FallbackOnFailure {
		return "fallback_on_failure"
	}
	return "propagate_failure"
}

// Stage names a step of the pipeline together with its failure policy.
type Stage struct {
	Name   string
	Policy Policy
}

var (
	StageAdmit   = Stage{Name: "admit", Policy: PropagateFailure}
	StageEncode  = Stage{Name: "encode", Policy: PropagateFailure}
	StageContext = Stage{Name: "context", Policy: FallbackOnFailure}
	StageAnalyze = Stage{Name: "analyze", Policy: PropagateFailure}
	StageCompose = Stage{Name: "compose", Policy: PropagateFailure}
	StageArchive = Stage{Name: "archive", Policy: FallbackOnFailure}
)

// Stages lists every stage in execution order. Encode and context run concurrently.
func Stages() []Stage {
	return []Stage{StageAdmit, StageEncode, StageContext, StageAnalyze, StageCompose, StageArchive}
}

// Transition is reported to the observer every time a run changes state.
type Transition struct {
	RunID string
	From  State
	To    State
	At    time.Time
}

// Observer receives state transitions. It is called synchronously from the run goroutine.
type Observer func(Transition)

// Run is the record of a single analysis. A run is never reused.
type Run struct {
	ID         string
	Request    tender.Request
	State      State
	Context    tender.MarketContext
	Result     *tender.Result
	Err        error
	ArchiveKey string
	StartedAt  time.Time
	FinishedAt time.Time
}

func newRun(req tender.Request) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Request:   req,
		State:     StateIdle,
		StartedAt: time.Now(),
	}
}

// UserMessage is the text shown to end users for a failed run.
func (r *Run) UserMessage() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return tender.UserMessage(r.Err)
}
