package sequence

import "whatsapp-sequencer/internal/models"

// State is the engine's view of a subscription.
type State interface {
	isState()
}

// Active points at the step to send next.
type Active struct {
	StepIndex int
}

type CompletionReason string

const (
	ReasonFinished    CompletionReason = "finished"
	ReasonStepMissing CompletionReason = "step_missing"
)

// Completed is terminal. ReasonStepMissing marks an ACTIVE subscription
// whose pointer matches no step; the engine completes it without sending.
type Completed struct {
	Reason CompletionReason
}

type Paused struct{}

type Cancelled struct{}

func (Active) isState()    {}
func (Completed) isState() {}
func (Paused) isState()    {}
func (Cancelled) isState() {}

// StateOf derives the state of sub against its ordered steps. Unrecognised
// statuses are treated as paused.
func StateOf(sub *models.SequenceSubscription, steps []models.SequenceStep) State {
	switch sub.Status {
	case models.StatusActive:
		idx := StepIndex(steps, sub.CurrentStep, sub.CurrentSubStep)
		if idx < 0 {
			return Completed{Reason: ReasonStepMissing}
		}
		return Active{StepIndex: idx}
	case models.StatusCompleted:
		return Completed{Reason: ReasonFinished}
	case models.StatusCancelled:
		return Cancelled{}
	default:
		return Paused{}
	}
}

// StepIndex finds the step at (stepOrder, subOrder), or -1.
func StepIndex(steps []models.SequenceStep, stepOrder, subOrder int) int {
	for i := range steps {
		if steps[i].StepOrder == stepOrder && steps[i].SubOrder == subOrder {
			return i
		}
	}
	return -1
}
