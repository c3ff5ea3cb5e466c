package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"whatsapp-sequencer/internal/models"
)

func TestStateOf(t *testing.T) {
	steps := []models.SequenceStep{
		{StepOrder: 1, SubOrder: 0},
		{StepOrder: 1, SubOrder: 1},
		{StepOrder: 2, SubOrder: 0},
	}

	tests := []struct {
		name string
		sub  models.SequenceSubscription
		want State
	}{
		{name: "active first", sub: models.SequenceSubscription{Status: models.StatusActive, CurrentStep: 1}, want: Active{StepIndex: 0}},
		{name: "active sub step", sub: models.SequenceSubscription{Status: models.StatusActive, CurrentStep: 1, CurrentSubStep: 1}, want: Active{StepIndex: 1}},
		{name: "active missing step", sub: models.SequenceSubscription{Status: models.StatusActive, CurrentStep: 9}, want: Completed{Reason: ReasonStepMissing}},
		{name: "completed", sub: models.SequenceSubscription{Status: models.StatusCompleted, CurrentStep: 1}, want: Completed{Reason: ReasonFinished}},
		{name: "paused", sub: models.SequenceSubscription{Status: models.StatusPaused, CurrentStep: 1}, want: Paused{}},
		{name: "cancelled", sub: models.SequenceSubscription{Status: models.StatusCancelled}, want: Cancelled{}},
		{name: "unknown status", sub: models.SequenceSubscription{Status: "ARCHIVED"}, want: Paused{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateOf(&tt.sub, steps))
		})
	}
}
