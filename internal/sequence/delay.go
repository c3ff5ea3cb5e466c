// Package sequence advances subscriptions through their sequence steps.
package sequence

import (
	"time"

	"whatsapp-sequencer/internal/models"
)

// NextScheduledAt returns now plus the step delay. Non-positive values and
// unknown units yield now.
func NextScheduledAt(now time.Time, value int, unit models.DelayUnit) time.Time {
	if value <= 0 {
		return now
	}
	switch unit {
	case models.DelayMinutes:
		return now.Add(time.Duration(value) * time.Minute)
	case models.DelayHours:
		return now.Add(time.Duration(value) * time.Hour)
	case models.DelayDays:
		return now.Add(time.Duration(value) * 24 * time.Hour)
	default:
		return now
	}
}
