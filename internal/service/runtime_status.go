package service

import (
	"time"

	"quizhub_backend/internal/model"
)

type RuntimeStatus string

const (
	StatusUpcoming RuntimeStatus = "Upcoming"
	StatusActive   RuntimeStatus = "Active"
	StatusEnded    RuntimeStatus = "Ended"
	StatusFinished RuntimeStatus = "Finished"
)

// ResolveRuntimeStatus derives the display status of a quiz. Admission never
// uses it and performs its own window check against the clock.
func ResolveRuntimeStatus(quiz *model.Quiz, userHasAttempted bool, now time.Time) RuntimeStatus {
	switch {
	case now.Before(quiz.StartTime):
		return StatusUpcoming
	case !now.After(quiz.EndTime):
		return StatusActive
	case userHasAttempted:
		return StatusFinished
	}
	return StatusEnded
}
