package domain

import "time"

// AssignmentStatus enumerates work assignment lifecycle states.
type AssignmentStatus string

const (
	AssignmentStatusAssigned   AssignmentStatus = "ASSIGNED"
	AssignmentStatusInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentStatusCompleted  AssignmentStatus = "COMPLETED"
	AssignmentStatusCancelled  AssignmentStatus = "CANCELLED"
)

// TechnicianDailyCapacity caps non-terminal assignments a technician may hold
// for one calendar day.
const TechnicianDailyCapacity = 5

// WorkAssignment binds one technician to one service request. A request may
// accumulate several assignments over its life (one per reassignment); the
// owning request points at the current non-terminal one.
type WorkAssignment struct {
	ID               string
	ServiceRequestID string
	TechnicianID     string
	Status           AssignmentStatus
	AssignedDate     time.Time
	ScheduledDate    *time.Time
	StartedDate      *time.Time
	CompletedDate    *time.Time
	Notes            string
	CompletionNotes  string
	EstimatedHours   *float64
	ActualHours      *float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentStatusAssigned:   {AssignmentStatusInProgress, AssignmentStatusCompleted, AssignmentStatusCancelled},
	AssignmentStatusInProgress: {AssignmentStatusCompleted, AssignmentStatusCancelled},
	AssignmentStatusCompleted:  {},
	AssignmentStatusCancelled:  {},
}

// CanTransition reports whether an assignment may move between the two states.
func CanTransition(current, next AssignmentStatus) bool {
	for _, candidate := range assignmentTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s AssignmentStatus) IsTerminal() bool {
	return s == AssignmentStatusCompleted || s == AssignmentStatusCancelled
}

// IsOverdue reports whether a non-terminal assignment has slipped past its
// scheduled date.
func (a *WorkAssignment) IsOverdue(now time.Time) bool {
	if a.Status.IsTerminal() || a.ScheduledDate == nil {
		return false
	}
	return a.ScheduledDate.Before(now)
}
