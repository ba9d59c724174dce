package domain

import "time"

// ProgressStatus tracks how far a learner has gone through an enrolled course
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "NOT_STARTED"
	ProgressInProgress ProgressStatus = "IN_PROGRESS"
	ProgressCompleted  ProgressStatus = "COMPLETED"
	ProgressDropped    ProgressStatus = "DROPPED"
)

var progressTransitions = map[ProgressStatus][]ProgressStatus{
	ProgressNotStarted: {ProgressInProgress, ProgressDropped},
	ProgressInProgress: {ProgressCompleted, ProgressDropped},
	ProgressDropped:    {ProgressInProgress},
	ProgressCompleted:  {},
}

// CanAdvance reports whether progress may move from one status to another
func (s ProgressStatus) CanAdvance(to ProgressStatus) bool {
	for _, next := range progressTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Enrollment grants a learner access to a course. At most one exists per
// (learner, course) pair.
type Enrollment struct {
	EnrolledAt time.Time      `json:"enrolled_at"`
	ID         string         `json:"id"`
	LearnerID  string         `json:"learner_id"`
	CourseID   string         `json:"course_id"`
	Progress   ProgressStatus `json:"progress"`
}
