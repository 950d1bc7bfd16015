package core

import "time"

// JobStatus describes the delivery state of a notification job.
type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobSent    JobStatus = "SENT"
	JobFailed  JobStatus = "FAILED"
)

// NotificationJob carries one fired-alert message through the dispatcher.
// Jobs live within a single orchestration cycle; they are terminal on SENT
// or after retries are exhausted.
type NotificationJob struct {
	RuleID    string
	Pair      string
	Message   string
	Attempts  int
	Status    JobStatus
	CreatedAt time.Time
}
