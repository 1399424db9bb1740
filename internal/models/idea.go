package models

import "time"

// IdeaRecord is the derived record persisted when a VALIDATION job completes
// successfully. It is a secondary write: failures persisting it never fail
// the completion callback.
type IdeaRecord struct {
	ID          string    `json:"id" db:"id"`
	Bucket      int       `json:"bucket" db:"bucket"`
	JobID       string    `json:"job_id" db:"job_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Score       int       `json:"score" db:"score"`
	Verdict     string    `json:"verdict" db:"verdict"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
