package constants

// JobState is the canonical lifecycle state for rows in jobs.
type JobState string

// Stable values (store these exact strings in DB).
const (
	JobStatePending  JobState = "PENDING"  // initial, set at job creation
	JobStateFinished JobState = "FINISHED" // terminal, every page processed without loss
	JobStatePartial  JobState = "PARTIAL"  // terminal, finished but some pages/topics were skipped
)

// Terminal reports whether a state ends the job lifecycle.
func (s JobState) Terminal() bool {
	return s == JobStateFinished || s == JobStatePartial
}
