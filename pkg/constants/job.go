package constants

// JobOutcome how a worker finished with one job
type JobOutcome string

const (
	JobOutcomeClassified JobOutcome = "classified" // Label produced by the classifier
	JobOutcomeUnknown    JobOutcome = "unknown"    // Input missing or inference failed
	JobOutcomeSkipped    JobOutcome = "skipped"    // Transient fetch error, left for redelivery
	JobOutcomeFailed     JobOutcome = "failed"     // Publish failed after retries
)

func (s JobOutcome) String() string {
	return string(s)
}
