package model

import (
	"fmt"
	"strings"
	"time"
)

// UnknownLabel is the degraded label published when inference cannot produce one
const UnknownLabel = "Unknown"

// ProcessingStatus is the label the ingress returns before a result exists
const ProcessingStatus = "Processing"

// Job job model, identity is its queue reference (the staged payload key)
type Job struct {
	ID          string    `json:"id"`
	EnqueueTime time.Time `json:"enqueue_time"`
}

// BaseID returns the identifier results are keyed by
func (j *Job) BaseID() string {
	return BaseID(j.ID)
}

// Lease a time-bounded claim by one worker on one job
type Lease struct {
	JobID              string    `json:"job_id"`
	ReceiptToken       string    `json:"receipt_token"`
	VisibilityDeadline time.Time `json:"visibility_deadline"`
}

// Expired reports whether the lease deadline has passed at now
func (l *Lease) Expired(now time.Time) bool {
	return !l.VisibilityDeadline.IsZero() && !now.Before(l.VisibilityDeadline)
}

// Result classification result for one job
type Result struct {
	JobID string `json:"job_id"`
	Label string `json:"label"`
}

// BaseID returns the base identifier of the job the result belongs to
func (r *Result) BaseID() string {
	return BaseID(r.JobID)
}

// String encodes the result as "<base_id>:<label>", the body written to
// both the output store and the response queue
func (r *Result) String() string {
	return FormatResult(r.BaseID(), r.Label)
}

// BaseID strips everything from the first '.' of a job identifier
// ("cat1.jpg" -> "cat1")
func BaseID(jobID string) string {
	if i := strings.IndexByte(jobID, '.'); i >= 0 {
		return jobID[:i]
	}
	return jobID
}

// FormatResult formats a "<base_id>:<label>" line
func FormatResult(baseID, label string) string {
	return baseID + ":" + label
}

// ParseResult splits a "<base_id>:<label>" line. The label may itself contain ':'.
func ParseResult(line string) (baseID, label string, err error) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", fmt.Errorf("malformed result line: %q", line)
	}
	return line[:i], line[i+1:], nil
}
