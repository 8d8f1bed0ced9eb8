// Package queue implements the durable job store described in spec.md §3
// and §4.3: one job per task, an at-most-one-active invariant enforced by
// an atomic lease operation, and a process-wide rate-limit bucket that
// lives alongside the job records.
package queue

import "time"

// State is a Job's position in the state machine of spec.md §4.3.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Kind is the build kind requested at admission.
type Kind string

const (
	KindHTML Kind = "html"
	KindZip  Kind = "zip"
)

// Task is the immutable payload fixed at admission (spec.md §3).
type Task struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	AppName     string    `json:"appName"`
	AppID       string    `json:"appId"`
	UploadPath  string    `json:"uploadPath"`
	IconPath    string    `json:"iconPath,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	OutputDir   string    `json:"outputDir"`
}

// Progress is the worker's last-reported, mutable build progress.
type Progress struct {
	Message string `json:"message"`
	Percent int    `json:"percent"`
}

// Result is the terminal outcome of a build attempt.
type Result struct {
	Success      bool          `json:"success"`
	ArtifactPath string        `json:"artifactPath,omitempty"`
	ArtifactSize int64         `json:"artifactSize,omitempty"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Job is one-to-one with a Task, sharing its ID, plus the mutable fields a
// worker writes as it runs the build pipeline.
type Job struct {
	// SchemaVersion lets a future field addition change shape without
	// breaking decode of records written by an older process.
	SchemaVersion int       `json:"v"`
	Task          Task      `json:"task"`
	State         State     `json:"state"`
	Progress      Progress  `json:"progress"`
	// MaxPercent is the highest Percent ever reported for this job. A
	// later sub-stage can legitimately report a lower raw Percent than an
	// earlier one; MaxPercent is what the status surface serves, so a
	// client never sees progress run backwards.
	MaxPercent    int       `json:"maxPercent"`
	Result        *Result   `json:"result,omitempty"`
	Trace         string    `json:"trace"`
	EnqueuedAt    time.Time `json:"enqueuedAt"`
	LeasedAt      *time.Time `json:"leasedAt,omitempty"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
}

const CurrentSchemaVersion = 1

// ID returns the job's identifier, which always equals its Task's ID.
func (j *Job) ID() string { return j.Task.ID }

// DisplayStatus collapses the terminal states per spec.md §4.1: a
// completed job whose result failed is reported as "failed", not
// "completed".
func (j *Job) DisplayStatus() State {
	if j.State == StateCompleted && j.Result != nil && !j.Result.Success {
		return StateFailed
	}
	return j.State
}

// DisplayPercent returns the clamped progress percent per spec.md §3 and
// §8's testable property 4: never less than the highest percent ever
// reported for this job, even if the current sub-stage reports a lower one.
func (j *Job) DisplayPercent() int {
	if j.Progress.Percent > j.MaxPercent {
		return j.Progress.Percent
	}
	return j.MaxPercent
}
