// Package pipeline defines the shared envelope both build pipelines
// (html and zip) run inside: environment check, workspace preparation,
// external tool orchestration, artifact collection, each stage reporting
// progress through the same callback the worker uses to write into the
// job record.
package pipeline

import (
	"context"
	"fmt"
)

// Progress is the single interface both a real job and a pipeline
// heartbeat target implement: a small, single-method interface passed
// deep into call chains.
type Progress interface {
	Report(message string, percent int)
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(message string, percent int)

func (f ProgressFunc) Report(message string, percent int) { f(message, percent) }

// Result is what a pipeline run produces: either a finished artifact
// path, or a logical failure message (never both).
type Result struct {
	Success      bool
	ArtifactPath string
	ArtifactSize int64
	Error        string
}

// Input is the task-derived information every pipeline needs, independent
// of kind.
type Input struct {
	TaskID     string
	AppName    string
	AppID      string
	UploadPath string
	IconPath   string
	BuildsDir  string
	MockBuild  bool
}

// Pipeline runs one full build and reports progress as it goes.
type Pipeline interface {
	Run(ctx context.Context, in Input, progress Progress) Result
}

// Fail is a convenience constructor for a logical (non-panic) failure.
func Fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}
