// Package worker runs the build pipelines against jobs leased from the
// queue: a fixed-size pool of slots, each looping lease -> run -> report,
// grounded on agent/agent_pool.go's worker-pool shape but leasing tasks
// from a shared queue rather than polling a per-agent job API.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/vibecoding/demo2apk/internal/buildmetrics"
	"github.com/vibecoding/demo2apk/internal/pipeline"
	"github.com/vibecoding/demo2apk/internal/queue"
	"github.com/vibecoding/demo2apk/internal/storage"
	"github.com/vibecoding/demo2apk/logger"
)

// pollInterval is how long an idle slot waits before re-checking the
// queue for a waiting job.
const pollInterval = 2 * time.Second

// Pool runs Concurrency build slots in parallel, each leasing and running
// jobs until Stop is called, mirroring agent.AgentPool.Start's
// spawn-then-join shape via an errgroup instead of a raw error channel.
type Pool struct {
	Queue        queue.Queue
	Roots        storage.Roots
	Log          logger.Logger
	Concurrency  int
	HTMLPipeline pipeline.Pipeline
	ZipPipeline  pipeline.Pipeline
	MockBuild    bool

	stop        chan struct{}
	buildCancel context.CancelFunc
}

// NewPool wires a Pool ready to Run. mockBuild forces every leased job
// through the pipelines' synthetic-artifact shortcut, for running the
// worker without any Android/Node toolchain installed.
func NewPool(q queue.Queue, roots storage.Roots, log logger.Logger, concurrency int, htmlPipeline, zipPipeline pipeline.Pipeline, mockBuild bool) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		Queue:        q,
		Roots:        roots,
		Log:          log,
		Concurrency:  concurrency,
		HTMLPipeline: htmlPipeline,
		ZipPipeline:  zipPipeline,
		MockBuild:    mockBuild,
		stop:         make(chan struct{}),
	}
}

// Run spawns Concurrency slots and blocks until ctx is cancelled or Stop
// is called, then waits for every in-flight build to finish before
// returning, bounding shutdown the way errgroup.Wait bounds a fan-out.
func (p *Pool) Run(ctx context.Context) error {
	buildCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.buildCancel = cancel
	defer cancel()

	g, leaseCtx := errgroup.WithContext(ctx)
	for i := 0; i < p.Concurrency; i++ {
		slot := i
		g.Go(func() error {
			p.runSlot(leaseCtx, buildCtx, slot)
			return nil
		})
	}
	return g.Wait()
}

// Stop is an alias for StopGracefully: no new jobs are leased, but a
// build already running is left to finish.
func (p *Pool) Stop() { p.StopGracefully() }

// StopGracefully signals every slot to stop leasing new jobs; a build
// already in progress runs to completion. Safe to call more than once.
func (p *Pool) StopGracefully() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
}

// StopUngracefully does everything StopGracefully does and additionally
// cancels the context passed to any build currently in progress, so a
// pipeline's external commands are torn down rather than left running,
// mirroring agent.AgentPool.StopUngracefully's immediate-cancel contract.
func (p *Pool) StopUngracefully() {
	p.StopGracefully()
	if p.buildCancel != nil {
		p.buildCancel()
	}
}

func (p *Pool) runSlot(leaseCtx, buildCtx context.Context, slot int) {
	for {
		select {
		case <-leaseCtx.Done():
			return
		case <-p.stop:
			return
		default:
		}

		job, err := p.Queue.Lease(leaseCtx)
		if err != nil {
			p.Log.Error("[worker %d] leasing job: %v", slot, err)
			if !sleepOrDone(leaseCtx, p.stop, pollInterval) {
				return
			}
			continue
		}
		if job == nil {
			if !sleepOrDone(leaseCtx, p.stop, pollInterval) {
				return
			}
			continue
		}

		buildmetrics.WorkerSlotsActive.Inc()
		p.runJob(buildCtx, slot, job)
		buildmetrics.WorkerSlotsActive.Dec()
	}
}

func sleepOrDone(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}

func (p *Pool) runJob(ctx context.Context, slot int, job *queue.Job) {
	start := time.Now()
	log := p.Log.WithFields(logger.StringField("task_id", job.ID()), logger.StringField("kind", string(job.Task.Kind)))
	log.Info("[worker %d] starting build", slot)

	pl, err := p.pipelineFor(job.Task.Kind)
	if err != nil {
		p.fail(ctx, job, err.Error())
		return
	}

	in := pipeline.Input{
		TaskID:     job.Task.ID,
		AppName:    job.Task.AppName,
		AppID:      job.Task.AppID,
		UploadPath: job.Task.UploadPath,
		IconPath:   job.Task.IconPath,
		BuildsDir:  p.Roots.BuildsDir,
		MockBuild:  p.MockBuild,
	}

	reporter := pipeline.ProgressFunc(func(message string, percent int) {
		if err := p.Queue.UpdateProgress(ctx, job.ID(), queue.Progress{Message: message, Percent: percent}); err != nil {
			log.Warn("[worker %d] updating progress: %v", slot, err)
		}
	})

	result := pl.Run(ctx, in, reporter)
	duration := time.Since(start)

	qr := queue.Result{
		Success:      result.Success,
		ArtifactPath: result.ArtifactPath,
		ArtifactSize: result.ArtifactSize,
		Error:        result.Error,
		Duration:     duration,
	}
	// Recorded against a fresh context: an ungraceful stop cancels ctx to
	// tear down the pipeline's subprocesses, but the job's outcome should
	// still make it into the queue even if that happened mid-build.
	recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Queue.Complete(recordCtx, job.ID(), qr); err != nil {
		log.Error("[worker %d] recording completion: %v", slot, err)
	}

	outcome := "success"
	if !result.Success {
		outcome = "failure"
		log.Notice("[worker %d] build failed: %s", slot, result.Error)
	} else {
		log.Info("[worker %d] build succeeded in %s, artifact %s", slot, duration, humanize.Bytes(uint64(result.ArtifactSize)))
	}
	buildmetrics.JobsFinished.WithLabelValues(string(job.Task.Kind), outcome).Inc()
	buildmetrics.JobDuration.WithLabelValues(string(job.Task.Kind)).Observe(duration.Seconds())
}

func (p *Pool) fail(ctx context.Context, job *queue.Job, message string) {
	if err := p.Queue.Fail(ctx, job.ID(), message); err != nil {
		p.Log.Error("recording job failure: %v", err)
	}
	buildmetrics.JobsFinished.WithLabelValues(string(job.Task.Kind), "failure").Inc()
}

var errUnknownKind = errors.New("worker: unknown build kind")

func (p *Pool) pipelineFor(kind queue.Kind) (pipeline.Pipeline, error) {
	switch kind {
	case queue.KindHTML:
		return p.HTMLPipeline, nil
	case queue.KindZip:
		return p.ZipPipeline, nil
	default:
		return nil, errUnknownKind
	}
}
