package app

import (
	"context"

	"github.com/maia-sdr/sdrd/internal/ddc"
)

// Designer serializes FIR design jobs onto a single dedicated
// goroutine, so an expensive Parks-McClellan run never runs
// concurrently with another and never blocks an HTTP handler's
// goroutine directly (spec.md §5: "FIR design runs on a dedicated
// worker... a single-slot job queue rather than a blocking-worker
// pool, since sdrd only ever needs one designer at a time").
type Designer struct {
	jobs chan designJob
}

type designJob struct {
	decimation    uint32
	inputSampRate float64
	tol           ddc.Tolerances
	result        chan designResult
}

type designResult struct {
	value ddc.Result
	err   error
}

// NewDesigner starts the worker goroutine.
func NewDesigner() *Designer {
	d := &Designer{jobs: make(chan designJob)}
	go d.run()
	return d
}

func (d *Designer) run() {
	for job := range d.jobs {
		value, err := ddc.Design(job.decimation, job.inputSampRate, job.tol)
		job.result <- designResult{value: value, err: err}
	}
}

// Design submits a job and blocks for its result, or returns early if
// ctx is cancelled first.
func (d *Designer) Design(ctx context.Context, decimation uint32, inputSampRate float64, tol ddc.Tolerances) (ddc.Result, error) {
	job := designJob{decimation: decimation, inputSampRate: inputSampRate, tol: tol, result: make(chan designResult, 1)}
	select {
	case d.jobs <- job:
	case <-ctx.Done():
		return ddc.Result{}, ctx.Err()
	}
	select {
	case r := <-job.result:
		return r.value, r.err
	case <-ctx.Done():
		return ddc.Result{}, ctx.Err()
	}
}
