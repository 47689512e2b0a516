package deferred

import (
	"context"
	"runtime/debug"
	"sync"

	"emperror.dev/errors"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/metrics"
)

// SucceedStatus Job succeed status.
const SucceedStatus = "succeed"

// FailedStatus Job failed status.
const FailedStatus = "failed"

// PanicStatus Job panic status.
const PanicStatus = "panic"

// Job is a unit of work executed after the response has been sent.
type Job func(ctx context.Context) error

// Runner runs jobs detached from the request lifecycle.
type Runner interface {
	// Schedule starts the job in background. The job context keeps ctx values but not its cancellation.
	Schedule(ctx context.Context, name string, job Job)
	// Wait blocks until all scheduled jobs are done or ctx is done.
	Wait(ctx context.Context) error
}

// NewRunner New deferred job runner.
func NewRunner(metricsCl metrics.Client) Runner {
	return &runner{metricsCl: metricsCl}
}

type runner struct {
	metricsCl metrics.Client
	wg        sync.WaitGroup
}

func (r *runner) Schedule(ctx context.Context, name string, job Job) {
	// Detach from request cancellation
	jobCtx := context.WithoutCancel(ctx)

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		r.run(jobCtx, name, job)
	}()
}

func (r *runner) run(ctx context.Context, name string, job Job) {
	// Get logger
	logger := log.GetLoggerFromContext(ctx)
	if logger == nil {
		logger = log.NewLogger()
	}

	logger = logger.WithField("deferred_job", name)

	defer func() {
		if rvr := recover(); rvr != nil {
			logger.WithField("stack", string(debug.Stack())).Error(errors.Errorf("panic in deferred job: %v", rvr))
			r.metricsCl.IncDeferredJobs(name, PanicStatus)
		}
	}()

	err := job(ctx)
	// Check error
	if err != nil {
		logger.WithError(err).Errorf("Deferred job %s failed", name)
		r.metricsCl.IncDeferredJobs(name, FailedStatus)

		return
	}

	logger.Debugf("Deferred job %s succeed", name)
	r.metricsCl.IncDeferredJobs(name, SucceedStatus)
}

func (r *runner) Wait(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}
