//go:build unit

package deferred

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/golang/mock/gomock"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
	mmocks "github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/metrics/mocks"
	"github.com/stretchr/testify/assert"
)

func Test_runner_Schedule(t *testing.T) {
	tests := []struct {
		name       string
		job        Job
		wantStatus string
	}{
		{
			name:       "succeed",
			job:        func(ctx context.Context) error { return nil },
			wantStatus: SucceedStatus,
		},
		{
			name:       "failed",
			job:        func(ctx context.Context) error { return errors.New("webhook down") },
			wantStatus: FailedStatus,
		},
		{
			name:       "panic",
			job:        func(ctx context.Context) error { panic("boom") },
			wantStatus: PanicStatus,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			metricsMock := mmocks.NewMockClient(ctrl)
			metricsMock.EXPECT().IncDeferredJobs("job", tt.wantStatus).Times(1)

			r := NewRunner(metricsMock)
			r.Schedule(log.SetLoggerInContext(context.TODO(), log.NewLogger()), "job", tt.job)

			ctx, cancel := context.WithTimeout(context.TODO(), 5*time.Second)
			defer cancel()

			assert.NoError(t, r.Wait(ctx))
		})
	}
}

func Test_runner_Schedule_DetachedFromCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	metricsMock := mmocks.NewMockClient(ctrl)
	metricsMock.EXPECT().IncDeferredJobs("job", SucceedStatus).Times(1)

	reqCtx, reqCancel := context.WithCancel(log.SetLoggerInContext(context.TODO(), log.NewLogger()))

	started := make(chan struct{})
	release := make(chan struct{})

	var jobCtxErr atomic.Value

	r := NewRunner(metricsMock)
	r.Schedule(reqCtx, "job", func(ctx context.Context) error {
		close(started)
		<-release

		if ctx.Err() != nil {
			jobCtxErr.Store(ctx.Err())
		}

		// Values are kept
		if log.GetLoggerFromContext(ctx) == nil {
			return errors.New("logger lost")
		}

		return nil
	})

	<-started
	// Client went away
	reqCancel()
	close(release)

	ctx, cancel := context.WithTimeout(context.TODO(), 5*time.Second)
	defer cancel()

	assert.NoError(t, r.Wait(ctx))
	assert.Nil(t, jobCtxErr.Load())
}

func Test_runner_Wait_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	metricsMock := mmocks.NewMockClient(ctrl)
	metricsMock.EXPECT().IncDeferredJobs("slow", SucceedStatus).Times(1)

	release := make(chan struct{})

	r := NewRunner(metricsMock)
	r.Schedule(context.TODO(), "slow", func(ctx context.Context) error {
		<-release

		return nil
	})

	ctx, cancel := context.WithTimeout(context.TODO(), 10*time.Millisecond)
	defer cancel()

	err := r.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// Let the job finish
	close(release)
	assert.NoError(t, r.Wait(context.TODO()))
}
