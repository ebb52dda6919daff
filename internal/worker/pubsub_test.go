package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaycast/airwaycast/internal/environment"
	"github.com/airwaycast/airwaycast/internal/worker"
)

type fakeJobs struct {
	runs, backfills, checks int
	runResult               *worker.PrecomputeResult
	err                     error
}

func (f *fakeJobs) Run(context.Context) (*worker.PrecomputeResult, error) {
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	if f.runResult != nil {
		return f.runResult, nil
	}
	return &worker.PrecomputeResult{Batches: 1, Successful: 1}, nil
}

func (f *fakeJobs) Backfill(context.Context) (*environment.BackfillResult, error) {
	f.backfills++
	if f.err != nil {
		return nil, f.err
	}
	return &environment.BackfillResult{Stored: 7}, nil
}

func (f *fakeJobs) HealthCheck(context.Context) error {
	f.checks++
	return f.err
}

func TestDispatcher_Dispatch(t *testing.T) {
	jobs := &fakeJobs{}
	d := worker.NewDispatcher(jobs, zerolog.Nop())
	ctx := context.Background()

	jobType, err := d.Dispatch(ctx, []byte(`{"job_type":"prediction_refresh"}`))
	require.NoError(t, err)
	assert.Equal(t, worker.JobPredictionRefresh, jobType)

	_, err = d.Dispatch(ctx, []byte(`{"job_type":"environment_backfill"}`))
	require.NoError(t, err)

	_, err = d.Dispatch(ctx, []byte(`{"job_type":"health_check"}`))
	require.NoError(t, err)

	assert.Equal(t, 1, jobs.runs)
	assert.Equal(t, 1, jobs.backfills)
	assert.Equal(t, 1, jobs.checks)
}

func TestDispatcher_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		jobs    *fakeJobs
		payload string
		want    error
		wantMsg string
	}{
		{name: "malformed", jobs: &fakeJobs{}, payload: `{not json`, want: worker.ErrMalformedMessage},
		{name: "unknown", jobs: &fakeJobs{}, payload: `{"job_type":"provider_refresh"}`, want: worker.ErrUnknownJob},
		{name: "job error", jobs: &fakeJobs{err: errors.New("boom")}, payload: `{"job_type":"health_check"}`, wantMsg: "boom"},
		{
			name:    "mostly failed run",
			jobs:    &fakeJobs{runResult: &worker.PrecomputeResult{Batches: 3, Successful: 1, Failed: 2}},
			payload: `{"job_type":"prediction_refresh"}`,
			wantMsg: "too many batch failures: 2/3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := worker.NewDispatcher(tt.jobs, zerolog.Nop()).Dispatch(ctx, []byte(tt.payload))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			if tt.wantMsg != "" {
				assert.ErrorContains(t, err, tt.wantMsg)
			}
		})
	}
}
