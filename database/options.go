package database

type listRunsOptions struct {
	limit  int
	jobID  string
	status RunStatus
}

type ListRunsOption func(*listRunsOptions)

// Limit the number of runs returned.
func WithListRunsLimit(limit int) ListRunsOption {
	return func(o *listRunsOptions) {
		o.limit = limit
	}
}

// Return only the runs of one job.
func WithListRunsJob(jobID string) ListRunsOption {
	return func(o *listRunsOptions) {
		o.jobID = jobID
	}
}

// Return only runs in a given state.
func WithListRunsStatus(status RunStatus) ListRunsOption {
	return func(o *listRunsOptions) {
		o.status = status
	}
}
