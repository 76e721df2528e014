package models

import (
	"errors"
	"fmt"
	"time"

	orthancHttp "github.com/tjni/orthanc-connector-go/internals/http"
)

const JobURL = "/jobs"

const (
	JobStatePending = "Pending"
	JobStateRunning = "Running"
	JobStateSuccess = "Success"
	JobStateFailure = "Failure"
	JobStatePaused  = "Paused"
	JobStateRetry   = "Retry"
)

// Job wraps an asynchronous server-side job, as returned by the as-job
// variants of anonymize, modify, store and move.
type Job struct {
	ID               string                 `json:"ID"`
	State            string                 `json:"State"`
	Progress         int                    `json:"Progress"`
	JobType          string                 `json:"Type"`
	Priority         int                    `json:"Priority"`
	Content          map[string]interface{} `json:"Content"`
	ErrorCode        int                    `json:"ErrorCode"`
	ErrorDescription string                 `json:"ErrorDescription"`
	CreationTime     string                 `json:"CreationTime"`
	CompletionTime   string                 `json:"CompletionTime"`
	EffectiveRuntime float64                `json:"EffectiveRuntime"`

	pollInterval time.Duration

	orthancHttp.BaseModel
}

func NewJob(id string, client *orthancHttp.Client) *Job {
	return &Job{ID: id, BaseModel: orthancHttp.BaseModel{Client: client}}
}

// Refresh fetches the current state of the job.
func (j *Job) Refresh() error {
	return j.Client.GetAndParse(fmt.Sprintf("%s/%s", JobURL, j.ID), j)
}

// IsDone reports whether the job reached a terminal state.
func (j *Job) IsDone() bool {
	return j.State == JobStateSuccess || j.State == JobStateFailure
}

// Succeeded reports whether the job finished successfully.
func (j *Job) Succeeded() bool {
	return j.State == JobStateSuccess
}

// WaitUntilCompletion polls the job every 2 seconds until it reaches a
// terminal state or the timeout expires. Transient network timeouts while
// polling are retried. The job's final state is left on the struct; a
// failed job does not produce an error here.
func (j *Job) WaitUntilCompletion(timeout time.Duration) error {
	if j.IsDone() {
		return nil
	}

	interval := j.pollInterval
	if interval == 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-deadline.C:
			return errors.New("job wait timeout")
		case <-ticker.C:
			err := j.Refresh()
			if err != nil {
				if j.Client.IsTimeoutError(err) {
					continue
				}
				return err
			}
			if j.IsDone() {
				return nil
			}
		}
	}
}

func (j *Job) Cancel() error {
	return j.action("cancel")
}

func (j *Job) Pause() error {
	return j.action("pause")
}

func (j *Job) Resume() error {
	return j.action("resume")
}

// Resubmit retries a failed job.
func (j *Job) Resubmit() error {
	return j.action("resubmit")
}

func (j *Job) action(verb string) error {
	path := fmt.Sprintf("%s/%s/%s", JobURL, j.ID, verb)
	resp, err := j.Client.Post(path, nil, -1)
	if err != nil {
		return err
	}
	return orthancHttp.CheckResponse(resp, path)
}
