package models

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestJobRefresh(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/jobs/job-1")
		w.Write([]byte(`{
			"ID": "job-1",
			"State": "Running",
			"Progress": 42,
			"Type": "ResourceModification",
			"Content": {"Description": "Anonymize"}
		}`))
	}))
	defer server.Close()

	job := NewJob("job-1", client)
	assert.NilError(t, job.Refresh())
	assert.Equal(t, job.State, JobStateRunning)
	assert.Equal(t, job.Progress, 42)
	assert.Assert(t, !job.IsDone())
}

func TestJobWaitUntilCompletion(t *testing.T) {
	var polls int32
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&polls, 1)
		state := "Running"
		if n >= 3 {
			state = "Success"
		}
		fmt.Fprintf(w, `{"ID": "job-1", "State": %q, "Progress": 100}`, state)
	}))
	defer server.Close()

	job := NewJob("job-1", client)
	job.pollInterval = 5 * time.Millisecond
	assert.NilError(t, job.WaitUntilCompletion(5*time.Second))
	assert.Equal(t, job.State, JobStateSuccess)
	assert.Assert(t, job.Succeeded())
}

func TestJobWaitTimeout(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ID": "job-1", "State": "Running"}`))
	}))
	defer server.Close()

	job := NewJob("job-1", client)
	job.pollInterval = 5 * time.Millisecond
	start := time.Now()
	err := job.WaitUntilCompletion(30 * time.Millisecond)
	assert.ErrorContains(t, err, "job wait timeout")
	// the deadline is armed once, so the wait ends close to the timeout
	assert.Assert(t, time.Since(start) < time.Second)
}

func TestJobWaitFailureIsNotAnError(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ID": "job-1", "State": "Failure", "ErrorDescription": "bad dicom"}`))
	}))
	defer server.Close()

	job := NewJob("job-1", client)
	job.pollInterval = 5 * time.Millisecond
	assert.NilError(t, job.WaitUntilCompletion(5*time.Second))
	assert.Equal(t, job.State, JobStateFailure)
	assert.Assert(t, !job.Succeeded())
	assert.Equal(t, job.ErrorDescription, "bad dicom")
}

func TestJobActions(t *testing.T) {
	var gotPath string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.Method, "POST")
		gotPath = r.URL.Path
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	job := NewJob("job-1", client)
	assert.NilError(t, job.Cancel())
	assert.Equal(t, gotPath, "/jobs/job-1/cancel")
	assert.NilError(t, job.Pause())
	assert.Equal(t, gotPath, "/jobs/job-1/pause")
	assert.NilError(t, job.Resume())
	assert.Equal(t, gotPath, "/jobs/job-1/resume")
	assert.NilError(t, job.Resubmit())
	assert.Equal(t, gotPath, "/jobs/job-1/resubmit")
}
