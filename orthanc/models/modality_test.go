package models

import (
	"encoding/json"
	"net/http"
	"testing"

	"gotest.tools/v3/assert"
)

func TestModalityEcho(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.NilError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	modality := NewModality("PACS", client)
	assert.NilError(t, modality.Echo(0))
	assert.Equal(t, gotPath, "/modalities/PACS/echo")
	assert.Equal(t, len(gotBody), 0)

	assert.NilError(t, modality.Echo(5))
	assert.Equal(t, gotBody["Timeout"], float64(5))
}

func TestModalityEchoFailure(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("no answer from the remote AET"))
	}))
	defer server.Close()

	modality := NewModality("PACS", client)
	err := modality.Echo(0)
	assert.ErrorContains(t, err, "status code = 500")
}

func TestModalityQueryFlow(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/modalities/PACS/query":
			var body map[string]interface{}
			assert.NilError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, body["Level"], "Study")
			query := body["Query"].(map[string]interface{})
			assert.Equal(t, query["PatientName"], "DOE^*")
			w.Write([]byte(`{"ID": "query-1", "Path": "/queries/query-1"}`))
		case "/queries/query-1/answers":
			w.Write([]byte(`["0", "1"]`))
		case "/queries/query-1/answers/0/content":
			w.Write([]byte(`{"PatientName": "DOE^JOHN", "StudyInstanceUID": "1.2.3"}`))
		case "/queries/query-1/answers/1/retrieve":
			var body map[string]interface{}
			assert.NilError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, body["TargetAet"], "ORTHANC")
			w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	modality := NewModality("PACS", client)
	query, err := modality.Query(QueryLevelStudy, map[string]string{"PatientName": "DOE^*"})
	assert.NilError(t, err)
	assert.Equal(t, query.ID, "query-1")

	answers, err := query.Answers()
	assert.NilError(t, err)
	assert.DeepEqual(t, answers, []string{"0", "1"})

	content, err := query.AnswerContent("0")
	assert.NilError(t, err)
	assert.Equal(t, content["PatientName"], "DOE^JOHN")

	assert.NilError(t, query.RetrieveAnswer("1", "ORTHANC"))
}

func TestModalityMove(t *testing.T) {
	var gotBody map[string]interface{}
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/modalities/PACS/move")
		assert.NilError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	modality := NewModality("PACS", client)
	err := modality.Move(QueryLevelStudy, map[string]string{"StudyInstanceUID": "1.2.3"}, "ORTHANC")
	assert.NilError(t, err)

	assert.Equal(t, gotBody["Level"], "Study")
	assert.Equal(t, gotBody["TargetAet"], "ORTHANC")
	assert.Equal(t, gotBody["Synchronous"], true)
	resources := gotBody["Resources"].([]interface{})
	assert.Equal(t, len(resources), 1)
}

func TestModalityMoveAsJob(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NilError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, body["Asynchronous"], true)
		w.Write([]byte(`{"ID": "job-3", "Path": "/jobs/job-3"}`))
	}))
	defer server.Close()

	modality := NewModality("PACS", client)
	job, err := modality.MoveAsJob(QueryLevelSeries, map[string]string{"SeriesInstanceUID": "1.2.3.4"}, "ORTHANC", 0)
	assert.NilError(t, err)
	assert.Equal(t, job.ID, "job-3")
}

func TestModalityStore(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/modalities/PACS/store")
		var body map[string]interface{}
		assert.NilError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, body["Synchronous"], true)
		w.Write([]byte(`{
			"LocalAet": "ORTHANC",
			"RemoteAet": "PACS",
			"InstancesCount": 3,
			"FailedInstancesCount": 0,
			"ParentResources": ["study-1"]
		}`))
	}))
	defer server.Close()

	modality := NewModality("PACS", client)
	result, err := modality.Store([]string{"study-1"})
	assert.NilError(t, err)
	assert.Equal(t, result.InstancesCount, 3)
	assert.Equal(t, result.FailedInstancesCount, 0)
	assert.Equal(t, result.RemoteAet, "PACS")
}
