package orthanc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/tjni/orthanc-connector-go/orthanc/models"
)

func newFakeServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
}

func TestCreateChecksConnection(t *testing.T) {
	server := newFakeServer(t, map[string]string{
		"/system": `{"Name": "ORTHANC", "Version": "1.12.1", "DicomAet": "ORTHANC", "DicomPort": 4242}`,
	})
	defer server.Close()

	o, err := Create(server.URL, "orthanc", "orthanc", true)
	assert.NilError(t, err)

	system, err := o.GetSystem()
	assert.NilError(t, err)
	assert.Equal(t, system.Version, "1.12.1")
	assert.Equal(t, system.DicomAet, "ORTHANC")
}

func TestCreateFailsOnBadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := Create(server.URL, "orthanc", "wrong", true)
	assert.ErrorContains(t, err, "cannot connect to Orthanc")
}

func TestGetPatientsExpanded(t *testing.T) {
	server := newFakeServer(t, map[string]string{
		"/patients": `[
			{"ID": "patient-1", "MainDicomTags": {"PatientName": "DOE^JOHN"}, "Studies": ["study-1"]},
			{"ID": "patient-2", "MainDicomTags": {"PatientName": "ROE^JANE"}, "Studies": []}
		]`,
	})
	defer server.Close()

	o, err := CreateWithToken(server.URL, "", true)
	assert.ErrorContains(t, err, "cannot connect")

	// /system is not routed above; build the client without the check
	o = &Orthanc{Client: newTestHTTPClient(server.URL)}
	patients, err := o.GetPatients()
	assert.NilError(t, err)
	assert.Equal(t, len(patients), 2)

	// expanded listings come back pre-loaded and bound to the client
	name, err := patients[0].Name()
	assert.NilError(t, err)
	assert.Equal(t, name, "DOE^JOHN")
}

func TestGetStatisticsAndChanges(t *testing.T) {
	server := newFakeServer(t, map[string]string{
		"/statistics": `{"CountPatients": 2, "CountStudies": 5, "CountSeries": 9, "CountInstances": 420}`,
		"/changes":    `{"Changes": [{"ChangeType": "NewStudy", "ID": "study-1", "ResourceType": "Study", "Seq": 14}], "Done": true, "Last": 14}`,
	})
	defer server.Close()

	o := &Orthanc{Client: newTestHTTPClient(server.URL)}

	statistics, err := o.GetStatistics()
	assert.NilError(t, err)
	assert.Equal(t, statistics.CountInstances, 420)

	changes, err := o.GetChanges(0, 100)
	assert.NilError(t, err)
	assert.Assert(t, changes.Done)
	assert.Equal(t, changes.Last, 14)
	assert.Equal(t, changes.Changes[0].ChangeType, "NewStudy")
}

func TestModalityConfiguration(t *testing.T) {
	var gotMethod, gotPath string
	var gotConfig models.ModalityConfig
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		switch {
		case r.Method == "GET":
			w.Write([]byte(`{"pacs": {"AET": "PACS", "Host": "192.168.1.10", "Port": 104}}`))
		case r.Method == "PUT":
			assert.NilError(t, json.NewDecoder(r.Body).Decode(&gotConfig))
			w.Write([]byte(`{}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	o := &Orthanc{Client: newTestHTTPClient(server.URL)}

	modalities, err := o.GetModalities()
	assert.NilError(t, err)
	assert.Equal(t, modalities["pacs"].AET, "PACS")
	assert.Equal(t, modalities["pacs"].Port, 104)

	err = o.RegisterModality("workstation", models.ModalityConfig{AET: "WS1", Host: "10.0.0.5", Port: 11112})
	assert.NilError(t, err)
	assert.Equal(t, gotMethod, "PUT")
	assert.Equal(t, gotPath, "/modalities/workstation")
	assert.Equal(t, gotConfig.AET, "WS1")

	assert.NilError(t, o.DeleteModality("workstation"))
	assert.Equal(t, gotMethod, "DELETE")

	modality := o.GetModality("pacs")
	assert.Equal(t, modality.Label, "pacs")
}
