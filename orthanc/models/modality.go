package models

import (
	"fmt"

	orthancHttp "github.com/tjni/orthanc-connector-go/internals/http"
)

const (
	ModalityURL = "/modalities"
	QueryURL    = "/queries"
)

// Query levels accepted by the DICOM networking endpoints.
const (
	QueryLevelPatient  = "Patient"
	QueryLevelStudy    = "Study"
	QueryLevelSeries   = "Series"
	QueryLevelInstance = "Instance"
)

// ModalityConfig describes a remote application entity as registered in
// the server's DicomModalities configuration.
type ModalityConfig struct {
	AET          string `json:"AET"`
	Host         string `json:"Host"`
	Port         int    `json:"Port"`
	Manufacturer string `json:"Manufacturer,omitempty"`
}

// Modality wraps a remote AE known to the Orthanc server and exposes the
// DICOM network operations the server gateways for it. The client keeps
// no state between calls; everything lives on the server.
type Modality struct {
	Label  string
	Client *orthancHttp.Client
}

func NewModality(label string, client *orthancHttp.Client) *Modality {
	return &Modality{Label: label, Client: client}
}

// Echo performs a C-ECHO against the remote AE. A nil return means the
// remote answered. timeoutSeconds <= 0 uses the server default.
func (m *Modality) Echo(timeoutSeconds int) error {
	payload := map[string]interface{}{}
	if timeoutSeconds > 0 {
		payload["Timeout"] = timeoutSeconds
	}
	return m.Client.PostJSON(fmt.Sprintf("%s/%s/echo", ModalityURL, m.Label), payload)
}

// StoreResult is the body returned by a synchronous store.
type StoreResult struct {
	Description          string   `json:"Description"`
	LocalAet             string   `json:"LocalAet"`
	RemoteAet            string   `json:"RemoteAet"`
	InstancesCount       int      `json:"InstancesCount"`
	FailedInstancesCount int      `json:"FailedInstancesCount"`
	ParentResources      []string `json:"ParentResources"`
}

// Store performs a C-STORE of resources already held by the server,
// identified by their Orthanc identifiers (any level).
func (m *Modality) Store(resourceIDs []string) (*StoreResult, error) {
	payload := map[string]interface{}{
		"Resources":   resourceIDs,
		"Synchronous": true,
	}
	var result StoreResult
	err := m.Client.PostJSONAndParse(fmt.Sprintf("%s/%s/store", ModalityURL, m.Label), payload, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// StoreAsJob launches the C-STORE as a server-side job.
func (m *Modality) StoreAsJob(resourceIDs []string, priority int) (*Job, error) {
	payload := map[string]interface{}{
		"Resources":    resourceIDs,
		"Asynchronous": true,
		"Priority":     priority,
	}
	var result ChangeResult
	err := m.Client.PostJSONAndParse(fmt.Sprintf("%s/%s/store", ModalityURL, m.Label), payload, &result)
	if err != nil {
		return nil, err
	}
	return NewJob(result.ID, m.Client), nil
}

// QueryResult wraps a C-FIND query stored on the server. The only state
// kept client-side is the query identifier.
type QueryResult struct {
	ID     string `json:"ID"`
	Path   string `json:"Path"`
	Client *orthancHttp.Client
}

// Query performs a C-FIND against the remote AE. The query maps DICOM tag
// names to match strings ("*" wildcards allowed), e.g.
// {"PatientName": "DOE^*"}.
func (m *Modality) Query(level string, query map[string]string) (*QueryResult, error) {
	if query == nil {
		query = map[string]string{}
	}
	payload := map[string]interface{}{
		"Level": level,
		"Query": query,
	}
	var result QueryResult
	err := m.Client.PostJSONAndParse(fmt.Sprintf("%s/%s/query", ModalityURL, m.Label), payload, &result)
	if err != nil {
		return nil, err
	}
	result.Client = m.Client
	return &result, nil
}

// Answers lists the indices of the answers the remote AE returned.
func (q *QueryResult) Answers() ([]string, error) {
	var answers []string
	err := q.Client.GetAndParse(fmt.Sprintf("%s/%s/answers", QueryURL, q.ID), &answers)
	if err != nil {
		return nil, err
	}
	return answers, nil
}

// AnswerContent fetches the simplified tags of one answer.
func (q *QueryResult) AnswerContent(index string) (map[string]string, error) {
	var content map[string]string
	err := q.Client.GetAndParse(fmt.Sprintf("%s/%s/answers/%s/content?simplify", QueryURL, q.ID, index), &content)
	if err != nil {
		return nil, err
	}
	return content, nil
}

// RetrieveAnswer issues a C-MOVE of a single answer towards targetAET.
func (q *QueryResult) RetrieveAnswer(index string, targetAET string) error {
	payload := map[string]interface{}{
		"TargetAet":   targetAET,
		"Synchronous": true,
	}
	return q.Client.PostJSON(fmt.Sprintf("%s/%s/answers/%s/retrieve", QueryURL, q.ID, index), payload)
}

// RetrieveAll issues a C-MOVE of every answer towards targetAET.
func (q *QueryResult) RetrieveAll(targetAET string) error {
	payload := map[string]interface{}{
		"TargetAet":   targetAET,
		"Synchronous": true,
	}
	return q.Client.PostJSON(fmt.Sprintf("%s/%s/retrieve", QueryURL, q.ID), payload)
}

// RetrieveAllAsJob launches the retrieval of every answer as a job.
func (q *QueryResult) RetrieveAllAsJob(targetAET string, priority int) (*Job, error) {
	payload := map[string]interface{}{
		"TargetAet":    targetAET,
		"Asynchronous": true,
		"Priority":     priority,
	}
	var result ChangeResult
	err := q.Client.PostJSONAndParse(fmt.Sprintf("%s/%s/retrieve", QueryURL, q.ID), payload, &result)
	if err != nil {
		return nil, err
	}
	return NewJob(result.ID, q.Client), nil
}

// Move performs a direct C-MOVE without storing a query first. The query
// identifies the resources on the remote AE; targetAET is where they get
// sent (often the server's own AET).
func (m *Modality) Move(level string, query map[string]string, targetAET string) error {
	if query == nil {
		query = map[string]string{}
	}
	payload := map[string]interface{}{
		"Level":       level,
		"Resources":   []map[string]string{query},
		"TargetAet":   targetAET,
		"Synchronous": true,
	}
	return m.Client.PostJSON(fmt.Sprintf("%s/%s/move", ModalityURL, m.Label), payload)
}

// MoveAsJob launches the C-MOVE as a server-side job.
func (m *Modality) MoveAsJob(level string, query map[string]string, targetAET string, priority int) (*Job, error) {
	if query == nil {
		query = map[string]string{}
	}
	payload := map[string]interface{}{
		"Level":        level,
		"Resources":    []map[string]string{query},
		"TargetAet":    targetAET,
		"Asynchronous": true,
		"Priority":     priority,
	}
	var result ChangeResult
	err := m.Client.PostJSONAndParse(fmt.Sprintf("%s/%s/move", ModalityURL, m.Label), payload, &result)
	if err != nil {
		return nil, err
	}
	return NewJob(result.ID, m.Client), nil
}
