package models

import (
	"fmt"
	"io"
	"strings"
	"time"

	orthancHttp "github.com/tjni/orthanc-connector-go/internals/http"
	"github.com/tjni/orthanc-connector-go/internals/utils"
)

const PatientURL = "/patients"

// Patient wraps a patient stored in an Orthanc server. The main
// information is fetched lazily on first access; call Reload to refresh.
type Patient struct {
	ID            string            `json:"ID"`
	MainDicomTags map[string]string `json:"MainDicomTags"`
	StudyIDs      []string          `json:"Studies"`
	IsStable      bool              `json:"IsStable"`
	LastUpdate    string            `json:"LastUpdate"`
	Labels        []string          `json:"Labels"`
	Type          string            `json:"Type"`

	orthancHttp.BaseModel
}

func NewPatient(id string, client *orthancHttp.Client) *Patient {
	return &Patient{ID: id, BaseModel: orthancHttp.BaseModel{Client: client}}
}

func (p *Patient) load() error {
	if p.MainDicomTags != nil {
		return nil
	}
	return p.Reload()
}

// Reload fetches the patient's main information from the server.
func (p *Patient) Reload() error {
	return p.Client.GetAndParse(fmt.Sprintf("%s/%s", PatientURL, p.ID), p)
}

// MainDicomTag returns the value of one of the patient's main DICOM tags.
func (p *Patient) MainDicomTag(name string) (string, error) {
	if err := p.load(); err != nil {
		return "", err
	}
	return mainDicomTag(p.MainDicomTags, name)
}

func (p *Patient) Name() (string, error) {
	return p.MainDicomTag("PatientName")
}

func (p *Patient) PatientID() (string, error) {
	return p.MainDicomTag("PatientID")
}

func (p *Patient) Sex() (string, error) {
	return p.MainDicomTag("PatientSex")
}

func (p *Patient) BirthDate() (time.Time, error) {
	value, err := p.MainDicomTag("PatientBirthDate")
	if err != nil {
		return time.Time{}, err
	}
	return utils.ParseDicomDate(value, "")
}

// LastUpdateTime parses the server's LastUpdate timestamp.
func (p *Patient) LastUpdateTime() (time.Time, error) {
	if err := p.load(); err != nil {
		return time.Time{}, err
	}
	return utils.ParseDicomTimestamp(p.LastUpdate)
}

// Studies wraps the patient's studies. The returned studies are stubs
// bound to the same client; their information is fetched on first access.
func (p *Patient) Studies() ([]*Study, error) {
	if err := p.load(); err != nil {
		return nil, err
	}
	studies := make([]*Study, 0, len(p.StudyIDs))
	for _, id := range p.StudyIDs {
		studies = append(studies, NewStudy(id, p.Client))
	}
	return studies, nil
}

// IsProtected reports whether the patient is protected against recycling.
func (p *Patient) IsProtected() (bool, error) {
	path := fmt.Sprintf("%s/%s/protected", PatientURL, p.ID)
	resp, err := p.Client.Get(path, -1)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return false, orthancHttp.CheckResponse(resp, path)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(body)) == "1", nil
}

func (p *Patient) SetProtected(protected bool) error {
	value := "0"
	if protected {
		value = "1"
	}
	path := fmt.Sprintf("%s/%s/protected", PatientURL, p.ID)
	resp, err := p.Client.Put(path, strings.NewReader(value), -1)
	if err != nil {
		return err
	}
	return orthancHttp.CheckResponse(resp, path)
}

// Anonymize creates an anonymized copy of the patient and returns it.
// This call is synchronous and can take a while on large patients; use
// AnonymizeAsJob in that case.
func (p *Patient) Anonymize(opts *AnonymizeOptions) (*Patient, error) {
	result, err := postChange(p.Client, PatientURL, p.ID, "anonymize", opts.payload(false))
	if err != nil {
		return nil, err
	}
	return NewPatient(result.ID, p.Client), nil
}

// AnonymizeAsJob launches the anonymization as a server-side job.
func (p *Patient) AnonymizeAsJob(opts *AnonymizeOptions) (*Job, error) {
	result, err := postChange(p.Client, PatientURL, p.ID, "anonymize", opts.payload(true))
	if err != nil {
		return nil, err
	}
	return NewJob(result.ID, p.Client), nil
}

// Modify applies tag modifications and returns the modified patient.
func (p *Patient) Modify(opts *ModifyOptions) (*Patient, error) {
	result, err := postChange(p.Client, PatientURL, p.ID, "modify", opts.payload(false))
	if err != nil {
		return nil, err
	}
	return NewPatient(result.ID, p.Client), nil
}

func (p *Patient) ModifyAsJob(opts *ModifyOptions) (*Job, error) {
	result, err := postChange(p.Client, PatientURL, p.ID, "modify", opts.payload(true))
	if err != nil {
		return nil, err
	}
	return NewJob(result.ID, p.Client), nil
}

// Archive downloads the patient as a zip file.
func (p *Patient) Archive() ([]byte, error) {
	return getArchive(p.Client, PatientURL, p.ID)
}

func (p *Patient) AddLabel(label string) error {
	return addLabel(p.Client, PatientURL, p.ID, label)
}

func (p *Patient) RemoveLabel(label string) error {
	return removeLabel(p.Client, PatientURL, p.ID, label)
}

// Remove deletes the patient and all of its descendants from the server.
func (p *Patient) Remove() error {
	return removeResource(p.Client, PatientURL, p.ID)
}
