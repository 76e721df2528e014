package models

import (
	"errors"
	"fmt"
	"time"

	orthancHttp "github.com/tjni/orthanc-connector-go/internals/http"
	"github.com/tjni/orthanc-connector-go/internals/utils"
)

const StudyURL = "/studies"

// Study wraps a study stored in an Orthanc server. Besides the study's
// own main DICOM tags it carries the main tags of the parent patient, as
// returned by the server.
type Study struct {
	ID                   string            `json:"ID"`
	ParentPatient        string            `json:"ParentPatient"`
	PatientMainDicomTags map[string]string `json:"PatientMainDicomTags"`
	MainDicomTags        map[string]string `json:"MainDicomTags"`
	SeriesIDs            []string          `json:"Series"`
	IsStable             bool              `json:"IsStable"`
	LastUpdate           string            `json:"LastUpdate"`
	Labels               []string          `json:"Labels"`
	Type                 string            `json:"Type"`

	orthancHttp.BaseModel
}

func NewStudy(id string, client *orthancHttp.Client) *Study {
	return &Study{ID: id, BaseModel: orthancHttp.BaseModel{Client: client}}
}

func (s *Study) load() error {
	if s.MainDicomTags != nil {
		return nil
	}
	return s.Reload()
}

func (s *Study) Reload() error {
	return s.Client.GetAndParse(fmt.Sprintf("%s/%s", StudyURL, s.ID), s)
}

func (s *Study) MainDicomTag(name string) (string, error) {
	if err := s.load(); err != nil {
		return "", err
	}
	return mainDicomTag(s.MainDicomTags, name)
}

func (s *Study) ReferringPhysicianName() (string, error) {
	return s.MainDicomTag("ReferringPhysicianName")
}

func (s *Study) RequestingPhysician() (string, error) {
	return s.MainDicomTag("RequestingPhysician")
}

// Date merges the StudyDate and StudyTime tags into a single time.Time.
// A missing StudyTime is tolerated and yields midnight.
func (s *Study) Date() (time.Time, error) {
	date, err := s.MainDicomTag("StudyDate")
	if err != nil {
		return time.Time{}, err
	}
	tm, err := s.MainDicomTag("StudyTime")
	if err != nil {
		if !errors.Is(err, ErrTagNotFound) {
			return time.Time{}, err
		}
		tm = ""
	}
	return utils.ParseDicomDate(date, tm)
}

// StudyID returns the StudyID tag, not the Orthanc identifier.
func (s *Study) StudyID() (string, error) {
	return s.MainDicomTag("StudyID")
}

// UID returns the StudyInstanceUID.
func (s *Study) UID() (string, error) {
	return s.MainDicomTag("StudyInstanceUID")
}

func (s *Study) AccessionNumber() (string, error) {
	return s.MainDicomTag("AccessionNumber")
}

func (s *Study) Description() (string, error) {
	return s.MainDicomTag("StudyDescription")
}

func (s *Study) InstitutionName() (string, error) {
	return s.MainDicomTag("InstitutionName")
}

func (s *Study) RequestedProcedureDescription() (string, error) {
	return s.MainDicomTag("RequestedProcedureDescription")
}

// PatientIdentifier returns the Orthanc identifier of the parent patient.
func (s *Study) PatientIdentifier() (string, error) {
	if err := s.load(); err != nil {
		return "", err
	}
	return s.ParentPatient, nil
}

// PatientInformation returns the main DICOM tags of the parent patient.
func (s *Study) PatientInformation() (map[string]string, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	return s.PatientMainDicomTags, nil
}

// Patient wraps the parent patient.
func (s *Study) Patient() (*Patient, error) {
	id, err := s.PatientIdentifier()
	if err != nil {
		return nil, err
	}
	return NewPatient(id, s.Client), nil
}

func (s *Study) LastUpdateTime() (time.Time, error) {
	if err := s.load(); err != nil {
		return time.Time{}, err
	}
	return utils.ParseDicomTimestamp(s.LastUpdate)
}

// Series wraps the study's series.
func (s *Study) Series() ([]*Series, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	series := make([]*Series, 0, len(s.SeriesIDs))
	for _, id := range s.SeriesIDs {
		series = append(series, NewSeries(id, s.Client))
	}
	return series, nil
}

// Anonymize creates an anonymized copy of the study and returns it. Use
// AnonymizeAsJob for large studies; the synchronous call can hit the
// request timeout.
func (s *Study) Anonymize(opts *AnonymizeOptions) (*Study, error) {
	result, err := postChange(s.Client, StudyURL, s.ID, "anonymize", opts.payload(false))
	if err != nil {
		return nil, err
	}
	return NewStudy(result.ID, s.Client), nil
}

func (s *Study) AnonymizeAsJob(opts *AnonymizeOptions) (*Job, error) {
	result, err := postChange(s.Client, StudyURL, s.ID, "anonymize", opts.payload(true))
	if err != nil {
		return nil, err
	}
	return NewJob(result.ID, s.Client), nil
}

func (s *Study) Modify(opts *ModifyOptions) (*Study, error) {
	result, err := postChange(s.Client, StudyURL, s.ID, "modify", opts.payload(false))
	if err != nil {
		return nil, err
	}
	return NewStudy(result.ID, s.Client), nil
}

func (s *Study) ModifyAsJob(opts *ModifyOptions) (*Job, error) {
	result, err := postChange(s.Client, StudyURL, s.ID, "modify", opts.payload(true))
	if err != nil {
		return nil, err
	}
	return NewJob(result.ID, s.Client), nil
}

// Archive downloads the study as a zip file.
func (s *Study) Archive() ([]byte, error) {
	return getArchive(s.Client, StudyURL, s.ID)
}

func (s *Study) AddLabel(label string) error {
	return addLabel(s.Client, StudyURL, s.ID, label)
}

func (s *Study) RemoveLabel(label string) error {
	return removeLabel(s.Client, StudyURL, s.ID, label)
}

func (s *Study) Remove() error {
	return removeResource(s.Client, StudyURL, s.ID)
}
