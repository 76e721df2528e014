package models

import (
	"fmt"
	"time"

	orthancHttp "github.com/tjni/orthanc-connector-go/internals/http"
	"github.com/tjni/orthanc-connector-go/internals/utils"
)

const SeriesURL = "/series"

// Series wraps a series stored in an Orthanc server.
type Series struct {
	ID            string            `json:"ID"`
	ParentStudy   string            `json:"ParentStudy"`
	MainDicomTags map[string]string `json:"MainDicomTags"`
	InstanceIDs   []string          `json:"Instances"`
	Status        string            `json:"Status"`
	IsStable      bool              `json:"IsStable"`
	LastUpdate    string            `json:"LastUpdate"`
	Labels        []string          `json:"Labels"`
	Type          string            `json:"Type"`

	orthancHttp.BaseModel
}

func NewSeries(id string, client *orthancHttp.Client) *Series {
	return &Series{ID: id, BaseModel: orthancHttp.BaseModel{Client: client}}
}

func (s *Series) load() error {
	if s.MainDicomTags != nil {
		return nil
	}
	return s.Reload()
}

func (s *Series) Reload() error {
	return s.Client.GetAndParse(fmt.Sprintf("%s/%s", SeriesURL, s.ID), s)
}

func (s *Series) MainDicomTag(name string) (string, error) {
	if err := s.load(); err != nil {
		return "", err
	}
	return mainDicomTag(s.MainDicomTags, name)
}

// UID returns the SeriesInstanceUID.
func (s *Series) UID() (string, error) {
	return s.MainDicomTag("SeriesInstanceUID")
}

func (s *Series) Modality() (string, error) {
	return s.MainDicomTag("Modality")
}

func (s *Series) SeriesNumber() (string, error) {
	return s.MainDicomTag("SeriesNumber")
}

func (s *Series) Description() (string, error) {
	return s.MainDicomTag("SeriesDescription")
}

func (s *Series) BodyPartExamined() (string, error) {
	return s.MainDicomTag("BodyPartExamined")
}

func (s *Series) ProtocolName() (string, error) {
	return s.MainDicomTag("ProtocolName")
}

func (s *Series) StationName() (string, error) {
	return s.MainDicomTag("StationName")
}

// StudyIdentifier returns the Orthanc identifier of the parent study.
func (s *Series) StudyIdentifier() (string, error) {
	if err := s.load(); err != nil {
		return "", err
	}
	return s.ParentStudy, nil
}

// Study wraps the parent study.
func (s *Series) Study() (*Study, error) {
	id, err := s.StudyIdentifier()
	if err != nil {
		return nil, err
	}
	return NewStudy(id, s.Client), nil
}

func (s *Series) LastUpdateTime() (time.Time, error) {
	if err := s.load(); err != nil {
		return time.Time{}, err
	}
	return utils.ParseDicomTimestamp(s.LastUpdate)
}

// Instances wraps the series' instances.
func (s *Series) Instances() ([]*Instance, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	instances := make([]*Instance, 0, len(s.InstanceIDs))
	for _, id := range s.InstanceIDs {
		instances = append(instances, NewInstance(id, s.Client))
	}
	return instances, nil
}

func (s *Series) Anonymize(opts *AnonymizeOptions) (*Series, error) {
	result, err := postChange(s.Client, SeriesURL, s.ID, "anonymize", opts.payload(false))
	if err != nil {
		return nil, err
	}
	return NewSeries(result.ID, s.Client), nil
}

func (s *Series) AnonymizeAsJob(opts *AnonymizeOptions) (*Job, error) {
	result, err := postChange(s.Client, SeriesURL, s.ID, "anonymize", opts.payload(true))
	if err != nil {
		return nil, err
	}
	return NewJob(result.ID, s.Client), nil
}

func (s *Series) Modify(opts *ModifyOptions) (*Series, error) {
	result, err := postChange(s.Client, SeriesURL, s.ID, "modify", opts.payload(false))
	if err != nil {
		return nil, err
	}
	return NewSeries(result.ID, s.Client), nil
}

func (s *Series) ModifyAsJob(opts *ModifyOptions) (*Job, error) {
	result, err := postChange(s.Client, SeriesURL, s.ID, "modify", opts.payload(true))
	if err != nil {
		return nil, err
	}
	return NewJob(result.ID, s.Client), nil
}

// Archive downloads the series as a zip file.
func (s *Series) Archive() ([]byte, error) {
	return getArchive(s.Client, SeriesURL, s.ID)
}

func (s *Series) AddLabel(label string) error {
	return addLabel(s.Client, SeriesURL, s.ID, label)
}

func (s *Series) RemoveLabel(label string) error {
	return removeLabel(s.Client, SeriesURL, s.ID, label)
}

func (s *Series) Remove() error {
	return removeResource(s.Client, SeriesURL, s.ID)
}
