package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	orthancHttp "github.com/tjni/orthanc-connector-go/internals/http"
	"github.com/tjni/orthanc-connector-go/internals/utils"
)

const InstanceURL = "/instances"

// Instance wraps a single DICOM instance stored in an Orthanc server.
type Instance struct {
	ID            string            `json:"ID"`
	ParentSeries  string            `json:"ParentSeries"`
	MainDicomTags map[string]string `json:"MainDicomTags"`
	FileSize      int64             `json:"FileSize"`
	FileUUID      string            `json:"FileUuid"`
	IndexInSeries int               `json:"IndexInSeries"`
	Labels        []string          `json:"Labels"`
	Type          string            `json:"Type"`

	orthancHttp.BaseModel
}

func NewInstance(id string, client *orthancHttp.Client) *Instance {
	return &Instance{ID: id, BaseModel: orthancHttp.BaseModel{Client: client}}
}

func (i *Instance) load() error {
	if i.MainDicomTags != nil {
		return nil
	}
	return i.Reload()
}

func (i *Instance) Reload() error {
	return i.Client.GetAndParse(fmt.Sprintf("%s/%s", InstanceURL, i.ID), i)
}

func (i *Instance) MainDicomTag(name string) (string, error) {
	if err := i.load(); err != nil {
		return "", err
	}
	return mainDicomTag(i.MainDicomTags, name)
}

// UID returns the SOPInstanceUID.
func (i *Instance) UID() (string, error) {
	return i.MainDicomTag("SOPInstanceUID")
}

func (i *Instance) InstanceNumber() (string, error) {
	return i.MainDicomTag("InstanceNumber")
}

// CreationDate merges InstanceCreationDate and InstanceCreationTime.
func (i *Instance) CreationDate() (time.Time, error) {
	date, err := i.MainDicomTag("InstanceCreationDate")
	if err != nil {
		return time.Time{}, err
	}
	tm, err := i.MainDicomTag("InstanceCreationTime")
	if err != nil {
		if !errors.Is(err, ErrTagNotFound) {
			return time.Time{}, err
		}
		tm = ""
	}
	return utils.ParseDicomDate(date, tm)
}

// SeriesIdentifier returns the Orthanc identifier of the parent series.
func (i *Instance) SeriesIdentifier() (string, error) {
	if err := i.load(); err != nil {
		return "", err
	}
	return i.ParentSeries, nil
}

// Series wraps the parent series.
func (i *Instance) Series() (*Series, error) {
	id, err := i.SeriesIdentifier()
	if err != nil {
		return nil, err
	}
	return NewSeries(id, i.Client), nil
}

// SimplifiedTags fetches the full tag set of the instance with
// human-readable tag names and flattened values.
func (i *Instance) SimplifiedTags() (map[string]string, error) {
	var tags map[string]string
	err := i.Client.GetAndParse(fmt.Sprintf("%s/%s/simplified-tags", InstanceURL, i.ID), &tags)
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// Tags fetches the full tag set keyed by group,element with value/type
// details, as returned by /instances/{id}/tags.
func (i *Instance) Tags() (map[string]interface{}, error) {
	var tags map[string]interface{}
	err := i.Client.GetAndParse(fmt.Sprintf("%s/%s/tags", InstanceURL, i.ID), &tags)
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// File downloads the raw DICOM file of the instance.
func (i *Instance) File() ([]byte, error) {
	data, _, err := i.Client.GetBytes(fmt.Sprintf("%s/%s/file", InstanceURL, i.ID), -1)
	return data, err
}

// Preview downloads a rendered preview image of the instance and returns
// the image bytes together with the content type (usually image/png).
func (i *Instance) Preview() ([]byte, string, error) {
	return i.Client.GetBytes(fmt.Sprintf("%s/%s/preview", InstanceURL, i.ID), -1)
}

// Anonymize returns the anonymized DICOM file of the instance. Unlike the
// other resource levels, instance anonymization does not create a new
// resource on the server; the server answers with the file itself.
func (i *Instance) Anonymize(opts *AnonymizeOptions) ([]byte, error) {
	payload := opts.payload(false)
	delete(payload, "Asynchronous")
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("%s/%s/anonymize", InstanceURL, i.ID)
	resp, err := i.Client.Post(path, bytes.NewBuffer(data), -1)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, orthancHttp.CheckResponse(resp, path)
	}
	return io.ReadAll(resp.Body)
}

// Modify returns the modified DICOM file of the instance.
func (i *Instance) Modify(opts *ModifyOptions) ([]byte, error) {
	payload := opts.payload(false)
	delete(payload, "Asynchronous")
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("%s/%s/modify", InstanceURL, i.ID)
	resp, err := i.Client.Post(path, bytes.NewBuffer(data), -1)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, orthancHttp.CheckResponse(resp, path)
	}
	return io.ReadAll(resp.Body)
}

func (i *Instance) AddLabel(label string) error {
	return addLabel(i.Client, InstanceURL, i.ID, label)
}

func (i *Instance) RemoveLabel(label string) error {
	return removeLabel(i.Client, InstanceURL, i.ID, label)
}

func (i *Instance) Remove() error {
	return removeResource(i.Client, InstanceURL, i.ID)
}
