package orthanc

import (
	"bytes"
	"encoding/json"
	"fmt"

	orthancHttp "github.com/tjni/orthanc-connector-go/internals/http"
	"github.com/tjni/orthanc-connector-go/internals/utils"
	"github.com/tjni/orthanc-connector-go/orthanc/models"
)

// Orthanc is the entry point of the connector. It wraps an authenticated
// HTTP client for one Orthanc server.
type Orthanc struct {
	Client *orthancHttp.Client
}

// Ping checks that an Orthanc server answers at url, without credentials.
func Ping(url string) error {
	client := orthancHttp.NewClient(url, "", false)
	return client.Ping()
}

// NewOrthanc builds a client without checking the connection. Use Create
// or CreateWithToken to validate the URL and credentials up front.
func NewOrthanc(url string, username string, password string, verifyCert bool) *Orthanc {
	return &Orthanc{Client: orthancHttp.NewPasswordClient(url, username, password, verifyCert)}
}

// Create connects to an Orthanc server with HTTP basic auth and verifies
// the connection before returning.
func Create(url string, username string, password string, verifyCertificate bool) (*Orthanc, error) {
	url, err := utils.ValidateURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	o := NewOrthanc(url, username, password, verifyCertificate)

	err = o.Client.CheckConnection()
	if err != nil {
		return nil, fmt.Errorf("cannot connect to Orthanc: %w", err)
	}
	return o, nil
}

// CreateWithToken connects with a bearer token (authorization plugin or
// reverse proxy). An empty token gives an anonymous connection.
func CreateWithToken(url string, token string, verifyCertificate bool) (*Orthanc, error) {
	url, err := utils.ValidateURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	o := &Orthanc{Client: orthancHttp.NewClient(url, token, verifyCertificate)}

	err = o.Client.CheckConnection()
	if err != nil {
		return nil, fmt.Errorf("cannot connect to Orthanc: %w", err)
	}
	return o, nil
}

// System mirrors the body of GET /system.
type System struct {
	Name                  string `json:"Name"`
	Version               string `json:"Version"`
	APIVersion            int    `json:"ApiVersion"`
	DicomAet              string `json:"DicomAet"`
	DicomPort             int    `json:"DicomPort"`
	HTTPPort              int    `json:"HttpPort"`
	DatabaseVersion       int    `json:"DatabaseVersion"`
	DatabaseBackendPlugin string `json:"DatabaseBackendPlugin"`
	StorageAreaPlugin     string `json:"StorageAreaPlugin"`
	PluginsEnabled        bool   `json:"PluginsEnabled"`
}

func (o *Orthanc) GetSystem() (*System, error) {
	var system System
	err := o.Client.GetAndParse("/system", &system)
	if err != nil {
		return nil, err
	}
	return &system, nil
}

// Statistics mirrors the body of GET /statistics.
type Statistics struct {
	CountPatients           int    `json:"CountPatients"`
	CountStudies            int    `json:"CountStudies"`
	CountSeries             int    `json:"CountSeries"`
	CountInstances          int    `json:"CountInstances"`
	TotalDiskSize           string `json:"TotalDiskSize"`
	TotalDiskSizeMB         int    `json:"TotalDiskSizeMB"`
	TotalUncompressedSize   string `json:"TotalUncompressedSize"`
	TotalUncompressedSizeMB int    `json:"TotalUncompressedSizeMB"`
}

func (o *Orthanc) GetStatistics() (*Statistics, error) {
	var statistics Statistics
	err := o.Client.GetAndParse("/statistics", &statistics)
	if err != nil {
		return nil, err
	}
	return &statistics, nil
}

// Change is one entry of the server changelog.
type Change struct {
	ChangeType   string `json:"ChangeType"`
	Date         string `json:"Date"`
	ID           string `json:"ID"`
	Path         string `json:"Path"`
	ResourceType string `json:"ResourceType"`
	Seq          int    `json:"Seq"`
}

// Changes is one page of the server changelog. Last feeds the next call's
// since parameter; Done reports whether the log has been exhausted.
type Changes struct {
	Changes []Change `json:"Changes"`
	Done    bool     `json:"Done"`
	Last    int      `json:"Last"`
}

func (o *Orthanc) GetChanges(since int, limit int) (*Changes, error) {
	var changes Changes
	err := o.Client.GetAndParse(fmt.Sprintf("/changes?since=%d&limit=%d", since, limit), &changes)
	if err != nil {
		return nil, err
	}
	return &changes, nil
}

// GetPatients lists every patient with its main information.
func (o *Orthanc) GetPatients() ([]models.Patient, error) {
	var patients []models.Patient
	err := o.Client.GetAndParse(models.PatientURL+"?expand", &patients)
	if err != nil {
		return nil, err
	}
	return patients, nil
}

func (o *Orthanc) GetPatient(id string) (*models.Patient, error) {
	patient := models.NewPatient(id, o.Client)
	if err := patient.Reload(); err != nil {
		return nil, err
	}
	return patient, nil
}

// GetStudies lists every study with its main information.
func (o *Orthanc) GetStudies() ([]models.Study, error) {
	var studies []models.Study
	err := o.Client.GetAndParse(models.StudyURL+"?expand", &studies)
	if err != nil {
		return nil, err
	}
	return studies, nil
}

func (o *Orthanc) GetStudy(id string) (*models.Study, error) {
	study := models.NewStudy(id, o.Client)
	if err := study.Reload(); err != nil {
		return nil, err
	}
	return study, nil
}

// GetSeries lists every series with its main information.
func (o *Orthanc) GetSeries() ([]models.Series, error) {
	var series []models.Series
	err := o.Client.GetAndParse(models.SeriesURL+"?expand", &series)
	if err != nil {
		return nil, err
	}
	return series, nil
}

func (o *Orthanc) GetSeriesByID(id string) (*models.Series, error) {
	series := models.NewSeries(id, o.Client)
	if err := series.Reload(); err != nil {
		return nil, err
	}
	return series, nil
}

// GetInstances lists every instance with its main information.
func (o *Orthanc) GetInstances() ([]models.Instance, error) {
	var instances []models.Instance
	err := o.Client.GetAndParse(models.InstanceURL+"?expand", &instances)
	if err != nil {
		return nil, err
	}
	return instances, nil
}

func (o *Orthanc) GetInstance(id string) (*models.Instance, error) {
	instance := models.NewInstance(id, o.Client)
	if err := instance.Reload(); err != nil {
		return nil, err
	}
	return instance, nil
}

// GetModalities lists the remote AEs registered on the server, keyed by
// their configuration label.
func (o *Orthanc) GetModalities() (map[string]models.ModalityConfig, error) {
	var modalities map[string]models.ModalityConfig
	err := o.Client.GetAndParse(models.ModalityURL+"?expand", &modalities)
	if err != nil {
		return nil, err
	}
	return modalities, nil
}

// GetModality binds a modality object to a registered AE label. No
// request is made; the label is only checked when an operation runs.
func (o *Orthanc) GetModality(label string) *models.Modality {
	return models.NewModality(label, o.Client)
}

// RegisterModality declares a remote AE on the server.
func (o *Orthanc) RegisterModality(label string, config models.ModalityConfig) error {
	data, err := json.Marshal(config)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("%s/%s", models.ModalityURL, label)
	resp, err := o.Client.Put(path, bytes.NewBuffer(data), -1)
	if err != nil {
		return err
	}
	return orthancHttp.CheckResponse(resp, path)
}

// DeleteModality removes a remote AE from the server configuration.
func (o *Orthanc) DeleteModality(label string) error {
	path := fmt.Sprintf("%s/%s", models.ModalityURL, label)
	resp, err := o.Client.Delete(path, -1)
	if err != nil {
		return err
	}
	return orthancHttp.CheckResponse(resp, path)
}

// Upload sends local DICOM files and directories to the server. See
// models.Uploader for the batching behavior and progress events.
func (o *Orthanc) Upload(paths []string, progressChan chan models.UploadProgress) (*models.UploadResult, error) {
	return models.NewUploader(o.Client).Upload(paths, progressChan)
}
