package models

import (
	"errors"
	"fmt"

	orthancHttp "github.com/tjni/orthanc-connector-go/internals/http"
)

// ErrTagNotFound is returned by the tag accessors when the requested DICOM
// tag is absent from the resource's main information.
var ErrTagNotFound = errors.New("dicom tag not found")

// ChangeResult is the body returned by anonymize and modify calls: the
// identifier of the created resource, or of the job in asynchronous mode.
type ChangeResult struct {
	ID        string `json:"ID"`
	Path      string `json:"Path"`
	PatientID string `json:"PatientID"`
	Type      string `json:"Type"`
}

// AnonymizeOptions maps to the body of /.../anonymize. See the Orthanc
// book on anonymization for the semantics of each field.
type AnonymizeOptions struct {
	Remove          []string
	Replace         map[string]string
	Keep            []string
	Force           bool
	KeepPrivateTags bool
	KeepSource      bool
	Priority        int
	Permissive      bool
	DicomVersion    string
}

func (opts *AnonymizeOptions) payload(asynchronous bool) map[string]interface{} {
	if opts == nil {
		opts = &AnonymizeOptions{KeepSource: true}
	}
	remove := opts.Remove
	if remove == nil {
		remove = []string{}
	}
	replace := opts.Replace
	if replace == nil {
		replace = map[string]string{}
	}
	keep := opts.Keep
	if keep == nil {
		keep = []string{}
	}

	data := map[string]interface{}{
		"Asynchronous":    asynchronous,
		"Remove":          remove,
		"Replace":         replace,
		"Keep":            keep,
		"Force":           opts.Force,
		"KeepPrivateTags": opts.KeepPrivateTags,
		"KeepSource":      opts.KeepSource,
		"Priority":        opts.Priority,
		"Permissive":      opts.Permissive,
	}
	if opts.DicomVersion != "" {
		data["DicomVersion"] = opts.DicomVersion
	}
	return data
}

// ModifyOptions maps to the body of /.../modify.
type ModifyOptions struct {
	Remove            []string
	Replace           map[string]string
	Keep              []string
	Force             bool
	RemovePrivateTags bool
	KeepSource        bool
	Priority          int
	Permissive        bool
}

func (opts *ModifyOptions) payload(asynchronous bool) map[string]interface{} {
	if opts == nil {
		opts = &ModifyOptions{KeepSource: true}
	}
	remove := opts.Remove
	if remove == nil {
		remove = []string{}
	}
	replace := opts.Replace
	if replace == nil {
		replace = map[string]string{}
	}
	keep := opts.Keep
	if keep == nil {
		keep = []string{}
	}

	return map[string]interface{}{
		"Asynchronous":      asynchronous,
		"Remove":            remove,
		"Replace":           replace,
		"Keep":              keep,
		"Force":             opts.Force,
		"RemovePrivateTags": opts.RemovePrivateTags,
		"KeepSource":        opts.KeepSource,
		"Priority":          opts.Priority,
		"Permissive":        opts.Permissive,
	}
}

func postChange(client *orthancHttp.Client, baseURL string, id string, operation string, payload interface{}) (*ChangeResult, error) {
	var result ChangeResult
	path := fmt.Sprintf("%s/%s/%s", baseURL, id, operation)
	err := client.PostJSONAndParse(path, payload, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func mainDicomTag(tags map[string]string, name string) (string, error) {
	value, ok := tags[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTagNotFound, name)
	}
	return value, nil
}

func addLabel(client *orthancHttp.Client, baseURL string, id string, label string) error {
	path := fmt.Sprintf("%s/%s/labels/%s", baseURL, id, label)
	resp, err := client.Put(path, nil, -1)
	if err != nil {
		return err
	}
	return orthancHttp.CheckResponse(resp, path)
}

func removeLabel(client *orthancHttp.Client, baseURL string, id string, label string) error {
	path := fmt.Sprintf("%s/%s/labels/%s", baseURL, id, label)
	resp, err := client.Delete(path, -1)
	if err != nil {
		return err
	}
	return orthancHttp.CheckResponse(resp, path)
}

func removeResource(client *orthancHttp.Client, baseURL string, id string) error {
	path := fmt.Sprintf("%s/%s", baseURL, id)
	resp, err := client.Delete(path, -1)
	if err != nil {
		return err
	}
	return orthancHttp.CheckResponse(resp, path)
}

func getArchive(client *orthancHttp.Client, baseURL string, id string) ([]byte, error) {
	data, _, err := client.GetBytes(fmt.Sprintf("%s/%s/archive", baseURL, id), -1)
	return data, err
}
