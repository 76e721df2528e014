package http

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"reflect"
	"time"
)

const (
	// DefaultTimeout is the per-request timeout in seconds. Orthanc can be
	// slow on synchronous anonymization or large archives, so it is more
	// generous than a plain REST default.
	DefaultTimeout  = 60
	DownloadTimeout = 600
)

const systemPath = "/system"

// Client talks to the Orthanc REST API.
type Client struct {
	conn Connection
}

// APIError is returned for any response with a status code >= 400. The
// server usually puts a short plain-text or JSON explanation in the body.
type APIError struct {
	StatusCode int
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("orthanc: status code = %d for %s: %s", e.StatusCode, e.Path, e.Message)
	}
	return fmt.Sprintf("orthanc: status code = %d for %s", e.StatusCode, e.Path)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// BaseModel is embedded by every resource model so that a parsed model can
// issue follow-up requests. It lives here because the models package
// imports this package, not the other way around.
type BaseModel struct {
	URL    string  `json:"-"`
	Client *Client `json:"-"`
}

func NewClient(url string, token string, verifyCert bool) *Client {
	connection := &TokenConnection{verifyCert: verifyCert, token: token, url: url}
	return &Client{conn: connection}
}

func NewPasswordClient(url string, username string, password string, verifyCert bool) *Client {
	connection := PasswordConnection{verifyCert: verifyCert, username: username, password: password, url: url}
	return &Client{conn: &connection}
}

// Ping checks that an Orthanc server answers on /system.
func (client *Client) Ping() error {
	resp, err := client.Get(systemPath, time.Duration(5*time.Second))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return CheckResponse(resp, systemPath)
}

// CheckConnection verifies that the server is reachable and that the
// configured credentials are accepted.
func (client *Client) CheckConnection() error {
	resp, err := client.Get(systemPath, time.Duration(5*time.Second))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &APIError{StatusCode: resp.StatusCode, Path: systemPath, Message: "authentication failed"}
	}
	return CheckResponse(resp, systemPath)
}

func (client *Client) GetAndParse(path string, target interface{}) error {
	resp, err := client.Get(path, -1)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return client.parseResponse(resp, target, path)
}

func (client *Client) PostAndParse(path string, body io.Reader, target interface{}) error {
	resp, err := client.Post(path, body, -1)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return client.parseResponse(resp, target, path)
}

// PostJSONAndParse marshals payload, posts it and decodes the response.
func (client *Client) PostJSONAndParse(path string, payload interface{}, target interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return client.PostAndParse(path, bytes.NewBuffer(data), target)
}

// PostJSON posts payload and only checks the response status.
func (client *Client) PostJSON(path string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := client.Post(path, bytes.NewBuffer(data), -1)
	if err != nil {
		return err
	}
	return CheckResponse(resp, path)
}

// GetBytes fetches a binary payload (archive, DICOM file, preview image)
// and returns the raw bytes with the response content type.
func (client *Client) GetBytes(path string, timeout time.Duration) ([]byte, string, error) {
	if timeout == -1 {
		timeout = DownloadTimeout * time.Second
	}
	resp, err := client.Get(path, timeout)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, "", newAPIError(resp, path)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

func (client *Client) parseResponse(resp *http.Response, target interface{}, path string) error {
	if resp.StatusCode >= 400 {
		return newAPIError(resp, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	err = json.Unmarshal(body, &target)
	if err != nil {
		return err
	}

	targetType := reflect.TypeOf(target)
	targetValue := reflect.ValueOf(target)

	if targetType.Kind() == reflect.Ptr {
		targetType = targetType.Elem()
		targetValue = targetValue.Elem()
	}

	if targetType.Kind() == reflect.Slice && targetType.Elem().Kind() == reflect.Struct {
		for i := 0; i < targetValue.Len(); i++ {
			elem := targetValue.Index(i)
			if baseModel, ok := getBaseModelFromStruct(elem); ok {
				baseModel.URL = path
				baseModel.Client = client
			}
		}
	} else if targetType.Kind() == reflect.Struct {
		if baseModel, ok := getBaseModelFromStruct(targetValue); ok {
			baseModel.URL = path
			baseModel.Client = client
		}
	}

	return nil
}

func getBaseModelFromStruct(value reflect.Value) (*BaseModel, bool) {
	n := value.NumField()
	for i := 0; i < n; i++ {
		field := value.Field(i)
		if field.Type().Name() == "BaseModel" {
			return field.Addr().Interface().(*BaseModel), true
		}
	}
	return nil, false
}

func newAPIError(resp *http.Response, path string) *APIError {
	message, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &APIError{StatusCode: resp.StatusCode, Path: path, Message: string(bytes.TrimSpace(message))}
}

// CheckResponse drains and closes the response body and returns an
// APIError when the status code indicates a failure.
func CheckResponse(resp *http.Response, path string) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return newAPIError(resp, path)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (client Client) GetUrl(path string) string {
	u, err := url.Parse(client.conn.getUrl())
	if err != nil {
		return client.conn.getUrl() + path
	}
	parsedPath, err := url.Parse(path)
	if err != nil {
		return client.conn.getUrl() + path
	}
	resolvedURL := u.ResolveReference(parsedPath).String()
	return resolvedURL
}

// IsTimeoutError reports whether err was caused by a network timeout.
func (client *Client) IsTimeoutError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func handleNoCertificateCheck(check bool) {
	if !check {
		http.DefaultTransport.(*http.Transport).TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
}

func (client *Client) Get(path string, timeout time.Duration) (*http.Response, error) {
	return client.do("GET", path, nil, "application/json", timeout)
}

func (client *Client) Post(path string, body io.Reader, timeout time.Duration) (*http.Response, error) {
	return client.do("POST", path, body, "application/json", timeout)
}

// PostBinary posts a non-JSON payload, e.g. a DICOM file or a zip archive
// to /instances.
func (client *Client) PostBinary(path string, body io.Reader, contentType string, timeout time.Duration) (*http.Response, error) {
	return client.do("POST", path, body, contentType, timeout)
}

func (client *Client) Put(path string, body io.Reader, timeout time.Duration) (*http.Response, error) {
	return client.do("PUT", path, body, "application/json", timeout)
}

func (client *Client) Delete(path string, timeout time.Duration) (*http.Response, error) {
	return client.do("DELETE", path, nil, "application/json", timeout)
}

func (client *Client) do(method string, path string, body io.Reader, contentType string, timeout time.Duration) (*http.Response, error) {
	if client.conn != nil {
		handleNoCertificateCheck(client.conn.verifyCertificate())
	}
	url := client.GetUrl(path)
	if timeout == -1 {
		timeout = DefaultTimeout * time.Second
	}
	httpClient := &http.Client{
		Timeout: timeout,
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}

	if client.conn != nil {
		auth := client.conn.auth()
		if auth != nil {
			req.Header.Set(auth.Key, auth.Value)
		}
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, err
}
