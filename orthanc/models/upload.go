package models

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	orthancHttp "github.com/tjni/orthanc-connector-go/internals/http"
)

const (
	ParallelUploads = 3

	// Files below this size are collected into zip batches; the server
	// unpacks uploaded zips and imports every DICOM file inside.
	smallFileThreshold = 10 * 1024 * 1024
	// Zip batching only pays off with many small files.
	zippedUploadThreshold = 20
	maxZipSize            = 1024 * 1024 * 1024
	minZipSize            = 50 * 1024 * 1024

	uploadTimeout = 30 * time.Minute
)

// Upload result statuses as reported by the server for each instance.
const (
	StatusSuccess       = "Success"
	StatusAlreadyStored = "AlreadyStored"
)

// UploadFile is one local DICOM file scheduled for upload.
type UploadFile struct {
	SourcePath     string
	TargetPath     string
	Size           int64
	SOPInstanceUID string
	Delete         bool
	Err            error

	isDir bool
}

func (f *UploadFile) setSize() error {
	fileInfo, err := os.Stat(f.SourcePath)
	if err != nil {
		return err
	}
	if fileInfo.IsDir() {
		f.isDir = true
		return nil
	}
	f.Size = fileInfo.Size()
	f.isDir = false
	return nil
}

func (f *UploadFile) GetSize() int64 {
	if f.Size == 0 {
		f.setSize()
	}
	return f.Size
}

func (f *UploadFile) IsDir() bool {
	return f.isDir
}

func NewUploadFile(path string) (UploadFile, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return UploadFile{}, err
	}
	uploadFile := UploadFile{SourcePath: absPath}
	err = uploadFile.setSize()
	if err != nil {
		return uploadFile, err
	}
	if !uploadFile.IsDir() {
		uploadFile.TargetPath = filepath.Base(uploadFile.SourcePath)
	}
	return uploadFile, nil
}

type ProgressType string

const (
	TypeUploadStarted       ProgressType = "upload_started"
	TypeUploadInitialized   ProgressType = "upload_initialized"
	TypeFileUploadStarted   ProgressType = "file_upload_started"
	TypeFileUploadCompleted ProgressType = "file_upload_completed"
	TypeProgressPct         ProgressType = "progress"
	TypeUploadError         ProgressType = "upload_error"
	TypeUploadCompleted     ProgressType = "upload_completed"
)

type UploadProgress struct {
	Type ProgressType
	Data interface{}
}

type UploadProgressInitData struct {
	FilesToZip    int
	FilesToUpload int
	TotalSize     int64
}

// UploadResult classifies every scanned file once the upload finished.
// Files inside zip batches are classified by the batch outcome; their
// individual instance IDs still show up in Instances.
type UploadResult struct {
	BatchID         string
	NrFiles         int
	Uploaded        []string
	AlreadyStored   []string
	Failed          []string
	Ignored         []string
	InstanceIDs     []string
	AlreadyStoredID []string
}

// instanceResponse is the body POST /instances returns per created
// instance. A zip upload answers with an array of these.
type instanceResponse struct {
	ID            string `json:"ID"`
	ParentPatient string `json:"ParentPatient"`
	ParentStudy   string `json:"ParentStudy"`
	ParentSeries  string `json:"ParentSeries"`
	Path          string `json:"Path"`
	Status        string `json:"Status"`
}

// Uploader sends local DICOM files to the server with a small worker
// pool, batching many small files into zips the server unpacks.
type Uploader struct {
	Client *orthancHttp.Client

	// inspect pre-parses a file and yields its SOPInstanceUID; files it
	// rejects are skipped as non-DICOM.
	inspect func(path string) (string, bool)
}

func NewUploader(client *orthancHttp.Client) *Uploader {
	return &Uploader{Client: client, inspect: inspectDicomFile}
}

// inspectDicomFile parses the file metadata-only and extracts the
// SOPInstanceUID. Pixel data is skipped so this stays cheap.
func inspectDicomFile(path string) (string, bool) {
	file, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", false
	}

	ds, err := dicom.Parse(file, info.Size(), nil, dicom.SkipPixelData())
	if err != nil {
		return "", false
	}

	el, err := ds.FindElementByTag(tag.SOPInstanceUID)
	if err != nil || el.Value == nil {
		return "", true
	}
	if values, ok := el.Value.GetValue().([]string); ok && len(values) > 0 {
		return values[0], true
	}
	return "", true
}

type uploadOutcome struct {
	file      UploadFile
	isZip     bool
	sources   []string
	responses []instanceResponse
	err       error
}

// Upload walks the given files and directories and sends every DICOM
// file to the server. Non-DICOM files are skipped. progressChan may be
// nil; when given, it receives typed events and must be drained by the
// caller.
func (u *Uploader) Upload(paths []string, progressChan chan UploadProgress) (*UploadResult, error) {
	batchID := uuid.New().String()
	emit(progressChan, UploadProgress{Type: TypeUploadStarted, Data: batchID})

	result := &UploadResult{BatchID: batchID}

	files, ignored, err := u.scanPaths(paths)
	if err != nil {
		return nil, err
	}
	result.Ignored = ignored
	result.NrFiles = len(files) + len(ignored)

	filesToUpload, filesToZip := splitBySize(files)
	// zip batching is not worth it for a handful of files
	if len(filesToZip) < zippedUploadThreshold {
		filesToUpload = append(filesToUpload, filesToZip...)
		filesToZip = nil
	}

	totalSize := int64(0)
	for _, file := range files {
		totalSize += file.GetSize()
	}
	emit(progressChan, UploadProgress{Type: TypeUploadInitialized, Data: UploadProgressInitData{
		FilesToZip:    len(filesToZip),
		FilesToUpload: len(filesToUpload),
		TotalSize:     totalSize,
	}})

	fileCh := make(chan uploadItem, ParallelUploads)
	outcomeCh := make(chan uploadOutcome, ParallelUploads)

	wg := new(sync.WaitGroup)
	for i := 0; i < ParallelUploads; i++ {
		wg.Add(1)
		go u.uploadWorker(fileCh, outcomeCh, progressChan, wg)
	}

	collectWg := new(sync.WaitGroup)
	collectWg.Add(1)
	uploadedSize := int64(0)
	go func() {
		defer collectWg.Done()
		for outcome := range outcomeCh {
			collect(result, outcome)
			if outcome.err != nil {
				emit(progressChan, UploadProgress{Type: TypeUploadError, Data: outcome.file})
			} else {
				emit(progressChan, UploadProgress{Type: TypeFileUploadCompleted, Data: outcome.file})
			}
			uploadedSize += outcome.file.Size
			if totalSize > 0 {
				progress := int(100 * uploadedSize / totalSize)
				if progress > 100 {
					progress = 100
				}
				emit(progressChan, UploadProgress{Type: TypeProgressPct, Data: progress})
			}
		}
	}()

	feedWg := new(sync.WaitGroup)
	feedWg.Add(1)
	go func() {
		defer feedWg.Done()
		for _, file := range filesToUpload {
			fileCh <- uploadItem{file: file, sources: []string{file.SourcePath}}
		}
	}()

	var tempDir string
	if len(filesToZip) > 0 {
		tempDir, err = os.MkdirTemp("", "orthanc_upload")
		if err != nil {
			// no staging area for the zip batches; record the candidates as
			// failed and let the direct uploads finish
			sources := make([]string, 0, len(filesToZip))
			for _, file := range filesToZip {
				sources = append(sources, file.SourcePath)
			}
			outcomeCh <- uploadOutcome{isZip: true, sources: sources, err: err}
		} else {
			defer os.RemoveAll(tempDir)

			feedWg.Add(1)
			go zipAndQueue(fileCh, outcomeCh, batchID, filesToZip, tempDir, feedWg)
		}
	}

	feedWg.Wait()
	close(fileCh)
	wg.Wait()
	close(outcomeCh)
	collectWg.Wait()

	emit(progressChan, UploadProgress{Type: TypeUploadCompleted, Data: batchID})
	return result, nil
}

type uploadItem struct {
	file    UploadFile
	isZip   bool
	sources []string
}

func emit(progressChan chan UploadProgress, progress UploadProgress) {
	if progressChan != nil {
		progressChan <- progress
	}
}

func collect(result *UploadResult, outcome uploadOutcome) {
	if outcome.err != nil {
		result.Failed = append(result.Failed, outcome.sources...)
		return
	}
	for _, resp := range outcome.responses {
		if resp.Status == StatusAlreadyStored {
			result.AlreadyStoredID = append(result.AlreadyStoredID, resp.ID)
		} else {
			result.InstanceIDs = append(result.InstanceIDs, resp.ID)
		}
	}
	if outcome.isZip {
		// per-file mapping is lost inside a zip batch; classify the whole
		// batch by the upload outcome
		result.Uploaded = append(result.Uploaded, outcome.sources...)
		return
	}
	if len(outcome.responses) == 1 && outcome.responses[0].Status == StatusAlreadyStored {
		result.AlreadyStored = append(result.AlreadyStored, outcome.sources...)
	} else {
		result.Uploaded = append(result.Uploaded, outcome.sources...)
	}
}

// scanPaths expands directories and filters out files the DICOM parser
// rejects.
func (u *Uploader) scanPaths(paths []string) ([]UploadFile, []string, error) {
	var files []UploadFile
	var ignored []string

	addFile := func(path string, targetPath string) {
		if u.inspect == nil {
			u.inspect = inspectDicomFile
		}
		sopUID, ok := u.inspect(path)
		if !ok {
			ignored = append(ignored, path)
			return
		}
		file := UploadFile{SourcePath: path, TargetPath: targetPath, SOPInstanceUID: sopUID}
		file.setSize()
		files = append(files, file)
	}

	for _, path := range paths {
		file, err := NewUploadFile(path)
		if err != nil {
			return nil, nil, err
		}
		if !file.IsDir() {
			addFile(file.SourcePath, file.TargetPath)
			continue
		}
		root := file.SourcePath
		err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			relativePath, relErr := filepath.Rel(root, path)
			if relErr != nil {
				relativePath = filepath.Base(path)
			}
			addFile(path, filepath.ToSlash(relativePath))
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return files, ignored, nil
}

func splitBySize(files []UploadFile) (filesToUpload []UploadFile, filesToZip []UploadFile) {
	for _, file := range files {
		if file.GetSize() < smallFileThreshold {
			filesToZip = append(filesToZip, file)
		} else {
			filesToUpload = append(filesToUpload, file)
		}
	}
	return filesToUpload, filesToZip
}

func (u *Uploader) uploadWorker(fileCh chan uploadItem, outcomeCh chan uploadOutcome, progressChan chan UploadProgress, wg *sync.WaitGroup) {
	defer wg.Done()

	for item := range fileCh {
		emit(progressChan, UploadProgress{Type: TypeFileUploadStarted, Data: item.file})
		responses, err := u.uploadOne(item.file, item.isZip)
		if item.file.Delete {
			os.Remove(item.file.SourcePath)
		}
		outcomeCh <- uploadOutcome{
			file:      item.file,
			isZip:     item.isZip,
			sources:   item.sources,
			responses: responses,
			err:       err,
		}
	}
}

// uploadOne posts a single file (DICOM or zip batch) to /instances. The
// server answers with one object per created instance, or an array when
// the upload was a zip.
func (u *Uploader) uploadOne(file UploadFile, isZip bool) ([]instanceResponse, error) {
	data, err := os.ReadFile(file.SourcePath)
	if err != nil {
		return nil, err
	}

	contentType := "application/dicom"
	if isZip {
		contentType = "application/zip"
	}
	resp, err := u.Client.PostBinary(InstanceURL, bytes.NewReader(data), contentType, uploadTimeout)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("upload of %s failed: status code = %d", file.SourcePath, resp.StatusCode)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var responses []instanceResponse
		if err := json.Unmarshal(trimmed, &responses); err != nil {
			return nil, err
		}
		return responses, nil
	}
	var single instanceResponse
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []instanceResponse{single}, nil
}

// zipAndQueue batches small files into zip archives and feeds them to the
// upload workers. A zip is flushed once it exceeds its maximum size, or
// earlier when upload slots are idle and the minimum size is reached.
// When building a zip fails, every file not yet handed to a worker is
// reported as a failed outcome so the result still accounts for it.
func zipAndQueue(fileCh chan uploadItem, outcomeCh chan uploadOutcome, batchID string, filesToZip []UploadFile, tempDir string, wg *sync.WaitGroup) {
	defer wg.Done()

	fail := func(err error, zipped []string, remaining []UploadFile) {
		sources := zipped
		for _, file := range remaining {
			sources = append(sources, file.SourcePath)
		}
		outcomeCh <- uploadOutcome{isZip: true, sources: sources, err: err}
	}

	index := 0
	part := 0
	for index < len(filesToZip) {
		zipFilename := fmt.Sprintf("upload_%s_%d.zip", batchID, part)
		zipPath := filepath.Join(tempDir, zipFilename)
		zipfile, err := os.Create(zipPath)
		if err != nil {
			fail(err, nil, filesToZip[index:])
			return
		}

		var sources []string
		w := zip.NewWriter(zipfile)
		for _, fileToZip := range filesToZip[index:] {
			file, err := os.Open(fileToZip.SourcePath)
			if err != nil {
				w.Close()
				zipfile.Close()
				fail(err, sources, filesToZip[index:])
				return
			}

			header := &zip.FileHeader{
				Name:   fileToZip.TargetPath,
				Method: zip.Store,
			}
			f, err := w.CreateHeader(header)
			if err != nil {
				file.Close()
				w.Close()
				zipfile.Close()
				fail(err, sources, filesToZip[index:])
				return
			}

			_, err = io.Copy(f, file)
			file.Close()
			if err != nil {
				w.Close()
				zipfile.Close()
				fail(err, sources, filesToZip[index:])
				return
			}

			index += 1
			sources = append(sources, fileToZip.SourcePath)
			fileInfo, err := os.Stat(zipPath)
			if err == nil && (fileInfo.Size() > maxZipSize || (fileInfo.Size() > minZipSize && len(fileCh) == 0)) {
				break
			}
		}
		w.Close()
		zipfile.Close()

		uploadFile := UploadFile{SourcePath: zipPath, TargetPath: zipFilename, Delete: true}
		uploadFile.setSize()
		fileCh <- uploadItem{file: uploadFile, isZip: true, sources: sources}
		part += 1
	}
}
