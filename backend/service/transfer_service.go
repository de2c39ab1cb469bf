package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"quickshare/backend/common"
)

const (
	uploadChunkSize = 32 * 1024
	maxNameAttempts = 10000
)

// TransferEntry is one child of a listed save-directory folder.
type TransferEntry struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	Type       string `json:"type"`
	URL        string `json:"url"`
	CreateTime string `json:"createTime"`
}

type UploadResult struct {
	SuccessFiles []string `json:"successFiles"`
	SuccessCount int      `json:"successCount"`
}

type TransferService struct {
	config *common.ConfigStore
}

func NewTransferService(config *common.ConfigStore) *TransferService {
	return &TransferService{config: config}
}

func (s *TransferService) saveRoot() string {
	return s.config.Snapshot().Transmit.SavePath
}

// ListEntries lists rel under the save directory, folders first. A missing
// folder lists as empty.
func (s *TransferService) ListEntries(rel string) ([]TransferEntry, error) {
	root := s.saveRoot()
	dir, err := common.SafeJoin(root, rel)
	if err != nil {
		return nil, ErrFileNotFound
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return []TransferEntry{}, nil
	}
	children, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	folders := make([]TransferEntry, 0)
	files := make([]TransferEntry, 0)
	for _, child := range children {
		info, err := child.Info()
		if err != nil {
			continue
		}
		full := filepath.Join(dir, child.Name())
		entry := TransferEntry{
			Name:       child.Name(),
			URL:        common.RelativeURL(root, full),
			CreateTime: info.ModTime().Format(common.DateTimeLayout),
		}
		if info.IsDir() {
			entry.Type = "folder"
			folders = append(folders, entry)
			continue
		}
		entry.Type = "file"
		entry.Size = info.Size()
		files = append(files, entry)
	}
	return append(folders, files...), nil
}

// ResolveDownload returns the regular file at rel under the save directory.
func (s *TransferService) ResolveDownload(rel string) (string, error) {
	path, err := common.SafeJoin(s.saveRoot(), rel)
	if err != nil {
		return "", ErrFileNotFound
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrFileNotFound
	}
	return path, nil
}

// SaveUploads streams every file part of mr into the save directory. The
// byte limit spans all parts; crossing it removes everything this call
// wrote. Cancellation leaves the file being written in place.
func (s *TransferService) SaveUploads(ctx context.Context, mr *multipart.Reader) (*UploadResult, error) {
	cfg := s.config.Snapshot()
	root := cfg.Transmit.SavePath
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create save directory: %v", ErrUploadFailed, err)
	}
	limit := cfg.MaxUploadBytes()

	u := &upload{ctx: ctx, root: root, limit: limit}
	result := &UploadResult{SuccessFiles: []string{}}
	sawFile := false
	for {
		if ctx.Err() != nil {
			return nil, ErrUploadCancelled
		}
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrUploadCancelled
			}
			u.discard()
			return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		if !isFilePart(part) {
			part.Close()
			continue
		}
		sawFile = true
		name := cleanFileName(part.FileName())
		if name == "" {
			part.Close()
			continue
		}

		saved, err := u.save(name, part)
		part.Close()
		if err != nil {
			return nil, err
		}
		result.SuccessFiles = append(result.SuccessFiles, saved)
	}
	if !sawFile {
		return nil, ErrEmptyUpload
	}
	result.SuccessCount = len(result.SuccessFiles)
	return result, nil
}

type upload struct {
	ctx     context.Context
	root    string
	limit   int64
	total   int64
	written []string
}

// discard removes every file completed so far.
func (u *upload) discard() {
	for _, p := range u.written {
		_ = os.Remove(p)
	}
	u.written = nil
}

func (u *upload) save(name string, src io.Reader) (string, error) {
	path, dst, err := createUnique(u.root, name)
	if err != nil {
		u.discard()
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	buf := make([]byte, uploadChunkSize)
	for {
		if u.ctx.Err() != nil {
			dst.Close()
			return "", ErrUploadCancelled
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			u.total += int64(n)
			if u.total > u.limit {
				dst.Close()
				_ = os.Remove(path)
				u.discard()
				common.SysError("file upload failed: total size exceeds the limit")
				return "", ErrPayloadTooLarge
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				dst.Close()
				_ = os.Remove(path)
				u.discard()
				return "", fmt.Errorf("%w: write %s: %v", ErrUploadFailed, path, err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			dst.Close()
			if u.ctx.Err() != nil {
				return "", ErrUploadCancelled
			}
			_ = os.Remove(path)
			u.discard()
			return "", fmt.Errorf("%w: read upload: %v", ErrUploadFailed, readErr)
		}
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		u.discard()
		return "", fmt.Errorf("%w: close %s: %v", ErrUploadFailed, path, err)
	}
	u.written = append(u.written, path)
	common.SysLog("file uploaded successfully: " + path)
	return filepath.Base(path), nil
}

// createUnique opens a new file for name in dir, picking name_1.ext,
// name_2.ext, ... while the name is taken.
func createUnique(dir, name string) (string, *os.File, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return path, f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", nil, err
		}
	}
	return "", nil, fmt.Errorf("no free file name for %s", name)
}

func isFilePart(part *multipart.Part) bool {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return false
	}
	_, ok := params["filename"]
	return ok
}

func cleanFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ""
	}
	return name
}
