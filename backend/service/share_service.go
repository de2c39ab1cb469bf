package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"quickshare/backend/common"
	"quickshare/backend/library/codec"
	"quickshare/backend/library/network"
	"quickshare/backend/model"
)

type ShareFileView struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	DownloadCount int64  `json:"downloadCount"`
	IsValid       bool   `json:"isValid"`
}

// ShareView is what a recipient sees. It never carries the share id, the
// verification code or file paths.
type ShareView struct {
	Description string          `json:"description"`
	CreateTime  string          `json:"createTime"`
	TotalSize   int64           `json:"totalSize"`
	FileCount   int             `json:"fileCount"`
	ShareFiles  []ShareFileView `json:"shareFiles"`
}

// ShareSummary is the owner's view of a share.
type ShareSummary struct {
	ID        int64
	Token     string
	URL       string
	IsPrivate bool
	Paths     []string
	ShareView
}

// ShareEdit describes a change to an existing share. Nil fields are left
// untouched.
type ShareEdit struct {
	Description   *string
	VerifyCode    *string
	AddPaths      []string
	RemoveFileIDs []int64
}

type ShareService struct {
	store      *model.Store
	key        []byte
	config     *common.ConfigStore
	interfaces func() ([]network.InterfaceInfo, error)
	hostname   func() string
}

func NewShareService(store *model.Store, key []byte, config *common.ConfigStore) *ShareService {
	return &ShareService{
		store:  store,
		key:    key,
		config: config,
		interfaces: func() ([]network.InterfaceInfo, error) {
			return network.ActiveInterfaces(false)
		},
		hostname: network.LocalHostName,
	}
}

func buildView(record *model.ShareRecord) ShareView {
	view := ShareView{
		Description: record.Description,
		CreateTime:  record.CreateTime,
		ShareFiles:  make([]ShareFileView, 0, len(record.Files)),
	}
	for _, f := range record.Files {
		fv := ShareFileView{
			ID:            f.FileID,
			Name:          filepath.Base(f.Path),
			DownloadCount: f.DownloadCount,
		}
		if info, err := os.Stat(f.Path); err == nil && !info.IsDir() {
			fv.Size = info.Size()
			fv.IsValid = true
		}
		view.TotalSize += fv.Size
		view.ShareFiles = append(view.ShareFiles, fv)
	}
	view.FileCount = len(view.ShareFiles)
	return view
}

func (s *ShareService) Token(id int64) (string, error) {
	return codec.Encrypt(id, s.key)
}

// ShareURL builds the link handed to recipients, using the mDNS host name
// when enabled and the default interface address otherwise.
func (s *ShareService) ShareURL(token string) (string, error) {
	cfg := s.config.Snapshot()
	host := ""
	if cfg.Network.EnableMDNS {
		host = s.hostname() + ".local"
	} else {
		ifaces, err := s.interfaces()
		if err != nil {
			return "", err
		}
		iface, err := network.SelectInterface(ifaces, cfg.Network.DefaultNetwork)
		if errors.Is(err, network.ErrNoInterface) {
			host = "localhost"
		} else if err != nil {
			return "", err
		} else {
			host = iface.IP.String()
		}
	}
	return network.BaseURL(host, cfg.Network.Port) + "/share/" + token, nil
}

func (s *ShareService) summarize(record *model.ShareRecord) (ShareSummary, error) {
	token, err := s.Token(record.ShareID)
	if err != nil {
		return ShareSummary{}, err
	}
	url, err := s.ShareURL(token)
	if err != nil {
		return ShareSummary{}, err
	}
	paths := make([]string, 0, len(record.Files))
	for _, f := range record.Files {
		paths = append(paths, f.Path)
	}
	return ShareSummary{
		ID:        record.ShareID,
		Token:     token,
		URL:       url,
		IsPrivate: record.VerifyCode != "",
		Paths:     paths,
		ShareView: buildView(record),
	}, nil
}

// CreateShare publishes paths as a new share. Paths that are missing or
// are directories are skipped.
func (s *ShareService) CreateShare(paths []string) (*ShareSummary, error) {
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		if a, err := filepath.Abs(p); err == nil {
			abs = append(abs, a)
		}
	}
	id, err := s.store.AddShareHistory(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return s.GetShare(id)
}

func (s *ShareService) GetShare(id int64) (*ShareSummary, error) {
	record, err := s.store.ReadShareHistory(id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	summary, err := s.summarize(record)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *ShareService) ListShares() ([]ShareSummary, error) {
	records, err := s.store.ReadAllShareHistory()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	summaries := make([]ShareSummary, 0, len(records))
	for i := range records {
		summary, err := s.summarize(&records[i])
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// EditShare applies edit to share id. Files are only removed when they
// belong to this share.
func (s *ShareService) EditShare(id int64, edit ShareEdit) error {
	record, err := s.store.ReadShareHistory(id)
	if errors.Is(err, model.ErrNotFound) {
		return ErrShareNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	if edit.Description != nil {
		if _, err := s.store.UpdateDescription(id, *edit.Description); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
	}
	if edit.VerifyCode != nil {
		if _, err := s.store.UpdateVerifyCode(id, *edit.VerifyCode); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
	}
	if len(edit.AddPaths) > 0 {
		if _, err := s.store.AddShareFiles(id, edit.AddPaths); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
	}
	owned := make(map[int64]bool, len(record.Files))
	for _, f := range record.Files {
		owned[f.FileID] = true
	}
	for _, fileID := range edit.RemoveFileIDs {
		if !owned[fileID] {
			continue
		}
		if _, err := s.store.DeleteShareFile(fileID); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
	}
	return nil
}

func (s *ShareService) DeleteShare(id int64) error {
	rows, err := s.store.DeleteShareHistory(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if rows == 0 {
		return ErrShareNotFound
	}
	return nil
}

// resolve maps a token to its share. A token that does not decrypt and one
// that names no share are indistinguishable to the caller.
func (s *ShareService) resolve(token string) (*model.ShareRecord, error) {
	id, err := codec.Decrypt(token, s.key)
	if err != nil {
		return nil, ErrInvalidShareLink
	}
	record, err := s.store.ReadShareHistory(id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrInvalidShareLink
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return record, nil
}

func (s *ShareService) IsPrivate(token string) (bool, error) {
	record, err := s.resolve(token)
	if err != nil {
		return false, err
	}
	return record.VerifyCode != "", nil
}

// GetShareInfo returns the share when verifyCode matches exactly. Shares
// without a code accept anything.
func (s *ShareService) GetShareInfo(token, verifyCode string) (*ShareView, error) {
	record, err := s.resolve(token)
	if err != nil {
		return nil, err
	}
	if record.VerifyCode != "" && record.VerifyCode != verifyCode {
		return nil, ErrIncorrectVerifyCode
	}
	view := buildView(record)
	return &view, nil
}

// ResolveDownload checks the token, counts the download and returns the
// path to stream.
func (s *ShareService) ResolveDownload(token string, fileID int64) (string, error) {
	record, err := s.resolve(token)
	if err != nil {
		return "", err
	}
	file, err := s.store.ReadShareFile(fileID)
	if errors.Is(err, model.ErrNotFound) {
		return "", fmt.Errorf("%w: unknown file id %d", ErrShareFileUnavailable, fileID)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrShareFileUnavailable, err)
	}
	if file.ShareID != record.ShareID {
		common.SysError(fmt.Sprintf("file %d of share %d requested through share %d", fileID, file.ShareID, record.ShareID))
		if s.config.Snapshot().Share.EnforceFileOwnership {
			return "", ErrFileNotFound
		}
	}
	info, err := os.Stat(file.Path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s is not available", ErrShareFileUnavailable, file.Path)
	}
	if err := s.store.IncrementDownloadCount(fileID); err != nil {
		return "", fmt.Errorf("%w: %v", ErrShareFileUnavailable, err)
	}
	return file.Path, nil
}
