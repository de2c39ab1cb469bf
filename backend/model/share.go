package model

import (
	"errors"
	"fmt"
	"os"

	"quickshare/backend/common"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShareRecord is one row of ShareHistory. An empty VerifyCode means the
// share is public.
type ShareRecord struct {
	ShareID     int64       `gorm:"column:ShareId;primaryKey;autoIncrement"`
	Description string      `gorm:"column:Description;type:text"`
	CreateTime  string      `gorm:"column:CreateTime;type:text;not null"`
	VerifyCode  string      `gorm:"column:VerifyCode;type:text"`
	Files       []ShareFile `gorm:"foreignKey:ShareID;references:ShareID;constraint:OnDelete:CASCADE"`
}

func (ShareRecord) TableName() string {
	return "ShareHistory"
}

// ShareFile references a file on disk. Name and size are derived from
// Path whenever the file is read.
type ShareFile struct {
	FileID        int64  `gorm:"column:FileId;primaryKey;autoIncrement"`
	ShareID       int64  `gorm:"column:ShareId;not null;index"`
	DownloadCount int64  `gorm:"column:DownloadCount;not null;default:0"`
	Path          string `gorm:"column:Path;type:text;not null"`
}

func (ShareFile) TableName() string {
	return "FilePath"
}

// updatable lists the identifiers UpdateSingleValue accepts.
var updatable = map[string]map[string]bool{
	"ShareHistory": {"ShareId": true, "Description": true, "CreateTime": true, "VerifyCode": true},
	"FilePath":     {"FileId": true, "ShareId": true, "DownloadCount": true, "Path": true},
}

func filesFor(shareID int64, paths []string) []ShareFile {
	files := make([]ShareFile, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, ShareFile{ShareID: shareID, Path: p})
	}
	return files
}

func orderedFiles(db *gorm.DB) *gorm.DB {
	return db.Order("FileId")
}

// AddShareHistory creates a share holding every path that exists as a
// regular file. The share is created even when none do.
func (s *Store) AddShareHistory(paths []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := ShareRecord{CreateTime: s.now().Format(common.DateTimeLayout)}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&record).Error; err != nil {
			return fmt.Errorf("insert share history: %w", err)
		}
		files := filesFor(record.ShareID, paths)
		if len(files) == 0 {
			return nil
		}
		if err := tx.Create(&files).Error; err != nil {
			return fmt.Errorf("insert file path: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.publish(ChangeEvent{Kind: ShareCreated, ShareID: record.ShareID})
	return record.ShareID, nil
}

func (s *Store) ReadShareHistory(id int64) (*ShareRecord, error) {
	var record ShareRecord
	err := s.db.Preload("Files", orderedFiles).Where("ShareId = ?", id).First(&record).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &record, nil
}

func (s *Store) ReadAllShareHistory() ([]ShareRecord, error) {
	var records []ShareRecord
	if err := s.db.Preload("Files", orderedFiles).Order("ShareId").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) ReadShareFile(fileID int64) (*ShareFile, error) {
	var file ShareFile
	if err := s.db.Where("FileId = ?", fileID).First(&file).Error; err != nil {
		return nil, notFound(err)
	}
	return &file, nil
}

func (s *Store) ReadFilePath(fileID int64) (string, error) {
	file, err := s.ReadShareFile(fileID)
	if err != nil {
		return "", err
	}
	return file.Path, nil
}

// AddShareFiles attaches the existing paths to share id and returns how
// many were inserted.
func (s *Store) AddShareFiles(id int64, paths []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var inserted int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ShareRecord{}).Where("ShareId = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		files := filesFor(id, paths)
		if len(files) == 0 {
			return nil
		}
		if err := tx.Create(&files).Error; err != nil {
			return fmt.Errorf("insert file path: %w", err)
		}
		inserted = len(files)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		s.publish(ChangeEvent{Kind: FilesAdded, ShareID: id})
	}
	return inserted, nil
}

func (s *Store) DeleteShareFile(fileID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var file ShareFile
	var rows int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("FileId = ?", fileID).First(&file).Error; err != nil {
			return err
		}
		res := tx.Where("FileId = ?", fileID).Delete(&ShareFile{})
		rows = res.RowsAffected
		return res.Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	s.publish(ChangeEvent{Kind: FileDeleted, ShareID: file.ShareID})
	return rows, nil
}

// DeleteShareHistory removes a share and its files in one transaction.
func (s *Store) DeleteShareHistory(id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ShareId = ?", id).Delete(&ShareFile{}).Error; err != nil {
			return err
		}
		res := tx.Where("ShareId = ?", id).Delete(&ShareRecord{})
		rows = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	if rows > 0 {
		s.publish(ChangeEvent{Kind: ShareDeleted, ShareID: id})
	}
	return rows, nil
}

// IncrementDownloadCount bumps the counter in a single UPDATE. Unknown ids
// are ignored.
func (s *Store) IncrementDownloadCount(fileID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Model(&ShareFile{}).
		Where("FileId = ?", fileID).
		UpdateColumn("DownloadCount", gorm.Expr("DownloadCount + ?", 1)).Error
}

// UpdateSingleValue sets updateColumn on the rows of table where
// searchColumn equals searchValue. Identifiers must belong to the schema.
func (s *Store) UpdateSingleValue(table, searchColumn string, searchValue any, updateColumn string, updateValue any) (int64, error) {
	columns, ok := updatable[table]
	if !ok || !columns[searchColumn] || !columns[updateColumn] {
		return 0, fmt.Errorf("%w: %s.%s/%s", ErrInvalidColumn, table, searchColumn, updateColumn)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.Table(table).
		Where(clause.Eq{Column: clause.Column{Name: searchColumn}, Value: searchValue}).
		UpdateColumn(updateColumn, updateValue)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 && table == "ShareHistory" && searchColumn == "ShareId" {
		if id, ok := searchValue.(int64); ok {
			s.publish(ChangeEvent{Kind: ShareUpdated, ShareID: id})
		}
	}
	return res.RowsAffected, nil
}

func (s *Store) UpdateDescription(id int64, description string) (int64, error) {
	return s.UpdateSingleValue("ShareHistory", "ShareId", id, "Description", description)
}

func (s *Store) UpdateVerifyCode(id int64, code string) (int64, error) {
	return s.UpdateSingleValue("ShareHistory", "ShareId", id, "VerifyCode", code)
}
