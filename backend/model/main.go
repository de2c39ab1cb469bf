package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"quickshare/backend/common"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidColumn = errors.New("invalid table or column")
)

type Options struct {
	// DSN selects MySQL when set. SQLitePath is used otherwise.
	DSN        string
	SQLitePath string
	LogLevel   logger.LogLevel
}

// Store owns the share tables. Writes are serialized by mu; reads run
// concurrently.
type Store struct {
	db  *gorm.DB
	mu  sync.Mutex
	now func() time.Time

	subMu   sync.Mutex
	subs    map[int]chan ChangeEvent
	nextSub int
}

func Open(opts Options) (*Store, error) {
	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}
	config := &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(level),
	}

	var (
		db  *gorm.DB
		err error
	)
	if opts.DSN != "" {
		common.SysLog("using MySQL database")
		db, err = gorm.Open(mysql.Open(opts.DSN), config)
	} else {
		if opts.SQLitePath == "" {
			return nil, errors.New("sqlite path is required")
		}
		if err := os.MkdirAll(filepath.Dir(opts.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		common.SysLog("SQL_DSN not set, using SQLite as database: " + opts.SQLitePath)
		db, err = gorm.Open(sqlite.Open(opts.SQLitePath+"?_foreign_keys=on&_busy_timeout=5000"), config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database handle: %w", err)
	}
	if opts.DSN == "" {
		// one persistent connection, shared by every request
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	if err := migrate(db); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to auto migrate database schema: %w", err)
	}

	common.SysLog("database initialized successfully")
	return &Store{
		db:   db,
		now:  time.Now,
		subs: make(map[int]chan ChangeEvent),
	}, nil
}

// migrate creates missing tables only. Existing tables are left as they
// are, since databases written by the desktop application carry a FilePath
// schema the sqlite migrator cannot rebuild.
func migrate(db *gorm.DB) error {
	for _, table := range []any{&ShareRecord{}, &ShareFile{}} {
		if db.Migrator().HasTable(table) {
			continue
		}
		if err := db.AutoMigrate(table); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	common.SysLog("closing database connection")
	s.subMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()
	return sqlDB.Close()
}

// SetClock replaces the time source used for CreateTime, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
