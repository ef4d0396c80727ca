// Package store persists UserState in sqlite through gorm. Absence of a row
// is never an error: Get hands back a defaulted record and the first Put
// creates it (lazy upsert). Concurrent writes to the same user are
// last-writer-wins; a single human issues requests serially in practice.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tradevisor/tradevisor/internal/observ"
)

type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate ensures the schema exists. Callers treat failure as best-effort:
// it is logged and the process keeps running against the existing schema.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&User{}); err != nil {
		observ.LogErr("store_migrate_failed", err, nil)
		return err
	}
	return nil
}

// Get loads the user record, or a defaulted one when none exists.
func (s *Store) Get(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewUser(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	return &u, nil
}

// Put upserts the record.
func (s *Store) Put(ctx context.Context, u *User) error {
	if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}
