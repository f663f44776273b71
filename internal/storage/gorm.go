package storage

import (
	"fmt"

	"gorm.io/gorm"
)

// GormRecorder persists runs through a GORM connection (Postgres or
// SQLite, supplied by the database manager).
type GormRecorder struct {
	db *gorm.DB
}

// NewGormRecorder wraps an open GORM connection.
func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db}
}

func (r *GormRecorder) Init() error {
	if err := r.db.AutoMigrate(DatabaseModels...); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

func (r *GormRecorder) StartRun(run *Run) error {
	if err := r.db.Create(run).Error; err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

func (r *GormRecorder) RecordStep(stat *StepStat) error {
	if err := r.db.Create(stat).Error; err != nil {
		return fmt.Errorf("inserting step stat: %w", err)
	}
	return nil
}

func (r *GormRecorder) RecordContacts(sum *ContactSummary) error {
	if err := r.db.Create(sum).Error; err != nil {
		return fmt.Errorf("inserting contact summary: %w", err)
	}
	return nil
}

func (r *GormRecorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
