// Package database manages the relational connection used for run
// recording: Postgres when reachable, otherwise an in-memory SQLite
// database that is periodically dumped to disk.
package database

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Manager handles the database connection lifecycle.
type Manager struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	IsValid         bool
	ShouldSaveLocal bool
	SqliteFilePath  string
	Logger          zerolog.Logger
}

// NewManager creates an unconnected manager. sqlitePath is where the
// in-memory database gets dumped when Postgres is unavailable.
func NewManager(log zerolog.Logger, sqlitePath string) *Manager {
	return &Manager{
		SqliteFilePath: sqlitePath,
		Logger:         log,
	}
}

// Connect establishes a database connection, falling back to SQLite if
// Postgres fails.
func (m *Manager) Connect() error {
	var err error

	m.DB, err = m.getPostgresDB()
	if err != nil {
		m.Logger.Warn().Err(err).Msg("failed to connect to Postgres, trying SQLite")
		return m.fallbackToSqlite()
	}

	m.SqlDB, err = m.DB.DB()
	if err != nil {
		return fmt.Errorf("accessing sql interface: %w", err)
	}
	if err := m.SqlDB.Ping(); err != nil {
		m.Logger.Warn().Err(err).Msg("failed to validate Postgres connection, trying SQLite")
		return m.fallbackToSqlite()
	}

	m.IsValid = true
	m.SqlDB.SetMaxOpenConns(10)
	m.Logger.Info().Msg("connected to Postgres")
	return nil
}

func (m *Manager) fallbackToSqlite() error {
	var err error
	m.ShouldSaveLocal = true
	m.DB, err = m.getSqliteDB()
	if err != nil {
		m.IsValid = false
		return fmt.Errorf("opening local SQLite DB: %w", err)
	}
	m.SqlDB, err = m.DB.DB()
	if err != nil {
		return fmt.Errorf("accessing sql interface: %w", err)
	}
	m.IsValid = true
	return nil
}

func (m *Manager) getPostgresDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.username"),
		viper.GetString("db.password"),
		viper.GetString("db.database"),
	)

	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

func (m *Manager) getSqliteDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	m.Logger.Info().Msg("using in-memory SQLite DB with disk dump on close")

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("setting PRAGMA: %w", err)
		}
	}
	return db, nil
}

// DumpMemoryToDisk vacuums the in-memory database to the configured
// file.
func (m *Manager) DumpMemoryToDisk() error {
	if m.SqliteFilePath == "" {
		return fmt.Errorf("sqlite file path not set")
	}
	if _, err := os.Stat(m.SqliteFilePath); err == nil {
		if err := os.Remove(m.SqliteFilePath); err != nil {
			return fmt.Errorf("removing existing DB file: %w", err)
		}
	}
	if err := m.DB.Exec("VACUUM INTO ?;", m.SqliteFilePath).Error; err != nil {
		return fmt.Errorf("dumping database: %w", err)
	}
	m.Logger.Info().Str("path", m.SqliteFilePath).Msg("dumped database to disk")
	return nil
}

// Close dumps the in-memory database if needed and closes the
// connection.
func (m *Manager) Close() error {
	if m.ShouldSaveLocal && m.SqliteFilePath != "" {
		if err := m.DumpMemoryToDisk(); err != nil {
			m.Logger.Error().Err(err).Msg("failed to dump database")
		}
	}
	if m.SqlDB != nil {
		return m.SqlDB.Close()
	}
	return nil
}
