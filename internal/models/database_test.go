package models

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"ventureflow/internal/config"
)

func TestBinaryUsernamesOnMySQL(t *testing.T) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       MySQLDSN(config.MySQLConfig{Host: "127.0.0.1", Port: 3306, Username: "u", Password: "p", Database: "ventureflow"}),
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	var statements []string
	require.NoError(t, db.Callback().Raw().After("gorm:raw").Register("test:capture", func(tx *gorm.DB) {
		statements = append(statements, tx.Statement.SQL.String())
	}))

	require.NoError(t, binaryUsernames(db))
	require.Len(t, statements, 1)
	assert.Contains(t, statements[0], "MODIFY username")
	assert.Contains(t, statements[0], "COLLATE utf8mb4_bin")
}

func TestOpenSQLiteKeepsUsernamesCaseSensitive(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
		},
	}
	db, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	require.NoError(t, db.Create(&User{Username: "alice", PasswordHash: "x.y"}).Error)
	require.NoError(t, db.Create(&User{Username: "Alice", PasswordHash: "x.y"}).Error)

	var count int64
	require.NoError(t, db.Model(&User{}).Where("username = ?", "alice").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "data/app.db?_busy_timeout=5000&_txlock=immediate", SQLiteDSN("data/app.db"))
	assert.Equal(t, "file:app.db?cache=shared&_busy_timeout=5000&_txlock=immediate", SQLiteDSN("file:app.db?cache=shared"))
}
