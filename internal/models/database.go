package models

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ventureflow/internal/config"
)

var DB *gorm.DB

// InitDB opens the configured database, migrates the schema and stores the
// handle in DB.
func InitDB(cfg *config.Config) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects and migrates without touching the package-level handle.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Database.Type {
	case "sqlite":
		dialector = sqlite.Open(SQLiteDSN(cfg.Database.SQLite.Path))
	case "mysql":
		dialector = mysql.Open(MySQLDSN(cfg.Database.MySQL))
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}

	logLevel := logger.Silent
	if cfg.Logging.Level == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&User{}, &Session{}, &AuditLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := binaryUsernames(db); err != nil {
		return nil, fmt.Errorf("failed to set username collation: %w", err)
	}

	return db, nil
}

// binaryUsernames gives users.username a binary collation on MySQL so the
// unique index and lookups both compare case-sensitively. SQLite's default
// BINARY collation already does.
func binaryUsernames(db *gorm.DB) error {
	if db.Dialector.Name() != "mysql" {
		return nil
	}
	return db.Exec("ALTER TABLE users MODIFY username VARCHAR(255) " +
		"CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL").Error
}

// SQLiteDSN makes concurrent writers queue for the lock instead of failing
// with SQLITE_BUSY: transactions take the write lock on BEGIN and wait up to
// the busy timeout for it.
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=5000&_txlock=immediate"
}

// MySQLDSN renders a go-sql-driver DSN with parseTime enabled.
func MySQLDSN(c config.MySQLConfig) string {
	dsn := mysqldriver.NewConfig()
	dsn.User = c.Username
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dsn.DBName = c.Database
	dsn.ParseTime = true
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}
