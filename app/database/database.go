package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ugc-forge/app/config"
	"ugc-forge/app/logger"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB is the process-wide database handle
var DB *gorm.DB

// Init opens the configured database, migrates the schema and stores the handle in DB.
func Init(cfg config.DatabaseConfig, log *logger.Logger) error {
	db, err := Open(cfg, log)
	if err != nil {
		log.Errorf("database connection failed: %v", err)
		return err
	}

	if err := AutoMigrate(db); err != nil {
		log.Errorf("schema migration failed: %v", err)
		return err
	}

	DB = db
	log.Infof("database ready: driver=%s", cfg.Driver)
	return nil
}

// Open connects to the database described by cfg without migrating it. SQL logs
// go to log.
func Open(cfg config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		if err := ensureDir(filepath.Dir(cfg.Path)); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dialector = sqlite.Open(cfg.Path)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(gormWriter{log: log, debug: cfg.Debug}, cfg.Debug),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Close closes the connection pool behind DB.
func Close() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

func GetDB() *gorm.DB {
	return DB
}

func ensureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// gormWriter sends gorm's log lines to the zap logger.
type gormWriter struct {
	log   *logger.Logger
	debug bool
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	if w.debug {
		w.log.Infof(format, args...)
		return
	}
	w.log.Warnf(format, args...)
}

// newGormLogger logs errors and slow queries, and every statement in debug mode.
// A missing row is an expected lookup result and is not logged.
func newGormLogger(w gormlogger.Writer, debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(w, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
