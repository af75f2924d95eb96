package app

import (
	"fmt"
	"path"
	"time"

	"github.com/orderdesk/orderdesk/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func getDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	switch cfg.Type {
	case "sqlite":
		return getSqliteDatabase(cfg, workdir)
	default:
		return getPgDatabase(cfg)
	}
}

func gormConfig(debug bool) *gorm.Config {
	loglevel := logger.Warn
	if debug {
		loglevel = logger.Info
	}
	return &gorm.Config{
		Logger: logger.Default.LogMode(loglevel),
		// Map driver duplicate-key and not-found errors to gorm sentinels
		TranslateError: true,
	}
}

func getPgDatabase(cfg config.DBConfig) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
	db, err := gorm.Open(postgres.Open(dsn), gormConfig(cfg.Debug))
	if err != nil {
		panic(fmt.Errorf("connect postgres error: %w", err))
	}
	setupPool(db, cfg)
	return db
}

func getSqliteDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	dbfile := path.Join(workdir, "data", cfg.Name+".db")
	db, err := gorm.Open(sqlite.Open(dbfile+"?_busy_timeout=5000"), gormConfig(cfg.Debug))
	if err != nil {
		panic(fmt.Errorf("connect sqlite error: %w", err))
	}
	setupPool(db, cfg)
	return db
}

func setupPool(db *gorm.DB, cfg config.DBConfig) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if cfg.MaxConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
	}
	if cfg.IdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.IdleConn)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
}
