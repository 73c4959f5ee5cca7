package db

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"lexia/config"
	"lexia/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

// Connect abre conexão com DB (sqlite3 por padrão) e faz automigrate das
// tabelas do relay quando conf.AutoMigrate está ligado.
func Connect(conf config.Configuration, logger *slog.Logger) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	switch conf.Database {
	case "postgres", "postgresql":
		logger.Info("using postgres database", "host", conf.DbHost, "db", conf.DbName)
		path := "host=" + conf.DbHost + " port=" + conf.DbPort
		path += " user=" + conf.DbUser + " dbname=" + conf.DbName
		path += " password=" + conf.DbPass
		db, err = gorm.Open("postgres", path)
	default:
		dbPath := conf.DbPath
		if dbPath == "" {
			dbPath = "db/database.db"
		}
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
			}
		}
		logger.Info("using sqlite3 database", "path", dbPath)
		db, err = gorm.Open("sqlite3", dbPath)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	db.LogMode(conf.LogLevel == "debug")

	if conf.AutoMigrate {
		if err := Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

// Migrate creates or updates the relay tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.KommoToken{}, &models.Event{}).Error; err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
