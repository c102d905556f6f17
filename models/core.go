package models

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var DB *gorm.DB

// Open connects to postgres when dbType is "postgres", otherwise to the
// sqlite file at target.
func Open(dbType, target string, level logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dbType {
	case "postgres":
		dialector = postgres.Open(target)
	case "sqlite", "":
		dialector = sqlite.Open(target)
	default:
		return nil, fmt.Errorf("unknown database type %q", dbType)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
	})
	if err != nil {
		return nil, err
	}
	if err := migrateAllTables(db); err != nil {
		log.Printf("Failed to migrate tables: %v", err)
		return nil, err
	}
	return db, nil
}

// migrateAllTables 批量迁移所有表
func migrateAllTables(db *gorm.DB) error {
	models := []interface{}{
		&BuildRecord{},
	}
	return db.AutoMigrate(models...)
}
