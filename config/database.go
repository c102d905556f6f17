package config

import (
	"log"
	"os"
	"path/filepath"

	"github.com/GrainArc/CityLoD1/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDatabase 初始化构建记录数据库，默认使用 Download 目录下的 SQLite
func InitDatabase() error {
	target := DSN
	if MainConfig.DBType != "postgres" {
		if err := os.MkdirAll(MainConfig.Download, os.ModePerm); err != nil {
			log.Printf("创建存储目录失败: %v", err)
			return err
		}
		target = filepath.Join(MainConfig.Download, MainConfig.Dbname+".db")
		log.Printf("数据库路径: %s", target)
	}

	var err error
	DB, err = models.Open(MainConfig.DBType, target, logger.Warn)
	if err != nil {
		log.Printf("连接数据库失败: %v", err)
		return err
	}
	models.DB = DB
	log.Println("数据库初始化成功")
	return nil
}

// GetDB 获取数据库实例
func GetDB() *gorm.DB {
	return DB
}
