package database

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"piggybank/config"
	"piggybank/models"
)

// Database представляет подключение к базе данных
type Database struct {
	DB *gorm.DB
}

// NewDatabase создает подключение и приводит схему к актуальному состоянию
func NewDatabase(cfg *config.Config) (*Database, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(cfg, db); err != nil {
		return nil, err
	}
	return &Database{DB: db}, nil
}

// GetDB возвращает экземпляр GORM
func (d *Database) GetDB() *gorm.DB {
	return d.DB
}

// Close закрывает подключение к базе данных
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Connect устанавливает соединение с базой данных
func Connect(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DB.Driver == "sqlite" {
		sep := "?"
		if strings.Contains(cfg.DB.SQLitePath, "?") {
			sep = "&"
		}
		return OpenSQLite(cfg.DB.SQLitePath+sep+"_pragma=foreign_keys(1)", cfg.DB.LogSQL)
	}

	// Устанавливаем соединение
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{
		Logger: newLogger(cfg.DB.LogSQL),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %v", err)
	}

	// Настраиваем пул соединений
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пула соединений: %v", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// OpenSQLite открывает SQLite базу. Используется для локального запуска и
// в тестах (dsn вида "file:name?mode=memory&cache=shared").
// SQLite допускает одного писателя, поэтому пул ограничен одним соединением.
func OpenSQLite(dsn string, logSQL bool) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: newLogger(logSQL),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пула соединений: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func newLogger(logSQL bool) logger.Interface {
	level := logger.Warn
	if logSQL {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
}

// Migrate выполняет SQL миграции (только для PostgreSQL) и затем
// автоматическую миграцию моделей
func Migrate(cfg *config.Config, db *gorm.DB) error {
	if cfg.DB.Driver != "sqlite" {
		if err := RunMigrations(cfg); err != nil {
			return fmt.Errorf("ошибка выполнения SQL миграций: %v", err)
		}
	}

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("ошибка автоматической миграции моделей: %v", err)
	}
	return nil
}

// RunMigrations выполняет SQL миграции из cfg.DB.MigrationsPath
func RunMigrations(cfg *config.Config) error {
	// Создаем экземпляр миграции
	m, err := migrate.New(cfg.DB.MigrationsPath, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("ошибка создания миграции: %v", err)
	}
	defer m.Close()

	// Выполняем миграции
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("ошибка выполнения миграций: %v", err)
	}

	return nil
}

// Models список всех моделей схемы в порядке зависимостей
func Models() []interface{} {
	return []interface{}{
		&models.IDSequence{},
		&models.Account{},
		&models.PiggyBank{},
		&models.PiggyTransfer{},
		&models.Transaction{},
		&models.P2PTransfer{},
		&models.Contact{},
		&models.SplitGroup{},
		&models.SplitGroupMember{},
		&models.Notification{},
		&models.UserSettings{},
	}
}

// AutoMigrate выполняет автоматическую миграцию моделей
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("ошибка автоматической миграции: %v", err)
	}
	return nil
}
