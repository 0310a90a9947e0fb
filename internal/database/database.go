package database

import (
	"content-wiki/internal/config"
	"content-wiki/internal/logging"
	"content-wiki/internal/models"
	"fmt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"net/url"
)

// InitRepository returns the Repository selected by c.Database.Driver.
// The memory driver keeps all data in process and needs no database server.
func InitRepository(c *config.Configuration, l logging.Logger) (Repository, error) {
	if c.Database.Driver == config.DriverMemory {
		l.LogInfo(nil, "Using in-memory repository")
		return NewMemoryRepository(), nil
	}

	db, err := InitDatabase(c, l)
	if err != nil {
		return nil, err
	}
	return &GormRepository{DB: db}, nil
}

func InitDatabase(c *config.Configuration, l logging.Logger) (*gorm.DB, error) {
	l.LogInfof(nil, "Initializing Database (driver %s)", c.Database.Driver)

	dialector, err := dialectorFor(c)
	if err != nil {
		l.LogErrorf(nil, "error initializing database: %v", err)
		return nil, err
	}

	db, err := gorm.Open(
		dialector,
		&gorm.Config{Logger: logging.InitGormLogger(c), TranslateError: true})

	if err != nil {
		l.LogErrorf(nil, "error initializing database: %v", err)
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		l.LogErrorf(nil, "error setting connection properties on db conn pool")
		return nil, err
	}
	sqlDB.SetMaxIdleConns(c.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(c.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(c.Database.ConnMaxLifetime.Duration)

	l.LogDebug(nil, "connected to Database")

	if err = Migrate(db, l); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the tables of all persisted models.
func Migrate(db *gorm.DB, l logging.Logger) error {
	entities := []struct {
		name  string
		model any
	}{
		{"models.User", &models.User{}},
		{"models.Category", &models.Category{}},
		{"models.Tag", &models.Tag{}},
		{"models.Article", &models.Article{}},
		{"models.Revision", &models.Revision{}},
	}

	for _, e := range entities {
		if err := db.AutoMigrate(e.model); err != nil {
			l.LogErrorf(nil, "error auto migrating %s: %v", e.name, err)
			return err
		}
	}
	return nil
}

func dialectorFor(c *config.Configuration) (gorm.Dialector, error) {
	switch c.Database.Driver {
	case config.DriverPostgres:
		dsn := url.URL{
			User:     url.UserPassword(c.Database.Username, c.Database.Password),
			Scheme:   "postgres",
			Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
			Path:     c.Database.DatabaseName,
			RawQuery: (&url.Values{"sslmode": []string{"disable"}}).Encode(),
		}
		return postgres.Open(dsn.String()), nil
	case config.DriverMysql:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.Database.Username, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.DatabaseName)
		return mysql.Open(dsn), nil
	case config.DriverSqlite:
		return sqlite.Open(fmt.Sprintf("file:%s?_foreign_keys=on", c.Database.DatabaseName)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
}
