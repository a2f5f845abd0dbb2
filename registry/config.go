package registry

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/optolab/oxc-southbound/types"
)

// Config holds the MySQL connection parameters for the testbed registry.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// AdminUser and AdminKeyFile identify the elevated account used for
	// booking mutations. The key file holds only the password.
	AdminUser    string
	AdminKeyFile string
}

// DefaultConfig returns the lab defaults, overridable via OXC_DB_* variables.
func DefaultConfig() Config {
	cfg := Config{
		Host:         "127.0.0.1",
		Port:         3306,
		User:         "testbed_ro",
		Database:     "testbed",
		AdminUser:    "testbed_admin",
		AdminKeyFile: "/etc/secure_keys/mysql_key.key",
	}
	if v := os.Getenv("OXC_DB_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("OXC_DB_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("OXC_DB_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("OXC_DB_NAME"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("OXC_DB_ADMIN_KEY"); v != "" {
		cfg.AdminKeyFile = v
	}
	return cfg
}

// dsn builds the MySQL connection string. clientFoundRows makes UPDATE
// report matched rows rather than changed rows, so a write that leaves a
// column at its current value does not read as "row missing".
func (c Config) dsn(user, password string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&clientFoundRows=true",
		user, password, c.Host, c.Port, c.Database)
}

func open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, &types.BackendError{System: "registry", Op: "connect", Err: err}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, &types.BackendError{System: "registry", Op: "connect", Err: err}
	}
	sqlDB.SetMaxOpenConns(8)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// Open connects with the regular (read-mostly) account.
func Open(cfg Config) (*Registry, error) {
	db, err := open(cfg.dsn(cfg.User, cfg.Password))
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// OpenAdmin connects with the elevated account, reading its password from
// the key file. Booking mutations go through this handle only.
func OpenAdmin(cfg Config) (*Registry, error) {
	key, err := os.ReadFile(cfg.AdminKeyFile)
	if err != nil {
		return nil, &types.BackendError{System: "registry", Op: "read admin key", Err: err}
	}
	db, err := open(cfg.dsn(cfg.AdminUser, strings.TrimSpace(string(key))))
	if err != nil {
		return nil, err
	}
	return New(db), nil
}
