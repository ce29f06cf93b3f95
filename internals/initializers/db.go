package initializers

import (
	"fmt"

	"github.com/megafartCc/Roblex.io/internals/config"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// ConnectToDb opens the MySQL connection described by the config. The handle
// is returned rather than stored in a package global so tests can substitute
// their own.
func ConnectToDb(cfg config.DBConfig) (*gorm.DB, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Name == "" {
		return nil, fmt.Errorf("missing DB env vars; set DB_HOST/DB_USER/DB_NAME (or MYSQLHOST/MYSQLUSER/MYSQLDATABASE)")
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	return db, nil
}
