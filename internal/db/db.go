package db

import (
	"fmt"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open picks the gorm dialector from the DSN shape: "file:" / ":memory:" /
// "*.db" select sqlite, anything else is treated as a MySQL DSN.
func Open(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if isSQLite(dsn) {
		dialector = gormsqlite.Open(dsn)
	} else {
		dialector = mysql.Open(dsn)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return gdb, nil
}

func isSQLite(dsn string) bool {
	d := strings.TrimSpace(dsn)
	return strings.HasPrefix(d, "file:") ||
		strings.HasPrefix(d, ":memory:") ||
		strings.HasSuffix(d, ".db") ||
		strings.HasSuffix(d, ".sqlite")
}
