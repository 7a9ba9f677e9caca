package db

import (
	"fmt"
	"sync/atomic"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var testDBCounter atomic.Int64

// NewTest opens an isolated in-memory sqlite database for package tests.
func NewTest() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:gatehouse_test_%d?mode=memory&cache=shared", testDBCounter.Add(1))
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
}
