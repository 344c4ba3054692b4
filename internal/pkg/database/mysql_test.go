package database

import (
	"fmt"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDSN_ForcesParseTime(t *testing.T) {
	dsn, err := NormalizeDSN("root:pw@tcp(localhost:3306)/agrinexus")
	require.NoError(t, err)

	cfg, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, "agrinexus", cfg.DBName)
}

func TestNormalizeDSN_Invalid(t *testing.T) {
	_, err := NormalizeDSN("root:pw@tcp(localhost:3306")
	assert.Error(t, err)
}

func TestIsDuplicateKey(t *testing.T) {
	dup := &mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"}
	assert.True(t, IsDuplicateKey(dup))
	assert.True(t, IsDuplicateKey(fmt.Errorf("insert: %w", dup)))
	assert.False(t, IsDuplicateKey(&mysqldriver.MySQLError{Number: 1213}))
	assert.False(t, IsDuplicateKey(fmt.Errorf("other")))
}
