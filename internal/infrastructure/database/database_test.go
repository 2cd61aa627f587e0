package database

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateDatabaseIfMissingSkipsNonTargets(t *testing.T) {
	// Keyword/value DSNs are left to the driver.
	require.NoError(t, createDatabaseIfMissing("host=localhost dbname=assistant sslmode=disable"))
	// The maintenance database is never auto-created.
	require.NoError(t, createDatabaseIfMissing("postgres://user:pw@localhost:5432/postgres"))
	require.NoError(t, createDatabaseIfMissing("postgres://user:pw@localhost:5432/"))
}

func TestConnectRejectsEmptyDSN(t *testing.T) {
	_, err := Connect(Config{}, zerolog.Nop())
	require.Error(t, err)
}

func TestGormLoggerTrace(t *testing.T) {
	var buf bytes.Buffer
	l := newGormLogger(zerolog.New(&buf), 50*time.Millisecond)
	ctx := context.Background()

	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Empty(t, buf.String(), "fast successful query is silent")

	l.Trace(ctx, time.Now().Add(-time.Second), func() (string, int64) { return "SELECT pg_sleep(1)", 0 }, nil)
	assert.Contains(t, buf.String(), "slow query")

	buf.Reset()
	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT broken", 0 }, errors.New("syntax error"))
	assert.Contains(t, buf.String(), "query failed")

	buf.Reset()
	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT missing", 0 }, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "record-not-found is not an error")
}
