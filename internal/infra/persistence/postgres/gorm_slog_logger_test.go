package postgres

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"reviewhub/config"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newCapturingLogger(cfg *config.Config) (*gormSlogLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	return newGormSlogLogger(base, cfg).(*gormSlogLogger), &buf
}

func TestGormSlogLogger_Levels(t *testing.T) {
	l, _ := newCapturingLogger(&config.Config{})
	assert.Equal(t, logger.Warn, l.level)
	assert.Equal(t, defaultGormSlowThreshold, l.slowThreshold)

	cfg := &config.Config{}
	cfg.Env.Debug = true
	cfg.Storage.SlowQueryThreshold = time.Second
	l, _ = newCapturingLogger(cfg)
	assert.Equal(t, logger.Info, l.level)
	assert.Equal(t, time.Second, l.slowThreshold)
}

func TestGormSlogLogger_ParamsFilterDropsValues(t *testing.T) {
	l, _ := newCapturingLogger(nil)

	sql, params := l.ParamsFilter(context.Background(), "UPDATE users SET password_hash = $1", "$2a$10$secret")
	assert.Equal(t, "UPDATE users SET password_hash = $1", sql)
	assert.Nil(t, params)
}

func TestGormSlogLogger_Trace(t *testing.T) {
	l, buf := newCapturingLogger(nil)
	sqlFn := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), sqlFn, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "record not found is expected and not logged")

	l.Trace(context.Background(), time.Now(), sqlFn, assert.AnError)
	assert.Contains(t, buf.String(), "GORM query failed")

	buf.Reset()
	l.Trace(context.Background(), time.Now().Add(-time.Second), sqlFn, nil)
	assert.Contains(t, buf.String(), "GORM slow query")

	buf.Reset()
	l.Trace(context.Background(), time.Now(), sqlFn, nil)
	assert.Empty(t, buf.String(), "fast queries are only logged at info level")
}
