package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults without file", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, 30, cfg.Reminder.LeadDays)
		assert.Equal(t, 3*time.Minute, cfg.Queue.ProcessTimeout)
	})

	t.Run("yaml file then env override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := []byte(`
database:
  driver: sqlite
  dsn: "file::memory:"
queue:
  workers: 2
  process_timeout: 45s
ner:
  url: http://localhost:9000/ner
`)
		require.NoError(t, os.WriteFile(path, content, 0o600))
		t.Setenv("QUEUE_WORKERS", "8")

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, 8, cfg.Queue.Workers)
		assert.Equal(t, 45*time.Second, cfg.Queue.ProcessTimeout)
		assert.Equal(t, "http://localhost:9000/ner", cfg.NER.URL)
		require.NoError(t, cfg.Validate())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	cfg.Database.DSN = "postgres://localhost/contracts"
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())
}

func TestErrorMapping(t *testing.T) {
	wrapped := fmt.Errorf("load job: %w", ErrNotFound)
	assert.Equal(t, codes.NotFound, GRPCCode(wrapped))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))

	appErr := NewAppError("BAD_FORMAT", "format hint", ErrInvalidInput)
	assert.Equal(t, codes.InvalidArgument, GRPCCode(appErr))
	assert.True(t, errors.Is(appErr, ErrInvalidInput))

	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ErrQueueClosed))
	assert.Equal(t, codes.PermissionDenied, GRPCCode(NewAppError("FORBIDDEN", "outside root", ErrForbidden)))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(fmt.Errorf("ingest: %w", ErrForbidden)))
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("filename", "", Required).
		Field("format", "rtf", OneOf("PDF", "IMAGE", "DOC")).
		Field("content", []byte("abcdef"), MaxBytes(4))
	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 3)
	assert.ErrorIs(t, v.Error(), ErrValidation)

	ok := NewValidator().
		Field("filename", "lease.pdf", Required, MaxLength(255)).
		Field("format", "pdf", OneOf("PDF", "IMAGE", "DOC"))
	assert.NoError(t, ok.Error())
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&buf, LogConfig{Level: "debug", Format: "json"})

	ctx := WithJobID(WithRequestID(context.Background(), "req-1"), "job-9")
	LoggerFromContext(ctx, base).Info("hello")

	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.Contains(t, buf.String(), `"job_id":"job-9"`)
}
