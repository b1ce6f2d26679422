package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/logger"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestLogger_Levels(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	l := logger.New()
	l.SetOutput(buf)

	l.Debug("hidden")
	l.Info("loaded 3 targets")
	l.Warn("no targets selected")
	l.SetVerbose(true)
	l.Debug("shown")
	l.SetVerbose(false)
	l.Debug("hidden again")

	goldie.New(t).Assert(t, "logger_levels", buf.Bytes())
}

func TestLogger_Error_Pretty(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	l := logger.New()
	l.SetOutput(buf)

	inner := zerr.With(zerr.New("command failed"), "exit_code", 2)
	err := domain.Classify(
		zerr.With(zerr.Wrap(inner, "build failed"), "target", "out/app"),
		domain.ErrBuildFailed,
	)
	l.Error(err)
	l.Error(nil)

	goldie.New(t).Assert(t, "logger_error_pretty", buf.Bytes())
}

func TestLogger_Error_JSON(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	l := logger.New()
	l.SetOutput(buf)
	l.SetJSON(true)

	err := domain.Classify(
		zerr.With(zerr.With(errors.New("unknown field"), "location", "kiln.yaml:4"), "target", "app"),
		domain.ErrConfiguration,
	)
	l.Error(err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "operation failed", record["msg"])
	assert.Equal(t, "unknown field", record["error"])
	assert.Equal(t, "app", record["target"])
	assert.Equal(t, "kiln.yaml:4", record["location"])
	assert.Equal(t, domain.ErrConfiguration.Error(), record["class"])
}

func TestLogger_JSON_Info(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	l := logger.New()
	l.SetOutput(buf)
	l.SetJSON(true)
	l.Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "hello", record["msg"])
}
