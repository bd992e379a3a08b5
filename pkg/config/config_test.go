package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "./loanledger.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 24*time.Hour, cfg.PenaltyInterval)
}

func TestLoad_EnvironmentAndFile(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("LOANLEDGER_ADDR=:9999\nLOANLEDGER_LOG_FORMAT=json\n"), 0o600))
	t.Setenv("LOANLEDGER_DB_PATH", "/tmp/ledger.db")
	t.Setenv("LOANLEDGER_PENALTY_INTERVAL", "1h")
	t.Setenv("LOANLEDGER_ADDR", ":7000")

	cfg, err := Load(dotenv)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ledger.db", cfg.DBPath)
	assert.Equal(t, ":7000", cfg.Addr, "environment wins over .env")
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, time.Hour, cfg.PenaltyInterval)
	os.Unsetenv("LOANLEDGER_LOG_FORMAT")
}

func TestLoad_RejectsMalformedFile(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("LOANLEDGER-ADDR=:9999\n"), 0o600))

	_, err := Load(dotenv)
	assert.ErrorContains(t, err, "load .env")
}

func TestLoad_RejectsBadInterval(t *testing.T) {
	t.Setenv("LOANLEDGER_PENALTY_INTERVAL", "0s")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger := Config{LogLevel: "warn", LogFormat: "json"}.NewLogger(&buf)
	logger.Info("dropped")
	logger.Warn("kept", "contract_id", "abc")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "abc", line["contract_id"])
}
