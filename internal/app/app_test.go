package app

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tourism-compliance/internal/common/config"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/matching"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testApp(t *testing.T, cfg *config.Config) *App {
	return &App{Config: cfg, Logger: logger.NewTestLogger(t), zapLog: zap.NewNop()}
}

// ==========================
// RetryWithBackoff
// ==========================

func TestRetryWithBackoff_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(func() error {
		attempts++
		if attempts < 3 {
			return stderrors.New("connection refused")
		}
		return nil
	}, 5, time.Millisecond, zap.NewNop(), "test op")

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_GivesUp(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(func() error {
		attempts++
		return stderrors.New("connection refused")
	}, 3, time.Millisecond, zap.NewNop(), "PostgreSQL connection")

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "PostgreSQL connection failed after 3 attempts")
	assert.Contains(t, err.Error(), "connection refused")
}

// ==========================
// Wiring
// ==========================

func TestMatchingOptions_FromConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "price_bands.yaml")
	require.NoError(t, os.WriteFile(path, []byte("price_bands:\n  - {rooms: 1, min: 10, max: 40}\n  - {rooms: 2, min: 30, max: 80}\n"), 0o600))

	cfg := &config.Config{Reconciliation: config.ReconciliationConfig{
		RadiusKm: 3.5, AutoApprove: true, AutoApproveThreshold: 0.99, PriceBandsPath: path,
	}}
	opts := testApp(t, cfg).matchingOptions()

	assert.Equal(t, 3.5, opts.RadiusKm)
	assert.True(t, opts.AutoApprove)
	assert.Equal(t, 0.99, opts.AutoApproveThreshold)
	require.Len(t, opts.PriceBands, 2)
	assert.Equal(t, 1, opts.PriceBands[0].Rooms)
}

func TestMatchingOptions_BadBandsFileFallsBack(t *testing.T) {
	cfg := &config.Config{Reconciliation: config.ReconciliationConfig{PriceBandsPath: "/nonexistent/bands.yaml"}}

	opts := testApp(t, cfg).matchingOptions()

	assert.Equal(t, matching.DefaultPriceBands(), opts.PriceBands)
}

func TestPublisher_LogSinkOnly(t *testing.T) {
	cfg := &config.Config{}
	cfg.Integrations.ZeebeEvents.Enabled = true

	m, err := testApp(t, cfg).publisher(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}
