package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_Fields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("pharmacy-api", &buf).
		WithComponent("alert_scanner").
		WithOrganization("org-1")

	log.Info().Int("created", 2).Msg("scan complete")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pharmacy-api", entry["service"])
	assert.Equal(t, "alert_scanner", entry["component"])
	assert.Equal(t, "org-1", entry["organization_id"])
	assert.Equal(t, "scan complete", entry["message"])
	assert.EqualValues(t, 2, entry["created"])
}

func TestNop_DoesNotPanic(t *testing.T) {
	log := Nop().WithRequestID("req").WithUserID("u")
	log.Error().Msg("discarded")
}
