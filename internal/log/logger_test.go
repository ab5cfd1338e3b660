package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTo_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	InitTo(&buf, "prod", "debug")
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	l := Component("feed")
	l.Info().Str("conversation_id", "a_b").Msg("topic started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ripplechat", entry["service"])
	assert.Equal(t, "feed", entry["component"])
	assert.Equal(t, "a_b", entry["conversation_id"])
	assert.Equal(t, "topic started", entry["message"])
}

func TestInitTo_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitTo(&buf, "prod", "chatty")
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
	log.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}
