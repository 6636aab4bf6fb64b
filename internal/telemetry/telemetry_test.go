package telemetry

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_FallsBackToInfoOnUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("not-a-level", &buf)

	logger.Debug().Msg("should not appear")
	logger.Info().Msg("should appear")

	require.NotContains(t, buf.String(), "should not appear")
	require.Contains(t, buf.String(), "should appear")
}

func TestComponent_TagsLogLineWithComponentName(t *testing.T) {
	var buf bytes.Buffer
	base := New("info", &buf)

	Component(base, "adapters").Info().Msg("hello")

	require.Contains(t, buf.String(), `"component":"adapters"`)
}

func TestForUpstream_TagsLogLineWithUpstreamName(t *testing.T) {
	var buf bytes.Buffer
	base := New("info", &buf)

	ForUpstream(base, "markets").Info().Msg("hello")

	require.Contains(t, buf.String(), `"upstream":"markets"`)
}
