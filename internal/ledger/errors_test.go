package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("claim fees: %w", NotFound("fees.claim", "no unclaimed fees found"))
	require.Equal(t, KindNotFound, KindOf(err))
	require.True(t, IsNotFound(err))
	require.Equal(t, "no unclaimed fees found", Message(err))
}

func TestUpstreamKeepsClassification(t *testing.T) {
	conflict := StaleVersion("positions.update", "position", "p1")
	require.Same(t, conflict, Upstream("remove liquidity", conflict).(*Error))

	raw := errors.New("connection reset")
	wrapped := Upstream("positions.get", raw)
	require.Equal(t, KindUpstream, KindOf(wrapped))
	require.ErrorIs(t, wrapped, raw)
	require.Nil(t, Upstream("noop", nil))
}

func TestKindOfUnclassified(t *testing.T) {
	require.Equal(t, KindUpstream, KindOf(errors.New("boom")))
	require.Equal(t, "upstream_failure", KindUpstream.String())
	require.Equal(t, "invalid_input", KindInvalidInput.String())
}
