package hub

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitech/barstream/internal/model"
)

func newTestHub(max int) *Hub {
	return New(zerolog.Nop(), max)
}

// Scenario F: subscribe/disconnect.
func TestSubscribeDisconnect(t *testing.T) {
	h := newTestHub(0)
	conn := "conn-1"

	require.NoError(t, h.Subscribe(conn, "600000.SH", model.Period1m))
	assert.Equal(t, []string{"600000.SH"}, h.GetActiveSymbols())

	h.Remove(conn)
	assert.Empty(t, h.GetActiveSymbols())
	assert.Empty(t, h.IterSubscribers("600000.SH", model.Period1m))
}

// Property 7: hub equivalence.
func TestHubEquivalence(t *testing.T) {
	h := newTestHub(0)
	a, b, c := "a", "b", "c"

	require.NoError(t, h.Subscribe(a, "AAA", model.Period1m))
	require.NoError(t, h.Subscribe(b, "BBB", model.Period5m))
	require.NoError(t, h.Subscribe(c, "AAA", model.Period5m))

	assert.ElementsMatch(t, []string{"AAA", "BBB"}, h.GetActiveSymbols())

	h.Unsubscribe(a, "AAA", model.Period1m)
	assert.ElementsMatch(t, []string{"AAA", "BBB"}, h.GetActiveSymbols(), "AAA still has c on 5m")

	h.Unsubscribe(c, "AAA", model.Period5m)
	assert.ElementsMatch(t, []string{"BBB"}, h.GetActiveSymbols())
}

func TestSubscribeRespectsMaxActiveSymbols(t *testing.T) {
	h := newTestHub(1)
	require.NoError(t, h.Subscribe("a", "AAA", model.Period1m))
	err := h.Subscribe("b", "BBB", model.Period1m)
	assert.ErrorIs(t, err, ErrTooManyActiveSymbols)

	// Resubscribing to the already-active symbol, even on a new period, is fine.
	assert.NoError(t, h.Subscribe("c", "AAA", model.Period5m))
}

func TestIterAllDeduplicatesConnections(t *testing.T) {
	h := newTestHub(0)
	conn := "conn-1"
	require.NoError(t, h.Subscribe(conn, "AAA", model.Period1m))
	require.NoError(t, h.Subscribe(conn, "AAA", model.Period5m))
	assert.Len(t, h.IterAll(), 1)
}
