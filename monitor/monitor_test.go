package monitor

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/guessduel/models"
)

func TestMonitor_Counters(t *testing.T) {
	m := NewMonitor("guess", prometheus.NewRegistry())

	m.IncOnlinePlayers()
	m.IncOnlinePlayers()
	m.DecOnlinePlayers()
	m.SetActiveRooms(4)
	m.IncMessagesReceived()
	m.ObserveMessageLatency(3 * time.Millisecond)
	m.GameStarted()
	m.GuessMade(models.FeedbackHigher)
	m.GuessMade(models.FeedbackCorrect)
	m.BroadcastDropped()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.OnlinePlayers))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.metrics.ActiveRooms))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.MessagesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.GamesStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.GamesCompleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.Guesses.WithLabelValues("HIGHER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.BroadcastDropped))
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor("guess", prometheus.NewRegistry())
	m.GameStarted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "guess_games_started_total 1"))
}
