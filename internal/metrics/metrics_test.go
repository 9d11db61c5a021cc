package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blackmichael/novelle/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *Metrics {
	reg := prometheus.NewPedanticRegistry()
	return New(reg, reg)
}

type stubSequencer struct {
	next int64
	err  error
}

func (s *stubSequencer) NextValue(context.Context, string, int64) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.next++
	return s.next, nil
}

func (s *stubSequencer) Ensure(context.Context, string, int64) error { return s.err }

func TestSequencer_CountsOutcomes(t *testing.T) {
	m := newTestMetrics()
	ok := m.Sequencer(&stubSequencer{})
	down := m.Sequencer(&stubSequencer{err: fmt.Errorf("%w: boom", domain.ErrSequenceUnavailable)})
	ctx := context.Background()

	v, err := ok.NextValue(ctx, "books", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	_, err = ok.NextValue(ctx, "books", 1)
	require.NoError(t, err)
	_, err = down.NextValue(ctx, "books", 1)
	require.ErrorIs(t, err, domain.ErrSequenceUnavailable)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sequenceValues.WithLabelValues("books", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sequenceValues.WithLabelValues("books", "unavailable")))
}

func TestNotify_CountsInteractions(t *testing.T) {
	m := newTestMetrics()

	require.NoError(t, m.Notify(context.Background(), domain.InteractionEvent{Kind: domain.InteractionLike, Action: domain.ActionAdd}))
	require.NoError(t, m.Notify(context.Background(), domain.InteractionEvent{Kind: domain.InteractionLike, Action: domain.ActionAdd}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.interactions.WithLabelValues("like", "add")))
}

func TestFeedPage_Outcomes(t *testing.T) {
	m := newTestMetrics()

	m.FeedPage(nil)
	m.FeedPage(fmt.Errorf("%w: mongo down", domain.ErrFeedUnavailable))
	m.FeedPage(errors.New("other"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.feedPages.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.feedPages.WithLabelValues("unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.feedPages.WithLabelValues("error")))
}

func TestHandler_ExposesHTTPMetrics(t *testing.T) {
	m := newTestMetrics()
	m.ObserveHTTP(http.MethodGet, "GET /api/posts", http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `novelle_http_requests_total{method="GET",route="GET /api/posts",status="200"} 1`), body)
	assert.Contains(t, body, "novelle_http_request_duration_seconds_bucket")
}
