package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IssueTriage/internal/domain"
)

func TestCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.PostOutcome(domain.OutcomeCommitted)
	m.PostOutcome(domain.OutcomeCommitted)
	m.PostOutcome(domain.OutcomeDropped)
	m.Validation(true)
	m.Validation(false)
	m.OnWait(0)
	m.OnRetry(errors.New("429"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PostsTotal.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PostsTotal.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitWaits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitRetries))
}

func TestHandlerExposesRegistry(t *testing.T) {
	t.Parallel()

	m := New()
	m.PostOutcome(domain.OutcomeRepaired)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `issuetriage_posts_total{outcome="repaired"} 1`))
	assert.NotContains(t, string(body), "go_goroutines")
}
