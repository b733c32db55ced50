package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"groupevo/internal/evo"
)

func sampleReport(generation int) evo.GenerationReport {
	return evo.GenerationReport{
		Generation:  generation,
		Size:        4,
		BestFitness: 0.75,
		MeanFitness: 0.5,
		FiniteCount: 3,
		Diversity:   2,
		Crossovers:  map[string]int{"generator_splice": 2, "pass_through": 2},
		Mutations:   map[string]int{"identity": 3, "add_generator": 1},
	}
}

func TestCollectorTracksReports(t *testing.T) {
	c := NewCollector("run-1")

	c.GenerationStarted(1)
	c.GenerationCompleted(sampleReport(1))
	c.GenerationStarted(2)
	c.GenerationCompleted(sampleReport(2))

	require.Equal(t, 2.0, testutil.ToFloat64(c.generations))
	require.Equal(t, 0.75, testutil.ToFloat64(c.bestFitness))
	require.Equal(t, 0.5, testutil.ToFloat64(c.meanFitness))
	require.Equal(t, 0.75, testutil.ToFloat64(c.finiteFraction))
	require.Equal(t, 2.0, testutil.ToFloat64(c.diversity))
	require.Equal(t, 4.0, testutil.ToFloat64(c.crossovers.WithLabelValues("generator_splice")))
	require.Equal(t, 6.0, testutil.ToFloat64(c.mutations.WithLabelValues("identity")))
	require.Equal(t, 1, testutil.CollectAndCount(c.generationSeconds))
}

func TestCollectorsDoNotShareRegistries(t *testing.T) {
	a := NewCollector("run-a")
	b := NewCollector("run-b")
	a.GenerationCompleted(sampleReport(1))

	require.Equal(t, 1.0, testutil.ToFloat64(a.generations))
	require.Equal(t, 0.0, testutil.ToFloat64(b.generations))
}

func TestHandlerServesMetrics(t *testing.T) {
	c := NewCollector("run-1")
	c.GenerationCompleted(sampleReport(1))

	server := httptest.NewServer(c.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	require.True(t, strings.Contains(text, `groupevo_generations_total{run_id="run-1"} 1`), text)
	require.True(t, strings.Contains(text, `groupevo_mutations_total{kind="identity",run_id="run-1"} 3`), text)
}

func TestServerLifecycle(t *testing.T) {
	c := NewCollector("run-1")
	c.GenerationCompleted(sampleReport(1))

	server := NewServer("127.0.0.1:0", c, nil)
	require.Equal(t, "metrics", server.Name())
	require.NoError(t, server.Start(context.Background()))
	require.Error(t, server.Start(context.Background()))

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, server.Stop(context.Background()))
	require.Equal(t, "", server.Addr())
	require.NoError(t, server.Stop(context.Background()))
}
