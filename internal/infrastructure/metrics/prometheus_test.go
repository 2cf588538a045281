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
)

func TestInventoryMetrics_Contadores(t *testing.T) {
	m := New(false)

	m.MovementRecorded("exit", "lotted", 3)
	m.MovementRecorded("exit", "lotted", 2)
	m.InsufficientStock("simple")
	m.CostFallback("p-1", 4)
	m.ValidationFailed(2)
	m.TxCompleted("Adjust", nil)
	m.TxCompleted("Adjust", errors.New("x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.movements.WithLabelValues("exit", "lotted")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.units.WithLabelValues("exit", "lotted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.insufficient.WithLabelValues("simple")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.fallbackQty))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.txs.WithLabelValues("Adjust", "error")))
}

func TestInventoryMetrics_Handler(t *testing.T) {
	m := New(false)
	m.MovementRecorded("entry", "simple", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `inventory_movements_total{kind="simple",type="entry"} 1`))
}
