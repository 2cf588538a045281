package postgres

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-core/pkg/logger"
)

func TestSlowQueryTracer(t *testing.T) {
	var buf bytes.Buffer
	tr := &slowQueryTracer{log: logger.NewWithWriter(&buf, "info"), threshold: time.Nanosecond}

	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1 FROM inventory_stock FOR UPDATE"})
	time.Sleep(time.Millisecond)
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1"), Err: errors.New("canceling statement due to statement timeout")})

	out := buf.String()
	assert.Contains(t, out, "consulta lenta")
	assert.Contains(t, out, "FOR UPDATE")
	assert.Contains(t, out, "statement timeout")
}

func TestSlowQueryTracer_BajoUmbral(t *testing.T) {
	var buf bytes.Buffer
	tr := &slowQueryTracer{log: logger.NewWithWriter(&buf, "info"), threshold: time.Hour}

	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
	// sin TraceQueryStart previo no hay nada que medir
	tr.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
	assert.Empty(t, buf.String())
}

func TestLookupIPv4_Literales(t *testing.T) {
	ip, err := lookupIPv4(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip)

	_, err = lookupIPv4(context.Background(), "::1")
	assert.Error(t, err)
}
