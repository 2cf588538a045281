package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/inventario-core/pkg/config"
	"github.com/jhoicas/inventario-core/pkg/logger"
)

// PoolOption ajusta la configuración del pool antes de abrirlo.
type PoolOption func(*pgxpool.Config)

// WithSlowQueryLog registra como warning toda sentencia que tarde más que threshold.
// Con las transacciones de stock cortas, una consulta lenta casi siempre es espera de candado.
func WithSlowQueryLog(log *logger.Logger, threshold time.Duration) PoolOption {
	return func(pc *pgxpool.Config) {
		if threshold <= 0 {
			return
		}
		pc.ConnConfig.Tracer = &slowQueryTracer{log: log.Component("postgres"), threshold: threshold}
	}
}

// NewPool abre el pool de PostgreSQL con NUMERIC mapeado a decimal.Decimal y hace ping.
func NewPool(ctx context.Context, cfg config.DBConfig, opts ...PoolOption) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	pc.MaxConns = 25
	if cfg.MaxConns > 0 {
		pc.MaxConns = int32(cfg.MaxConns)
	}
	pc.MinConns = 2
	pc.MaxConnLifetime = time.Hour
	pc.MaxConnIdleTime = 30 * time.Minute
	pc.HealthCheckPeriod = time.Minute
	if cfg.ForceIPv4 {
		pc.ConnConfig.DialFunc = dialIPv4
	}
	pc.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	for _, opt := range opts {
		opt(pc)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("crear pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}
	return pool, nil
}

// dialIPv4 conecta por tcp4 cuando el host tiene registro A. Algunos contenedores no tienen
// salida IPv6 y el proveedor puede publicar ambos registros.
func dialIPv4(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ip, err := lookupIPv4(ctx, host)
	if err != nil {
		return d.DialContext(ctx, network, addr)
	}
	return d.DialContext(ctx, "tcp4", net.JoinHostPort(ip, port))
}

func lookupIPv4(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip.To4() == nil {
			return "", errors.New("dirección IPv6")
		}
		return host, nil
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", errors.New("sin registros A")
	}
	return ips[0].String(), nil
}

type slowQueryKey struct{}

type slowQueryStart struct {
	sql string
	at  time.Time
}

// slowQueryTracer implementa pgx.QueryTracer.
type slowQueryTracer struct {
	log       *logger.Logger
	threshold time.Duration
}

func (t *slowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, slowQueryKey{}, slowQueryStart{sql: data.SQL, at: time.Now()})
}

func (t *slowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(slowQueryKey{}).(slowQueryStart)
	if !ok {
		return
	}
	if elapsed := time.Since(start.at); elapsed >= t.threshold {
		t.log.Ctx(ctx).Warn().
			Dur("elapsed", elapsed).
			Str("sql", start.sql).
			Str("tag", data.CommandTag.String()).
			Err(data.Err).
			Msg("consulta lenta")
	}
}
