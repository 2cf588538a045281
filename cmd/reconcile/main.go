// reconcile compara los totales de inventario con lotes, series y el libro de movimientos.
//
// Uso: go run ./cmd/reconcile [--product ID] [--fix] [--xlsx diferencias.xlsx]
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/jhoicas/inventario-core/internal/application/inventory"
	"github.com/jhoicas/inventario-core/internal/infrastructure/export"
	"github.com/jhoicas/inventario-core/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-core/pkg/config"
	"github.com/jhoicas/inventario-core/pkg/logger"
)

func main() {
	productID := pflag.String("product", "", "conciliar solo este producto")
	fix := pflag.Bool("fix", false, "corregir el total por producto")
	xlsxPath := pflag.String("xlsx", "", "escribir las diferencias en este archivo xlsx")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB, postgres.WithSlowQueryLog(log, cfg.DB.SlowQuery))
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	rec := inventory.NewReconciler(postgres.NewTxRunner(pool, cfg.Inventory.StatementTimeout), log)
	report, err := rec.Run(ctx, *productID, *fix)
	if err != nil {
		log.Fatal().Err(err).Msg("conciliación")
	}

	for _, d := range report.Discrepancies {
		fmt.Printf("%-12s %-20s %-12s esperado=%d actual=%d\n", d.Check, d.SKU, d.WarehouseID, d.Expected, d.Actual)
	}
	log.Info().
		Int("products", report.ProductsChecked).
		Int("discrepancies", len(report.Discrepancies)).
		Int("fixed", report.Fixed).
		Msg("conciliación terminada")

	if *xlsxPath != "" {
		f, err := os.Create(*xlsxPath)
		if err != nil {
			log.Fatal().Err(err).Msg("crear xlsx")
		}
		if err := export.WriteReconcileReport(f, report); err != nil {
			_ = f.Close()
			log.Fatal().Err(err).Msg("escribir xlsx")
		}
		if err := f.Close(); err != nil {
			log.Fatal().Err(err).Msg("cerrar xlsx")
		}
	}

	if len(report.Discrepancies) > report.Fixed {
		os.Exit(1)
	}
}
