// migrate aplica el esquema del motor de inventario.
//
// Uso: go run ./cmd/migrate [up|down|status]
// La conexión se toma de DATABASE_URL o de DB_HOST, DB_PORT, DB_USER, etc.
package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/pflag"

	"github.com/jhoicas/inventario-core/migrations"
	"github.com/jhoicas/inventario-core/pkg/config"
	"github.com/jhoicas/inventario-core/pkg/logger"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "uso: migrate [up|down|status]")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	cmd := "up"
	if pflag.NArg() > 0 {
		cmd = pflag.Arg(0)
	}

	db, err := goose.OpenDBWithDriver("pgx", cfg.DB.ConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer db.Close()

	ctx := context.Background()
	switch cmd {
	case "up":
		err = migrations.Up(ctx, db)
	case "down":
		err = migrations.Down(ctx, db)
	case "status":
		err = migrations.Status(ctx, db)
	default:
		fmt.Fprintf(os.Stderr, "comando desconocido %q\n", cmd)
		pflag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("cmd", cmd).Msg("migración fallida")
	}
	log.Info().Str("cmd", cmd).Msg("migraciones aplicadas")
}
