package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/consejo/internal/admin"
	"github.com/dmitrijs2005/consejo/internal/logging"
	"github.com/dmitrijs2005/consejo/internal/server/auth"
	"github.com/dmitrijs2005/consejo/internal/server/config"
	"github.com/dmitrijs2005/consejo/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/consejo/internal/server/services"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	// logs go to stderr so they do not interleave with the prompts
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		log.Printf("db init error: %v", err)
		return
	}

	us := services.NewUserService(db, m, auth.NewBcryptHasher(cfg.BcryptCost), logger, cfg)

	admin.NewApp(us, os.Stdin, os.Stdout).Run(ctx)

}
