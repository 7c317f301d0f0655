package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chihoangvnn/sunfoods-sub018/internal/auth"
	"github.com/chihoangvnn/sunfoods-sub018/internal/automation"
	"github.com/chihoangvnn/sunfoods-sub018/internal/config"
	"github.com/chihoangvnn/sunfoods-sub018/internal/db"
	httpx "github.com/chihoangvnn/sunfoods-sub018/internal/http"
	"github.com/chihoangvnn/sunfoods-sub018/internal/http/handler"
	"github.com/chihoangvnn/sunfoods-sub018/internal/logger"
	"github.com/chihoangvnn/sunfoods-sub018/internal/membership"
	"github.com/chihoangvnn/sunfoods-sub018/internal/ordergen"
)

func main() {
	log := logger.New(os.Getenv("LOG_LEVEL"))
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("config load failed", "error", err)
	}

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("database connect failed", "error", err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Fatalw("migration failed", "error", err)
	}

	ctx := context.Background()
	if err := membership.SeedDefaultTiers(ctx, gdb); err != nil {
		log.Fatalw("tier seed failed", "error", err)
	}
	catalog, err := membership.LoadTiers(ctx, gdb)
	if err != nil {
		log.Fatalw("tier catalog load failed", "error", err)
	}

	ledgerStore := membership.NewGormStore(gdb, catalog)
	ledger := membership.NewLedger(ledgerStore, catalog)

	jobStore := &automation.Store{DB: gdb}
	history := &automation.ExecutionLog{DB: gdb}
	control := &automation.ControlStore{DB: gdb}
	if err := control.Ensure(ctx); err != nil {
		log.Fatalw("control row seed failed", "error", err)
	}

	coordinator := automation.NewCoordinator(
		jobStore, history, control,
		ordergen.New(gdb), ledger,
		automation.Config{
			PollInterval:          cfg.Engine.PollInterval,
			StartupPollDelay:      cfg.Engine.StartupPollDelay,
			InterJobDelay:         cfg.Engine.InterJobDelay,
			StaleExecutionTimeout: cfg.Engine.StaleExecutionTimeout,
			Timezone:              cfg.Engine.Timezone,
		},
		log,
	)
	coordinator.Start()

	jwtSvc := auth.NewJWT(cfg.JWTSecret)
	authH := &handler.AuthHandler{DB: gdb, JWT: jwtSvc}
	r := httpx.NewRouter(cfg, jwtSvc, authH, httpx.Deps{
		Ledger:      ledger,
		Catalog:     catalog,
		Members:     ledgerStore,
		Jobs:        jobStore,
		History:     history,
		Control:     control,
		EngineStats: coordinator.Stats,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infow("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("http server failed", "error", err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	coordinator.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
