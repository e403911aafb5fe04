package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/autohive/workshop-service/internal/config"     // Internal config loader
	"github.com/autohive/workshop-service/internal/database"   // MySQL connection pool
	"github.com/autohive/workshop-service/internal/handler"    // HTTP handlers
	"github.com/autohive/workshop-service/internal/middleware" // cache and rate-limit middleware
	"github.com/autohive/workshop-service/internal/queue"      // notification consumer
	"github.com/autohive/workshop-service/internal/repository" // data access layer
	"github.com/autohive/workshop-service/internal/router"     // route registration
	"github.com/autohive/workshop-service/internal/workflow"   // job lifecycle engine
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Repositories share the single pool.
	jobs := repository.NewJobRepo(db)
	history := repository.NewHistoryRepo(db)
	audit := repository.NewAuditRepo(db)
	users := repository.NewUserRepo(db)
	workshops := repository.NewWorkshopRepo(db)
	tokens := repository.NewTokenRepo(db)

	// The workflow store commits status, history and audit as one unit;
	// the machine and approval manager sit on top of it.
	store := repository.NewWorkflowStore(db, jobs, history, audit)
	machine := workflow.NewMachine(store)
	approvals := workflow.NewApprovalManager(store)

	authH := handler.NewAuthHandler(cfg, db, users, workshops, tokens)
	jobH := handler.NewJobHandler(db, jobs, audit)
	wfH := handler.NewWorkflowHandler(machine, jobs, history)
	statsH := handler.NewStatsHandler(jobs, audit)
	apprH := handler.NewApprovalHandler(cfg, approvals)

	// Background consumer writes customer notifications to logs/.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)

	// Redis backs the read cache and the token bucket; both degrade to
	// pass-through when the client is unreachable.
	rdb := config.NewRedisClient()
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	rateMW := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	router.RegisterJobs(e, jobH, wfH, statsH, apprH, cfg.JWTSecret, rateMW, cacheMW)
	router.RegisterCustomer(e, apprH, rateMW)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
