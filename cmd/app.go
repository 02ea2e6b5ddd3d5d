// -- cmd/app.go --
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/agent"
	"github.com/xkilldash9x/wayfinder/internal/browser"
	"github.com/xkilldash9x/wayfinder/internal/llmclient"
	"github.com/xkilldash9x/wayfinder/internal/observability"
	"github.com/xkilldash9x/wayfinder/internal/orchestrator"
	"github.com/xkilldash9x/wayfinder/internal/planner"
	"github.com/xkilldash9x/wayfinder/internal/store"
	"github.com/xkilldash9x/wayfinder/internal/tools"
	"github.com/xkilldash9x/wayfinder/internal/validation"
)

// application holds the fully wired component graph for one CLI invocation.
type application struct {
	orch   *orchestrator.Orchestrator
	runs   schemas.RunStore
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// buildApplication assembles the whole stack from the loaded configuration:
// LLM router, browser session, tool registry, planners, controller,
// validator, goal planner, and (when a database URL is configured) the run
// store.
func buildApplication(ctx context.Context) (*application, error) {
	logger := observability.GetLogger()
	cfg := appConfig

	router, err := llmclient.NewRouterFromConfig(ctx, cfg.LLM(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build LLM router: %w", err)
	}

	session := browser.NewSessionManager(cfg.Browser(), logger)
	observer := browser.NewObserver(session, cfg.Browser(), logger)
	actions := browser.NewActions(session, cfg.Browser(), logger)

	registry := tools.NewRegistry(session, logger)
	tools.RegisterBrowserTools(registry, actions)

	agentCfg := cfg.Agent()
	rules := agent.NewRulePlanner(agentCfg, logger)
	oracle := agent.NewOraclePlanner(router, agentCfg, cfg.LLM().RequestTimeout, logger)
	hybrid := agent.NewHybridPlanner(rules, oracle, agentCfg, logger)
	fallback := agent.NewRulePlanner(agentCfg, logger)
	controller := agent.NewController(agentCfg, observer, registry, hybrid, fallback, logger)

	validator := validation.NewAgent(router, agentCfg, cfg.LLM().RequestTimeout, logger)
	goalPlanner := planner.NewGoalPlanner(router, agentCfg, cfg.LLM().RequestTimeout, logger)

	app := &application{logger: logger}

	if url := cfg.Database().URL; url != "" {
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			_ = router.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		runStore, err := store.New(ctx, pool, logger)
		if err != nil {
			pool.Close()
			_ = router.Close()
			return nil, err
		}
		if err := runStore.EnsureSchema(ctx); err != nil {
			pool.Close()
			_ = router.Close()
			return nil, err
		}
		app.pool = pool
		app.runs = runStore
	}

	app.orch = orchestrator.New(agentCfg, router, goalPlanner, controller, validator, app.runs, session, logger)
	return app, nil
}

// Close releases every resource the application owns.
func (a *application) Close(ctx context.Context) {
	if err := a.orch.Close(ctx); err != nil {
		a.logger.Warn("Shutdown finished with errors", zap.Error(err))
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
