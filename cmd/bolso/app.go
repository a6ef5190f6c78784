package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/bolsoapp/bolso/internal/adapter/repository/sqlite"
	"github.com/bolsoapp/bolso/internal/backup"
	"github.com/bolsoapp/bolso/internal/cache"
	"github.com/bolsoapp/bolso/internal/events"
	"github.com/bolsoapp/bolso/internal/infrastructure/logger"
	"github.com/bolsoapp/bolso/internal/usecase"
)

const cacheSize = 256

// app bundles the wired local stack. Every command opens one and closes it
// when done.
type app struct {
	dataDir string
	store   *sqlite.Store
	logger  zerolog.Logger
	bus     *events.Bus

	accounts     *usecase.AccountUseCase
	categories   *usecase.CategoryUseCase
	transactions *usecase.TransactionUseCase
	budgets      *usecase.BudgetUseCase
	goals        *usecase.GoalUseCase
	summary      *usecase.SummaryUseCase
	ledger       *usecase.SyncUseCase
	backups      *backup.Manager
}

// openApp builds the full local stack on top of the sqlite store in the
// data directory.
func openApp() (*app, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Format: "console"})

	store := sqlite.NewStore(filepath.Join(dataDir, "ledger.db"))
	if _, err := store.DB(); err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}

	accountRepo := sqlite.NewAccountRepository(store)
	categoryRepo := sqlite.NewCategoryRepository(store)
	transactionRepo := sqlite.NewTransactionRepository(store)
	budgetRepo := sqlite.NewBudgetRepository(store)
	goalRepo := sqlite.NewGoalRepository(store)
	syncRepo := sqlite.NewSyncStateRepository(store)
	txManager := sqlite.NewTxManager(store)
	idGen := sqlite.NewULIDGenerator()

	ttlCache := cache.New(cacheSize)
	bus := events.NewBus(log)
	balances := usecase.NewBalanceEngine(accountRepo, transactionRepo)
	aggregator := usecase.NewBudgetAggregator(budgetRepo, transactionRepo, bus)

	return &app{
		dataDir:      dataDir,
		store:        store,
		logger:       log,
		bus:          bus,
		accounts:     usecase.NewAccountUseCase(txManager, accountRepo, transactionRepo, syncRepo, idGen, ttlCache),
		categories:   usecase.NewCategoryUseCase(txManager, categoryRepo, syncRepo, idGen, ttlCache),
		transactions: usecase.NewTransactionUseCase(txManager, accountRepo, categoryRepo, transactionRepo, syncRepo, balances, aggregator, idGen, ttlCache),
		budgets:      usecase.NewBudgetUseCase(txManager, budgetRepo, categoryRepo, syncRepo, aggregator, idGen, ttlCache),
		goals:        usecase.NewGoalUseCase(txManager, goalRepo, syncRepo, idGen, ttlCache, bus),
		summary:      usecase.NewSummaryUseCase(accountRepo, transactionRepo, budgetRepo, goalRepo, ttlCache),
		ledger:       usecase.NewSyncUseCase(txManager, accountRepo, categoryRepo, transactionRepo, budgetRepo, goalRepo, syncRepo, balances, aggregator, ttlCache),
		backups: backup.NewManager(backup.Config{
			StorePath: store.Path(),
			Dir:       filepath.Join(dataDir, "backups"),
			Logger:    log,
		}),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
