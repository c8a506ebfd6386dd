package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/config"
	coordmemory "github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/coordination/memory"
	coordredis "github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/coordination/redis"
	kafkaevents "github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/events/kafka"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/executor"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/idempotency"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/interfaces"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/ledger"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/lock"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/models"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/orchestrator"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/recovery"
	storagememory "github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/storage/memory"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/storage/postgres"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load(logger)

	var coord interfaces.CoordinationStore
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		coord = coordredis.NewStore(client)
		logger.Info("using redis coordination store", zap.String("addr", cfg.RedisAddr))
	} else {
		coord = coordmemory.NewStore()
		logger.Warn("REDIS_ADDR not set, using in-memory coordination store")
	}

	var (
		accounts interfaces.AccountStore
		txLog    interfaces.TransactionLog
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer db.Close()
		pg := postgres.NewStore(db)
		accounts, txLog = pg, pg
		logger.Info("using postgres durable store")
	} else {
		mem := storagememory.NewStore()
		accounts, txLog = mem, mem
		logger.Warn("DATABASE_URL not set, using in-memory durable store")
	}

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafkaevents.NewPublisher(cfg.KafkaBrokers)
		defer kp.Close()
		publisher = kp
		logger.Info("publishing completion events to kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	accountLedger := ledger.New(accounts, coord, logger)
	balanceExecutor := executor.New(accountLedger, logger)
	tracker := idempotency.NewTracker(coord)
	locks := lock.New(coord)

	orch := orchestrator.New(orchestrator.Params{
		Locks:          locks,
		Tracker:        tracker,
		Ledger:         accountLedger,
		Executor:       balanceExecutor,
		TransactionLog: txLog,
		Publisher:      publisher,
		Logger:         logger,
	})

	sweeper := recovery.New(tracker, logger)
	sweeper.Start()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("POST /api/transactions", func(w http.ResponseWriter, r *http.Request) {
		var tx models.Transaction
		if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		writeResult(w, orch.ProcessTransaction(r.Context(), tx))
	})

	mux.HandleFunc("POST /api/transactions/batch", func(w http.ResponseWriter, r *http.Request) {
		var transactions []models.Transaction
		if err := json.NewDecoder(r.Body).Decode(&transactions); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		batch, err := orch.ProcessBatch(r.Context(), transactions)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, batch)
	})

	mux.HandleFunc("GET /api/transactions/result/{transactionId}", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, orch.GetTransactionResult(r.Context(), r.PathValue("transactionId")))
	})

	mux.HandleFunc("GET /api/transactions/processed/{transactionId}", func(w http.ResponseWriter, r *http.Request) {
		processed := orch.IsTransactionProcessed(r.Context(), r.PathValue("transactionId"))
		writeJSON(w, http.StatusOK, map[string]bool{"processed": processed})
	})

	mux.HandleFunc("GET /api/transactions", func(w http.ResponseWriter, r *http.Request) {
		transactions, err := txLog.FindAll(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, transactions)
	})

	mux.HandleFunc("GET /api/accounts/balance", func(w http.ResponseWriter, r *http.Request) {
		accountNumber := r.URL.Query().Get("account_number")
		if accountNumber == "" {
			http.Error(w, "account_number is a mandatory field", http.StatusBadRequest)
			return
		}
		account, err := accountLedger.FindByAccountNumber(r.Context(), accountNumber)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if account == nil {
			http.Error(w, "account not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			AccountNumber string          `json:"account_number"`
			Balance       decimal.Decimal `json:"balance"`
		}{account.AccountNumber, account.Balance})
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()
	logger.Info("server started", zap.String("port", cfg.Port))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	sweeper.Stop()
}

// writeResult maps a transaction result onto the HTTP response: success is
// 200, failures carry their own numeric error code.
func writeResult(w http.ResponseWriter, result models.TransactionResult) {
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
		if code, err := strconv.Atoi(result.ErrorCode); err == nil {
			status = code
		}
	}
	writeJSON(w, status, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
