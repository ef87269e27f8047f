package main

import (
	"context"
	"fmt"

	"github.com/DavidPARK0417/marketlink-sub003/internal/adapter/cache"
	"github.com/DavidPARK0417/marketlink-sub003/internal/adapter/config"
	"github.com/DavidPARK0417/marketlink-sub003/internal/adapter/handler/http"
	"github.com/DavidPARK0417/marketlink-sub003/internal/adapter/logger"
	"github.com/DavidPARK0417/marketlink-sub003/internal/adapter/reconciler"
	"github.com/DavidPARK0417/marketlink-sub003/internal/adapter/storage"
	"github.com/DavidPARK0417/marketlink-sub003/internal/adapter/storage/repository"
	"github.com/DavidPARK0417/marketlink-sub003/internal/core/domain"
	"github.com/DavidPARK0417/marketlink-sub003/internal/core/port"
	"github.com/DavidPARK0417/marketlink-sub003/internal/core/service"
	"github.com/govalues/decimal"
	"go.uber.org/zap"
)

func main() {
	conf, err := config.NewConfig()
	if err != nil {
		fmt.Printf("config error:%s", err)
		return
	}

	log := logger.NewLogger(conf.App)
	if log == nil {
		fmt.Printf("error creating log")
		return
	}
	defer func() {
		err := log.Sync()
		if err != nil {
			fmt.Printf("log error: %s", err)
		}
	}()

	ctx := context.Background()

	db, err := storage.NewDBStorage(ctx, conf.Database)
	if err != nil {
		log.Error("database error", zap.Error(err))
		return
	}
	err = db.RunMigrations()
	if err != nil {
		log.Error("database migration error", zap.Error(err))
		return
	}

	repo, err := repository.NewRepository(db)
	if err != nil {
		log.Error("repository creating error", zap.Error(err))
		return
	}

	// Replay cache is optional: without Redis every delivery goes
	// through the repository guard, which stays correct on its own.
	var replayCache port.ReplayCache
	if conf.Redis.Addr != "" {
		rc, err := cache.NewReplayCache(conf.Redis)
		if err != nil {
			log.Error("replay cache creating error", zap.Error(err))
			return
		}
		replayCache = rc
	}

	commissionRate, err := decimal.Parse(conf.Settlement.CommissionRate)
	if err != nil {
		log.Error("commission rate parsing error", zap.Error(err))
		return
	}
	policy := domain.SettlementPolicy{
		CommissionRate:  commissionRate,
		PayoutDelayDays: conf.Settlement.PayoutDelayDays,
	}

	svc, err := service.NewService(repo, replayCache, policy, log.Named("Service"))
	if err != nil {
		log.Error("service creating error", zap.Error(err))
		return
	}

	sweep, err := reconciler.NewReconciler(conf.Settlement, log.Named("Reconciler"))
	if err != nil {
		log.Error("reconciler creating error", zap.Error(err))
		return
	}
	sweep.Schedule(ctx, svc)

	webhookHandler, err := http.NewWebhookHandler(svc, conf.Gateway, log.Named("Webhook handler"))
	if err != nil {
		log.Error("webhook handler creating error", zap.Error(err))
		return
	}

	r, err := http.NewRouter(conf.HTTP, webhookHandler)
	if err != nil {
		log.Error("router creating error", zap.Error(err))
		return
	}

	err = r.Serve(conf.HTTP.HostString)
	if err != nil {
		log.Error("router serve error", zap.Error(err))
		return
	}
}
