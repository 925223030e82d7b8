package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/fbr-shop/payment-service/docs"
	"github.com/fbr-shop/payment-service/internal/app"
	"github.com/fbr-shop/payment-service/internal/config"
	"github.com/fbr-shop/payment-service/internal/handler"
	"github.com/fbr-shop/payment-service/internal/notifier"
	"github.com/fbr-shop/payment-service/internal/postgres"
	"github.com/fbr-shop/payment-service/internal/provider"
	"github.com/fbr-shop/payment-service/internal/provider/revolut"
	"github.com/fbr-shop/payment-service/internal/provider/stripe"
	"github.com/fbr-shop/payment-service/internal/repo"
	"github.com/fbr-shop/payment-service/internal/service"
	"github.com/fbr-shop/payment-service/pkg/cache"
	"github.com/fbr-shop/payment-service/pkg/trm"

	"github.com/joho/godotenv"
)

// @title           Payment Service API
// @version         1.0
// @description     HTTP API for orders, card payments, bank transfers and provider webhooks
func main() {
	conf := config.New()
	logger := newLogger(conf.Env)
	panicIfErr("invalid config", conf.Validate())

	db, err := postgres.New(conf.Postgres)
	panicIfErr("failed to connect to db", err)
	defer db.Close()
	logger.Info("postgres connected")

	orderRepo := repo.NewPostgresRepo(db)
	txManager := trm.NewManager(db)
	orderCache := cache.NewLRUCache(conf.Cache.Capacity, conf.Cache.TTL)
	kafkaNotifier := notifier.NewKafkaNotifier(logger, conf.Kafka)

	providers := []provider.CheckoutProvider{
		revolut.New(logger, revolut.Config{
			BaseURL:       conf.Revolut.BaseURL,
			APIKey:        conf.Revolut.APIKey,
			WebhookSecret: conf.Revolut.WebhookSecret,
			SuccessURL:    conf.Revolut.SuccessURL,
			CancelURL:     conf.Revolut.CancelURL,
			Timeout:       conf.Revolut.Timeout,
		}),
		stripe.New(logger, stripe.Config{
			BaseURL:       conf.Stripe.BaseURL,
			SecretKey:     conf.Stripe.SecretKey,
			WebhookSecret: conf.Stripe.WebhookSecret,
			Timeout:       conf.Stripe.Timeout,
		}),
	}

	account := service.BankAccount{
		IBAN:        conf.BankTransfer.IBAN,
		BIC:         conf.BankTransfer.BIC,
		Beneficiary: conf.BankTransfer.Beneficiary,
	}

	orderService := service.NewOrderService(logger, txManager, orderRepo, kafkaNotifier, orderCache)
	paymentService := service.NewPaymentService(logger, orderRepo, account, providers...)
	reconcileService := service.NewReconcileService(logger, txManager, orderRepo, kafkaNotifier, orderCache)

	httpHandler := handler.NewHTTPHandler(logger, orderService, paymentService)
	webhookHandler := handler.NewWebhookHandler(logger, reconcileService, providers...)

	app := app.New(logger, conf)

	app.SetHTTPHandlers(httpHandler, webhookHandler)
	app.SetStarters(
		janitorStarter{cache: orderCache},
		cacheWarmUpAdapter{svc: orderService, count: conf.Cache.Capacity},
	)
	app.SetClosers(kafkaNotifier)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	panicIfErr("failed to start app", app.Start(ctx))
	<-ctx.Done()
	panicIfErr("failed to stop app", app.Stop())
}

func init() {
	godotenv.Load()
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "production":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}

type janitorStarter struct {
	cache *cache.LRUCache
}

func (s janitorStarter) Start(ctx context.Context) error {
	s.cache.StartJanitor(ctx)
	return nil
}

type warmUpper interface {
	WarmUpCache(ctx context.Context, count int) error
}

type cacheWarmUpAdapter struct {
	svc   warmUpper
	count int
}

func (a cacheWarmUpAdapter) Start(ctx context.Context) error {
	return a.svc.WarmUpCache(ctx, a.count)
}
