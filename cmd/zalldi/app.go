package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/vs-yayo-m/zalldi/internal/config"
	"github.com/vs-yayo-m/zalldi/internal/httpapi"
	"github.com/vs-yayo-m/zalldi/internal/notify"
	"github.com/vs-yayo-m/zalldi/internal/saga"
	"github.com/vs-yayo-m/zalldi/internal/service"
	"github.com/vs-yayo-m/zalldi/internal/store"
)

// app wires the services together for one process.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	db         store.DocumentStore
	dispatcher *notify.Dispatcher

	orders    *service.OrderService
	products  *service.ProductService
	inventory *service.InventoryService
	promos    *service.PromoService
	wallet    *service.WalletService
	reports   *service.ReportService
	placement *saga.Orchestrator
}

func openStore(cfg config.StoreConfig, logger *zap.Logger) (store.DocumentStore, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(cfg.Path, logger)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func newApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	db, err := openStore(cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sinks := notify.Multi{notify.LogSink{Logger: logger.Named("notify")}}
	if cfg.Notifications.WebhookURL != "" {
		sinks = append(sinks, notify.WebhookSink{
			URL:    cfg.Notifications.WebhookURL,
			Client: &http.Client{Timeout: cfg.Notifications.Timeout},
		})
	}
	dispatcher := notify.NewDispatcher(sinks, notify.DispatcherConfig{
		QueueSize: cfg.Notifications.QueueSize,
		Workers:   cfg.Notifications.Workers,
		Timeout:   cfg.Notifications.Timeout,
	}, logger)

	loc := cfg.Location()
	products := store.NewProducts(db)
	orderStore := store.NewOrders(db)

	orders := service.NewOrderService(orderStore, dispatcher, service.OrderConfig{
		NumberPrefix:     cfg.Orders.NumberPrefix,
		DeliveryFee:      cfg.Orders.DeliveryFee,
		FreeDeliveryOver: cfg.Orders.FreeDeliveryOver,
		Location:         loc,
	}, logger.Named("orders"))
	inventory := service.NewInventoryService(products, store.NewReservations(db), logger.Named("inventory"))
	wallet := service.NewWalletService(store.NewWallets(db), store.NewPayments(db), logger.Named("wallet"))
	promos := service.NewPromoService(cfg.Promotions)

	orders.OnTransition(inventory.ReleaseOnCancel)
	orders.OnTransition(wallet.RefundOnCancel)

	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		dispatcher: dispatcher,
		orders:     orders,
		products:   service.NewProductService(products, dispatcher, logger.Named("products")),
		inventory:  inventory,
		promos:     promos,
		wallet:     wallet,
		reports:    service.NewReportService(orderStore, loc, cfg.Reports.TopN),
		placement:  saga.NewOrchestrator(orders, products, inventory, promos, wallet, cfg.Orders.MaxWard, logger.Named("placement")),
	}, nil
}

func (a *app) handler() http.Handler {
	return httpapi.New(httpapi.Deps{
		Orders:    a.orders,
		Products:  a.products,
		Reports:   a.reports,
		Placement: a.placement,
		Wallet:    a.wallet,
		Location:  a.cfg.Location(),
		Logger:    a.logger.Named("http"),
	}).Routes()
}

// close drains pending notifications, then closes the store.
func (a *app) close(ctx context.Context) error {
	return errors.Join(a.dispatcher.Close(ctx), a.db.Close())
}
