package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivalora/gadget-rms/internal/config"
	"github.com/ivalora/gadget-rms/internal/database"
	"github.com/ivalora/gadget-rms/internal/handlers"
	"github.com/ivalora/gadget-rms/internal/inventory"
	"github.com/ivalora/gadget-rms/internal/locker"
	"github.com/ivalora/gadget-rms/internal/models"
	"github.com/ivalora/gadget-rms/internal/services/notification"
	"github.com/ivalora/gadget-rms/internal/services/odoo"
	opnamesvc "github.com/ivalora/gadget-rms/internal/services/opname"
	"github.com/ivalora/gadget-rms/internal/store"
	"github.com/ivalora/gadget-rms/internal/websocket"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		config.GetLogger().WithError(err).Fatal("failed to load configuration")
	}
	log := config.SetupLogger(cfg)

	// 2. Initialize database (embedded or external)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	// 3. Auto-migrate schema
	log.Info("synchronizing database schema")
	schema := append([]interface{}{
		&models.UserAuth{},
		&models.InventoryUnit{},
		&models.Notification{},
	}, store.Models()...)
	if err := db.AutoMigrate(schema...); err != nil {
		log.WithError(err).Warn("migration warning")
	} else {
		log.Info("schema synchronized")
	}

	// 4. Session locks: redis when configured, in-process otherwise
	var locks locker.Locker
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.WithError(err).Fatal("redis unreachable")
		}
		locks = locker.NewRedisLocker(rdb, cfg.Opname.LockTTL, cfg.Opname.LockWait)
		log.WithField("address", cfg.Redis.Address).Info("session locks: redis")
	} else {
		locks = locker.NewLocalLocker(cfg.Opname.LockWait)
		log.Info("session locks: in-process")
	}

	// 5. Inventory: Odoo when configured, local table otherwise
	var inv inventory.Collaborator = inventory.NewStore(db.DB)
	var mirror *odoo.MirrorService
	if cfg.Odoo.Enabled() {
		client := odoo.NewClient(cfg.Odoo.URL, cfg.Odoo.Database, cfg.Odoo.Username, cfg.Odoo.Password)
		if _, err := client.Authenticate(); err != nil {
			log.WithError(err).Warn("odoo authentication failed, will retry on first call")
		}
		inv = odoo.NewInventory(client, cfg.Odoo.UnregisteredProductID, log)
		mirror = odoo.NewMirrorService(db.DB, client, cfg.Odoo.SyncInterval, log)
		mirror.Start()
		log.WithField("url", cfg.Odoo.URL).Info("inventory: odoo")
	} else {
		log.Info("inventory: local")
	}

	// 6. Realtime hub and services
	hub := websocket.NewHub(log)
	go hub.Run()

	notes := notification.NewService(db.DB, hub, log)
	opname := opnamesvc.NewService(store.NewGormStore(db.DB), locks, inv, notes, log)

	router := handlers.NewRouter(db.DB, cfg, log)
	router.SetOpnameService(opname)
	router.SetNotificationService(notes)
	router.SetHub(hub)

	// 7. Start server with graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	sig := <-shutdown
	log.WithField("signal", sig.String()).Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("http server shutdown")
	}
	hub.Stop()
	if mirror != nil {
		mirror.Stop()
	}
	if rdb != nil {
		rdb.Close()
	}

	// Closing the database also stops embedded postgres
	if err := db.Close(); err != nil {
		log.WithError(err).Error("database close")
	}
	log.Info("shutdown complete")
}
