package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog/internal/cache"
	"catalog/internal/config"
	"catalog/internal/currency"
	"catalog/internal/database"
	"catalog/internal/metrics"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/server"
	"catalog/internal/services"
	"catalog/internal/views"
	"catalog/pkg/rabbitmq"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const listingTTL = 5 * time.Minute

func main() {
	// --- Configuration ---
	cfg, err := config.Load(viper.New())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("Failed to open log file %s: %v", cfg.LogFile, err)
		}
		defer f.Close()
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Repository ---
	productRepo, closeRepo, err := openRepository(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize product repository: %v", err)
	}
	defer closeRepo()

	if cfg.Seed {
		seedProducts(ctx, productRepo)
	}

	// --- Listing cache ---
	listCache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize listing cache: %v", err)
	}
	defer closeCache()

	// --- Cross-instance invalidation ---
	var publisher cache.Publisher
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
		publisher = mqClient
	}
	broadcaster := cache.NewBroadcaster(listCache, publisher)

	if mqClient != nil {
		if err := mqClient.ConsumeInvalidations(ctx, broadcaster.ApplyRemote); err != nil {
			log.Fatalf("Failed to start RabbitMQ consumer: %v", err)
		}
	}

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- Services and HTTP ---
	money, err := currency.NewFormatter(cfg.CurrencyLocale, cfg.CurrencyCode)
	if err != nil {
		log.Fatalf("Failed to initialize currency formatter: %v", err)
	}
	productService := services.NewProductService(productRepo, listCache, broadcaster, m)

	app := server.NewApp(server.Deps{
		Service: productService,
		Presenter: views.Presenter{
			Money:      money,
			DateLayout: cfg.DateLayout,
			Locale:     cfg.CurrencyLocale,
		},
		Metrics:   m,
		AccessLog: true,
	})

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.AppPort)
	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}

// openRepository returns the product repository selected by DATABASE_DRIVER
// and a function releasing it.
func openRepository(cfg config.Config) (repositories.ProductRepository, func(), error) {
	if cfg.DatabaseDriver == "memory" {
		log.Println("Using in-memory product repository; data is lost on restart")
		return repositories.NewMemoryProductRepository(), func() {}, nil
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, cfg.IsDevelopment())
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := database.Close(db); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
	return repositories.NewGORMProductRepository(db), closeDB, nil
}

// openCache returns the listing cache selected by CACHE_DRIVER and a function
// releasing it.
func openCache(ctx context.Context, cfg config.Config) (cache.ListCache, func(), error) {
	switch cfg.CacheDriver {
	case "redis":
		r, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, listingTTL)
		if err != nil {
			return nil, nil, err
		}
		return r, func() {
			if err := r.Close(); err != nil {
				log.Printf("Error closing redis client: %v", err)
			}
		}, nil
	case "none":
		return cache.Nop{}, func() {}, nil
	default:
		return cache.NewMemory(listingTTL), func() {}, nil
	}
}

// seedProducts inserts a few sample products when the catalog is empty.
func seedProducts(ctx context.Context, repo repositories.ProductRepository) {
	existing, err := repo.GetAll(ctx)
	if err != nil {
		log.Printf("Error checking products before seeding: %v", err)
		return
	}
	if len(existing) > 0 {
		log.Printf("Skipping seed: %d products already present", len(existing))
		return
	}

	desc := func(s string) *string { return &s }
	products := []models.Product{
		{Name: "Laptop", Description: desc("High performance laptop"), Price: decimal.RequireFromString("1200.00")},
		{Name: "Keyboard", Description: desc("Mechanical keyboard"), Price: decimal.RequireFromString("75.00")},
		{Name: "Mouse", Description: desc("Ergonomic wireless mouse"), Price: decimal.RequireFromString("25.00")},
	}

	for i := range products {
		if err := repo.Create(ctx, &products[i]); err != nil {
			log.Printf("Error seeding product %s: %v", products[i].Name, err)
		} else {
			log.Printf("Seeded product: %s (ID: %s)", products[i].Name, products[i].ID)
		}
	}
}
