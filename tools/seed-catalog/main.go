package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"organic-hub/common/logger"
	"organic-hub/database"
	"organic-hub/models"
	"organic-hub/repository"
	"organic-hub/services"
)

//go:embed catalog.json
var defaultCatalog []byte

func main() {
	_ = godotenv.Load()

	var catalogPath, adminEmail, adminPassword string
	var dryRun bool
	flag.StringVar(&catalogPath, "catalog", "", "JSON catalog file (defaults to the built-in catalog)")
	flag.StringVar(&adminEmail, "admin-email", os.Getenv("ADMIN_EMAIL"), "admin account email")
	flag.StringVar(&adminPassword, "admin-password", os.Getenv("ADMIN_PASSWORD"), "admin account password")
	flag.BoolVar(&dryRun, "dry-run", false, "validate the catalog without writing")
	flag.Parse()

	log, err := logger.Initialize("development")
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	raw := defaultCatalog
	if catalogPath != "" {
		if raw, err = os.ReadFile(catalogPath); err != nil {
			log.Fatal("read catalog", zap.String("path", catalogPath), zap.Error(err))
		}
	}
	items, err := loadCatalog(raw)
	if err != nil {
		log.Fatal("invalid catalog", zap.Error(err))
	}
	if dryRun {
		fmt.Printf("Catalog OK. products=%d\n", len(items))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.ConnectPostgres(ctx, postgresFromEnv(), log, 3)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer database.Close(db)
	if err := models.Migrate(db.WithContext(ctx)); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	products := services.NewProductService(repository.NewGormProductRepository(db), services.NopCache{}, nil, log)
	created, skipped, err := seedProducts(ctx, products, items, log)
	if err != nil {
		log.Fatal("seed products", zap.Error(err))
	}

	users := services.NewAuthService(repository.NewGormUserRepository(db), nil, nil, log)
	if err := users.EnsureAdmin(ctx, adminEmail, adminPassword); err != nil {
		log.Fatal("ensure admin", zap.Error(err))
	}

	fmt.Printf("Seed complete. created=%d skipped=%d\n", created, skipped)
}

// loadCatalog decodes and sanity checks catalog entries. Names must be unique.
func loadCatalog(raw []byte) ([]services.ProductInput, error) {
	var items []services.ProductInput
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		key := strings.ToLower(strings.TrimSpace(it.Name))
		if key == "" {
			return nil, fmt.Errorf("entry %d has no name", i)
		}
		if seen[key] {
			return nil, fmt.Errorf("duplicate product %q", it.Name)
		}
		seen[key] = true
		if it.Season != "" && !models.ValidSeason(it.Season) {
			return nil, fmt.Errorf("product %q: unknown season %q", it.Name, it.Season)
		}
	}
	return items, nil
}

// seedProducts creates every entry whose name is not in the catalog yet.
func seedProducts(ctx context.Context, products services.ProductService, items []services.ProductInput, log *zap.Logger) (created, skipped int, err error) {
	for _, in := range items {
		exists, err := productExists(ctx, products, in.Name)
		if err != nil {
			return created, skipped, err
		}
		if exists {
			skipped++
			continue
		}
		p, err := products.Create(ctx, in)
		if err != nil {
			return created, skipped, fmt.Errorf("create %q: %w", in.Name, err)
		}
		created++
		log.Debug("seeded product", zap.String("product_id", p.ID.String()), zap.String("name", p.Name))
	}
	return created, skipped, nil
}

func productExists(ctx context.Context, products services.ProductService, name string) (bool, error) {
	page, err := products.List(ctx, models.ProductFilter{Search: name, Page: 1, Limit: 50})
	if err != nil {
		return false, err
	}
	for _, p := range page.Products {
		if strings.EqualFold(p.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func postgresFromEnv() database.PostgresConfig {
	return database.PostgresConfig{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnv("POSTGRES_PORT", "5432"),
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		DBName:   os.Getenv("POSTGRES_DB"),
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
