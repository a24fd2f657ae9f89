package main

import (
	"context"
	"flag"
	"log"

	"ai-agent-billing/internal/config"
	"ai-agent-billing/internal/domain/model"
	"ai-agent-billing/internal/infra/db/postgres"
	"ai-agent-billing/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
)

// This script resets the database and cache to a clean, predictable state
// for manual end-to-end testing of the webhook pipeline.
func main() {
	ctx := context.Background()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	// --- Connect to Postgres ---
	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 5)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	// --- Connect to Redis ---
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer redisClient.Close()

	log.Println("--- Starting E2E Environment Setup ---")

	// 1. Clean the Redis cache to remove any stale settings.
	log.Println("[1/4] Wiping Redis cache...")
	if err := redisClient.FlushDB(ctx); err != nil {
		log.Fatalf("failed to flush redis: %v", err)
	}

	// 2. Clean the database completely.
	log.Println("[2/4] Wiping all existing database data...")
	_, err = pool.Exec(ctx, `
		TRUNCATE
			users, payment_transactions, refunds, user_subscriptions,
			plans, credit_packages, ai_models, agents, webhook_queue
		RESTART IDENTITY CASCADE;
	`)
	if err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	// 3. Seed the catalog: plans, credit packages, AI models.
	log.Println("[3/4] Seeding plans, credit packages and model catalog...")
	seedCatalog(ctx, pool)

	// 4. Seed a test user with an agent on a premium model, so a cancellation
	// webhook exercises the downgrade path end to end.
	log.Println("[4/4] Seeding test user and agent...")
	seedTestUser(ctx, pool)

	log.Println("--- E2E Environment Setup Complete ---")
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) {
	planRepo := postgres.NewPlanRepo(pool)
	pkgRepo := postgres.NewCreditPackageRepo(pool)
	catalogRepo := postgres.NewModelCatalogRepo(pool)

	starter, _ := model.NewPlan("plan-starter", "Starter", "starter", 999, 9990, "USD")
	if err := planRepo.Save(ctx, nil, starter); err != nil {
		log.Printf("failed to save starter plan: %v", err)
	}
	pro, _ := model.NewPlan("plan-pro", "Pro", "pro", 2999, 29990, "USD")
	if err := planRepo.Save(ctx, nil, pro); err != nil {
		log.Printf("failed to save pro plan: %v", err)
	}

	small, _ := model.NewCreditPackage("pkg-small", "Small Pack", 500, 499, "USD")
	if err := pkgRepo.Save(ctx, nil, small); err != nil {
		log.Printf("failed to save small credit package: %v", err)
	}
	large, _ := model.NewCreditPackage("pkg-large", "Large Pack", 5000, 3999, "USD")
	if err := pkgRepo.Save(ctx, nil, large); err != nil {
		log.Printf("failed to save large credit package: %v", err)
	}

	models := []*model.AIModel{
		{ID: "model-lite", Name: "Agent Lite", Tier: model.ModelTierFree, IsActive: true},
		{ID: "model-max", Name: "Agent Max", Tier: model.ModelTierPremium, IsActive: true},
		{ID: "model-ultra", Name: "Agent Ultra", Tier: model.ModelTierPremium, IsActive: true},
	}
	for _, m := range models {
		if err := catalogRepo.Save(ctx, nil, m); err != nil {
			log.Printf("failed to save model %s: %v", m.ID, err)
		}
	}
}

func seedTestUser(ctx context.Context, pool *pgxpool.Pool) {
	userRepo := postgres.NewUserRepo(pool)
	agentRepo := postgres.NewAgentRepo(pool)

	u, _ := model.NewUser("e2e-user-1", "e2e@example.com")
	if err := userRepo.Save(ctx, nil, u); err != nil {
		log.Printf("failed to save test user: %v", err)
	}

	a := &model.Agent{
		ID:      "e2e-agent-1",
		UserID:  u.ID,
		Name:    "Research Assistant",
		ModelID: "model-max",
	}
	if err := agentRepo.Save(ctx, nil, a); err != nil {
		log.Printf("failed to save test agent: %v", err)
	}
}
