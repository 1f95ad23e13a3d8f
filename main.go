package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"legalquery/internal/api"
	"legalquery/internal/config"
	"legalquery/internal/identity"
	"legalquery/internal/redis"
	"legalquery/internal/security"
	"legalquery/internal/service/ai"
	"legalquery/internal/service/assistant"
	"legalquery/internal/service/chat"
	"legalquery/internal/service/knowledge"
	"legalquery/internal/storage"

	"google.golang.org/genai"
)

func main() {
	// .env is optional; real env vars win
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	cfgPath := os.Getenv("LEGALQUERY_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	dbType := os.Getenv("LEGALQUERY_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	logger.Info("opening database", zap.String("driver", dbType))
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	// redis is optional; without it caching degrades to direct reads
	rdb, err := redis.NewClient(cfg)
	if err != nil {
		logger.Warn("redis unavailable, caching disabled", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	genaiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		logger.Fatal("init gemini client", zap.Error(err))
	}
	generator := ai.NewService(genaiClient, logger)

	rules := security.DefaultRuleSet()
	if cfg.Security.RulesPath != "" {
		if rules, err = security.LoadRuleSet(cfg.Security.RulesPath); err != nil {
			logger.Fatal("load security rules", zap.Error(err))
		}
	}

	store := assistant.NewService(db, rdb, logger)
	chatSvc := chat.NewService(store, generator, security.NewFilter(rules), security.NewChecker(rules), logger)
	knowledgeSvc := knowledge.NewService(knowledge.NewGeminiProvider(genaiClient), rdb, cfg.BasicConfig.StagingDir, logger)
	resolver := identity.NewResolver(store, logger)
	defaults := api.SessionDefaults{
		ModelName:       cfg.Gemini.Model,
		SystemPrompt:    cfg.Gemini.SystemPrompt,
		SecurityEnabled: !cfg.Security.DisableFilter,
	}
	handlers := api.NewHandler(store, chatSvc, knowledgeSvc, resolver, defaults, logger)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	logger.Info("server starting", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
