package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/frahmantamala/medichat/internal"
	"github.com/frahmantamala/medichat/internal/audit"
	auditPostgres "github.com/frahmantamala/medichat/internal/audit/postgres"
	"github.com/frahmantamala/medichat/internal/auth"
	authPostgres "github.com/frahmantamala/medichat/internal/auth/postgres"
	"github.com/frahmantamala/medichat/internal/chat"
	"github.com/frahmantamala/medichat/internal/conversation"
	conversationPostgres "github.com/frahmantamala/medichat/internal/conversation/postgres"
	"github.com/frahmantamala/medichat/internal/core/events"
	"github.com/frahmantamala/medichat/internal/llm"
	"github.com/frahmantamala/medichat/internal/policy"
	"github.com/frahmantamala/medichat/internal/prompt"
	"github.com/frahmantamala/medichat/internal/rag"
	"github.com/frahmantamala/medichat/internal/transport/middleware"
	"github.com/frahmantamala/medichat/internal/transport/rest"
	"github.com/frahmantamala/medichat/internal/user"
	userPostgres "github.com/frahmantamala/medichat/internal/user/postgres"
	"github.com/frahmantamala/medichat/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Router   *chi.Mux
	EventBus *events.EventBus
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "env", deps.Config.Env)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		// pending conversation saves finish before the pool goes away
		if err := deps.EventBus.Wait(ctx); err != nil {
			deps.Logger.Error("Event handlers did not finish", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	gormDB, err := initGorm(db, config.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	userRepo := userPostgres.NewUserRepository(gormDB)
	policyClient := newPolicyClient(config.Policy, userRepo, lg)

	bus := events.NewEventBus(lg)

	conversationService := conversation.NewService(
		conversationPostgres.NewSessionRepository(gormDB), policyClient, lg,
	).WithWindow(config.Chat.SessionWindow)
	bus.Subscribe(events.EventTypeConversationSubmitted,
		conversationService.HandleConversationSubmitted(config.Chat.SaveTimeout))

	auditService := audit.NewService(auditPostgres.NewAuditRepository(db), lg)

	rules, err := prompt.DefaultRules()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt rules: %w", err)
	}
	classifier := prompt.NewClassifier(policyClient, rules, lg)

	generator := llm.NewOpenAIGenerator(llm.OpenAIConfig{
		BaseURL:     config.LLM.BaseURL,
		APIKey:      config.LLM.APIKey,
		Model:       config.LLM.Model,
		Temperature: config.LLM.Temperature,
		MaxTokens:   config.LLM.MaxTokens,
		Timeout:     config.LLM.Timeout,
	}, lg)

	chatService := chat.NewService(classifier, policyClient, generator, auditService, conversationService, bus, lg).
		WithModel(generator.Model()).
		WithStepBudget(config.Chat.StepBudget)

	routes := rest.Routes{
		Health:         rest.NewHealthHandler(map[string]rest.Pinger{"postgres": db.DB}),
		User:           user.NewHandler(user.NewService(userRepo, policyClient, lg)),
		Chat:           chat.NewHandler(chatService),
		Audit:          audit.NewHandler(auditService),
		Policy:         policyClient,
		Auditor:        auditService,
		RateLimiter:    middleware.NewRateLimiter(config.Chat.RateLimitPerMinute, config.Chat.RateLimitBurst, lg),
		OpenAPIPath:    config.Server.OpenAPIPath,
		AllowedOrigins: config.Server.Origins(),
	}

	if ragService := newRAGService(config.RAG, policyClient, lg); ragService != nil {
		ragService.WithAudit(auditService)
		chatService.WithTools(func(userID string) []llm.Tool {
			return []llm.Tool{ragService.Tool(userID)}
		})
		routes.Documents = rag.NewHandler(ragService)
	}

	tokens := auth.NewJWTTokenGenerator(
		config.Security.AccessTokenSecret,
		config.Security.RefreshTokenSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authPostgres.NewRepository(gormDB), tokens, config.Security.BCryptCost, lg)
	routes.Auth = auth.NewHandler(authService)

	validator, err := middleware.LoadOpenAPIValidator(context.Background(), config.Server.OpenAPIPath, lg)
	if err != nil {
		lg.Warn("OpenAPI request validation disabled", "path", config.Server.OpenAPIPath, "error", err)
	} else {
		routes.OpenAPI = validator
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, routes, lg)

	return &Dependencies{
		Config:   config,
		Logger:   lg,
		DB:       db,
		Router:   router,
		EventBus: bus,
	}, nil
}

func newPolicyClient(cfg internal.PolicyConfig, store policy.SubjectStore, lg *slog.Logger) *policy.CachedClient {
	var inner policy.Client
	switch cfg.Mode {
	case "remote":
		inner = newRemotePolicy(cfg, lg)
	default:
		inner = policy.NewLocalEngine(store, lg)
	}
	lg.Info("policy decision point configured", "mode", cfg.Mode, "cache_ttl", cfg.CacheTTL)
	return policy.NewCachedClient(inner, cfg.CacheTTL)
}

func newRemotePolicy(cfg internal.PolicyConfig, lg *slog.Logger) *policy.HTTPClient {
	return policy.NewHTTPClient(policy.HTTPConfig{
		PDPURL:      cfg.PDPURL,
		APIURL:      cfg.APIURL,
		APIKey:      cfg.APIKey,
		Project:     cfg.Project,
		Environment: cfg.Environment,
		Timeout:     cfg.Timeout,
	}, lg)
}

// newRAGService returns nil when no retrieval backend is configured.
func newRAGService(cfg internal.RAGConfig, policyClient policy.Client, lg *slog.Logger) *rag.Service {
	if cfg.APIKey == "" {
		lg.Warn("RAG_API_KEY not set, document search disabled")
		return nil
	}

	bucketID := 0
	if cfg.BucketID != "" {
		id, err := strconv.Atoi(cfg.BucketID)
		if err != nil {
			lg.Warn("ignoring non-numeric rag bucket id", "bucket_id", cfg.BucketID)
		} else {
			bucketID = id
		}
	}

	client := rag.NewClient(rag.ClientConfig{
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		BucketID: bucketID,
		Limit:    cfg.Limit,
		Timeout:  cfg.Timeout,
	}, lg)
	return rag.NewService(client, policyClient, lg)
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx pool with gorm so both see the same connections.
func initGorm(db *sqlx.DB, env string) (*gorm.DB, error) {
	level := gormLogger.Warn
	if env == "production" {
		level = gormLogger.Error
	}

	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(level),
	})
}
