// Package app wires the store, tools, event queue and agent loop shared by
// the intellido binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashish13377/Intellido/internal/agent"
	"github.com/ashish13377/Intellido/internal/config"
	"github.com/ashish13377/Intellido/internal/database"
	"github.com/ashish13377/Intellido/internal/queue"
	"github.com/ashish13377/Intellido/internal/services/ai"
	"github.com/ashish13377/Intellido/internal/tools"
	"go.uber.org/zap"
)

const maxQueueDelay = 30 * time.Second

// Options selects what New connects to
type Options struct {
	// WithAgent builds the completion provider and agent loop
	WithAgent bool
	// QueueAttempts is how many times to dial RabbitMQ before giving up.
	// Zero means one attempt.
	QueueAttempts int
	// QueueDelay is the first retry delay; it doubles up to 30s
	QueueDelay time.Duration
}

// App holds the wired components
type App struct {
	Config       *config.Config
	DB           *database.DB
	Tools        *tools.Registry
	Events       *queue.RabbitMQQueue
	Completer    ai.Completer
	Loop         *agent.Loop
	SystemPrompt string

	logger *zap.Logger
}

// New connects the store and, when configured, the event queue, then builds
// the tool registry. Store failures wrap database.ErrStoreUnavailable.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.WithAgent {
		if err := cfg.RequireAI(); err != nil {
			return nil, err
		}
	}

	db, err := database.Connect(cfg.StoreDriver, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}
	logger.Info("connected_to_store", zap.String("driver", db.Driver()))

	a := &App{Config: cfg, DB: db, logger: logger}

	if cfg.RabbitMQURL != "" {
		events, err := connectQueue(ctx, cfg.RabbitMQURL, logger, opts)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Events = events
	}

	tasks := database.NewTaskRepository(db)
	tasks.SetLogger(logger)
	subTasks := database.NewSubTaskRepository(db)
	subTasks.SetLogger(logger)

	registryCfg := tools.Config{
		Tasks:    tasks,
		SubTasks: subTasks,
		Projects: database.NewProjectRepository(db),
		Timeout:  cfg.ToolTimeout,
		Logger:   logger,
	}
	if a.Events != nil {
		registryCfg.Events = a.Events
	}
	a.Tools = tools.NewRegistry(registryCfg)

	if !opts.WithAgent {
		return a, nil
	}

	completer, err := ai.DefaultRegistry().GetProvider(cfg.AIProvider, ai.ProviderConfig{
		APIKey:    cfg.OpenAIKey,
		BaseURL:   cfg.AIBaseURL,
		Model:     cfg.AIModel,
		Timeout:   cfg.AITimeout,
		Logger:    logger,
		DebugMode: cfg.DebugMode,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create AI provider: %w", err)
	}
	a.Completer = completer

	prompt, err := agent.RenderSystemPrompt(a.Tools.Describe())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to render system prompt: %w", err)
	}
	a.SystemPrompt = prompt

	a.Loop = agent.NewLoop(agent.Config{
		Completer: completer,
		Tools:     a.Tools,
		MaxSteps:  cfg.AgentMaxSteps,
		AITimeout: cfg.AITimeout,
		Logger:    logger,
	})
	logger.Info("agent_ready",
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Int("max_steps", cfg.AgentMaxSteps),
	)
	return a, nil
}

// connectQueue dials RabbitMQ with exponential backoff
func connectQueue(ctx context.Context, url string, logger *zap.Logger, opts Options) (*queue.RabbitMQQueue, error) {
	attempts := opts.QueueAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := opts.QueueDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, logger)
		if err == nil {
			logger.Info("connected_to_rabbitmq")
			return q, nil
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}

		logger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", attempts),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxQueueDelay)
	}
	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", attempts, lastErr)
}

// Close releases the queue and store connections
func (a *App) Close() {
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.logger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.logger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}
}

// IsStoreUnavailable reports whether err came from an unreachable store
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, database.ErrStoreUnavailable)
}
