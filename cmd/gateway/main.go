package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/jackc/pgx/v5/pgxpool"

	dbembed "github.com/helpgate/helpgate/db"
	"github.com/helpgate/helpgate/internal/accounts"
	"github.com/helpgate/helpgate/internal/answer"
	"github.com/helpgate/helpgate/internal/boot"
	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/channel/matrix"
	"github.com/helpgate/helpgate/internal/channel/tradeapp"
	"github.com/helpgate/helpgate/internal/channel/web"
	"github.com/helpgate/helpgate/internal/config"
	"github.com/helpgate/helpgate/internal/coordination"
	"github.com/helpgate/helpgate/internal/db"
	"github.com/helpgate/helpgate/internal/escalation"
	"github.com/helpgate/helpgate/internal/feedback"
	"github.com/helpgate/helpgate/internal/gateway"
	"github.com/helpgate/helpgate/internal/handlers"
	"github.com/helpgate/helpgate/internal/learning"
	"github.com/helpgate/helpgate/internal/logger"
	"github.com/helpgate/helpgate/internal/metrics"
	"github.com/helpgate/helpgate/internal/orchestrator"
	"github.com/helpgate/helpgate/internal/policy"
	"github.com/helpgate/helpgate/internal/poller"
	"github.com/helpgate/helpgate/internal/reaction"
	"github.com/helpgate/helpgate/internal/server"
	"github.com/helpgate/helpgate/internal/tracker"
	"github.com/helpgate/helpgate/internal/version"
)

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %v\n", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)
	return log
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	fx.New(
		fx.Provide(
			provideConfig,
			boot.ProvideRuntimeConfig,
			provideLogger,

			provideDBConn,
			metrics.New,

			// stores
			provideCoordinationStore,
			fx.Annotate(accounts.NewPostgresStore, fx.As(new(accounts.Store))),
			fx.Annotate(escalation.NewPostgresStore, fx.As(new(escalation.Store))),
			fx.Annotate(feedback.NewPostgresStore, fx.As(new(feedback.Store))),
			fx.Annotate(learning.NewPostgresReviewStore, fx.As(new(learning.ReviewStore))),
			fx.Annotate(learning.NewPostgresWeightStore, fx.As(new(learning.WeightStore))),
			fx.Annotate(policy.NewPostgresStore, fx.As(new(policy.Store))),

			// services
			accounts.NewService,
			policy.NewService,
			provideAnswerService,
			provideLearningEngine,
			learning.NewWeightManager,
			provideRouter,
			provideTracker,
			provideGateway,
			provideDeliverer,
			provideEscalationService,
			provideSweeper,
			provideFollowUpCoordinator,
			provideDispatcher,
			provideOrchestrator,
			reaction.NewProcessor,
			providePoller,

			// channels
			web.New,
			provideMatrixAdapter,
			provideTradeAppAdapter,
			provideChannelRegistry,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideAuthHandler),
			provideServerHandler(handlers.NewChatHandler),
			provideServerHandler(handlers.NewFeedbackHandler),
			provideServerHandler(handlers.NewEscalationsHandler),
			provideServerHandler(handlers.NewPoliciesHandler),
			provideServerHandler(handlers.NewChannelsHandler),
			provideServerHandler(handlers.NewAccountsHandler),
			provideServerHandler(handlers.NewMetricsHandler),

			provideServer,
		),
		fx.Invoke(
			registerGatewayHooks,
			wireWeightLearning,
			wireMatrixSinks,
			startChannels,
			startPoller,
			startSweeper,
			startTrackerSweep,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func runMigrate(args []string) error {
	cfg, err := provideConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	command := "up"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}
	migrations, err := fs.Sub(dbembed.MigrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	return db.RunMigrate(log, cfg.Postgres, migrations, command, args)
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx := context.Background() // TODO: use timeout context

	conn, err := db.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideCoordinationStore(pool *pgxpool.Pool) coordination.Store {
	return coordination.NewPostgresStore(pool, 5*time.Second)
}

func provideAnswerService(log *slog.Logger, cfg config.Config) answer.Service {
	return answer.NewClient(log, cfg.Answer.BaseURL, cfg.Answer.APIKey, cfg.Answer.Timeout())
}

func provideLearningEngine(log *slog.Logger, store learning.ReviewStore, cfg config.Config) *learning.Engine {
	engine := learning.NewEngine(log, store, 0)
	engine.SeedThresholds(learning.Thresholds{
		High: cfg.Gateway.AutoSendThreshold,
		Low:  cfg.Gateway.ReviewThreshold,
	})
	return engine
}

func provideRouter(engine *learning.Engine) *learning.Router {
	return learning.NewRouter(engine)
}

func provideTracker() *tracker.Tracker {
	return tracker.New(24 * time.Hour)
}

func provideGateway(log *slog.Logger, answers answer.Service, router *learning.Router, m *metrics.Metrics, cfg config.Config) *gateway.Gateway {
	return gateway.New(log, answers, router, m, cfg.Answer.Timeout())
}

func provideDeliverer(log *slog.Logger, registry *channel.Registry, store escalation.Store) *escalation.Deliverer {
	return escalation.NewDeliverer(log, registry, store, 10*time.Second)
}

func provideEscalationService(log *slog.Logger, store escalation.Store, deliverer *escalation.Deliverer, engine *learning.Engine, weights *learning.WeightManager, cfg config.Config) *escalation.Service {
	return escalation.NewService(log, store, deliverer, engine, weights, escalation.Config{
		ClaimTTL:       time.Duration(cfg.Escalation.ClaimTTLMinutes) * time.Minute,
		AutoCloseAfter: time.Duration(cfg.Escalation.AutoCloseHours) * time.Hour,
		Retention:      time.Duration(cfg.Escalation.RetentionDays) * 24 * time.Hour,
		MaxDeliveries:  cfg.Escalation.MaxDeliveries,
		SupportHandle:  cfg.Escalation.SupportHandle,
	})
}

func provideSweeper(log *slog.Logger, service *escalation.Service) (*escalation.Sweeper, error) {
	return escalation.NewSweeper(log, service, escalation.SweepSchedule{})
}

func provideFollowUpCoordinator(log *slog.Logger, coord coordination.Store, store feedback.Store, registry *channel.Registry) *feedback.Coordinator {
	return feedback.NewCoordinator(log, coord, store, registry, 10*time.Minute)
}

func provideDispatcher(log *slog.Logger, registry *channel.Registry, trk *tracker.Tracker) *orchestrator.Dispatcher {
	return orchestrator.NewDispatcher(log, registry, trk, 10*time.Second)
}

func provideOrchestrator(log *slog.Logger, gw *gateway.Gateway, dispatcher *orchestrator.Dispatcher, coord coordination.Store, followUp *feedback.Coordinator) *orchestrator.Orchestrator {
	return orchestrator.New(log, gw, dispatcher, coord, followUp, orchestrator.TTLConfig{})
}

func providePoller(log *slog.Logger, registry *channel.Registry, orch *orchestrator.Orchestrator, policies *policy.Service, cfg config.Config) *poller.Service {
	pollerCfg := poller.Config{
		Interval: time.Duration(cfg.Poller.IntervalSeconds) * time.Second,
		Backoff:  time.Duration(cfg.Poller.BackoffSeconds) * time.Second,
	}
	for name, seconds := range cfg.Poller.PerChannel {
		if pollerCfg.PerChannel == nil {
			pollerCfg.PerChannel = map[channel.ID]time.Duration{}
		}
		pollerCfg.PerChannel[channel.ID(name)] = time.Duration(seconds) * time.Second
	}
	return poller.New(log, registry, orch, policies, pollerCfg)
}

func provideMatrixAdapter(log *slog.Logger, cfg config.Config) *matrix.Adapter {
	if !cfg.Matrix.Enabled {
		return nil
	}
	return matrix.New(log, matrix.Config{
		HomeserverURL: cfg.Matrix.HomeserverURL,
		UserID:        cfg.Matrix.UserID,
		AccessToken:   cfg.Matrix.AccessToken,
		SupportHandle: cfg.Escalation.SupportHandle,
	})
}

func provideTradeAppAdapter(log *slog.Logger, cfg config.Config) *tradeapp.Adapter {
	if !cfg.TradeApp.Enabled {
		return nil
	}
	return tradeapp.New(log, tradeapp.Config{
		BaseURL:       cfg.TradeApp.BaseURL,
		APIKey:        cfg.TradeApp.APIKey,
		SupportHandle: cfg.Escalation.SupportHandle,
		Timeout:       time.Duration(cfg.TradeApp.TimeoutSeconds) * time.Second,
	})
}

func provideChannelRegistry(log *slog.Logger, webAdapter *web.Adapter, matrixAdapter *matrix.Adapter, tradeAppAdapter *tradeapp.Adapter) *channel.Registry {
	registry := channel.NewRegistry(log)
	registry.MustRegister(webAdapter)
	if matrixAdapter != nil {
		registry.MustRegister(matrixAdapter)
	}
	if tradeAppAdapter != nil {
		registry.MustRegister(tradeAppAdapter)
	}
	return registry
}

func provideAuthHandler(log *slog.Logger, accountService *accounts.Service, runtimeConfig *boot.RuntimeConfig) *handlers.AuthHandler {
	return handlers.NewAuthHandler(log, accountService, runtimeConfig.JwtSecret, runtimeConfig.JwtExpiresIn)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.RuntimeConfig.ServerAddr, params.RuntimeConfig.JwtSecret, params.ServerHandlers...)
}

func registerGatewayHooks(
	log *slog.Logger,
	gw *gateway.Gateway,
	policies *policy.Service,
	escalations *escalation.Service,
	registry *channel.Registry,
	m *metrics.Metrics,
	cfg config.Config,
) {
	limiter := gateway.NewRateLimiter(float64(cfg.RateLimit.PerMinute), cfg.RateLimit.Burst)
	gw.RegisterPreHook(gateway.NewRateLimitHook(limiter))
	gw.RegisterPreHook(gateway.NewGenerationPolicyHook(policies))
	gw.RegisterPostHook(gateway.NewPIIFilterHook())
	gw.RegisterPostHook(gateway.NewAutoResponsePolicyHook(policies))
	gw.RegisterPostHook(gateway.NewEscalationHook(log, escalations, registry, m, cfg.Escalation.SupportHandle))
	gw.RegisterPostHook(gateway.NewMetricsHook(m))
}

// wireWeightLearning feeds every recorded review into the source weight
// manager.
func wireWeightLearning(engine *learning.Engine, weights *learning.WeightManager) {
	engine.Subscribe(func(quadrant learning.Quadrant, sourceTypes []string) {
		weights.ApplyQuadrant(context.Background(), quadrant, sourceTypes)
	})
}

// wireMatrixSinks connects the sync loop to the inbound pipeline and the
// reaction processor. Must run before the registry starts the adapter.
func wireMatrixSinks(matrixAdapter *matrix.Adapter, orch *orchestrator.Orchestrator, processor *reaction.Processor) {
	if matrixAdapter == nil {
		return
	}
	matrixAdapter.SetInbound(orch.ProcessIncoming)
	matrixAdapter.SetReaction(matrix.ReactionFunc{
		React: func(ctx context.Context, messageID, reactorID, key string) {
			processor.Process(ctx, reaction.Event{
				Channel:           channel.Matrix,
				ExternalMessageID: messageID,
				ReactorID:         reactorID,
				RawReaction:       key,
				Timestamp:         time.Now().UTC(),
			})
		},
		Revoke: func(ctx context.Context, messageID, reactorID string) {
			processor.Revoke(ctx, channel.Matrix, messageID, reactorID)
		},
	})
}

func startChannels(lc fx.Lifecycle, registry *channel.Registry, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for _, err := range registry.StartAll(ctx, true) {
				logger.Warn("channel start failed", slog.Any("error", err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			for _, err := range registry.StopAll(ctx) {
				logger.Warn("channel stop failed", slog.Any("error", err))
			}
			return nil
		},
	})
}

func startPoller(lc fx.Lifecycle, service *poller.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			service.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			service.Stop()
			return nil
		},
	})
}

func startSweeper(lc fx.Lifecycle, sweeper *escalation.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sweeper.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
}

func startTrackerSweep(lc fx.Lifecycle, trk *tracker.Tracker, logger *slog.Logger) {
	stop := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ticker := time.NewTicker(10 * time.Minute)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						if n := trk.SweepExpired(); n > 0 {
							logger.Debug("tracker sweep", slog.Int("expired", n))
						}
					case <-stop:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			return nil
		},
	})
}

func startServer(
	lc fx.Lifecycle,
	logger *slog.Logger,
	srv *server.Server,
	shutdowner fx.Shutdowner,
	cfg config.Config,
	accountService *accounts.Service,
) {
	fmt.Printf("Starting Helpgate %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.Admin.Username != "" && cfg.Admin.Password != "" {
				if err := accountService.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password, cfg.Admin.Email); err != nil {
					return fmt.Errorf("ensure admin account: %w", err)
				}
			}

			go func() {
				if err := srv.Start(); err != nil { // block until server is stopped
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown() // shutdown the application if the server fails to start
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			// graceful shutdown
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
