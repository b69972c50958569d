package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
	"github.com/pucco93/ebsi-access-control/internal/infra/config"
	"github.com/pucco93/ebsi-access-control/internal/infra/database"
	kafkainfra "github.com/pucco93/ebsi-access-control/internal/infra/kafka"
	"github.com/pucco93/ebsi-access-control/internal/infra/ledger"
	"github.com/pucco93/ebsi-access-control/internal/infra/logger"
	redisinfra "github.com/pucco93/ebsi-access-control/internal/infra/redis"
	"github.com/pucco93/ebsi-access-control/internal/infra/security"
	"github.com/pucco93/ebsi-access-control/internal/infra/telemetry"
	"github.com/pucco93/ebsi-access-control/internal/repository/memory"
	postgresrepo "github.com/pucco93/ebsi-access-control/internal/repository/postgres"
	redisrepo "github.com/pucco93/ebsi-access-control/internal/repository/redis"
	"github.com/pucco93/ebsi-access-control/internal/state"
	transportgrpc "github.com/pucco93/ebsi-access-control/internal/transport/grpc"
	grpcinterceptors "github.com/pucco93/ebsi-access-control/internal/transport/grpc/interceptors"
	"github.com/pucco93/ebsi-access-control/internal/transport/http/middleware"
	"github.com/pucco93/ebsi-access-control/internal/transport/http/routes"
	"github.com/pucco93/ebsi-access-control/internal/usecase"
)

// publisher is satisfied by both the Kafka and the logging publisher.
type publisher interface {
	port.OutcomePublisher
	kafkainfra.LedgerEventPublisher
}

type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	tracer     *telemetry.TracerProvider
	ledger     *ledger.Client
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	consumer   *kafkainfra.LedgerEventConsumer
	accounts   *usecase.AccountService
	reconciler *usecase.Reconciler
	refreshers map[domain.EntityKind]usecase.Refresher
	grpcServer *transportgrpc.Server
	grpcAddr   string
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{
		cfg:      cfg,
		logger:   log,
		grpcAddr: fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port),
	}
	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *Application) wire(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.tracer = tracer

	metrics, err := telemetry.Attach(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}
	grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{})
	if err != nil {
		return fmt.Errorf("init grpc metrics: %w", err)
	}

	a.ledger, err = ledger.Dial(ctx, cfg.Ledger, log)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}

	store := state.New(state.Options{
		AlertTTL:   cfg.Console.AlertTTL,
		OutcomeTTL: cfg.Console.OutcomeTTL,
	})
	dispatcher := usecase.NewDispatcher(a.ledger, store).
		WithLogger(log).
		WithMetrics(metrics)

	pub := a.initPublisher()
	if cfg.Kafka.PublishOutcomes {
		dispatcher.WithPublisher(pub)
	}

	if cfg.Postgres.Enabled {
		a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
		if err != nil {
			return fmt.Errorf("init postgres: %w", err)
		}
		if err := database.Migrate(ctx, a.pool); err != nil {
			return err
		}
		dispatcher.WithHistory(postgresrepo.NewOutcomeHistoryRepository(a.pool))
	}

	var session port.SessionStore = memory.NewSessionStore()
	if cfg.Redis.Enabled {
		a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		session = redisrepo.NewSessionStore(a.redis.Client(), cfg.Redis.KeyPrefix)
	}

	a.accounts = usecase.NewAccountService(dispatcher, session)
	permissions := usecase.NewPermissionService(dispatcher)
	roles := usecase.NewRoleService(dispatcher)
	resources := usecase.NewResourceService(dispatcher, a.accounts)
	users := usecase.NewUserService(dispatcher, a.accounts, security.NewDIDResolver())

	source, err := a.initEventSource(pub)
	if err != nil {
		return err
	}
	a.refreshers = map[domain.EntityKind]usecase.Refresher{
		domain.KindPermission: permissions,
		domain.KindRole:       roles,
		domain.KindResource:   resources,
		domain.KindUser:       users,
	}
	a.reconciler = usecase.NewReconciler(dispatcher, source, a.refreshers)

	a.grpcServer = transportgrpc.NewServer(transportgrpc.ServerDependencies{
		Logger:  log,
		Metrics: grpcMetrics,
		Tracing: grpcinterceptors.NewTracing(grpcinterceptors.TracingOptions{}),
	})

	deps := routes.Dependencies{
		Config:  cfg,
		Logger:  log,
		Metrics: httpMetrics,
		State:   store,
		Services: routes.ServiceSet{
			Accounts:    a.accounts,
			Permissions: permissions,
			Roles:       roles,
			Resources:   resources,
			Users:       users,
		},
		History: dispatcher.History(),
		Keygen:  security.GenerateKeyPair,
	}
	if a.pool != nil {
		deps.Database = a.pool
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	return nil
}

// initPublisher returns the Kafka publisher when brokers are configured and
// the logging publisher otherwise.
func (a *Application) initPublisher() publisher {
	cfg, log := a.cfg, a.logger
	if len(cfg.Kafka.Brokers) == 0 || (!cfg.Kafka.PublishOutcomes && !cfg.Kafka.MirrorLedger) {
		log.Info("kafka publishing disabled, using stub publisher")
		return kafkainfra.NewStubPublisher(log)
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log)
	}
	a.producer = producer
	log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App, cfg.Kafka.LedgerEventsTopic, log)
}

// initEventSource selects where ledger notifications come from.
func (a *Application) initEventSource(pub publisher) (port.EventSource, error) {
	cfg, log := a.cfg, a.logger

	switch cfg.Ledger.EventSource {
	case config.EventSourceKafka:
		consumer, err := kafkainfra.NewLedgerEventConsumer(cfg.Kafka, log)
		if err != nil {
			return nil, fmt.Errorf("init ledger event consumer: %w", err)
		}
		a.consumer = consumer
		log.Info("ledger events consumed from kafka", zap.String("topic", cfg.Kafka.LedgerEventsTopic))
		return consumer, nil
	default:
		if cfg.Kafka.MirrorLedger {
			log.Info("ledger events mirrored to kafka", zap.String("topic", cfg.Kafka.LedgerEventsTopic))
			return kafkainfra.NewMirroringSource(a.ledger, pub, log), nil
		}
		return a.ledger, nil
	}
}

func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	if err := a.accounts.Restore(ctx); err != nil {
		a.logger.Warn("failed to restore session", zap.Error(err))
	}

	for _, kind := range []domain.EntityKind{domain.KindPermission, domain.KindRole, domain.KindResource, domain.KindUser} {
		if err := a.refreshers[kind].Load(ctx); err != nil {
			a.logger.Warn("initial load failed", zap.String("kind", string(kind)), zap.Error(err))
		}
	}

	if err := a.reconciler.Start(ctx); err != nil {
		a.logger.Warn("some event listeners are unavailable", zap.Error(err))
	}
	defer a.reconciler.Stop()
	a.grpcServer.SetServing(true)

	grpcErrCh := make(chan error, 1)
	if a.grpcAddr != "" {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
		go func() {
			defer func() {
				if r := recover(); r != nil {
					a.logger.Error("gRPC server panicked", zap.Any("panic", r))
					grpcErrCh <- fmt.Errorf("grpc server panicked: %v", r)
				}
			}()
			if err := a.grpcServer.GRPC().Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				grpcErrCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
	}
	defer a.grpcServer.Shutdown()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Ledger writes wait for the receipt.
		WriteTimeout: a.cfg.Ledger.CallTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	a.logger.Info("starting access control console",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("contract", a.ledger.Address().Hex()),
		zap.String("event_source", a.cfg.Ledger.EventSource),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.grpcServer.SetServing(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	case err := <-grpcErrCh:
		return err
	}
}

// close releases every connection opened by wire, in reverse order.
func (a *Application) close() {
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Warn("close kafka consumer", zap.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.ledger != nil {
		a.ledger.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
