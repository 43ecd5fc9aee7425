package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/config"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/model"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/rules"
	s3infra "github.com/MSK-101/Juicy-meets-web-sub002/internal/infra/s3"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/jobs/janitor"
	pgrepo "github.com/MSK-101/Juicy-meets-web-sub002/internal/repo/postgres"
	redrepo "github.com/MSK-101/Juicy-meets-web-sub002/internal/repo/redis"
	authsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/auth"
	billingsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/billing"
	matchingsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/matching"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/pairings"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/participants"
	queuesvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/queue"
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/services/sequences"
	sessionsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/sessions"
	videosvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/videos"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
	stopJobs   context.CancelFunc
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	pairingRepo := redrepo.NewPairingRepo(redisClient)
	signalRepo := redrepo.NewSignalRepo(redisClient, cfg.Matching.SignalChannel)
	participantRepo := pgrepo.NewParticipantRepo(pool)
	catalogRepo := pgrepo.NewCatalogRepo(pool)
	ruleRepo := pgrepo.NewDeductionRuleRepo(pool)
	sessionRepo := pgrepo.NewSessionRepo(pool)
	videoRepo := pgrepo.NewVideoRepo(pool)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	directory := participants.NewDirectory(participantStore{repo: participantRepo}, cfg.Matching.LockTimeout, log)
	waitingPool := queuesvc.NewPool()
	registry := sessionsvc.NewRegistry(sessionRepo, log)
	ledger := pairings.NewLedger(pairingRepo, pairings.Config{Cooldown: cfg.Matching.PairingCooldown}, log)
	tracker := sequences.NewTracker(catalogRepo, log)
	billingEngine := billingsvc.NewEngine(ruleRepo, directory, signalRepo, billingsvc.Config{
		TickInterval: cfg.Billing.TickInterval,
	}, log)

	var resolver videosvc.PlaybackResolver
	if s3Client != nil {
		resolver = s3infra.NewVideoStorage(s3Client, cfg.S3.Bucket, cfg.S3.URLExpiry)
	}
	library := videosvc.NewLibrary(videoRepo, resolver, waitingPool, log)

	matchingEngine := matchingsvc.NewEngine(matchingsvc.Dependencies{
		Directory: directory,
		Pool:      waitingPool,
		Ledger:    ledger,
		Sessions:  registry,
		Sequences: tracker,
		Billing:   billingEngine,
		Videos:    library,
		Publisher: signalRepo,
		Logger:    log,
	}, matchingsvc.Config{
		Backoff: rules.NewBackoff(cfg.Matching.MaxAttempts, cfg.Matching.BackoffBase),
	})

	if err := billingEngine.Reload(ctx); err != nil {
		log.Warn("deduction rules load failed, billing starts with no rules", zap.Error(err))
	}
	if err := library.SeedPool(ctx); err != nil {
		log.Warn("fallback video seeding failed", zap.Error(err))
	}

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)

	RegisterRoutes(r, Dependencies{
		MatchingEngine: matchingEngine,
		BillingEngine:  billingEngine,
		Directory:      directory,
		JWT:            jwtManager,
		Logger:         log,
		Config:         cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	sweeper := janitor.New(registry, matchingEngine, cfg.Sessions.MaxDuration, log)
	sweeper.AttachQueuePruning(waitingPool, directory)
	jobCtx, stopJobs := context.WithCancel(context.Background())
	go sweeper.Loop(jobCtx, cfg.Sessions.JanitorInterval)

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		httpRouter: r,
		stopJobs:   stopJobs,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if a.stopJobs != nil {
		a.stopJobs()
	}
	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}

// participantStore maps repo-level errors onto the directory's sentinel.
type participantStore struct {
	repo *pgrepo.ParticipantRepo
}

func (s participantStore) Get(ctx context.Context, participantID int64) (model.Participant, error) {
	p, err := s.repo.Get(ctx, participantID)
	if errors.Is(err, pgrepo.ErrParticipantNotFound) {
		return model.Participant{}, participants.ErrNotFound
	}
	return p, err
}

func (s participantStore) UpdateProgress(ctx context.Context, participantID, sequenceID int64, watched, total int) error {
	return s.repo.UpdateProgress(ctx, participantID, sequenceID, watched, total)
}

func (s participantStore) UpdateBalance(ctx context.Context, participantID, balance int64) error {
	return s.repo.UpdateBalance(ctx, participantID, balance)
}

func (s participantStore) UpdateStatus(ctx context.Context, participantID int64, status enums.ParticipantStatus) error {
	return s.repo.UpdateStatus(ctx, participantID, status)
}
