package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/auth"
	"polymer-learn-service/internal/config"
	"polymer-learn-service/internal/infra/blob"
	"polymer-learn-service/internal/infra/memory"
	"polymer-learn-service/internal/infra/postgres"
	redisinfra "polymer-learn-service/internal/infra/redis"
	"polymer-learn-service/internal/logging"
	"polymer-learn-service/internal/metrics"
	transport "polymer-learn-service/internal/transport/http"
)

// stack is the wired service graph.
type stack struct {
	learning   *app.LearningService
	curriculum *app.CurriculumService
	analytics  *app.ClassAnalytics
	handler    *transport.Handler
	closers    []func()
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func loadConfig(path string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	log, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return cfg, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}

// buildStack picks Postgres, Redis and MinIO when configured and falls back to
// in-memory adapters otherwise.
func buildStack(ctx context.Context, cfg config.Config, log *zap.Logger) (*stack, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret (or JWT_SECRET) must be set")
	}

	s := &stack{}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		store  app.ContentStore
		loader app.LessonRepository
	)
	if cfg.Postgres.URL != "" {
		db := postgres.Open(cfg.Postgres.URL)
		s.closers = append(s.closers, func() { _ = db.Close() })
		if err := Migrate(ctx, db, log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect pgx pool: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		store = postgres.NewStore(db)
		loader = postgres.NewLessonLoader(pool)
		log.Info("using postgres content store")
	} else {
		mem := memory.NewStore()
		store, loader = mem, mem
		log.Warn("postgres not configured; content is kept in memory")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	lessonTTL := config.TTLDuration(cfg.Lessons.CacheTTL, 10*time.Minute)
	sessionTTL := config.TTLDuration(cfg.Sessions.TTL, 2*time.Hour)
	var (
		cache    app.LessonCache
		sessions app.SessionRepository
	)
	if redisClient != nil {
		cache = redisinfra.NewLessonCache(redisClient, loader, lessonTTL)
		sessions = redisinfra.NewSessionStore(redisClient, sessionTTL)
	} else {
		cache = memory.NewLessonCache(loader, lessonTTL)
		sessions = memory.NewSessionStore(sessionTTL)
	}

	var (
		blobs  app.BlobStore
		opener transport.BlobOpener
	)
	if minioCfg := cfg.Storage.Minio; minioCfg.Endpoint != "" {
		ms, err := blob.NewMinioStore(blob.Config{
			Endpoint:  minioCfg.Endpoint,
			AccessKey: minioCfg.AccessKey,
			SecretKey: minioCfg.SecretKey,
			Bucket:    minioCfg.Bucket,
			UseSSL:    minioCfg.UseSSL,
			URLExpiry: config.TTLDuration(minioCfg.URLExpiry, time.Hour),
		})
		if err != nil {
			return nil, err
		}
		if err := ms.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		blobs = ms
	} else {
		mb := memory.NewBlobStore("/blobs")
		blobs, opener = mb, mb
	}

	identity := auth.ContextIdentity{}
	opts := []app.Option{app.WithLogger(log), app.WithMetrics(m)}
	progress := app.NewProgressAggregator(store, opts...)
	s.learning = app.NewLearningService(sessions, cache, store, progress, identity, opts...)
	s.curriculum = app.NewCurriculumService(store, blobs, cache, identity, opts...)
	s.analytics = app.NewClassAnalytics(store, app.AnalyticsConfig{
		StrugglingThreshold: cfg.Analytics.StrugglingThreshold,
		LeaderboardLimit:    cfg.Analytics.LeaderboardLimit,
	}, opts...)

	s.handler = transport.NewHandler(transport.Deps{
		Learning:    s.learning,
		Curriculum:  s.curriculum,
		Analytics:   s.analytics,
		Auth:        auth.NewAuthenticator(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour)),
		Metrics:     m,
		Gatherer:    reg,
		Blobs:       opener,
		CORSOrigins: cfg.Server.CORSOrigins,
		Log:         log,
	})

	ok = true
	return s, nil
}
