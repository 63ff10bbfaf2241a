package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"qabulxona/backend/internal/admin"
	"qabulxona/backend/internal/api/handler"
	"qabulxona/backend/internal/complaint"
	"qabulxona/backend/internal/config"
	"qabulxona/backend/internal/dispatch"
	"qabulxona/backend/internal/livefeed"
	"qabulxona/backend/internal/localization"
	"qabulxona/backend/internal/logger"
	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/moderation"
	"qabulxona/backend/internal/ratelimit"
	"qabulxona/backend/internal/report"
	"qabulxona/backend/internal/scheduler"
	"qabulxona/backend/internal/session"
	"qabulxona/backend/internal/storage"
	"qabulxona/backend/internal/telegram"
	"qabulxona/backend/internal/views"
	"qabulxona/backend/internal/wizard"
)

const (
	pumpBuffer      = 64
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("bot stopped with error")
	}
	log.Info().Msg("bot stopped")
}

func setupDependencies(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		if err := storage.AutoMigrate(db); err != nil {
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	rdb, err := storage.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return db, rdb, nil
}

func loadLocalizer(cfg *config.Config) (*localization.Localizer, error) {
	if cfg.LocalesDir != "" {
		return localization.NewLocalizer(cfg.LocalesDir, cfg.DefaultLanguage)
	}
	return localization.NewDefaultLocalizer(cfg.DefaultLanguage)
}

func loadFilter(cfg *config.Config) (*moderation.Filter, error) {
	if cfg.ModerationWordsFile == "" {
		return moderation.NewFilter(moderation.DefaultWords()), nil
	}
	words, err := moderation.LoadFile(cfg.ModerationWordsFile)
	if err != nil {
		return nil, err
	}
	return moderation.NewFilter(words), nil
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	log.Info().Int("admins", len(cfg.AdminIDs)).Int64("group_id", cfg.GroupID).Msg("starting qabulxona bot")

	db, rdb, err := setupDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	store := storage.NewStorageService(db, rdb, log)
	log.Info().Bool("redis", rdb != nil).Msg("database connections established")

	loc, err := loadLocalizer(cfg)
	if err != nil {
		return err
	}
	filter, err := loadFilter(cfg)
	if err != nil {
		return err
	}
	ids, err := complaint.NewIDGenerator(cfg.ComplaintIDScheme)
	if err != nil {
		return err
	}

	var (
		limiter       ratelimit.Limiter
		memoryLimiter *ratelimit.MemoryLimiter
	)
	if cfg.RateLimitBackend == config.LimiterRedis {
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.RateLimitCapacity, cfg.RateLimitWindow, log)
	} else {
		memoryLimiter = ratelimit.NewMemoryLimiter(cfg.RateLimitCapacity, cfg.RateLimitWindow)
		limiter = memoryLimiter
	}

	bot, err := telegram.NewBotService(cfg.BotToken, log)
	if err != nil {
		return err
	}

	location := cfg.Location()
	sessions := session.NewMemoryStore()
	renderer := views.NewRenderer(loc, config.Sections, location)
	exporter := report.NewCSVExporter(location)
	dispatcher := dispatch.New(bot.Client, cfg.AdminIDs, cfg.GroupID, log)
	hub := livefeed.NewHub(rdb, log)

	router := admin.NewRouter(admin.Deps{
		Admins:          cfg.AdminIDs,
		Storage:         store,
		Dispatcher:      dispatcher,
		Views:           renderer,
		Exporter:        exporter,
		Languages:       sessions,
		Feed:            hub,
		DefaultLanguage: cfg.DefaultLanguage,
	}, log)

	svc := complaint.NewService(complaint.Deps{
		Storage:    store,
		Sessions:   sessions,
		Machine:    wizard.NewMachine(cfg.RequireNationalID, config.Sections),
		Limiter:    limiter,
		Filter:     filter,
		Dispatcher: dispatcher,
		Messenger:  bot.Client,
		Views:      renderer,
		Admin:      router,
		IDs:        ids,
		Feed:       hub,
		Exporter:   exporter,
	}, complaint.Options{
		DefaultLanguage:    cfg.DefaultLanguage,
		AnnouncementText:   cfg.AnnouncementText,
		SessionIdleTimeout: cfg.SessionIdleTimeout,
	}, log)

	sched, err := newScheduler(cfg, svc, memoryLimiter, log)
	if err != nil {
		return err
	}

	h := handler.NewHandler(cfg.APIJWTSecret, cfg.IsAdmin, log)
	h.Hub = hub
	h.Dataset = svc
	h.Complaints = store
	h.Exporter = exporter
	h.Health = func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        h.Routes(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Workers outlive ctx so queued events are drained during shutdown.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()
	pump := messaging.NewPump(cfg.Workers, pumpBuffer, func(ctx context.Context, ev messaging.Event) {
		if err := svc.HandleInboundEvent(ctx, ev); err != nil {
			log.Error().Err(err).Int64("user_id", ev.UserID).Msg("failed to handle event")
		}
	}, log)
	pump.Start(workCtx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer pump.Stop()
		return bot.Run(gctx, pump)
	})
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type job struct {
	name string
	spec string
	fn   scheduler.JobFunc
}

func newScheduler(cfg *config.Config, svc *complaint.Service, limiter *ratelimit.MemoryLimiter, log zerolog.Logger) (*scheduler.Scheduler, error) {
	s := scheduler.New(config.JobTimeout, log)

	jobs := []job{
		{"daily_reminder", cfg.ReminderCron, svc.RunDailyReminder},
		{"weekly_stats", cfg.WeeklyStatsCron, svc.RunWeeklyStats},
		{"periodic_export", cfg.ExportCron, svc.RunPeriodicExport},
		{"membership_check", cfg.MembershipCron, svc.RunMembershipCheck},
		{"group_announcement", cfg.AnnouncementCron, svc.RunGroupAnnouncement},
	}
	if cfg.SessionIdleTimeout > 0 {
		jobs = append(jobs, job{"session_sweep", cfg.SessionSweepCron, svc.RunSessionSweep})
	}
	if limiter != nil {
		jobs = append(jobs, job{"limiter_prune", cfg.SessionSweepCron, func(context.Context) error {
			if n := limiter.Prune(); n > 0 {
				log.Debug().Int("pruned", n).Msg("pruned idle rate limit windows")
			}
			return nil
		}})
	}

	for _, j := range jobs {
		if err := s.Add(j.name, j.spec, j.fn); err != nil {
			return nil, err
		}
	}
	log.Info().Strs("jobs", s.Jobs()).Msg("scheduled jobs registered")
	return s, nil
}
