package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"staylist/internal/adapters/auth"
	"staylist/internal/adapters/backend"
	"staylist/internal/adapters/events"
	server "staylist/internal/adapters/http_server"
	"staylist/internal/adapters/observability"
	redisad "staylist/internal/adapters/redis"
	"staylist/internal/adapters/upload"
	"staylist/internal/app"
	"staylist/internal/domain"
	"staylist/internal/shared"
	"staylist/internal/storage/drafts"
	mysqlrepo "staylist/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "staylist-api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// entity gateway, optionally behind the redis cache
	var gw domain.EntityGateway
	switch cfg.Gateway {
	case "backend":
		cl, err := backend.New(cfg.BackendURL, cfg.BackendKey, cfg.BackendRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("backend client")
		}
		gw = cl
		log.Info().Str("url", cfg.BackendURL).Msg("using hosted backend")
	default:
		db, err := mysqlrepo.Open(ctx, cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("mysql connect failed")
		}
		defer db.Close()
		if err := mysqlrepo.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("mysql migrate failed")
		}
		gw = mysqlrepo.New(db)
		log.Info().Msg("database connection ok")
	}
	if cfg.RedisAddr != "" {
		cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := cache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable; entity reads are not cached")
		} else {
			defer cache.Close()
			gw = app.NewCachedGateway(gw, cache, cfg.CacheTTL)
		}
	}

	// drafts
	var store domain.DraftStore
	if cfg.DraftsPath != "" {
		sq, err := drafts.NewSQLite(cfg.DraftsPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DraftsPath).Msg("open draft store")
		}
		defer sq.Close()
		store = sq
	} else {
		log.Warn().Msg("DRAFTS_PATH is empty; drafts are kept in memory")
		store = drafts.NewMemory()
	}

	// uploads
	var uploader domain.Uploader
	var media http.Handler
	switch cfg.Upload.Driver {
	case "s3":
		s3u, err := upload.NewS3Uploader(ctx, upload.S3Config{
			Bucket:          cfg.Upload.S3Bucket,
			Region:          cfg.Upload.S3Region,
			Endpoint:        cfg.Upload.S3Endpoint,
			AccessKeyID:     cfg.Upload.S3AccessKeyID,
			SecretAccessKey: cfg.Upload.S3SecretKey,
			PublicBaseURL:   cfg.Upload.PublicBaseURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("s3 uploader")
		}
		uploader = s3u
	default:
		lu, err := upload.NewLocal(cfg.Upload.Dir, cfg.Upload.PublicBaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("local uploader")
		}
		uploader = lu
		media = http.StripPrefix("/media", http.FileServer(http.Dir(lu.Dir())))
	}

	// events
	var pub domain.EventPublisher = events.LogPublisher{}
	if cfg.AMQPURL != "" {
		p, err := events.NewPublisher(events.Config{URL: cfg.AMQPURL})
		if err != nil {
			log.Warn().Err(err).Msg("rabbitmq unavailable; listing events are only logged")
		} else {
			defer p.Close()
			pub = p
		}
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		log.Fatal().Err(err).Msg("auth")
	}

	wizards := app.NewRegistry(app.Deps{
		Gateway: gw,
		Drafts:  store,
		Photos:  app.NewPhotoIngest(uploader, cfg.Wizard.UploadWorkers, cfg.Wizard.MaxImageWidth),
		Events:  pub,
		Gate: app.GateConfig{
			InitialDelay: cfg.Wizard.GateInitialDelay,
			GraceWindow:  cfg.Wizard.GateGraceWindow,
			Roles:        cfg.Wizard.Roles,
		},
		AutosaveInterval: cfg.Wizard.AutosaveInterval,
	})
	go wizards.RunSweeper(ctx, time.Minute, cfg.SessionIdle)

	// http
	srv := server.New()
	if media != nil {
		srv.Mount("/media", media)
	}
	srv.MountHandlers(&server.Handlers{
		Wizards:  wizards,
		Sessions: func(r *http.Request) domain.SessionProvider { return verifier.FromRequest(r) },
	})

	log.Info().Str("addr", cfg.HTTPAddr).Str("gateway", cfg.Gateway).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	// open wizards keep their drafts; stopping them only ends the timers
	wizards.CloseAll()
	log.Info().Msg("API stopped")
}
