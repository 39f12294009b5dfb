package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/straysafe/straysafebackend/config"
	"github.com/straysafe/straysafebackend/database"
	"github.com/straysafe/straysafebackend/geo"
	"github.com/straysafe/straysafebackend/handlers"
	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/media"
	"github.com/straysafe/straysafebackend/metrics"
	"github.com/straysafe/straysafebackend/permissions"
	"github.com/straysafe/straysafebackend/push"
	"github.com/straysafe/straysafebackend/realtime"
	"github.com/straysafe/straysafebackend/repository"
	"github.com/straysafe/straysafebackend/services"
	"github.com/straysafe/straysafebackend/stream"
	"github.com/straysafe/straysafebackend/workers"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 15 * time.Second
	pushTimeout     = 10 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil {
		logging.Info().Err(err).Msg("no .env file loaded")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if cfg.DatabaseDriver == config.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
			logging.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("failed to create database directory")
		}
	}

	db, err := database.InitGormDB(database.OptionsFromConfig(cfg))
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to get database handle")
	}
	defer sqlDB.Close()

	if err := database.AutoMigrateModels(db); err != nil {
		logging.Fatal().Err(err).Msg("failed to migrate database")
	}

	userRepo := repository.NewGormUserRepository(db)
	roleRepo := repository.NewGormRoleRepository(db)
	referralRepo := repository.NewGormReferralCodeRepository(db)
	mapRepo := repository.NewGormUserMapRepository(db)
	pinRepo := repository.NewGormPinRepository(db)
	postRepo := repository.NewGormPostRepository(db)
	animalRepo := repository.NewGormAnimalRepository(db)
	cctvRepo := repository.NewGormCCTVRepository(db)
	pushTokenRepo := repository.NewGormPushTokenRepository(db)

	if err := permissions.SyncDefaultRoles(roleRepo); err != nil {
		logging.Fatal().Err(err).Msg("failed to sync default roles")
	}

	mediaSubDirs := map[media.AssetType]string{
		media.AssetTypeSnapshot:  filepath.Base(cfg.SnapshotsPath),
		media.AssetTypeThumbnail: filepath.Base(cfg.ThumbnailsPath),
		media.AssetTypeImage:     filepath.Base(cfg.ImagesPath),
		media.AssetTypeVideo:     filepath.Base(cfg.VideosPath),
	}
	mediaStore, err := media.NewLocalStorage(cfg.MediaStoragePath, mediaSubDirs)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize media store")
	}
	mediaProcessor := media.NewProcessor(mediaStore)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := realtime.NewHub()
	go hub.Run(hubCtx)

	logging.Info().
		Int("workers", cfg.NumThumbnailWorkers).
		Int("queue_size", cfg.ThumbnailQueueSize).
		Int("max_size", cfg.ThumbnailMaxSize).
		Msg("starting snapshot thumbnail workers")
	snapshotProcessor := workers.NewSnapshotProcessor(mediaProcessor, pinRepo, hub, cfg.ThumbnailMaxSize, cfg.ThumbnailQueueSize, cfg.NumThumbnailWorkers)

	reports, err := database.NewReports(db)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize report queries")
	}
	projection, err := geo.ParseProjection(cfg.ConeProjection)
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid cone projection")
	}
	pinService := services.NewPinService(pinRepo, mapRepo, reports, mediaStore, snapshotProcessor, hub, services.PinServiceOptions{
		Projection: projection,
		Tolerance:  cfg.ConeTolerance,
	})

	relay, err := stream.NewRelay(cfg.StreamOriginURL, cfg.StreamOriginUser, cfg.StreamOriginPassword, cfg.StreamTimeout)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize stream relay")
	}
	catalog, err := stream.LoadCatalog(cfg.StreamCatalogPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load stream catalog")
	}
	pushClient := push.NewClient(cfg.ExpoPushURL, pushTimeout)
	authenticator := handlers.NewAuthenticator(userRepo, cfg.JWTSecret, cfg.JWTTTL)

	authHandler := handlers.NewAuthHandler(db, authenticator)
	setupHandler := handlers.NewSetupHandler(db)
	pinHandler := handlers.NewPinHandler(pinService, cfg.PublicBaseURL)
	streamHandler := handlers.NewStreamHandler(relay, catalog)
	mapHandler := handlers.NewMapHandler(mapRepo, userRepo)
	postHandler := handlers.NewPostHandler(postRepo, mediaStore, mediaProcessor, cfg.PublicBaseURL)
	animalHandler := handlers.NewAnimalHandler(animalRepo, mediaStore, mediaProcessor, cfg.PublicBaseURL)
	cctvHandler := handlers.NewCCTVHandler(cctvRepo, mediaStore, cfg.VideoProcessorURL, cfg.PublicBaseURL)
	pushHandler := handlers.NewPushHandler(pushTokenRepo, pushClient)
	analyticsHandler := handlers.NewAnalyticsHandler(reports)
	permissionHandler := handlers.NewPermissionHandler()
	adminRoleHandler := handlers.NewAdminRoleHandler(roleRepo, userRepo)
	adminUserHandler := handlers.NewAdminUserHandler(userRepo, roleRepo)
	adminReferralHandler := handlers.NewAdminReferralCodeHandler(referralRepo, userRepo)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// the relay sets its own CORS headers and streams for as long as the player reads
	for _, prefix := range []string{"/stream", "/stream-proxy"} {
		r.Options(prefix+"/*", streamHandler.Preflight)
		r.Get(prefix+"/*", streamHandler.Proxy)
	}
	r.Get("/ws", hub.ServeWS)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(corsHandler.Handler)

		r.Get("/media/*", handlers.AssetServer(mediaStore, "/media/"))
		r.Get("/snapshots/*", handlers.AssetServer(mediaStore, "/"))

		// web and mobile pin endpoints
		r.Group(func(r chi.Router) {
			r.Use(authenticator.AuthMiddleware)
			r.Post("/pin", pinHandler.CreateSighting)
			r.Post("/camera-pin", pinHandler.CreateCamera)
			r.Get("/pins", pinHandler.ListPins)
			r.Delete("/pins/{id}", pinHandler.DeletePin)
			r.Delete("/camera-pins/{id}", pinHandler.DeleteCameraPin)
		})

		r.Route("/api", func(r chi.Router) {
			// detection machines
			r.Group(func(r chi.Router) {
				r.Use(handlers.StaticTokenMiddleware(cfg.StaticAPITokens))
				r.Post("/pin", pinHandler.CreateSighting)
				r.Post("/camera-pin", pinHandler.CreateCamera)
			})

			r.Get("/pins", pinHandler.ListPins)
			r.Get("/recent-sightings", pinHandler.RecentSightings)
			r.Get("/snapshots", pinHandler.Snapshots)
			r.Get("/snapshots/recent", pinHandler.RecentSnapshots)
			r.Get("/streams", streamHandler.ListStreams)
			r.Get("/streams/test/{streamId}", streamHandler.TestStream)
			r.Get("/permissions", permissionHandler.ListPermissionDefinitions)
			r.Get("/permissions/keys", permissionHandler.ListPermissionKeys)

			r.Group(func(r chi.Router) {
				r.Use(httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow))
				r.Post("/setup/first-admin", setupHandler.CreateFirstAdmin)
				r.Route("/auth", func(r chi.Router) {
					r.Post("/register", authHandler.Register)
					r.Post("/login", authHandler.Login)
					r.Post("/logout", authHandler.Logout)
					r.Get("/check", authHandler.Check)
					r.With(authenticator.AuthMiddleware).Get("/me", authHandler.CurrentUser)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(authenticator.AuthMiddleware)

				r.Route("/maps", func(r chi.Router) {
					r.Get("/", mapHandler.ListMaps)
					r.Post("/", mapHandler.CreateMap)
					r.Post("/join", mapHandler.JoinMap)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", mapHandler.GetMap)
						r.Delete("/", mapHandler.DeleteMap)
						r.Post("/viewers", mapHandler.AddViewer)
						r.Get("/areas", mapHandler.ListAreas)
						r.Post("/areas", mapHandler.CreateArea)
					})
				})

				r.Route("/posts", func(r chi.Router) {
					r.Get("/", postHandler.ListPosts)
					r.Post("/", postHandler.CreatePost)
					r.Route("/{id}", func(r chi.Router) {
						r.Patch("/", postHandler.UpdatePost)
						r.Delete("/", postHandler.DeletePost)
						r.Post("/like", postHandler.ToggleLike)
						r.Post("/comments", postHandler.AddComment)
					})
				})

				r.Route("/registered-animals", func(r chi.Router) {
					r.Get("/", animalHandler.Index)
					r.Post("/", animalHandler.Create)
					r.Put("/{id}", animalHandler.Update)
					r.Delete("/{id}", animalHandler.Delete)
				})
				r.Get("/mobile/registered-animals", animalHandler.MobileIndex)
				r.Post("/mobile/registered-animals", animalHandler.MobileStore)

				r.With(handlers.RequirePermission(permissions.CCTVView)).Get("/cctvs", cctvHandler.List)
				r.With(handlers.RequirePermission(permissions.CCTVCreate)).Post("/cctvs", cctvHandler.Create)
				r.With(handlers.RequirePermission(permissions.CCTVDelete)).Delete("/cctvs/{id}", cctvHandler.Delete)
				r.With(handlers.RequirePermission(permissions.CCTVView)).Post("/cctv/detect", cctvHandler.Detect)

				r.Post("/push-tokens", pushHandler.SaveToken)
				r.With(handlers.RequirePermission(permissions.NotificationsSend)).Post("/notifications/send", pushHandler.Send)

				r.With(handlers.RequirePermission(permissions.AnalyticsView)).Get("/analytics/summary", analyticsHandler.Summary)

				r.Route("/admin", func(r chi.Router) {
					r.Route("/roles", func(r chi.Router) {
						r.Use(handlers.RequirePermission(permissions.RolesManage))
						r.Get("/", adminRoleHandler.ListRoles)
						r.Post("/", adminRoleHandler.CreateRole)
						r.Route("/{roleID}", func(r chi.Router) {
							r.Get("/", adminRoleHandler.GetRole)
							r.Put("/", adminRoleHandler.UpdateRole)
							r.Delete("/", adminRoleHandler.DeleteRole)
							r.Get("/users", adminRoleHandler.GetRoleUsers)
							r.Post("/users", adminRoleHandler.AddUserToRole)
							r.Delete("/users/{userID}", adminRoleHandler.RemoveUserFromRole)
						})
					})

					r.Route("/users", func(r chi.Router) {
						r.With(handlers.RequireAnyPermission(permissions.UsersView, permissions.UsersManage)).Get("/", adminUserHandler.ListUsers)
						r.With(handlers.RequirePermission(permissions.UsersManage)).Post("/", adminUserHandler.CreateUser)
						r.Route("/{id}", func(r chi.Router) {
							r.With(handlers.RequireAnyPermission(permissions.UsersView, permissions.UsersManage)).Get("/", adminUserHandler.GetUser)
							r.With(handlers.RequireAnyPermission(permissions.UsersEdit, permissions.UsersManage)).Put("/", adminUserHandler.UpdateUser)
							r.With(handlers.RequireAnyPermission(permissions.UsersBan, permissions.UsersManage)).Patch("/ban", adminUserHandler.SetBanned)
							r.With(handlers.RequireAnyPermission(permissions.UsersDelete, permissions.UsersManage)).Delete("/", adminUserHandler.DeleteUser)
						})
					})

					r.Route("/referral-codes", func(r chi.Router) {
						r.Use(handlers.RequirePermission(permissions.ReferralCodesManage))
						r.Get("/", adminReferralHandler.ListReferralCodes)
						r.Post("/", adminReferralHandler.CreateReferralCode)
						r.Route("/{id}", func(r chi.Router) {
							r.Get("/", adminReferralHandler.GetReferralCode)
							r.Put("/", adminReferralHandler.UpdateReferralCode)
							r.Patch("/toggle-status", adminReferralHandler.ToggleStatus)
							r.Delete("/", adminReferralHandler.DeleteReferralCode)
						})
					})
				})
			})
		})
	})

	serverAddr := ":" + cfg.Port
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// no WriteTimeout: relayed segments and websockets stay open
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logging.Info().
			Str("addr", serverAddr).
			Str("database", cfg.DatabaseDriver).
			Str("media", cfg.MediaStoragePath).
			Str("stream_origin", cfg.StreamOriginURL).
			Str("projection", string(projection)).
			Int("static_tokens", len(cfg.StaticAPITokens)).
			Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
	snapshotProcessor.Stop()
	stopHub()
	logging.Info().Msg("server stopped")
}
