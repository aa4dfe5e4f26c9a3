package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"daily-planner/internal/config"
	"daily-planner/internal/handlers"
	"daily-planner/internal/logging"
	"daily-planner/internal/marker"
	"daily-planner/internal/notify"
	"daily-planner/internal/reminder"
	"daily-planner/internal/session"
	"daily-planner/internal/storage"
)

func main() {
	configPath := flag.String("config", "planner.yaml", "path to YAML config file (optional)")
	storageType := flag.String("storage", "", "storage backend override: memory, file, sqlite or mongo")
	staticDir := flag.String("static", "", "directory to serve static files from (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *storageType != "" {
		cfg.Storage.Type = *storageType
	}
	if *staticDir != "" {
		cfg.Server.StaticDir = *staticDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	store, err := openStorage(cfg.Storage, logger)
	if err != nil {
		logger.Fatalw("Failed to initialize storage", "type", cfg.Storage.Type, "error", err)
	}
	defer store.Close()

	markers, closeMarkers, err := openMarkers(cfg.Markers, logger)
	if err != nil {
		logger.Fatalw("Failed to initialize marker store", "type", cfg.Markers.Type, "error", err)
	}
	defer closeMarkers()

	loc, _ := cfg.Location()
	opts := session.Options{
		Interval:         cfg.Scheduler.Interval,
		Window:           reminder.Window{PastDays: cfg.Scheduler.WindowPastDays, FutureDays: cfg.Scheduler.WindowFutureDays},
		Location:         loc,
		CatchUpMissed:    cfg.Scheduler.CatchUpMissed,
		FetchTimeout:     cfg.Scheduler.FetchTimeout,
		FetchConcurrency: cfg.Scheduler.FetchConcurrency,
		AlertDelay:       cfg.Scheduler.AlertDelay,
		WriteBack:        reminder.WriteBackMode(cfg.Scheduler.WriteBack),
	}

	feed := notify.NewFeed()
	push := notify.NewWebPush(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber, cfg.Push.TTL, logger)
	if !cfg.PushEnabled() {
		logger.Infow("VAPID keys not configured, system notifications disabled")
	}
	sessions := session.NewManager(store, markers, notify.NewHub(feed, push), push, opts, logger)

	handlers.Store = store
	handlers.Sessions = sessions
	handlers.Feed = feed
	handlers.Push = push
	handlers.Logger = logger
	handlers.SecureCookies = cfg.Server.TLSCert != ""

	r := mux.NewRouter()
	handlers.RegisterRoutes(r)

	// Static file server for frontend at "/"
	staticFs := http.FileServer(http.Dir(cfg.Server.StaticDir))
	r.PathPrefix("/").Handler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if ext := filepath.Ext(req.URL.Path); ext != "" {
			if ctype := mime.TypeByExtension(ext); ctype != "" {
				w.Header().Set("Content-Type", ctype)
			}
		}
		staticFs.ServeHTTP(w, req)
	}))

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	useTLS := cfg.Server.TLSCert != "" && cfg.Server.TLSKey != ""
	if useTLS {
		srv.Addr = cfg.Server.TLSAddr
	}

	go func() {
		logger.Infow("Starting daily planner", "addr", srv.Addr, "tls", useTLS, "static", cfg.Server.StaticDir, "storage", cfg.Storage.Type)
		var err error
		if useTLS {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("Could not start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Infow("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warnw("Server shutdown failed", "error", err)
	}
	sessions.Close()
}

func openStorage(cfg config.StorageConfig, logger *zap.SugaredLogger) (storage.Storage, error) {
	switch cfg.Type {
	case "memory":
		logger.Infow("Using memory storage")
		return storage.NewMemoryStorage(), nil
	case "file":
		logger.Infow("Using file storage", "users", cfg.UsersFile, "plans", cfg.PlansFile)
		return storage.NewFileStorage(cfg.UsersFile, cfg.PlansFile), nil
	case "sqlite":
		logger.Infow("Using SQLite storage", "path", cfg.SQLitePath)
		return storage.NewSQLiteStorage(cfg.SQLitePath)
	case "mongo":
		logger.Infow("Using MongoDB storage", "database", cfg.MongoDB)
		return storage.NewMongoStorage(cfg.MongoURI, cfg.MongoDB)
	}
	return nil, errors.New("invalid storage type: " + cfg.Type)
}

func openMarkers(cfg config.MarkerConfig, logger *zap.SugaredLogger) (marker.Store, func(), error) {
	switch cfg.Type {
	case "memory":
		return marker.NewMemory(), func() {}, nil
	case "file":
		logger.Infow("Using file delivery markers", "path", cfg.File)
		f, err := marker.OpenFile(cfg.File)
		return f, func() {}, err
	case "redis":
		logger.Infow("Using Redis delivery markers", "addr", cfg.RedisAddr, "ttl", cfg.TTL)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r, err := marker.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	}
	return nil, nil, errors.New("invalid marker store: " + cfg.Type)
}
