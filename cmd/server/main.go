package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cdiaz/chatwire/internal/api"
	"github.com/cdiaz/chatwire/internal/config"
	"github.com/cdiaz/chatwire/internal/database"
	"github.com/cdiaz/chatwire/internal/server"
	"github.com/cdiaz/chatwire/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	mongoURI       string
	mongoDatabase  string
	signingKey     string
	uploadDir      string
	allowedOrigins stringSliceFlag
)

func main() {
	config.LoadEnv()

	flag.StringVar(&addr, "addr", config.Getenv("CHATWIRE_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&mongoURI, "mongo-uri", config.Getenv("MONGODB_URI", "mongodb://localhost:27017"), "mongodb connection string")
	flag.StringVar(&mongoDatabase, "mongo-db", config.Getenv("MONGODB_DATABASE", "chatwire"), "mongodb database name")
	flag.StringVar(&signingKey, "signing-key", config.Getenv("JWT_SECRET_KEY", ""), "base64 encoded signing key")
	flag.StringVar(&uploadDir, "upload-dir", config.Getenv("CHATWIRE_UPLOAD_DIR", "uploads"), "directory for uploaded media")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[chatwire] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, mongoURI, mongoDatabase, signingKey, allowedOrigins, uploadDir)
	if err != nil {
		logger.Fatal("config: ", err)
	}

	ctx := context.Background()

	db, err := database.NewMongoChatRepository(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Fatal("db open: ", err)
	}
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			logger.Println("db close: ", err)
		}
	}()

	if err := db.EnsureIndexes(ctx); err != nil {
		logger.Fatal("ensure indexes: ", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer, err := server.NewChatServer(logger, db, statsUpdater)
	if err != nil {
		logger.Fatal("new chat server: ", err)
	}

	uploads, err := api.NewDiskObjectStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal("object store: ", err)
	}

	srv, err := api.NewChatwireApp(mux, logger, chatServer, db, uploads, cfg)
	if err != nil {
		logger.Fatal("new app: ", err)
	}

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Println("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
