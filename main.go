package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"relmap/internal/graph"
	"relmap/internal/server"
	"relmap/internal/storage"
)

func main() {
	transport := flag.String("transport", "stdio", "Transport mode: stdio or http")
	port := flag.String("port", "8082", "HTTP port (only used with --transport http)")
	dataDir := flag.String("data-dir", envString("RELMAP_DATA_DIR", "./data"), "Directory for the chart database")
	historyLimit := flag.Int("history-limit", envInt("RELMAP_HISTORY_LIMIT", 0), "Undo history depth (0 = default)")
	debug := flag.Bool("debug", envBool("RELMAP_DEBUG"), "Enable debug logging")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           logLevel(*debug),
	})

	repo, err := storage.Open(*dataDir)
	if err != nil {
		logger.Fatal("open chart repository", "err", err)
	}
	defer repo.Close()

	store := graph.New(repo, logger, *historyLimit)
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := store.Load(ctx); err != nil {
		logger.Fatal("load active chart", "err", err)
	}

	srv := server.New(store)

	switch *transport {
	case "stdio":
		logger.Info("relmap server starting (stdio)", "data_dir", *dataDir)
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
			logger.Fatal("server error", "err", err)
		}
	case "http":
		addr := ":" + *port
		handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
			return srv
		}, nil)
		logger.Info("relmap server listening", "addr", addr, "data_dir", *dataDir)
		if err := http.ListenAndServe(addr, handler); err != nil {
			logger.Fatal("http server error", "err", err)
		}
	default:
		logger.Fatal("unknown transport (use stdio or http)", "transport", *transport)
	}
}

func init() {
	// A missing .env is fine; system environment still applies.
	godotenv.Load()
}

func logLevel(debug bool) log.Level {
	if debug {
		return log.DebugLevel
	}
	return log.InfoLevel
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string) bool {
	return os.Getenv(key) == "true"
}
