// Command quizler starts the real-time multiplayer quiz server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing the REST API, the player WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Settings come from an optional YAML file and QUIZLER_* environment
// variables; flags override both. An ngrok tunnel can expose the server
// publicly for playing with people outside the local network.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/quizler/api"
	"github.com/wricardo/quizler/game/config"
	"github.com/wricardo/quizler/game/directory"
	"github.com/wricardo/quizler/game/service"
	"github.com/wricardo/quizler/observability"
	"github.com/wricardo/quizler/settings"
	"github.com/wricardo/quizler/transport/mcp"
	"github.com/wricardo/quizler/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Quizler Server"
)

// cliFlags holds command line overrides. Only flags that were set explicitly
// replace values from settings.
type cliFlags struct {
	configFile  string
	host        string
	port        int
	quizDir     string
	debug       bool
	version     bool
	ngrok       bool
	ngrokDomain string

	set  map[string]bool
	mode string
}

func parseFlags(fs *flag.FlagSet, args []string) (*cliFlags, error) {
	f := &cliFlags{set: make(map[string]bool)}
	fs.StringVar(&f.configFile, "config", os.Getenv("QUIZLER_CONFIG"), "Path to a YAML settings file (optional)")
	fs.StringVar(&f.host, "host", "", "HTTP server host")
	fs.IntVar(&f.port, "port", 0, "HTTP server port")
	fs.StringVar(&f.quizDir, "quiz-dir", "", "Directory containing quiz banks")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&f.version, "version", false, "Show version information")
	fs.BoolVar(&f.ngrok, "ngrok", false, "Enable ngrok tunnel (needs NGROK_AUTHTOKEN)")
	fs.StringVar(&f.ngrokDomain, "ngrok-domain", "", "Custom ngrok domain (optional)")

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: %s [OPTIONS] [MODE]\n\n", fs.Name())
		fmt.Fprintf(out, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(out, "Available modes:\n")
		fmt.Fprintf(out, "  server, http     Run HTTP server with API, WebSocket, and MCP endpoint (default)\n")
		fmt.Fprintf(out, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(out, "  mcp-stdio, mcp   Aliases for stdio-mcp\n")
		fmt.Fprintf(out, "\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nExamples:\n")
		fmt.Fprintf(out, "  %s                         # Run HTTP server on default port 8080\n", fs.Name())
		fmt.Fprintf(out, "  %s -port 9090              # Run HTTP server on port 9090\n", fs.Name())
		fmt.Fprintf(out, "  %s -config quizler.yaml    # Load settings from a file\n", fs.Name())
		fmt.Fprintf(out, "  %s stdio-mcp               # Run MCP stdio server\n", fs.Name())
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })

	f.mode = "server"
	if fs.NArg() > 0 {
		f.mode = fs.Arg(0)
	}
	return f, nil
}

// apply copies explicitly set flags over cfg and revalidates it.
func (f *cliFlags) apply(cfg *settings.Config) error {
	if f.set["host"] {
		cfg.Server.Host = f.host
	}
	if f.set["port"] {
		cfg.Server.Port = f.port
	}
	if f.set["quiz-dir"] {
		cfg.Games.QuizDir = f.quizDir
	}
	if f.debug {
		cfg.Logging.Level = "debug"
	}
	if f.ngrok {
		cfg.Ngrok.Enabled = true
	}
	if f.set["ngrok-domain"] {
		cfg.Ngrok.Domain = f.ngrokDomain
	}
	return cfg.Validate()
}

// main parses flags, initializes services, and starts the selected mode.
func main() {
	// Load .env file if it exists (ignore error if not found)
	envErr := godotenv.Load()

	flags, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	// Show version if requested
	if flags.version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	cfg, err := settings.Load(flags.configFile)
	if err == nil {
		err = flags.apply(&cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if envErr == nil {
		logger.Info("loaded environment variables from .env file")
	} else if !os.IsNotExist(envErr) {
		logger.Warn("error loading .env file", zap.Error(envErr))
	}

	logger.Info("starting",
		zap.String("app", AppName),
		zap.String("version", Version),
		zap.String("mode", flags.mode))

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize services", zap.Error(err))
	}

	switch flags.mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		a.runStdioMCP()

	case "server", "http":
		a.runHTTPServer()

	default:
		logger.Fatal("unknown mode, use 'server' (default) or 'stdio-mcp'", zap.String("mode", flags.mode))
	}
}

// app holds the long-lived components shared by every mode.
type app struct {
	cfg     settings.Config
	logger  *zap.Logger
	service service.GameService
	hub     *websocket.Hub

	hubCtx    context.Context
	hubCancel context.CancelFunc
}

// newApp wires the quiz store, game directory, game service and websocket hub.
func newApp(cfg settings.Config, logger *zap.Logger) (*app, error) {
	quizzes, err := config.NewManager(cfg.Games.QuizDir, logger.Named("quizzes"))
	if err != nil {
		return nil, fmt.Errorf("failed to create quiz manager: %w", err)
	}

	games := directory.New()
	gameService := service.NewGameService(games, quizzes, service.Options{
		MaxPlayers:   cfg.Games.MaxPlayers,
		SyncInterval: cfg.Games.SyncInterval,
		FinishGrace:  cfg.Games.FinishGrace,
		IdleTimeout:  cfg.Games.IdleTimeout,
		Logger:       logger.Named("games"),
	})

	hub := websocket.NewHub(games, websocket.Options{
		AdmitTimeout: cfg.Games.AdmitTimeout,
		Logger:       logger.Named("ws"),
	})
	hubCtx, hubCancel := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	return &app{
		cfg:       cfg,
		logger:    logger,
		service:   gameService,
		hub:       hub,
		hubCtx:    hubCtx,
		hubCancel: hubCancel,
	}, nil
}

// handler combines the API server and the /mcp endpoint. baseURL is where
// the MCP proxy reaches the API.
func (a *app) handler(baseURL string) http.Handler {
	apiServer := api.NewServer(a.service, a.hub, a.logger.Named("api"))
	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcpClient.GetMCPServer()))
	return mainRouter
}

// mcpHandler answers one JSON-RPC message per POST.
func mcpHandler(mcpServer *server.MCPServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpServer.HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// shutdown ends every game so players receive final scores, then closes
// the remaining websocket connections.
func (a *app) shutdown(ctx context.Context) {
	if err := a.service.Shutdown(ctx); err != nil {
		a.logger.Warn("game shutdown incomplete", zap.Error(err))
	}
	a.hubCancel()
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func (a *app) runHTTPServer() {
	addr := a.cfg.Server.Addr()
	mainRouter := a.handler(fmt.Sprintf("http://%s", addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	// Setup graceful shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		a.logger.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("api", fmt.Sprintf("http://%s/api", addr)),
			zap.String("websocket", fmt.Sprintf("ws://%s/ws", addr)),
			zap.String("mcp", fmt.Sprintf("http://%s/mcp", addr)))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	if a.cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.runNgrok(ctx, mainRouter)
		}()
	}

	// Wait for shutdown signal
	sig := <-stop
	a.logger.Info("shutting down", zap.Stringer("signal", sig))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}
	a.shutdown(shutdownCtx)

	wg.Wait()
	a.logger.Info("server stopped")
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled.
func (a *app) runNgrok(ctx context.Context, handler http.Handler) {
	a.logger.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if a.cfg.Ngrok.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(a.cfg.Ngrok.Domain))
		a.logger.Info("using custom ngrok domain", zap.String("domain", a.cfg.Ngrok.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(a.cfg.Ngrok.AuthToken))
	if err != nil {
		a.logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			a.logger.Warn("failed to close ngrok tunnel", zap.Error(err))
		}
	}()

	ngrokURL := tun.URL()
	a.logger.Info("ngrok tunnel established",
		zap.String("url", ngrokURL),
		zap.String("api", ngrokURL+"/api"),
		zap.String("websocket", ngrokURL+"/ws"),
		zap.String("mcp", ngrokURL+"/mcp"))

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		a.logger.Warn("ngrok server error", zap.Error(err))
	}
	a.logger.Info("ngrok tunnel closed")
}

// runStdioMCP runs an MCP stdio server.
// It reuses an API already listening on the configured port; if there is
// none, it starts an internal HTTP API bound to a random loopback port.
func (a *app) runStdioMCP() {
	externalURL := fmt.Sprintf("http://%s", a.cfg.Server.Addr())
	baseURL := externalURL

	a.logger.Info("checking for external API server", zap.String("url", externalURL))
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		a.logger.Info("external API server found, using it for MCP", zap.String("url", externalURL))
	} else {
		a.logger.Info("no external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			a.logger.Fatal("failed to get available port", zap.Error(err))
		}
		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())

		httpServer := &http.Server{Handler: a.handler(baseURL)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				a.logger.Error("internal HTTP server error", zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			httpServer.Shutdown(ctx)
			a.shutdown(ctx)
		}()

		a.logger.Info("internal HTTP server started", zap.String("url", baseURL))
	}

	mcpClient := mcp.NewClient(baseURL)
	a.logger.Info("MCP stdio server ready", zap.String("api", baseURL))

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		a.logger.Error("MCP stdio server error", zap.Error(err))
	}
}
