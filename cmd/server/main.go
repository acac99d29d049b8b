// Command server runs the Payload MCP server: it exposes Payload CMS
// create/search/update operations as MCP tools over stdio, with JWT
// authentication and an interactive browser login flow.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/craftpad/payload-mcp/internal/auth"
	"github.com/craftpad/payload-mcp/internal/config"
	"github.com/craftpad/payload-mcp/internal/logging"
	"github.com/craftpad/payload-mcp/internal/mcpserver"
	"github.com/craftpad/payload-mcp/internal/payload"
	"github.com/craftpad/payload-mcp/internal/util"
	"github.com/craftpad/payload-mcp/internal/watcher"
)

func main() {
	var configPath string
	var login bool

	flag.StringVar(&configPath, "config", "", "configuration file path")
	flag.BoolVar(&login, "login", false, "authenticate via the browser and exit")
	flag.Parse()

	logging.Setup()

	if configPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("failed to get working directory: %v", err)
		}
		configPath = filepath.Join(wd, "config.yaml")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	util.SetLogLevel(cfg)
	if errLog := logging.ConfigureOutput(cfg.LoggingToFile); errLog != nil {
		log.Fatalf("failed to configure logging: %v", errLog)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := auth.NewManager(cfg)
	client := payload.NewClient(cfg)
	manager.AddAuthCallback(client.SetAuthToken)

	if login {
		doBrowserLogin(ctx, manager)
		return
	}

	srv := mcpserver.New(client, manager)
	srv.VerifyConnection(ctx)

	if w, errWatch := watcher.NewWatcher(configPath, func(newCfg *config.Config) {
		client.UpdateConfig(newCfg)
		manager.UpdateConfig(newCfg)
		util.SetLogLevel(newCfg)
	}); errWatch != nil {
		log.Warnf("config watching disabled: %v", errWatch)
	} else {
		go func() {
			if errStart := w.Start(ctx); errStart != nil {
				log.Errorf("config watcher stopped: %v", errStart)
			}
		}()
	}

	defer manager.StopBrowserAuth()
	if errServe := srv.Start(ctx); errServe != nil {
		log.Fatalf("server error: %v", errServe)
	}
}

// doBrowserLogin runs the interactive flow from the command line.
func doBrowserLogin(ctx context.Context, manager *auth.Manager) {
	if err := manager.StartBrowserAuth(ctx); err != nil {
		log.Fatalf("failed to start browser authentication: %v", err)
	}

	log.Info("waiting for login in the browser...")
	if !manager.WaitForBrowserAuth(ctx, 5*time.Minute) {
		log.Fatal("browser authentication did not complete")
	}
	log.Info("authentication successful")
}
