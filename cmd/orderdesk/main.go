package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/orderdesk/orderdesk/config"
	"github.com/orderdesk/orderdesk/internal/adminapi"
	"github.com/orderdesk/orderdesk/internal/app"
	"github.com/orderdesk/orderdesk/internal/webserver"
)

var (
	BuildVersion string
	ReleaseDate  string
)

var (
	showVer  = flag.Bool("v", false, "print version and exit")
	conffile = flag.String("c", "orderdesk.yml", "config file path")
	initdb   = flag.Bool("initdb", false, "drop and recreate all tables, then exit")
)

func printVersion() {
	fmt.Fprintf(os.Stdout, "orderdesk %s (built %s)\n", BuildVersion, ReleaseDate)
}

func main() {
	flag.Parse()
	if *showVer {
		printVersion()
		return
	}

	cfg := config.LoadConfig(*conffile)
	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		zap.S().Info("database schema recreated")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	webserver.Init(application)
	adminapi.InitRouter()

	application.StartBackgroundJobs(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return webserver.Listen()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return webserver.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.S().Errorf("server exited: %v", err)
	}
	zap.S().Info("orderdesk stopped")
}
