package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"quickshare/backend/api/handler"
	"quickshare/backend/common"
	"quickshare/backend/library/cert"
	"quickshare/backend/library/codec"
	"quickshare/backend/library/presence"
	"quickshare/backend/model"
	"quickshare/backend/server"
	"quickshare/backend/service"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const presenceReportInterval = 5 * time.Second

func main() {
	if err := common.LoadEnv(); err != nil {
		common.FatalLog(err)
	}
	flag.Parse()
	if *common.PrintVersion {
		println(common.Version)
		os.Exit(0)
	}
	if *common.PrintHelpFlag {
		common.PrintHelp()
		os.Exit(0)
	}
	common.SetupGinLog(*common.LogDir)
	common.SysLog("QuickShare " + common.Version + " started")
	if os.Getenv("GIN_MODE") != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	dataDir := *common.DataDir
	config, err := common.LoadConfigStore(filepath.Join(dataDir, common.ConfigFileName), dataDir)
	if err != nil {
		common.FatalLog(err)
	}
	if *common.Port != 0 {
		cfg := config.Snapshot()
		cfg.Network.Port = *common.Port
		if err := config.Apply(cfg); err != nil {
			common.FatalLog(err)
		}
	}

	key, err := codec.LoadOrCreateKey(filepath.Join(dataDir, common.KeyFileName))
	if err != nil {
		common.FatalLog(err)
	}

	store, err := model.Open(model.Options{
		DSN:        common.SQLDSN,
		SQLitePath: filepath.Join(dataDir, common.DatabaseFileName),
	})
	if err != nil {
		common.FatalLog(err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			common.SysError("failed to close database: " + err.Error())
		}
	}()

	shares := service.NewShareService(store, key, config)
	tracker := presence.NewTracker(common.PresenceWindow)
	h := handler.New(shares, service.NewTransferService(config), tracker, config)

	if args := flag.Args(); len(args) > 0 {
		summary, err := shares.CreateShare(args)
		if err != nil {
			common.FatalLog(err)
		}
		common.SysLog(fmt.Sprintf("shared %d file(s): %s", summary.FileCount, summary.URL))
	}

	srv := server.New(server.Options{
		Config:        config,
		Handler:       h,
		Certificates:  cert.NewManager(filepath.Join(dataDir, common.CertificateFileName), key),
		Key:           key,
		SessionSecret: common.SessionSecret,
		CORSOrigins:   common.CORSOrigins,
		WebDir:        *common.WebDir,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
		case err := <-srv.Errors():
			return err
		}
		common.SysLog("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	g.Go(func() error {
		logStoreChanges(ctx, store)
		return nil
	})
	g.Go(func() error {
		reportPresence(ctx, tracker)
		return nil
	})

	if err := g.Wait(); err != nil {
		common.FatalLog(err)
	}
}

func logStoreChanges(ctx context.Context, store *model.Store) {
	events, cancel := store.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			common.SysLog(fmt.Sprintf("share store changed: %s share %d", ev.Kind, ev.ShareID))
		}
	}
}

// reportPresence logs the number of online clients when it changes.
func reportPresence(ctx context.Context, tracker *presence.Tracker) {
	ticker := time.NewTicker(presenceReportInterval)
	defer ticker.Stop()
	last := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if count := tracker.GetOnlineCount(); count != last {
				common.SysLog(fmt.Sprintf("online clients: %d", count))
				last = count
			}
		}
	}
}
