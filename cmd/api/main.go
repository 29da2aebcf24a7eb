package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/config"
	"github.com/ticnexus/nexus/pkg/database"
	"github.com/ticnexus/nexus/pkg/digital"
	"github.com/ticnexus/nexus/pkg/migrations"
	"github.com/ticnexus/nexus/pkg/server"
	"github.com/ticnexus/nexus/pkg/version"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting nexus", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	if err := initVaultDir(cfg.VaultDir); err != nil {
		log.Err(err).Fatal("vault directory error")
	}
	log.Info("vault directory initialized", logger.Data{"path": cfg.VaultDir})

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	authService := auth.NewService(db, cfg.JWTSecret, cfg.TokenExpiry)
	if _, err := authService.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword); err != nil {
		log.Err(err).Fatal("bootstrap admin error")
	}

	dedup, err := digital.NewDeduper(ctx, cfg)
	if err != nil {
		log.Err(err).Fatal("download dedup error")
	}

	srv, err := server.New(cfg, db, dedup)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}

		log.Info("server started", logger.Data{"port": listener.Addr().(*net.TCPAddr).Port})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	err = dedup.Close()
	if err != nil {
		log.Err(err).Error("download dedup close error")
	}

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

// initVaultDir creates the digital library directory and verifies write
// permissions.
func initVaultDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create vault directory: %s", dir)
	}

	testFile := filepath.Join(dir, ".write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return errors.Wrapf(err, "vault directory is not writable: %s", dir)
	}
	f.Close()

	if err := os.Remove(testFile); err != nil {
		return errors.Wrapf(err, "failed to clean up write test file: %s", testFile)
	}

	return nil
}
