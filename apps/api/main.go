package main

import (
	"context"
	"log"
	"net/mail"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/mzalendo/maendeleo/apps/api/echo"
	"github.com/mzalendo/maendeleo/core"
	"github.com/mzalendo/maendeleo/core/achievement"
	"github.com/mzalendo/maendeleo/core/progress"
	"github.com/mzalendo/maendeleo/core/roadmap"
	emailsvc "github.com/mzalendo/maendeleo/services/email"
	logsvc "github.com/mzalendo/maendeleo/services/logger"
	notifsvc "github.com/mzalendo/maendeleo/services/notifier"
	"github.com/mzalendo/maendeleo/storage/database"
	sqlxrepos "github.com/mzalendo/maendeleo/storage/database/sqlx"
)

func main() {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, core.Conf)

	if err := run(logger); err != nil {
		logger.Critical(err.Error(), err)
		os.Exit(1)
	}
}

func run(logger core.Logger) error {
	// set up DB
	if err := database.CreateIfNotExist(core.Conf); err != nil {
		return err
	}
	db, err := database.Open(core.Conf)
	if err != nil {
		return err
	}
	defer db.Close()
	if err = database.Migrate(db); err != nil {
		return err
	}
	sdb := sqlx.NewDb(db, core.Conf.Database.Engine)

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	notifier := notifsvc.NewEmailNotifier(mailSvc, resolveUserEmail, logger)

	achievementSvc := achievement.NewService(sqlxrepos.NewAchievementRepository(sdb))
	progressSvc := progress.NewService(sqlxrepos.NewAccountRepository(sdb), achievementSvc, notifier, logger)
	roadmapSvc := roadmap.NewService(sqlxrepos.NewRoadmapRepository(sdb), progressSvc, logger)

	// start API server
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(
		&echoapi.Options{
			Address:        core.Conf.Server.Address(),
			ProgressSvc:    progressSvc,
			AchievementSvc: achievementSvc,
			RoadmapSvc:     roadmapSvc,
			Logger:         logger,
			Shutdown:       func() { shutdown <- syscall.SIGTERM },
		},
	)
	go func() { serverErrors <- app.Start() }()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		logger.Info("shutting down", sig)

		ctx, cancel := context.WithTimeout(context.Background(), core.Conf.Server.ShutdownTimeout)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			return err
		}
	}
	return nil
}

// resolveUserEmail maps user ids to addresses for progression digests.
// User identities live in a separate service; ids that are themselves
// addresses are used directly, anything else is dropped by the notifier.
func resolveUserEmail(userID string) (mail.Address, bool) {
	if addr, err := mail.ParseAddress(userID); err == nil {
		return *addr, true
	}
	return mail.Address{}, false
}
