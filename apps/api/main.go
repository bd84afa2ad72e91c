package main

import (
	"context"
	"log"
	"net/mail"
	"os"
	"os/signal"
	"syscall"
	"time"

	echoapi "github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/user"
	"github.com/trezcool/ratiba/core/window"
	emailsvc "github.com/trezcool/ratiba/services/email"
	logsvc "github.com/trezcool/ratiba/services/logger"
	"github.com/trezcool/ratiba/storage/database"
	sqlxrepos "github.com/trezcool/ratiba/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	var logger core.Logger
	if conf.RollbarToken != "" {
		logger = logsvc.NewRollbarLogger(std, conf)
	} else {
		logger = logsvc.NewStdLogger(std)
	}

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer func() { _ = db.Close() }()
	if err = database.Migrate(db); err != nil {
		logger.Fatal("migrating database", err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo)

	winRepo := sqlxrepos.NewWindowRepository(db)
	winSvc := window.NewService(
		winRepo,
		mailSvc,
		window.Policy{RequireFutureStart: conf.Window.RequireFutureStart},
		coordinatorRecipients(usrSvc),
	)
	winGate := window.NewGate(winRepo)

	validate, translator := core.NewValidator()

	// start API server
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(
		&echoapi.Options{
			Conf:       conf,
			Logger:     logger,
			UserSvc:    usrSvc,
			WindowSvc:  winSvc,
			WindowGate: winGate,
			Validate:   validate,
			Translator: translator,
		},
		shutdown,
	)
	go app.Start()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		logger.Error("stopping server", err)
	}
}

// coordinatorRecipients resolves the schedule-change notification audience.
func coordinatorRecipients(svc *user.Service) window.RecipientsFunc {
	return func(ctx context.Context) []mail.Address {
		users, err := svc.QueryByRole(ctx, user.RoleCoordinator)
		if err != nil {
			return nil
		}
		addrs := make([]mail.Address, 0, len(users))
		for _, u := range users {
			addrs = append(addrs, mail.Address{Name: u.Name, Address: u.Email})
		}
		return addrs
	}
}
