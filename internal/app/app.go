package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"receipt-sentinel/internal/command"
	"receipt-sentinel/internal/config"
	"receipt-sentinel/internal/database"
	"receipt-sentinel/internal/detector"
	"receipt-sentinel/internal/fetcher"
	"receipt-sentinel/internal/forwarder"
	"receipt-sentinel/internal/handlers"
	"receipt-sentinel/internal/learning"
	"receipt-sentinel/internal/metrics"
	"receipt-sentinel/internal/processor"
	"receipt-sentinel/internal/repository"
	"receipt-sentinel/internal/resolver"
	"receipt-sentinel/internal/scheduler"
	"receipt-sentinel/internal/server"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Receipt Sentinel")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dbConn, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.NewMetrics()
	repo := repository.New(dbConn)
	det := detector.New(cfg.Mail.SelfAddressList())
	res := resolver.New(repo, det)
	eng := learning.New(repo, det, cfg.Learning.AutoPromoteConfidence, cfg.Learning.AutoPromoteMatchCount)

	var mf fetcher.MailFetcher
	if cfg.Mail.UseIMAP {
		mf = fetcher.NewIMAPFetcher()
		logrus.Info("Using IMAP for email fetching")
	} else {
		mf, err = fetcher.NewGmailAPIFetcher(&cfg.Mail)
		if err != nil {
			return fmt.Errorf("failed to create Gmail API fetcher: %w", err)
		}
		logrus.Info("Using Gmail API for email fetching")
	}

	fw, err := forwarder.New(&cfg.Mail, cfg.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to create email forwarder: %w", err)
	}

	cmds := command.NewInterpreter(repo, fw, cfg.Mail.CommandSender)
	accounts := fetcher.NewStaticDirectory(cfg.Mail.Accounts)

	proc := processor.New(repo, res, eng, cmds, mf, accounts, fw, m, processor.Options{
		ForwardTarget:   cfg.Mail.ForwardTarget,
		IntervalMinutes: cfg.Scheduler.IntervalMinutes,
		LookbackDays:    cfg.Scheduler.LookbackDays,
		BatchLimit:      cfg.Scheduler.BatchLimit,
		RetentionHours:  cfg.Scheduler.RetentionHours,
	})

	sched := scheduler.New(scheduler.Config{
		IntervalMinutes:      cfg.Scheduler.IntervalMinutes,
		CleanupIntervalHours: cfg.Scheduler.CleanupIntervalHours,
	}, proc)

	h := handlers.NewHandlers(repo, res, eng, proc, sched, mf, accounts)
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := mf.Close(); err != nil {
		logrus.Errorf("Failed to close fetcher: %v", err)
	}
	if err := fw.Close(); err != nil {
		logrus.Errorf("Failed to close forwarder: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
