// The mailer consumes verification email jobs from the queue and delivers
// them over SMTP. It runs separately from the API server so a slow relay
// never blocks request handling.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"convoai/internal/config"
	"convoai/internal/util"
	"convoai/pkg/mail"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	util.InitLogger(cfg.LogLevel)

	if cfg.AMQPURL == "" {
		fatal("amqpURL is required for the mailer")
	}
	sender, err := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		fatal("failed to init smtp sender", "err", err)
	}
	queue, err := mail.NewAMQPQueue(cfg.AMQPURL, cfg.MailQueue)
	if err != nil {
		fatal("failed to connect mail queue", "err", err)
	}
	defer queue.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.Consume(ctx, func(ctx context.Context, job mail.Job) error {
			subject, body := mail.VerificationEmail(job, cfg.AppURL)
			if err := sender.Send(job.Email, subject, body); err != nil {
				return err
			}
			slog.Info("verification email sent", "email", job.Email)
			return nil
		})
	})

	slog.Info("mailer consuming", "queue", cfg.MailQueue)
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		fatal("mailer error", "err", err)
	}
}

func fatal(msg string, attrs ...any) {
	slog.Error(msg, attrs...)
	os.Exit(1)
}
