// Command devdb prepares a local development database: it runs the schema
// migrations and seeds a verified demo account. Safe to run repeatedly.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nrs-org/nrs-auth/internal/config"
	"github.com/nrs-org/nrs-auth/internal/crypt"
	"github.com/nrs-org/nrs-auth/internal/logger"
	"github.com/nrs-org/nrs-auth/internal/mail"
	"github.com/nrs-org/nrs-auth/internal/model"
	"github.com/nrs-org/nrs-auth/internal/repository/postgres"
	"github.com/nrs-org/nrs-auth/internal/service"
)

const (
	demoUsername = "demo"
	demoEmail    = "demo@localhost"
	demoPassword = "demo-password"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	logger.Info("Devdb: migrations applied")

	userRepo := postgres.NewUserRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	tokenRepo := postgres.NewOneTimeTokenRepository(db)
	linkRepo := postgres.NewOAuthLinkRepository(db)

	passwordHasher := crypt.NewPasswordHasher(cfg.Secrets.PasswordPepper, crypt.DefaultArgon2idParams())
	tokenHasher := crypt.NewTokenHasher(cfg.Secrets.TokenKey)
	cipher, err := crypt.NewCipher(cfg.Secrets.EncryptionKey)
	if err != nil {
		logger.Fatal("failed to initialize cipher", "error", err)
	}

	clock := model.SystemClock{}
	mailer := mail.NewLogMailer(logger)

	sessions := service.NewSessions(sessionRepo, userRepo, tokenHasher, clock, logger, cfg.Sessions.TTL, cfg.Sessions.Sliding)
	tokens := service.NewOneTimeTokens(tokenRepo, tokenHasher, clock, logger)
	links := service.NewOAuthLinks(linkRepo, userRepo, cipher, logger)

	auth := service.NewAuth(userRepo, db, sessions, tokens, links, passwordHasher, mailer, logger, service.AuthConfig{
		EmailVerificationTTL: cfg.Tokens.EmailVerificationTTL,
		PasswordResetTTL:     cfg.Tokens.PasswordResetTTL,
	})

	user, err := auth.Register(ctx, demoUsername, demoEmail, demoPassword, service.RequestMeta{})
	if err != nil {
		if errors.Is(err, model.ErrEmailOrUsernameTaken) {
			logger.Info("Devdb: demo user already seeded", "username", demoUsername)
			return
		}
		logger.Fatal("failed to seed demo user", "error", err)
	}

	if err := userRepo.MarkEmailVerified(ctx, user.ID); err != nil {
		logger.Fatal("failed to verify demo user", "error", err)
	}

	logger.Info("Devdb: demo user seeded",
		"username", demoUsername,
		"user_id", user.ID)
}
