package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/lostfound-api/internal/models"
	"github.com/noah-isme/lostfound-api/internal/repository"
	"github.com/noah-isme/lostfound-api/internal/service"
	"github.com/noah-isme/lostfound-api/pkg/config"
	"github.com/noah-isme/lostfound-api/pkg/database"
	"github.com/noah-isme/lostfound-api/pkg/logger"
)

const usage = `usage: lostfound-admin <command> [flags]

commands:
  migrate      apply pending database migrations
  seed-admin   create the administrator account from ADMIN_* settings
  expire       expire every open item past its pickup deadline
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	switch os.Args[1] {
	case "migrate":
		err = migrate(ctx, db, logr)
	case "seed-admin":
		err = seedAdmin(ctx, db, cfg.Admin, os.Args[2:], logr)
	case "expire":
		err = expire(ctx, db, cfg, logr)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logr.Fatal(os.Args[1]+" failed", zap.Error(err))
	}
}

func migrate(ctx context.Context, db *sqlx.DB, logr *zap.Logger) error {
	migrator, err := database.NewMigrator(db, logr)
	if err != nil {
		return err
	}
	applied, err := migrator.Up(ctx)
	if err != nil {
		return err
	}
	logr.Info("migrations applied", zap.Strings("versions", applied))
	return nil
}

func seedAdmin(ctx context.Context, db *sqlx.DB, defaults config.AdminSeedConfig, args []string, logr *zap.Logger) error {
	fs := flag.NewFlagSet("seed-admin", flag.ExitOnError)
	name := fs.String("name", defaults.Name, "display name")
	email := fs.String("email", defaults.Email, "login email")
	password := fs.String("password", defaults.Password, "login password (min 6 characters)")
	matricula := fs.String("matricula", defaults.Matricula, "registration number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" || len(*password) < 6 {
		fs.PrintDefaults()
		return errors.New("email and a password of at least 6 characters are required")
	}

	users := repository.NewUserRepository(db)
	taken, err := users.EmailTaken(ctx, *email, "")
	if err != nil {
		return err
	}
	if taken {
		logr.Info("administrator already present", zap.String("email", *email))
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	admin := &models.User{
		Name:         strings.TrimSpace(*name),
		Email:        strings.TrimSpace(*email),
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	if m := strings.TrimSpace(*matricula); m != "" {
		admin.Matricula = &m
	}
	if err := users.Create(ctx, admin); err != nil {
		return err
	}
	logr.Info("administrator created", zap.String("id", admin.ID), zap.String("email", admin.Email))
	return nil
}

func expire(ctx context.Context, db *sqlx.DB, cfg *config.Config, logr *zap.Logger) error {
	items := service.NewItemService(
		repository.NewItemRepository(db),
		nil,
		repository.NewAuditRepository(db),
		nil,
		nil,
		logr,
		service.ItemConfig{ExpiryMonths: cfg.Items.ExpiryMonths},
	)
	result, err := items.ExpireOverdue(ctx, service.SystemActor, models.RequestMeta{UserAgent: "lostfound-admin"})
	if err != nil {
		return err
	}
	logr.Info("overdue items expired", zap.String("today", result.Today), zap.Int("count", len(result.Expired)))
	return nil
}
