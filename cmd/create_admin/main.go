package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"pixelforge/internal/config"
	"pixelforge/internal/database"
	"pixelforge/internal/domain"
	"pixelforge/internal/logging"
	"pixelforge/internal/util"
)

func main() {
	email := pflag.String("email", "admin@pixelforge.dev", "admin email address")
	password := pflag.String("password", "", "admin password (at least 8 characters)")
	name := pflag.String("name", "Site Administrator", "admin display name")
	pflag.Parse()

	if len(*password) < 8 {
		fmt.Fprintln(os.Stderr, "--password is required and must be at least 8 characters")
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(&cfg.Log, cfg.App.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := database.Init(&cfg.Database, log); err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer func() { _ = database.Close() }()

	created, err := createAdmin(database.GetDB(), *name, *email, *password)
	if err != nil {
		log.Fatal("failed to create admin", zap.Error(err))
	}
	if !created {
		fmt.Printf("A user with email %s already exists.\n", util.NormalizeEmail(*email))
		return
	}
	fmt.Printf("Admin user %s created. Change the password after first login.\n", util.NormalizeEmail(*email))
}

// createAdmin inserts an active admin unless the email is already taken.
func createAdmin(db *gorm.DB, name, email, password string) (bool, error) {
	email = util.NormalizeEmail(email)

	var existing domain.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	hashed, err := util.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	admin := domain.User{
		Name:          name,
		Email:         email,
		Password:      hashed,
		Role:          domain.RoleAdmin,
		AccountStatus: domain.AccountActive,
	}
	if err := db.Create(&admin).Error; err != nil {
		return false, err
	}
	return true, nil
}
