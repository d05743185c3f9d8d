package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/learnhub/learnhub-backend/internal/config"
	"github.com/learnhub/learnhub-backend/internal/database"
	"github.com/learnhub/learnhub-backend/internal/logger"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/repository"
)

func main() {
	email := flag.String("email", "", "Email of the account to change")
	role := flag.String("role", string(model.RoleInstructor), "New role: student, instructor or admin")
	flag.Parse()

	switch model.Role(*role) {
	case model.RoleStudent, model.RoleInstructor, model.RoleAdmin:
	default:
		fmt.Fprintf(os.Stderr, "invalid role %q\n", *role)
		os.Exit(2)
	}
	if *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, logger.FileOptions{})

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	accounts := repository.NewAccountRepository(pool)

	account, err := accounts.GetByEmail(ctx, *email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			fmt.Printf("Error: no account with email %s\n", *email)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Failed to look up account")
	}

	if account.Role == model.Role(*role) {
		fmt.Printf("Account %d already has role %s\n", account.ID, account.Role)
		return
	}

	if err := accounts.UpdateRole(ctx, account.ID, model.Role(*role)); err != nil {
		log.Fatal().Err(err).Msg("Failed to update role")
	}

	// Existing access tokens keep the old role until they expire.
	fmt.Printf("Success! Account %d (%s): %s -> %s\n", account.ID, account.Email, account.Role, *role)
}
