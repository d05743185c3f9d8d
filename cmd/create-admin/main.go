package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/learnhub/learnhub-backend/internal/config"
	"github.com/learnhub/learnhub-backend/internal/database"
	"github.com/learnhub/learnhub-backend/internal/logger"
	"github.com/learnhub/learnhub-backend/internal/model"
	"github.com/learnhub/learnhub-backend/internal/repository"
	"github.com/learnhub/learnhub-backend/internal/service"
	"golang.org/x/term"
)

func main() {
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

	// ─── Initialize Service ────────────────────────────────────────────
	// Refresh tokens are never issued here, so no Redis client is needed.
	authService := service.NewAuthService(cfg, repository.NewAccountRepository(pool), nil, log)
	userRepo := repository.NewUserRepository(pool)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create Staff Account ===")

	fmt.Print("Enter Display Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println()
	if len(password) < 8 {
		fmt.Println("Error: Password must be at least 8 characters")
		return
	}

	fmt.Print("Enter Role [admin|instructor] (default admin): ")
	roleStr, _ := reader.ReadString('\n')
	role := model.Role(strings.ToLower(strings.TrimSpace(roleStr)))
	switch role {
	case "":
		role = model.RoleAdmin
	case model.RoleAdmin, model.RoleInstructor:
	default:
		fmt.Println("Error: Role must be admin or instructor")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	account, err := authService.CreateAccount(ctx, email, password, role)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			fmt.Println("Error: an account with this email already exists; use set-role to promote it")
			return
		}
		log.Fatal().Err(err).Msg("Failed to create account")
	}

	if _, err := userRepo.EnsureByAccount(ctx, account.ID, name); err != nil {
		log.Fatal().Err(err).Msg("Failed to create profile")
	}

	fmt.Printf("\nSuccess! %s '%s' (%s) created with account ID: %d\n", account.Role, name, account.Email, account.ID)
}
