package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/learnhub/learnhub-backend/internal/config"
	"github.com/learnhub/learnhub-backend/internal/logger"
	"github.com/rs/zerolog"
)

type command struct {
	args  string
	about string
	run   func(m *migrate.Migrate, args []string) error
}

var commands = map[string]command{
	"up": {"", "apply all pending migrations", func(m *migrate.Migrate, _ []string) error {
		return m.Up()
	}},
	"down": {"", "roll back every migration (drops all quiz data)", func(m *migrate.Migrate, _ []string) error {
		return m.Down()
	}},
	"steps": {"<n>", "apply n migrations, negative n rolls back", func(m *migrate.Migrate, args []string) error {
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Steps(n)
	}},
	"force": {"<version>", "set the version without running migrations (clears dirty)", func(m *migrate.Migrate, args []string) error {
		v, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Force(v)
	}},
	"version": {"", "print the current schema version", func(m *migrate.Migrate, _ []string) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty=%t)\n", v, dirty)
		return nil
	}},
}

func main() {
	dir := flag.String("path", "migrations", "directory holding the *.sql migrations")
	flag.Usage = usage
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, logger.FileOptions{})

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		log.Error().Str("command", args[0]).Msg("Unknown command")
		usage()
		os.Exit(2)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}

	m, err := migrate.New("file://"+*dir, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dir).Msg("Failed to open migrations")
	}
	defer closeMigrate(m, log)

	err = cmd.run(m, args[1:])
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info().Str("command", args[0]).Msg("Schema already up to date")
	case err != nil:
		log.Error().Err(err).Str("command", args[0]).Msg("Migration failed")
		closeMigrate(m, log)
		os.Exit(1)
	default:
		log.Info().Str("command", args[0]).Msg("Migration finished")
	}
}

func intArg(args []string) (int, error) {
	if len(args) < 1 {
		return 0, errors.New("missing numeric argument")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", args[0], err)
	}
	return n, nil
}

func closeMigrate(m *migrate.Migrate, log zerolog.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("Close migrator")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [-path dir] <command> [arg]")
	fmt.Fprintln(os.Stderr, "Commands:")
	for _, name := range []string{"up", "down", "steps", "force", "version"} {
		c := commands[name]
		fmt.Fprintf(os.Stderr, "  %-8s %-10s %s\n", name, c.args, c.about)
	}
	fmt.Fprintln(os.Stderr, "Flags:")
	flag.PrintDefaults()
}
