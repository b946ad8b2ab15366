package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/benvon/taskflow/internal/config"
	"github.com/benvon/taskflow/internal/database"
)

// openDatabase loads configuration and connects to PostgreSQL. The returned
// close func logs instead of failing.
func openDatabase() (*config.Config, *database.DB, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.MemoryMode() {
		return nil, nil, nil, errors.New("memory mode keeps settings inside the server process; point DATABASE_URL at PostgreSQL")
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	return cfg, db, closeDB, nil
}
