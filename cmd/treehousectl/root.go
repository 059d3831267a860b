package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/untoldecay/treehouse/internal/config"
	"github.com/untoldecay/treehouse/internal/corestore/sqlite"
	"github.com/untoldecay/treehouse/internal/engine"
	"github.com/untoldecay/treehouse/internal/entities"
	"github.com/untoldecay/treehouse/internal/ephemeralstore"
	"github.com/untoldecay/treehouse/internal/nodetypes"
	"github.com/untoldecay/treehouse/internal/registry"
	"github.com/untoldecay/treehouse/internal/types"
)

var (
	storePath      string
	jsonOutput     bool
	onConflictFlag string

	eng       *engine.Engine
	cfg       config.Config
	storeLock *flock.Flock
)

var rootCmd = &cobra.Command{
	Use:           "treehousectl",
	Short:         "Smoke-test CLI over the treehouse engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bootstrap()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "path to the sqlite store file (defaults to config's store-path)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON instead of styled text")
	rootCmd.PersistentFlags().StringVar(&onConflictFlag, "on-conflict", "", "default onNameConflict policy: error | auto-rename")
}

// Execute runs the command tree; commands add themselves to rootCmd via
// init(), the teacher's cmd/bd convention.
func Execute() error {
	return rootCmd.Execute()
}

func bootstrap() error {
	if err := config.Initialize(); err != nil {
		// A missing config file is not fatal; defaults apply.
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	cfg = config.Load()
	if storePath != "" {
		cfg.StorePath = storePath
	}
	if onConflictFlag != "" {
		cfg.OnNameConflict = types.OnNameConflict(onConflictFlag)
	}

	if dir := filepath.Dir(cfg.StorePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("preparing store directory: %w", err)
		}
	}

	if err := acquireStoreLock(cfg.StorePath, cfg.LockTimeout); err != nil {
		return err
	}

	core, err := sqlite.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	reg := registry.New()
	handlers := entities.HandlerSet{}
	eph := ephemeralstore.New()

	if err := nodetypes.RegisterBuiltins(reg, handlers, core, eph); err != nil {
		return fmt.Errorf("registering built-in node types: %w", err)
	}

	eng = engine.New(core, eph, reg, handlers)
	return nil
}

// acquireStoreLock takes an exclusive lock on storePath+".lock" so two
// treehousectl invocations never write the same sqlite store concurrently,
// mirroring the teacher's sync.lock guard around its own storage mutation.
func acquireStoreLock(storePath string, timeout time.Duration) error {
	storeLock = flock.New(storePath + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	locked, err := storeLock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquiring store lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("store %s is locked by another treehousectl process", storePath)
	}
	return nil
}

func releaseStoreLock() {
	if storeLock != nil {
		_ = storeLock.Unlock()
	}
}

func effectiveOnConflict() types.OnNameConflict {
	if cfg.OnNameConflict == "" {
		return types.ConflictError
	}
	return cfg.OnNameConflict
}
