// Command dbcheck connects to the configured database, applies migrations,
// and prints a short summary of its contents.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dukerupert/tasktrek/internal/config"
	"github.com/dukerupert/tasktrek/internal/database"
	"github.com/dukerupert/tasktrek/internal/store"
)

const recentUsers = 5

func main() {
	if err := run(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "dbcheck: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Fprintf(w, "Connected (%s)\n", cfg.DB.Driver)
	return report(ctx, w, store.NewUserStore(db), store.NewTaskStore(db))
}

func report(ctx context.Context, w io.Writer, users *store.UserStore, tasks *store.TaskStore) error {
	userCount, err := users.Count(ctx)
	if err != nil {
		return err
	}
	taskCount, err := tasks.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Users: %d\nTasks: %d\n", userCount, taskCount)

	recent, err := users.ListRecent(ctx, recentUsers)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		return nil
	}
	fmt.Fprintln(w, "Recent users:")
	for _, u := range recent {
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.CreatedAt.Format(time.DateOnly))
	}
	return nil
}
