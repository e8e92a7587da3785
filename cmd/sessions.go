package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/loreweaver/loreweaver/internal/config"
	"github.com/loreweaver/loreweaver/internal/log"
	"github.com/loreweaver/loreweaver/internal/session"
)

func newSessionsCmd() *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored conversations",
	}

	sessionsCmd.AddCommand(newSessionsListCmd())
	sessionsCmd.AddCommand(newSessionsShowCmd())
	sessionsCmd.AddCommand(newSessionsDeleteCmd())

	return sessionsCmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), runSessionsList)
		},
	}
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
				return runSessionsShow(ctx, store, args[0])
			})
		},
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
				return runSessionsDelete(ctx, store, args[0])
			})
		},
	}
}

// withStore connects to the configured database, runs fn against a session
// store, and tears the pool down afterwards. Maintenance commands skip the
// full application setup; they never touch the model provider.
func withStore(ctx context.Context, fn func(context.Context, *session.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	return fn(ctx, session.New(pool, log.New(log.Config{})))
}

func runSessionsList(ctx context.Context, store *session.Store) error {
	sessions, err := store.ListSessions(ctx, 100, 0)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions stored.")
		return nil
	}

	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		marker := ""
		if s.Archived {
			marker = " [archived]"
		}
		fmt.Printf("%s  %s%s\n    created %s, updated %s\n",
			s.ID, title, marker, formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	}

	return nil
}

func runSessionsShow(ctx context.Context, store *session.Store, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid session ID: %s", rawID)
	}

	s, err := store.Session(ctx, id)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	msgs, err := store.History(ctx, id)
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}

	fmt.Printf("Session: %s\n", s.ID)
	fmt.Printf("Title: %s\n", s.Title)
	fmt.Printf("Archived: %t\n", s.Archived)
	fmt.Printf("Created: %s\n", formatTime(s.CreatedAt))
	fmt.Printf("Messages: %d\n\n", len(msgs))

	for _, m := range msgs {
		fmt.Printf("[%s] %s\n", m.Role, m.Content)
	}

	return nil
}

func runSessionsDelete(ctx context.Context, store *session.Store, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid session ID: %s", rawID)
	}

	if err := store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	fmt.Printf("Deleted session %s\n", id)
	return nil
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}
