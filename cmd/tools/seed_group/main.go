// Command seed_group loads a demo group and its members into the preference store.
//
// Usage:
//
//	go run ./cmd/tools/seed_group [fixture.json]
//
// Without an argument the embedded demo fixture is used. Existing users are
// updated; an existing group with the same ID is replaced.
// Requires DATABASE_URL (or STORE_CREDENTIALS) to be set.
package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/jonathan/group-harmony/internal/config"
	"github.com/jonathan/group-harmony/internal/db"
	"github.com/jonathan/group-harmony/internal/types"
)

//go:embed demo_group.json
var demoFixture []byte

// fixture is the seed file format.
type fixture struct {
	Group types.Group         `json:"group"`
	Users []types.UserProfile `json:"users"`
}

func parseFixture(data []byte) (*fixture, error) {
	var f fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if f.Group.Owner == "" {
		return nil, fmt.Errorf("fixture group has no owner")
	}
	return &f, nil
}

func main() {
	_ = godotenv.Load()

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	data := demoFixture
	if len(args) > 0 {
		var err error
		if data, err = os.ReadFile(args[0]); err != nil {
			return err
		}
	}

	f, err := parseFixture(data)
	if err != nil {
		return err
	}

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	return seed(ctx, database, f)
}

func seed(ctx context.Context, database *db.DB, f *fixture) error {
	fmt.Println("=== Seeding demo group ===")

	if err := database.Migrate(ctx); err != nil {
		return err
	}

	for _, u := range f.Users {
		if err := database.UpsertUser(ctx, u); err != nil {
			return err
		}
		fmt.Printf("  user  %s (%d interest lists)\n", u.Email, len(u.Interests))
	}

	if f.Group.ID != "" {
		existing, err := database.GetGroup(ctx, f.Group.ID)
		var notFound *db.ErrGroupNotFound
		switch {
		case errors.As(err, &notFound):
		case err != nil:
			return err
		default:
			fmt.Printf("  replacing group %s (%d members)\n", existing.ID, len(existing.Members))
			if err := database.DeleteGroup(ctx, existing.ID); err != nil {
				return err
			}
		}
	}
	g, err := database.CreateGroup(ctx, f.Group)
	if err != nil {
		return err
	}

	fmt.Printf("  group %s (%d members)\n", g.ID, len(g.Members))
	fmt.Println()
	fmt.Printf("Try: harmony recommend --group %s --type music\n", g.ID)
	return nil
}
