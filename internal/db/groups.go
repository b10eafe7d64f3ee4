package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/group-harmony/internal/types"
)

// joinCodeLength is the length of generated group join codes.
const joinCodeLength = 6

// GetGroupMembers returns the member emails of a group in stored order.
func (db *DB) GetGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	var members []string
	err := db.pool.QueryRow(ctx,
		`SELECT members FROM groups WHERE id = $1`,
		groupID,
	).Scan(&members)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrGroupNotFound{GroupID: groupID}
		}
		return nil, fmt.Errorf("failed to get group %s: %w", groupID, err)
	}

	members = compactEmails(members)
	if len(members) == 0 {
		return nil, &ErrEmptyGroup{GroupID: groupID}
	}
	return members, nil
}

// GetGroup returns the full group record.
func (db *DB) GetGroup(ctx context.Context, groupID string) (*types.Group, error) {
	g := &types.Group{}
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, owner_email, COALESCE(members, '{}'), category, created_at, updated_at
		 FROM groups WHERE id = $1`,
		groupID,
	).Scan(&g.ID, &g.Name, &g.Owner, &g.Members, &g.Category, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrGroupNotFound{GroupID: groupID}
		}
		return nil, fmt.Errorf("failed to get group %s: %w", groupID, err)
	}
	return g, nil
}

// CreateGroup inserts a group. An empty ID gets a generated join code, and
// the owner is added to the member list when missing. The stored group is returned.
func (db *DB) CreateGroup(ctx context.Context, g types.Group) (*types.Group, error) {
	if g.ID == "" {
		g.ID = NewJoinCode()
	}
	if g.Owner == "" {
		return nil, fmt.Errorf("group owner is required")
	}
	g.Members = compactEmails(append([]string{g.Owner}, g.Members...))

	err := db.pool.QueryRow(ctx,
		`INSERT INTO groups (id, name, owner_email, members, category)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		g.ID, g.Name, g.Owner, g.Members, g.Category,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return &g, nil
}

// DeleteGroup removes a group. Deleting a missing group is not an error.
func (db *DB) DeleteGroup(ctx context.Context, groupID string) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, groupID); err != nil {
		return fmt.Errorf("failed to delete group %s: %w", groupID, err)
	}
	return nil
}

// NewJoinCode returns a short upper-case group code.
func NewJoinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:joinCodeLength])
}

// compactEmails trims and lower-cases emails, dropping blanks and repeats.
func compactEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = normalizeEmail(e)
		if e == "" {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
