package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/group-harmony/internal/logging"
	"github.com/jonathan/group-harmony/internal/types"
)

// GetUserByEmail returns a member's taste profile.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*types.UserProfile, error) {
	email = normalizeEmail(email)

	var (
		p         types.UserProfile
		interests []byte
	)
	err := db.pool.QueryRow(ctx,
		`SELECT email, name, interests, updated_at FROM users WHERE email = $1`,
		email,
	).Scan(&p.Email, &p.Name, &interests, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrUserNotFound{Email: email}
		}
		return nil, fmt.Errorf("failed to get user %s: %w", email, err)
	}

	var skipped int
	p.Interests, skipped, err = decodeInterests(interests)
	if err != nil {
		return nil, fmt.Errorf("failed to decode interests for %s: %w", email, err)
	}
	if skipped > 0 {
		logging.Ctx(ctx).Warn().Int("skipped", skipped).Msg("Dropped malformed interest entries")
	}
	return &p, nil
}

// UpsertUser creates or replaces a member profile.
func (db *DB) UpsertUser(ctx context.Context, p types.UserProfile) error {
	email := normalizeEmail(p.Email)
	if email == "" {
		return fmt.Errorf("user email is required")
	}

	interests := p.Interests
	if interests == nil {
		interests = types.InterestLists{}
	}
	data, err := json.Marshal(interests)
	if err != nil {
		return fmt.Errorf("failed to marshal interests: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO users (email, name, interests)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE SET name = $2, interests = $3, updated_at = NOW()`,
		email, p.Name, data,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", email, err)
	}
	return nil
}

// decodeInterests reads the JSONB interests column. Entries may be plain
// strings or {name, id} objects. Null and non-list fields are dropped, and
// entries that decode as neither shape are skipped and counted.
func decodeInterests(data []byte) (types.InterestLists, int, error) {
	out := types.InterestLists{}
	if len(data) == 0 {
		return out, 0, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, err
	}

	skipped := 0
	for field, value := range raw {
		var entries []json.RawMessage
		if err := json.Unmarshal(value, &entries); err != nil {
			continue
		}
		var list []types.Interest
		for _, entry := range entries {
			var in types.Interest
			if err := json.Unmarshal(entry, &in); err != nil {
				skipped++
				continue
			}
			if in.Name != "" {
				list = append(list, in)
			}
		}
		if len(list) > 0 {
			out[field] = list
		}
	}
	return out, skipped, nil
}
