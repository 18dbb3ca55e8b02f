package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/basket/haxxor-bunny/internal/hi3"
)

// ErrDuplicateName is returned when a create or rename collides with an
// existing name, compared case-insensitively.
var ErrDuplicateName = errors.New("name already exists")

const characterColumns = `id, name, emoji, created_at, updated_at`

func scanCharacter(scanFn func(dest ...any) error, c *hi3.Character) error {
	return scanFn(&c.ID, &c.Name, &c.Emoji, &c.CreatedAt, &c.UpdatedAt)
}

// CreateCharacter inserts a character. A name clash returns
// ErrDuplicateName.
func (s *Store) CreateCharacter(ctx context.Context, name, emoji string) (*hi3.Character, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("create character: name required")
	}
	id := newID()
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO characters (id, name, name_folded, emoji)
		VALUES (?, ?, ?, ?);
	`, id, name, hi3.Fold(name), emoji)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("insert character: %w", err)
	}
	c, _, err := s.GetCharacter(ctx, id)
	return c, err
}

// GetCharacter loads a character by id. Missing rows are reported through
// the bool, not as an error.
func (s *Store) GetCharacter(ctx context.Context, id string) (*hi3.Character, bool, error) {
	var c hi3.Character
	err := scanCharacter(s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+characterColumns+` FROM characters WHERE id = ?;
	`, id).Scan, &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get character: %w", err)
	}
	return &c, true, nil
}

// FindCharacterByName matches the full name, ignoring case.
func (s *Store) FindCharacterByName(ctx context.Context, name string) (*hi3.Character, bool, error) {
	var c hi3.Character
	err := scanCharacter(s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+characterColumns+` FROM characters WHERE name_folded = ?;
	`, hi3.Fold(name)).Scan, &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find character: %w", err)
	}
	return &c, true, nil
}

func (s *Store) ListCharacters(ctx context.Context) ([]hi3.Character, error) {
	return s.queryCharacters(ctx, `
		SELECT `+characterColumns+` FROM characters ORDER BY name_folded, id;
	`)
}

// SearchCharacters returns characters whose name contains keyword,
// ignoring case. An empty keyword lists the first characters by name.
func (s *Store) SearchCharacters(ctx context.Context, keyword string, limit int) ([]hi3.Character, error) {
	if limit <= 0 || limit > SearchLimit {
		limit = SearchLimit
	}
	return s.queryCharacters(ctx, `
		SELECT `+characterColumns+` FROM characters
		WHERE name_folded LIKE ? ESCAPE '\'
		ORDER BY name_folded, id
		LIMIT ?;
	`, likePattern(hi3.Fold(keyword)), limit)
}

func (s *Store) queryCharacters(ctx context.Context, q string, args ...any) ([]hi3.Character, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query characters: %w", err)
	}
	defer rows.Close()

	var out []hi3.Character
	for rows.Next() {
		var c hi3.Character
		if err := scanCharacter(rows.Scan, &c); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("characters rows: %w", err)
	}
	return out, nil
}

// UpdateCharacterEmoji sets the emoji of a character. It reports false
// when no character has the id.
func (s *Store) UpdateCharacterEmoji(ctx context.Context, id, emoji string) (*hi3.Character, bool, error) {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE characters SET emoji = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?;
	`, emoji, id)
	if err != nil {
		return nil, false, fmt.Errorf("update character: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, false, nil
	}
	return s.GetCharacter(ctx, id)
}

// DeleteCharacter removes a character that has no valkyries. The deleted
// character is returned with OutcomeDeleted.
func (s *Store) DeleteCharacter(ctx context.Context, id string) (*hi3.Character, DeleteOutcome, error) {
	var (
		deleted *hi3.Character
		outcome DeleteOutcome
	)
	err := s.WithTx(ctx, func(ctx context.Context) error {
		c, ok, err := s.GetCharacter(ctx, id)
		if err != nil || !ok {
			outcome = OutcomeNotFound
			return err
		}
		var dependents int
		if err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM valkyries WHERE character_id = ?;`, id).Scan(&dependents); err != nil {
			return fmt.Errorf("count character valkyries: %w", err)
		}
		if dependents > 0 {
			outcome = OutcomeHasDependents
			return nil
		}
		if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM characters WHERE id = ?;`, id); err != nil {
			return fmt.Errorf("delete character: %w", err)
		}
		deleted, outcome = c, OutcomeDeleted
		return nil
	})
	if err != nil {
		return nil, OutcomeNotFound, err
	}
	return deleted, outcome, nil
}

// ForceDeleteCharacter removes a character together with its valkyries
// and every user's progress on them. Either all of it goes or none.
func (s *Store) ForceDeleteCharacter(ctx context.Context, id string) (*hi3.Character, DeleteOutcome, error) {
	var deleted *hi3.Character
	err := s.WithTx(ctx, func(ctx context.Context) error {
		c, ok, err := s.GetCharacter(ctx, id)
		if err != nil || !ok {
			return err
		}
		steps := []struct {
			name  string
			query string
		}{
			{"user_valkyries", `DELETE FROM user_valkyries WHERE valkyrie_id IN (SELECT id FROM valkyries WHERE character_id = ?);`},
			{"valkyries", `DELETE FROM valkyries WHERE character_id = ?;`},
			{"character", `DELETE FROM characters WHERE id = ?;`},
		}
		for _, step := range steps {
			if _, err := s.conn(ctx).ExecContext(ctx, step.query, id); err != nil {
				return fmt.Errorf("force delete character (%s): %w", step.name, err)
			}
			if err := s.afterStep(step.name); err != nil {
				return err
			}
		}
		deleted = c
		return nil
	})
	if err != nil {
		return nil, OutcomeNotFound, err
	}
	if deleted == nil {
		return nil, OutcomeNotFound, nil
	}
	return deleted, OutcomeDeleted, nil
}

func (s *Store) afterStep(step string) error {
	if s.failAfterStep == nil {
		return nil
	}
	return s.failAfterStep(step)
}
