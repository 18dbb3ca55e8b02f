package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/basket/haxxor-bunny/internal/hi3"
)

const valkyrieSelect = `
	SELECT v.id, v.character_id, c.name, v.name, v.nature, v.base_rank,
		v.emoji, v.aug_emoji, v.created_at, v.updated_at,
		COALESCE((
			SELECT group_concat(acronym, ',') FROM (
				SELECT acronym FROM valkyrie_acronyms a
				WHERE a.valkyrie_id = v.id ORDER BY a.position
			)
		), '')
	FROM valkyries v
	JOIN characters c ON c.id = v.character_id`

func scanValkyrie(scanFn func(dest ...any) error, v *hi3.Valkyrie) error {
	var acronyms string
	if err := scanFn(&v.ID, &v.CharacterID, &v.CharacterName, &v.Name, &v.Nature, &v.BaseRank,
		&v.Emoji, &v.AugEmoji, &v.CreatedAt, &v.UpdatedAt, &acronyms); err != nil {
		return err
	}
	v.Acronyms = nil
	if acronyms != "" {
		v.Acronyms = strings.Split(acronyms, ",")
	}
	return nil
}

// CreateValkyrie inserts v with its acronyms. v.ID is assigned. The
// character must exist.
func (s *Store) CreateValkyrie(ctx context.Context, v hi3.Valkyrie) (*hi3.Valkyrie, error) {
	v.Name = strings.TrimSpace(v.Name)
	if v.Name == "" {
		return nil, fmt.Errorf("create valkyrie: name required")
	}
	v.ID = newID()
	err := s.WithTx(ctx, func(ctx context.Context) error {
		_, err := s.conn(ctx).ExecContext(ctx, `
			INSERT INTO valkyries (id, character_id, name, name_folded, nature, base_rank, emoji, aug_emoji)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?);
		`, v.ID, v.CharacterID, v.Name, hi3.Fold(v.Name), v.Nature, v.BaseRank, v.Emoji, v.AugEmoji)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateName
			}
			return fmt.Errorf("insert valkyrie: %w", err)
		}
		return s.replaceAcronyms(ctx, v.ID, v.Acronyms)
	})
	if err != nil {
		return nil, err
	}
	out, _, err := s.GetValkyrie(ctx, v.ID)
	return out, err
}

func (s *Store) replaceAcronyms(ctx context.Context, valkyrieID string, acronyms []string) error {
	if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM valkyrie_acronyms WHERE valkyrie_id = ?;`, valkyrieID); err != nil {
		return fmt.Errorf("clear acronyms: %w", err)
	}
	for i, a := range acronyms {
		if _, err := s.conn(ctx).ExecContext(ctx, `
			INSERT OR IGNORE INTO valkyrie_acronyms (valkyrie_id, acronym, acronym_folded, position)
			VALUES (?, ?, ?, ?);
		`, valkyrieID, a, hi3.Fold(a), i); err != nil {
			return fmt.Errorf("insert acronym: %w", err)
		}
	}
	return nil
}

func (s *Store) getValkyrie(ctx context.Context, where string, args ...any) (*hi3.Valkyrie, bool, error) {
	var v hi3.Valkyrie
	err := scanValkyrie(s.conn(ctx).QueryRowContext(ctx, valkyrieSelect+` WHERE `+where+` LIMIT 1;`, args...).Scan, &v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get valkyrie: %w", err)
	}
	return &v, true, nil
}

func (s *Store) GetValkyrie(ctx context.Context, id string) (*hi3.Valkyrie, bool, error) {
	return s.getValkyrie(ctx, `v.id = ?`, id)
}

// FindValkyrieByNameOrAcronym matches the full name or one acronym,
// ignoring case. A name match wins over an acronym match.
func (s *Store) FindValkyrieByNameOrAcronym(ctx context.Context, nameOrAcronym string) (*hi3.Valkyrie, bool, error) {
	folded := hi3.Fold(nameOrAcronym)
	v, ok, err := s.getValkyrie(ctx, `v.name_folded = ?`, folded)
	if err != nil || ok {
		return v, ok, err
	}
	return s.getValkyrie(ctx, `v.id IN (SELECT valkyrie_id FROM valkyrie_acronyms WHERE acronym_folded = ?) ORDER BY v.name_folded`, folded)
}

func (s *Store) ListValkyries(ctx context.Context) ([]hi3.Valkyrie, error) {
	return s.queryValkyries(ctx, valkyrieSelect+` ORDER BY v.name_folded, v.id;`)
}

func (s *Store) ListValkyriesByCharacter(ctx context.Context, characterID string) ([]hi3.Valkyrie, error) {
	return s.queryValkyries(ctx, valkyrieSelect+` WHERE v.character_id = ? ORDER BY v.name_folded, v.id;`, characterID)
}

// SearchValkyries returns valkyries whose name or an acronym contains
// keyword, ignoring case.
func (s *Store) SearchValkyries(ctx context.Context, keyword string, limit int) ([]hi3.Valkyrie, error) {
	if limit <= 0 || limit > SearchLimit {
		limit = SearchLimit
	}
	pattern := likePattern(hi3.Fold(keyword))
	return s.queryValkyries(ctx, valkyrieSelect+`
		WHERE v.name_folded LIKE ? ESCAPE '\'
			OR v.id IN (SELECT valkyrie_id FROM valkyrie_acronyms WHERE acronym_folded LIKE ? ESCAPE '\')
		ORDER BY v.name_folded, v.id
		LIMIT ?;`, pattern, pattern, limit)
}

func (s *Store) queryValkyries(ctx context.Context, q string, args ...any) ([]hi3.Valkyrie, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query valkyries: %w", err)
	}
	defer rows.Close()

	var out []hi3.Valkyrie
	for rows.Next() {
		var v hi3.Valkyrie
		if err := scanValkyrie(rows.Scan, &v); err != nil {
			return nil, fmt.Errorf("scan valkyrie: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("valkyries rows: %w", err)
	}
	return out, nil
}

// ValkyrieConflicts reports whether another valkyrie already uses name or
// any of acronyms. An empty name skips the name check; exceptID excludes
// the valkyrie being updated.
func (s *Store) ValkyrieConflicts(ctx context.Context, name string, acronyms []string, exceptID string) (bool, error) {
	var (
		clauses []string
		args    []any
	)
	if name != "" {
		clauses = append(clauses, `v.name_folded = ?`)
		args = append(args, hi3.Fold(name))
	}
	if len(acronyms) > 0 {
		marks := make([]string, len(acronyms))
		for i, a := range acronyms {
			marks[i] = "?"
			args = append(args, hi3.Fold(a))
		}
		clauses = append(clauses, `v.id IN (SELECT valkyrie_id FROM valkyrie_acronyms WHERE acronym_folded IN (`+strings.Join(marks, ", ")+`))`)
	}
	if len(clauses) == 0 {
		return false, nil
	}
	args = append(args, exceptID)

	var exists int
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM valkyries v
			WHERE (`+strings.Join(clauses, " OR ")+`) AND v.id != ?
		);
	`, args...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check valkyrie conflicts: %w", err)
	}
	return exists == 1, nil
}

// UpdateValkyrie saves the acronyms and emojis of v. Name, nature, base
// rank and character are fixed after creation.
func (s *Store) UpdateValkyrie(ctx context.Context, v hi3.Valkyrie) (*hi3.Valkyrie, bool, error) {
	found := false
	err := s.WithTx(ctx, func(ctx context.Context) error {
		res, err := s.conn(ctx).ExecContext(ctx, `
			UPDATE valkyries SET emoji = ?, aug_emoji = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?;
		`, v.Emoji, v.AugEmoji, v.ID)
		if err != nil {
			return fmt.Errorf("update valkyrie: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		found = true
		return s.replaceAcronyms(ctx, v.ID, v.Acronyms)
	})
	if err != nil || !found {
		return nil, false, err
	}
	return s.GetValkyrie(ctx, v.ID)
}

// DeleteValkyrie removes a valkyrie nobody has progress on.
func (s *Store) DeleteValkyrie(ctx context.Context, id string) (*hi3.Valkyrie, DeleteOutcome, error) {
	var (
		deleted *hi3.Valkyrie
		outcome DeleteOutcome
	)
	err := s.WithTx(ctx, func(ctx context.Context) error {
		v, ok, err := s.GetValkyrie(ctx, id)
		if err != nil || !ok {
			outcome = OutcomeNotFound
			return err
		}
		var dependents int
		if err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM user_valkyries WHERE valkyrie_id = ?;`, id).Scan(&dependents); err != nil {
			return fmt.Errorf("count user valkyries: %w", err)
		}
		if dependents > 0 {
			outcome = OutcomeHasDependents
			return nil
		}
		if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM valkyries WHERE id = ?;`, id); err != nil {
			return fmt.Errorf("delete valkyrie: %w", err)
		}
		deleted, outcome = v, OutcomeDeleted
		return nil
	})
	if err != nil {
		return nil, OutcomeNotFound, err
	}
	return deleted, outcome, nil
}

// ForceDeleteValkyrie removes a valkyrie and every user's progress on it
// in one transaction.
func (s *Store) ForceDeleteValkyrie(ctx context.Context, id string) (*hi3.Valkyrie, DeleteOutcome, error) {
	var deleted *hi3.Valkyrie
	err := s.WithTx(ctx, func(ctx context.Context) error {
		v, ok, err := s.GetValkyrie(ctx, id)
		if err != nil || !ok {
			return err
		}
		if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM user_valkyries WHERE valkyrie_id = ?;`, id); err != nil {
			return fmt.Errorf("force delete valkyrie (user_valkyries): %w", err)
		}
		if err := s.afterStep("user_valkyries"); err != nil {
			return err
		}
		if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM valkyries WHERE id = ?;`, id); err != nil {
			return fmt.Errorf("force delete valkyrie: %w", err)
		}
		deleted = v
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
