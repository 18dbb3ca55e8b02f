package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/basket/haxxor-bunny/internal/hi3"
)

const userValkyrieColumns = `uv.id, uv.user_id, uv.valkyrie_id, uv.rank, COALESCE(uv.core_rank, 0), uv.created_at, uv.updated_at`

func scanUserValkyrie(scanFn func(dest ...any) error, uv *hi3.UserValkyrie) error {
	return scanFn(&uv.ID, &uv.UserID, &uv.ValkyrieID, &uv.Rank, &uv.CoreRank, &uv.CreatedAt, &uv.UpdatedAt)
}

func nullableCore(core int) any {
	if core == 0 {
		return nil
	}
	return core
}

// GetUserValkyrie loads one user's progress on a valkyrie.
func (s *Store) GetUserValkyrie(ctx context.Context, userID, valkyrieID string) (*hi3.UserValkyrie, bool, error) {
	var uv hi3.UserValkyrie
	err := scanUserValkyrie(s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+userValkyrieColumns+` FROM user_valkyries uv
		WHERE uv.user_id = ? AND uv.valkyrie_id = ?;
	`, userID, valkyrieID).Scan, &uv)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get user valkyrie: %w", err)
	}
	return &uv, true, nil
}

// UpsertUserValkyrie stores uv, keyed by (user, valkyrie). Concurrent
// submissions for the same pair end with the last write.
func (s *Store) UpsertUserValkyrie(ctx context.Context, uv hi3.UserValkyrie) (*hi3.UserValkyrie, error) {
	if uv.ID == "" {
		uv.ID = newID()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO user_valkyries (id, user_id, valkyrie_id, rank, core_rank)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, valkyrie_id) DO UPDATE SET
			rank = excluded.rank,
			core_rank = excluded.core_rank,
			updated_at = CURRENT_TIMESTAMP;
	`, uv.ID, uv.UserID, uv.ValkyrieID, uv.Rank, nullableCore(uv.CoreRank))
	if err != nil {
		return nil, fmt.Errorf("upsert user valkyrie: %w", err)
	}
	out, _, err := s.GetUserValkyrie(ctx, uv.UserID, uv.ValkyrieID)
	return out, err
}

// SaveUserValkyries upserts every entry in one transaction.
func (s *Store) SaveUserValkyries(ctx context.Context, list []hi3.UserValkyrie) error {
	if len(list) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(ctx context.Context) error {
		for _, uv := range list {
			if _, err := s.UpsertUserValkyrie(ctx, uv); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteUserValkyrie removes one user's progress on a valkyrie and reports
// whether anything was removed.
func (s *Store) DeleteUserValkyrie(ctx context.Context, userID, valkyrieID string) (bool, error) {
	res, err := s.conn(ctx).ExecContext(ctx, `
		DELETE FROM user_valkyries WHERE user_id = ? AND valkyrie_id = ?;
	`, userID, valkyrieID)
	if err != nil {
		return false, fmt.Errorf("delete user valkyrie: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteUserValkyries removes progress rows by id in one statement.
func (s *Store) DeleteUserValkyries(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM user_valkyries WHERE id IN (`+strings.Join(marks, ", ")+`);`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete user valkyries: %w", err)
	}
	return res.RowsAffected()
}

// ListUserValkyries returns a user's progress joined with the valkyries.
func (s *Store) ListUserValkyries(ctx context.Context, userID string) ([]hi3.OwnedValkyrie, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+userValkyrieColumns+`, v.id, v.character_id, c.name, v.name, v.nature, v.base_rank,
			v.emoji, v.aug_emoji, v.created_at, v.updated_at,
			COALESCE((
				SELECT group_concat(acronym, ',') FROM (
					SELECT acronym FROM valkyrie_acronyms a
					WHERE a.valkyrie_id = v.id ORDER BY a.position
				)
			), '')
		FROM user_valkyries uv
		JOIN valkyries v ON v.id = uv.valkyrie_id
		JOIN characters c ON c.id = v.character_id
		WHERE uv.user_id = ?
		ORDER BY v.name_folded;
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user valkyries: %w", err)
	}
	defer rows.Close()

	var out []hi3.OwnedValkyrie
	for rows.Next() {
		var (
			o        hi3.OwnedValkyrie
			acronyms string
		)
		v := &o.Valkyrie
		if err := rows.Scan(&o.ID, &o.UserID, &o.ValkyrieID, &o.Rank, &o.CoreRank, &o.CreatedAt, &o.UpdatedAt,
			&v.ID, &v.CharacterID, &v.CharacterName, &v.Name, &v.Nature, &v.BaseRank,
			&v.Emoji, &v.AugEmoji, &v.CreatedAt, &v.UpdatedAt, &acronyms); err != nil {
			return nil, fmt.Errorf("scan user valkyrie: %w", err)
		}
		if acronyms != "" {
			v.Acronyms = strings.Split(acronyms, ",")
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user valkyries rows: %w", err)
	}
	return out, nil
}
