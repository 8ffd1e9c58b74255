package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kopilka/internal/core"
)

// DefaultAchievements are seeded once per owner. Codes are stable; re-seeding
// is a no-op thanks to the (owner_id, code) uniqueness.
var DefaultAchievements = []core.Achievement{
	{Code: "first_steps", Title: "First steps", ConditionType: core.ConditionTransactionsCount, ConditionValue: 1},
	{Code: "bookkeeper", Title: "Bookkeeper", ConditionType: core.ConditionTransactionsCount, ConditionValue: 50},
	{Code: "chronicler", Title: "Chronicler", ConditionType: core.ConditionTransactionsCount, ConditionValue: 500},
	{Code: "regular", Title: "Regular", ConditionType: core.ConditionDaysStreak, ConditionValue: 7},
	{Code: "devoted", Title: "Devoted", ConditionType: core.ConditionDaysStreak, ConditionValue: 30},
}

func (q *Queries) EnsureDefaultAchievements(ctx context.Context, ownerID int64) error {
	for _, a := range DefaultAchievements {
		_, err := q.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO achievements (owner_id, code, title, condition_type, condition_value, is_unlocked)
			VALUES (?, ?, ?, ?, ?, 0)`,
			ownerID, a.Code, a.Title, a.ConditionType, a.ConditionValue)
		if err != nil {
			return fmt.Errorf("seed achievement %s: %w", a.Code, err)
		}
	}
	return nil
}

func (q *Queries) ListAchievements(ctx context.Context, ownerID int64) ([]core.Achievement, error) {
	return q.listAchievements(ctx, ownerID, false)
}

func (q *Queries) ListLockedAchievements(ctx context.Context, ownerID int64) ([]core.Achievement, error) {
	return q.listAchievements(ctx, ownerID, true)
}

func (q *Queries) listAchievements(ctx context.Context, ownerID int64, lockedOnly bool) ([]core.Achievement, error) {
	query := `
		SELECT id, owner_id, code, title, condition_type, condition_value, is_unlocked, unlocked_at
		FROM achievements WHERE owner_id = ?`
	if lockedOnly {
		query += ` AND is_unlocked = 0`
	}
	query += ` ORDER BY is_unlocked DESC, id`

	rows, err := q.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var out []core.Achievement
	for rows.Next() {
		var a core.Achievement
		var unlocked int64
		var unlockedAt sql.NullString
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Code, &a.Title, &a.ConditionType, &a.ConditionValue, &unlocked, &unlockedAt); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		a.IsUnlocked = unlocked != 0
		if unlockedAt.Valid {
			t, err := parseTime(unlockedAt.String)
			if err != nil {
				return nil, err
			}
			a.UnlockedAt = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UnlockAchievement flips a locked achievement to unlocked. The is_unlocked
// guard makes the transition monotonic: re-unlocking affects zero rows and
// reports false without error.
func (q *Queries) UnlockAchievement(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE achievements SET is_unlocked = 1, unlocked_at = ?
		WHERE id = ? AND is_unlocked = 0`,
		formatTime(at), id)
	if err != nil {
		return false, fmt.Errorf("unlock achievement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unlock achievement: %w", err)
	}
	return n > 0, nil
}
