package postgres

import (
	"context"
	"database/sql"
	"time"

	"signupboard/internal/domain"
)

type timerRepository struct {
	DB *sql.DB
}

func NewTimerRepository(db *sql.DB) domain.TimerRepository {
	return &timerRepository{
		DB: db,
	}
}

func (r *timerRepository) Create(ctx context.Context, t *domain.Timer) error {
	query := `
		INSERT INTO timers (guild_id, user_id, channel_id, event, expires, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query, t.GuildID, t.UserID, t.ChannelID, t.Kind, t.Expires, t.Note).Scan(&t.ID)
}

func (r *timerRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Timer, error) {
	query := `
		SELECT id, guild_id, user_id, channel_id, event, expires, notes
		FROM timers
		WHERE expires <= $1
		ORDER BY expires
		LIMIT $2
	`
	rows, err := r.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	timers := make([]*domain.Timer, 0)
	for rows.Next() {
		t := &domain.Timer{}
		if err := rows.Scan(&t.ID, &t.GuildID, &t.UserID, &t.ChannelID, &t.Kind, &t.Expires, &t.Note); err != nil {
			return nil, err
		}
		timers = append(timers, t)
	}
	return timers, rows.Err()
}

func (r *timerRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM timers WHERE id = $1`, id)
	return err
}

func (r *timerRepository) DeleteByNote(ctx context.Context, guildID, kind, note string) (int64, error) {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM timers WHERE guild_id = $1 AND event = $2 AND notes = $3`, guildID, kind, note)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
