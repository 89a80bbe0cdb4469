package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"signupboard/internal/domain"

	"github.com/lib/pq"
)

const eventColumns = `entry_id, guild_id, channel_id, msg_id, title, description, created_by, created_at, expiry, permitted_roles, categories, version`

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	cats, err := json.Marshal(e.Categories)
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	var roles any
	if len(e.PermittedRoles) > 0 {
		roles = pq.Array(e.PermittedRoles)
	}
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
		RETURNING version
	`
	return r.DB.QueryRowContext(ctx, query,
		e.ID, e.GuildID, e.ChannelID, e.MessageID, e.Title, e.Description, e.CreatedBy, e.CreatedAt,
		e.Expiry, roles, string(cats),
	).Scan(&e.Version)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE entry_id = $1
	`
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *eventRepository) ListByGuild(ctx context.Context, guildID string) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE guild_id = $1
		ORDER BY created_at
	`
	return r.list(ctx, query, guildID)
}

func (r *eventRepository) ListAll(ctx context.Context) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		ORDER BY guild_id, created_at
	`
	return r.list(ctx, query)
}

func (r *eventRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]*domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *eventRepository) UpdateCategories(ctx context.Context, id string, cats domain.CategorySet, version int) (int, error) {
	raw, err := json.Marshal(cats)
	if err != nil {
		return 0, fmt.Errorf("encode categories: %w", err)
	}
	query := `
		UPDATE events
		SET categories = $1, version = version + 1
		WHERE entry_id = $2 AND version = $3
		RETURNING version
	`
	var next int
	err = r.DB.QueryRowContext(ctx, query, string(raw), id, version).Scan(&next)
	if err == nil {
		return next, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	var one int
	err = r.DB.QueryRowContext(ctx, `SELECT 1 FROM events WHERE entry_id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return 0, domain.ErrVersionConflict
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM events WHERE entry_id = $1`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	e := &domain.Event{}
	var expiry sql.NullTime
	var roles []string
	var cats []byte
	err := row.Scan(
		&e.ID, &e.GuildID, &e.ChannelID, &e.MessageID, &e.Title, &e.Description, &e.CreatedBy, &e.CreatedAt,
		&expiry, pq.Array(&roles), &cats, &e.Version,
	)
	if err != nil {
		return nil, err
	}
	if expiry.Valid {
		e.Expiry = &expiry.Time
	}
	if len(roles) > 0 {
		e.PermittedRoles = roles
	}
	if err := json.Unmarshal(cats, &e.Categories); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", e.ID, err)
	}
	return e, nil
}
