package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-care-scores/internal/models"

	"go.uber.org/zap"
)

// EventRepository fact_adl_event 读取
type EventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB, logger *zap.Logger) *EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// FetchEvents 查询 [start, end) 内的事件，按 event_timestamp 升序
func (r *EventRepository) FetchEvents(ctx context.Context, residentID, domainID int64, start, end time.Time) ([]models.RawEvent, error) {
	query := `
		SELECT
			event_id,
			event_timestamp,
			logged_timestamp,
			assistance_level,
			is_refusal,
			event_title,
			event_description
		FROM fact_adl_event
		WHERE resident_id = $1
		  AND domain_id = $2
		  AND event_timestamp >= $3
		  AND event_timestamp < $4
		ORDER BY event_timestamp ASC, event_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, residentID, domainID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for resident %d domain %d: %w", residentID, domainID, err)
	}
	defer rows.Close()

	var events []models.RawEvent
	for rows.Next() {
		var (
			ev          models.RawEvent
			logged      sql.NullTime
			level       sql.NullString
			refusal     sql.NullBool
			title       sql.NullString
			description sql.NullString
		)
		if err := rows.Scan(
			&ev.EventID,
			&ev.EventTimestamp,
			&logged,
			&level,
			&refusal,
			&title,
			&description,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		ev.ResidentID = residentID
		ev.DomainID = domainID
		if logged.Valid {
			ev.LoggedTimestamp = &logged.Time
		}
		ev.AssistanceLevelRaw = level.String
		ev.IsRefusalRaw = refusal.Valid && refusal.Bool
		ev.Title = title.String
		ev.Description = description.String

		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}
