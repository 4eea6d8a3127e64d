package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendancebot/internal/config"
	"attendancebot/internal/db/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	*pgxpool.Pool
}

func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Configure connection pool and statement cache
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}

	return &DB{pool}, nil
}

// SaveShiftReport archives a report and its attendee lines in one transaction.
// Saving the same shift twice keeps the first archive.
func (db *DB) SaveShiftReport(ctx context.Context, report *models.ShiftReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO shift_reports (id, shift_id, guild_id, title, host_id, min_attendance,
			started_at, ended_at, passed_ids, failed_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (shift_id) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		report.ID.String(),
		report.ShiftID,
		report.GuildID,
		report.Title,
		report.HostID,
		report.MinAttendance,
		report.StartedAt,
		report.EndedAt,
		report.PassedIDs,
		report.FailedIDs,
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting shift report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	resultQuery := `
		INSERT INTO attendee_results (report_id, attendee_id, presence_seconds, attendance, passed)
		VALUES ($1, $2, $3, $4, $5)`

	for _, res := range report.Results {
		_, err := tx.Exec(ctx, resultQuery,
			report.ID.String(),
			res.AttendeeID,
			res.PresenceSeconds,
			res.Attendance,
			res.Passed,
		)
		if err != nil {
			return fmt.Errorf("error inserting result for %s: %w", res.AttendeeID, err)
		}
	}

	return tx.Commit(ctx)
}

// GetRecentShiftReports returns the latest archived reports of a guild, newest first.
func (db *DB) GetRecentShiftReports(ctx context.Context, guildID string, limit int) ([]*models.ShiftReport, error) {
	query := `
		SELECT id, shift_id, guild_id, title, host_id, min_attendance,
			started_at, ended_at, passed_ids, failed_ids, created_at
		FROM shift_reports
		WHERE guild_id = $1
		ORDER BY ended_at DESC
		LIMIT $2`

	rows, err := db.Query(ctx, query, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*models.ShiftReport
	for rows.Next() {
		r := &models.ShiftReport{}
		err := rows.Scan(
			&r.ID,
			&r.ShiftID,
			&r.GuildID,
			&r.Title,
			&r.HostID,
			&r.MinAttendance,
			&r.StartedAt,
			&r.EndedAt,
			&r.PassedIDs,
			&r.FailedIDs,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// GetShiftReport loads the newest archived report of a guild whose shift id
// starts with shiftID, together with its attendee lines. A miss returns nil.
func (db *DB) GetShiftReport(ctx context.Context, guildID, shiftID string) (*models.ShiftReport, error) {
	query := `
		SELECT id, shift_id, guild_id, title, host_id, min_attendance,
			started_at, ended_at, passed_ids, failed_ids, created_at
		FROM shift_reports
		WHERE guild_id = $1 AND starts_with(shift_id, $2)
		ORDER BY ended_at DESC
		LIMIT 1`

	r := &models.ShiftReport{}
	err := db.QueryRow(ctx, query, guildID, shiftID).Scan(
		&r.ID,
		&r.ShiftID,
		&r.GuildID,
		&r.Title,
		&r.HostID,
		&r.MinAttendance,
		&r.StartedAt,
		&r.EndedAt,
		&r.PassedIDs,
		&r.FailedIDs,
		&r.CreatedAt,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(ctx, `
		SELECT report_id, attendee_id, presence_seconds, attendance, passed
		FROM attendee_results
		WHERE report_id = $1
		ORDER BY attendee_id`, r.ID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		res := &models.AttendeeResult{}
		if err := rows.Scan(&res.ReportID, &res.AttendeeID, &res.PresenceSeconds, &res.Attendance, &res.Passed); err != nil {
			return nil, err
		}
		r.Results = append(r.Results, res)
	}
	return r, rows.Err()
}

// isNoRows reports whether err, possibly wrapped, means the query matched nothing.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
