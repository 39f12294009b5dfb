package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
)

// SightingRow is a flattened pin used by the report endpoints.
type SightingRow struct {
	ID           uint
	AnimalType   string
	StrayStatus  string
	Latitude     float64
	Longitude    float64
	SnapshotPath *string
	CreatedAt    time.Time
}

// SightingQuery filters the report queries.
type SightingQuery struct {
	// substring match against animal_type, case-insensitive
	NameLike string
	// only rows with a stored snapshot
	WithSnapshot bool
	Limit        uint64
}

// Reports runs read-only report queries directly on the pool, outside the ORM.
type Reports struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// NewReports picks the placeholder style from the gorm dialect.
func NewReports(gdb *gorm.DB) (*Reports, error) {
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	var format sq.PlaceholderFormat = sq.Question
	if gdb.Dialector.Name() == "postgres" {
		format = sq.Dollar
	}
	return &Reports{db: sqlDB, builder: sq.StatementBuilder.PlaceholderFormat(format)}, nil
}

// Sightings returns non-camera pins, newest first.
func (r *Reports) Sightings(ctx context.Context, q SightingQuery) ([]SightingRow, error) {
	queryBuilder := r.builder.
		Select("id", "animal_type", "stray_status", "latitude", "longitude", "snapshot_path", "created_at").
		From("map_pins").
		Where(sq.Eq{"is_camera": false}).
		OrderBy("created_at DESC", "id DESC")

	if q.WithSnapshot {
		queryBuilder = queryBuilder.Where(sq.NotEq{"snapshot_path": nil})
	}
	if q.NameLike != "" {
		queryBuilder = queryBuilder.Where(sq.Like{"LOWER(animal_type)": "%" + escapeLike(q.NameLike) + "%"})
	}
	if q.Limit > 0 {
		queryBuilder = queryBuilder.Limit(q.Limit)
	}

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for Sightings: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings: %w", err)
	}
	defer rows.Close()

	var out []SightingRow
	for rows.Next() {
		var row SightingRow
		var snapshot sql.NullString
		if err := rows.Scan(&row.ID, &row.AnimalType, &row.StrayStatus, &row.Latitude, &row.Longitude, &snapshot, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sighting row: %w", err)
		}
		if snapshot.Valid {
			s := snapshot.String
			row.SnapshotPath = &s
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sighting rows: %w", err)
	}
	return out, nil
}

// CountSince counts rows of table created at or after since.
func (r *Reports) CountSince(ctx context.Context, table string, since time.Time) (int64, error) {
	sqlStr, args, err := r.builder.
		Select("COUNT(*)").
		From(table).
		Where(sq.GtOrEq{"created_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for CountSince: %w", err)
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s rows: %w", table, err)
	}
	return n, nil
}

var likeWildcards = strings.NewReplacer("%", "", "_", "")

// escapeLike lowercases s and drops LIKE wildcards so user input is matched literally.
func escapeLike(s string) string {
	return likeWildcards.Replace(strings.ToLower(s))
}
