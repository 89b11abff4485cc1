// Package warehouse reads the raw segment table from the data warehouse as
// an alternative to the flat-file input.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver

	"github.com/brightloop/campaign-insights/internal/dataset"
)

// Config holds the warehouse connection settings.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
	Table     string `yaml:"table"`
}

// Client provides access to the raw segment warehouse table.
type Client struct {
	config Config
	db     *sql.DB
}

// NewClient opens a warehouse connection.
// DSN format: user:password@account/database/schema?warehouse=xxx
func NewClient(cfg Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s",
		cfg.User,
		cfg.Password,
		cfg.Account,
		cfg.Database,
		cfg.Schema,
	)
	if cfg.Warehouse != "" {
		dsn += "?warehouse=" + cfg.Warehouse
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Client{config: cfg, db: db}, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping tests the warehouse connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// LoadRawSegments reads the raw segment rows, applying the same column
// selection and renaming the flat-file loader applies.
func (c *Client) LoadRawSegments(ctx context.Context) ([]dataset.RawSegment, error) {
	query := fmt.Sprintf(`
		SELECT ALIAS_INDEX, LANGUAGE, EVENT_COUNT, BABY_AGE_WEEK_1
		FROM %s
		ORDER BY ALIAS_INDEX
	`, c.config.Table)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw segments: %w", err)
	}
	defer rows.Close()

	var segments []dataset.RawSegment
	for rows.Next() {
		var s dataset.RawSegment
		if err := rows.Scan(&s.SegmentID, &s.Language, &s.EventCount, &s.BabyAgeWeek); err != nil {
			return nil, fmt.Errorf("failed to scan raw segment: %w", err)
		}
		segments = append(segments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read raw segments: %w", err)
	}

	return segments, nil
}
