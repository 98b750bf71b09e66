package knowledge

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"github.com/jackzampolin/papercheck/internal/prompts"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore serves knowledge and prompt overrides from Postgres and
// accumulates verdict corrections there.
type PostgresStore struct {
	DB             *sql.DB
	LearnThreshold int
}

// OpenPostgres opens a connection pool using the pgx driver.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db, LearnThreshold: DefaultLearnThreshold}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate knowledge schema: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	return s.DB.Close()
}

// Seed copies a catalog into the tables, leaving existing rows alone.
func (s *PostgresStore) Seed(ctx context.Context, c *Catalog) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range c.LearnedPatterns {
		if _, err := tx.ExecContext(ctx,
			`insert into learned_patterns(subject, rule) values ($1,$2) on conflict do nothing`,
			p.Subject, p.Rule); err != nil {
			return fmt.Errorf("seed learned pattern: %w", err)
		}
	}
	for _, p := range c.ErrorPatterns {
		if _, err := tx.ExecContext(ctx,
			`insert into error_patterns(subject, name, description, frequency) values ($1,$2,$3,$4) on conflict do nothing`,
			p.Subject, p.Name, p.Description, p.Frequency); err != nil {
			return fmt.Errorf("seed error pattern: %w", err)
		}
	}
	for _, e := range c.TopicGuides {
		if _, err := tx.ExecContext(ctx,
			`insert into topic_guides(grade_level, unit, title, keywords, guidance) values ($1,$2,$3,$4,$5) on conflict do nothing`,
			e.GradeLevel, e.Unit, e.Title, strings.Join(e.Keywords, ","), e.Guidance); err != nil {
			return fmt.Errorf("seed topic guide: %w", err)
		}
	}
	return tx.Commit()
}

// GetAdditions implements PatternSource.
func (s *PostgresStore) GetAdditions(ctx context.Context, subject string) (string, error) {
	const q = `select rule from learned_patterns
	           where subject = '' or $1 = '' or lower(subject) = lower($1)
	           order by id`
	rows, err := s.DB.QueryContext(ctx, q, subject)
	if err != nil {
		return "", fmt.Errorf("query learned patterns: %w", err)
	}
	defer rows.Close()

	var rules []string
	for rows.Next() {
		var rule string
		if err := rows.Scan(&rule); err != nil {
			return "", err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	const cq = `select from_value, to_value, mark_type, hits from verdict_corrections
	            where (subject = '' or $1 = '' or lower(subject) = lower($1)) and hits >= $2
	            order by hits desc`
	crows, err := s.DB.QueryContext(ctx, cq, subject, s.threshold())
	if err != nil {
		return "", fmt.Errorf("query corrections: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var from, to, mark string
		var hits int
		if err := crows.Scan(&from, &to, &mark, &hits); err != nil {
			return "", err
		}
		rules = append(rules, correctionRule(from, to, mark, hits))
	}
	if err := crows.Err(); err != nil {
		return "", err
	}
	return FormatAdditions(rules), nil
}

// TopErrorPatterns implements ErrorLibrary.
func (s *PostgresStore) TopErrorPatterns(ctx context.Context, subject string, limit int) ([]ErrorPattern, error) {
	if limit <= 0 {
		limit = 1000
	}
	const q = `select subject, name, description, frequency from error_patterns
	           where subject = '' or $1 = '' or lower(subject) = lower($1)
	           order by frequency desc, name
	           limit $2`
	rows, err := s.DB.QueryContext(ctx, q, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("query error patterns: %w", err)
	}
	defer rows.Close()

	var out []ErrorPattern
	for rows.Next() {
		var p ErrorPattern
		if err := rows.Scan(&p.Subject, &p.Name, &p.Description, &p.Frequency); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Lookup implements TopicGuide.
func (s *PostgresStore) Lookup(ctx context.Context, gradeLevel, unit string) ([]TopicEntry, error) {
	const q = `select grade_level, unit, title, keywords, guidance from topic_guides
	           where lower(grade_level) = lower($1) and ($2 = '' or lower(unit) = lower($2))
	           order by id`
	rows, err := s.DB.QueryContext(ctx, q, gradeLevel, unit)
	if err != nil {
		return nil, fmt.Errorf("query topic guides: %w", err)
	}
	defer rows.Close()

	var out []TopicEntry
	for rows.Next() {
		var e TopicEntry
		var keywords string
		if err := rows.Scan(&e.GradeLevel, &e.Unit, &e.Title, &keywords, &e.Guidance); err != nil {
			return nil, err
		}
		if keywords != "" {
			e.Keywords = strings.Split(keywords, ",")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Broad implements TopicGuide.
func (s *PostgresStore) Broad(ctx context.Context, gradeLevel string) ([]TopicEntry, error) {
	return s.Lookup(ctx, gradeLevel, "")
}

// RecordCorrection implements CorrectionRecorder.
func (s *PostgresStore) RecordCorrection(ctx context.Context, c Correction) error {
	const q = `
insert into verdict_corrections(subject, from_value, to_value, mark_type, hits, last_note)
values ($1,$2,$3,$4,1,$5)
on conflict (subject, from_value, to_value, mark_type)
do update set hits = verdict_corrections.hits + 1, last_note = excluded.last_note, updated_at = now()`
	_, err := s.DB.ExecContext(ctx, q, c.Subject, c.From, c.To, c.MarkType, c.Note)
	return err
}

// GetOverride implements prompts.OverrideStore.
func (s *PostgresStore) GetOverride(ctx context.Context, scope, promptKey string) (*prompts.Override, error) {
	const q = `select text, note, updated_at from prompt_overrides where scope = $1 and prompt_key = $2`
	o := prompts.Override{Scope: scope, PromptKey: promptKey}
	err := s.DB.QueryRowContext(ctx, q, scope, promptKey).Scan(&o.Text, &o.Note, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// SetOverride stores a prompt override for a scope.
func (s *PostgresStore) SetOverride(ctx context.Context, o prompts.Override) error {
	const q = `
insert into prompt_overrides(scope, prompt_key, text, note) values ($1,$2,$3,$4)
on conflict (scope, prompt_key)
do update set text = excluded.text, note = excluded.note, updated_at = now()`
	_, err := s.DB.ExecContext(ctx, q, o.Scope, o.PromptKey, o.Text, o.Note)
	return err
}

func (s *PostgresStore) threshold() int {
	if s.LearnThreshold > 0 {
		return s.LearnThreshold
	}
	return DefaultLearnThreshold
}

var (
	_ PatternSource         = (*PostgresStore)(nil)
	_ ErrorLibrary          = (*PostgresStore)(nil)
	_ TopicGuide            = (*PostgresStore)(nil)
	_ CorrectionRecorder    = (*PostgresStore)(nil)
	_ prompts.OverrideStore = (*PostgresStore)(nil)
)
