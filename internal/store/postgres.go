package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/db"
	"github.com/sells-group/prospect-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_id         TEXT NOT NULL DEFAULT '',
	lead_number        INTEGER NOT NULL DEFAULT 0,
	generated_date     TIMESTAMPTZ NOT NULL DEFAULT now(),
	search_city        TEXT NOT NULL DEFAULT '',
	search_country     TEXT NOT NULL DEFAULT '',
	company_name       TEXT NOT NULL,
	website            TEXT NOT NULL DEFAULT '',
	phone              TEXT NOT NULL DEFAULT '',
	address            TEXT NOT NULL DEFAULT '',
	city               TEXT NOT NULL DEFAULT '',
	country            TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL DEFAULT '',
	google_maps_link   TEXT NOT NULL DEFAULT '',
	coordinates        TEXT NOT NULL DEFAULT '',
	rating             DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count       INTEGER NOT NULL DEFAULT 0,
	business_hours     TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL DEFAULT '',
	email              TEXT NOT NULL DEFAULT '',
	linkedin           TEXT NOT NULL DEFAULT '',
	facebook           TEXT NOT NULL DEFAULT '',
	instagram          TEXT NOT NULL DEFAULT '',
	contact_name       TEXT NOT NULL DEFAULT '',
	contact_title      TEXT NOT NULL DEFAULT '',
	quality_score      INTEGER NOT NULL DEFAULT 0 CHECK (quality_score BETWEEN 0 AND 100),
	confidence_overall DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (confidence_overall BETWEEN 0 AND 1),
	social_context     TEXT NOT NULL DEFAULT '',
	icebreaker         TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'New',
	contacted          BOOLEAN NOT NULL DEFAULT false,
	notes              TEXT NOT NULL DEFAULT '',
	stage              TEXT NOT NULL DEFAULT 'New',
	deal_value         DOUBLE PRECISION NOT NULL DEFAULT 0,
	owner              TEXT NOT NULL DEFAULT '',
	comments           JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE TABLE IF NOT EXISTS strategies (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_id     TEXT NOT NULL DEFAULT '',
	persona_name   TEXT NOT NULL,
	search_query   TEXT NOT NULL,
	rationale      TEXT NOT NULL DEFAULT '',
	outreach_angle TEXT NOT NULL DEFAULT '',
	profile        JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_project_id ON leads(project_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_project_number ON leads(project_id, lead_number) WHERE lead_number > 0;
CREATE INDEX IF NOT EXISTS idx_leads_stage ON leads(stage);
CREATE INDEX IF NOT EXISTS idx_strategies_project_id ON strategies(project_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Projects ---

func (s *PostgresStore) CreateProject(ctx context.Context, name, description string) (*model.Project, error) {
	p := model.Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, name, description, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Name, p.Description, p.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert project")
	}
	return &p, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("project", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get project %s", id)
	}
	return &p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]model.ProjectSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name, p.description, p.created_at,
			(SELECT COUNT(*) FROM leads l WHERE l.project_id = p.id),
			(SELECT COUNT(*) FROM strategies st WHERE st.project_id = p.id),
			(SELECT MAX(l.generated_date) FROM leads l WHERE l.project_id = p.id)
		FROM projects p
		ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list projects")
	}
	defer rows.Close()

	var out []model.ProjectSummary
	for rows.Next() {
		var ps model.ProjectSummary
		var leads, strategies int64
		if err := rows.Scan(&ps.ID, &ps.Name, &ps.Description, &ps.CreatedAt, &leads, &strategies, &ps.LastActivity); err != nil {
			return nil, eris.Wrap(err, "postgres: scan project")
		}
		ps.LeadCount = int(leads)
		ps.StrategyCount = int(strategies)
		out = append(out, ps)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list projects iterate")
}

func (s *PostgresStore) UpdateProject(ctx context.Context, p model.Project) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET name = $1, description = $2 WHERE id = $3`,
		p.Name, p.Description, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update project %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("project", p.ID)
	}
	return nil
}

// DeleteProject removes the project with its leads and strategies.
func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin delete project")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, q := range []string{
		`DELETE FROM leads WHERE project_id = $1`,
		`DELETE FROM strategies WHERE project_id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, id); err != nil {
			return eris.Wrapf(err, "postgres: delete project %s children", id)
		}
	}
	tag, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete project %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("project", id)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit delete project")
}

// --- Leads ---

func (s *PostgresStore) NextLeadNumber(ctx context.Context, projectID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(lead_number), 0) + 1 FROM leads WHERE project_id = $1`, projectID,
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: next lead number")
}

func leadRows(leads []model.Lead) ([][]any, error) {
	rows := make([][]any, len(leads))
	for i, l := range leads {
		vals, err := leadValues(l)
		if err != nil {
			return nil, err
		}
		rows[i] = vals
	}
	return rows, nil
}

// CreateLeads bulk-inserts new leads with COPY. Lead numbers are assigned
// in the same transaction and written back into leads.
func (s *PostgresStore) CreateLeads(ctx context.Context, leads []model.Lead) error {
	_, err := s.writeLeads(ctx, leads, func(ctx context.Context, tx pgx.Tx, rows [][]any) (int64, error) {
		return db.CopyFrom(ctx, tx, "leads", leadColumns, rows)
	})
	return eris.Wrap(err, "postgres: create leads")
}

// SaveLeads inserts leads or updates existing rows with the same id. The
// project, lead number and generated date of an existing row are kept; new
// rows are numbered as in CreateLeads.
func (s *PostgresStore) SaveLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	n, err := s.writeLeads(ctx, leads, func(ctx context.Context, tx pgx.Tx, rows [][]any) (int64, error) {
		return db.BulkUpsertTx(ctx, tx, db.UpsertConfig{
			Table:        "leads",
			Columns:      leadColumns,
			ConflictKeys: []string{"id"},
			UpdateCols:   leadUpdateColumns(),
		}, rows)
	})
	return n, eris.Wrap(err, "postgres: save leads")
}

func (s *PostgresStore) writeLeads(ctx context.Context, leads []model.Lead, write func(context.Context, pgx.Tx, [][]any) (int64, error)) (int64, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin write leads")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	numbered := slices.Clone(leads)
	if err := pgNumberLeads(ctx, tx, numbered); err != nil {
		return 0, err
	}
	rows, err := leadRows(numbered)
	if err != nil {
		return 0, err
	}
	n, err := write(ctx, tx, rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit write leads")
	}
	copy(leads, numbered)
	return n, nil
}

// pgNumberLeads numbers the leads that are not stored yet, continuing from
// the highest number in their project. An advisory lock per project
// serializes concurrent writers until tx ends.
func pgNumberLeads(ctx context.Context, tx pgx.Tx, leads []model.Lead) error {
	ids := make([]string, len(leads))
	for i, l := range leads {
		ids[i] = l.ID
	}
	rows, err := tx.Query(ctx, `SELECT id FROM leads WHERE id = ANY($1)`, ids)
	if err != nil {
		return eris.Wrap(err, "postgres: find stored leads")
	}
	stored, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return eris.Wrap(err, "postgres: scan stored leads")
	}

	return numberNewLeads(leads, stored, func(projectID string) (int, error) {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "leads:"+projectID); err != nil {
			return 0, eris.Wrapf(err, "postgres: lock project %s", projectID)
		}
		var n int
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(lead_number), 0) + 1 FROM leads WHERE project_id = $1`, projectID,
		).Scan(&n)
		return n, eris.Wrapf(err, "postgres: next lead number for %s", projectID)
	})
}

var pgSelectLeads = `SELECT ` + strings.Join(leadColumns, ", ") + ` FROM leads`

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	l, err := scanLead(s.pool.QueryRow(ctx, pgSelectLeads+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("lead", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := pgSelectLeads + ` WHERE 1=1`
	var args []any
	argN := 1

	if filter.ProjectID != "" {
		query += fmt.Sprintf(` AND project_id = $%d`, argN)
		args = append(args, filter.ProjectID)
		argN++
	}
	if filter.Stage != "" {
		query += fmt.Sprintf(` AND stage = $%d`, argN)
		args = append(args, string(filter.Stage))
		argN++
	}
	query += fmt.Sprintf(` ORDER BY lead_number ASC, generated_date ASC LIMIT $%d`, argN)
	args = append(args, defaultLimit(filter.Limit))
	argN++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

// UpdateLead overwrites every mutable column of the lead with l's values.
func (s *PostgresStore) UpdateLead(ctx context.Context, l model.Lead) error {
	vals, err := leadValues(l)
	if err != nil {
		return err
	}
	cols := leadUpdateColumns()
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
		args = append(args, vals[columnIndex(c)])
	}
	args = append(args, l.ID)

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(cols)+1)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %s", l.ID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("lead", l.ID)
	}
	return nil
}

func (s *PostgresStore) UpdateLeadStage(ctx context.Context, id string, stage model.PipelineStage) error {
	tag, err := s.pool.Exec(ctx, `UPDATE leads SET stage = $1 WHERE id = $2`, string(stage), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead stage %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("lead", id)
	}
	return nil
}

func (s *PostgresStore) AddComment(ctx context.Context, leadID, text, author string) (*model.Comment, error) {
	c := newComment(uuid.New().String(), text, author, time.Now())
	encoded, err := json.Marshal(c)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal comment")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET comments = comments || jsonb_build_array($1::jsonb) WHERE id = $2`,
		string(encoded), leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: add comment %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return nil, notFound("lead", leadID)
	}
	return &c, nil
}

func (s *PostgresStore) DeleteLead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete lead %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("lead", id)
	}
	return nil
}

func (s *PostgresStore) DeleteLeadsByProject(ctx context.Context, projectID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leads WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete leads for project %s", projectID)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CountLeads(ctx context.Context, projectID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads WHERE project_id = $1`, projectID).Scan(&n)
	return n, eris.Wrap(err, "postgres: count leads")
}

// --- Strategies ---

func (s *PostgresStore) SaveStrategy(ctx context.Context, st model.SavedStrategy) (*model.SavedStrategy, error) {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	profile, err := marshalProfile(st.Profile)
	if err != nil {
		return nil, err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO strategies (id, project_id, persona_name, search_query, rationale, outreach_angle, profile, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET persona_name = EXCLUDED.persona_name, search_query = EXCLUDED.search_query,
		 rationale = EXCLUDED.rationale, outreach_angle = EXCLUDED.outreach_angle, profile = EXCLUDED.profile`,
		st.ID, st.ProjectID, st.PersonaName, st.SearchQuery, st.Rationale, st.OutreachAngle, profile, st.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: save strategy")
	}
	return &st, nil
}

const pgSelectStrategies = `SELECT id, project_id, persona_name, search_query, rationale, outreach_angle, profile, created_at FROM strategies`

func (s *PostgresStore) GetStrategy(ctx context.Context, id string) (*model.SavedStrategy, error) {
	st, err := scanStrategy(s.pool.QueryRow(ctx, pgSelectStrategies+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("strategy", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get strategy %s", id)
	}
	return st, nil
}

func (s *PostgresStore) ListStrategies(ctx context.Context, projectID string) ([]model.SavedStrategy, error) {
	query := pgSelectStrategies
	var args []any
	if projectID != "" {
		query += ` WHERE project_id = $1`
		args = append(args, projectID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list strategies")
	}
	defer rows.Close()

	var out []model.SavedStrategy
	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan strategy")
		}
		out = append(out, *st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list strategies iterate")
}

func (s *PostgresStore) DeleteStrategy(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM strategies WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete strategy %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound("strategy", id)
	}
	return nil
}
