package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospect-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	id                 TEXT PRIMARY KEY,
	project_id         TEXT NOT NULL DEFAULT '',
	lead_number        INTEGER NOT NULL DEFAULT 0,
	generated_date     DATETIME NOT NULL,
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
	rating             REAL NOT NULL DEFAULT 0,
	review_count       INTEGER NOT NULL DEFAULT 0,
	business_hours     TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL DEFAULT '',
	email              TEXT NOT NULL DEFAULT '',
	linkedin           TEXT NOT NULL DEFAULT '',
	facebook           TEXT NOT NULL DEFAULT '',
	instagram          TEXT NOT NULL DEFAULT '',
	contact_name       TEXT NOT NULL DEFAULT '',
	contact_title      TEXT NOT NULL DEFAULT '',
	quality_score      INTEGER NOT NULL DEFAULT 0,
	confidence_overall REAL NOT NULL DEFAULT 0,
	social_context     TEXT NOT NULL DEFAULT '',
	icebreaker         TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'New',
	contacted          BOOLEAN NOT NULL DEFAULT 0,
	notes              TEXT NOT NULL DEFAULT '',
	stage              TEXT NOT NULL DEFAULT 'New',
	deal_value         REAL NOT NULL DEFAULT 0,
	owner              TEXT NOT NULL DEFAULT '',
	comments           TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS strategies (
	id             TEXT PRIMARY KEY,
	project_id     TEXT NOT NULL DEFAULT '',
	persona_name   TEXT NOT NULL,
	search_query   TEXT NOT NULL,
	rationale      TEXT NOT NULL DEFAULT '',
	outreach_angle TEXT NOT NULL DEFAULT '',
	profile        TEXT NOT NULL DEFAULT '{}',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_project_id ON leads(project_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_project_number ON leads(project_id, lead_number) WHERE lead_number > 0;
CREATE INDEX IF NOT EXISTS idx_leads_stage ON leads(stage);
CREATE INDEX IF NOT EXISTS idx_strategies_project_id ON strategies(project_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Projects ---

func (s *SQLiteStore) CreateProject(ctx context.Context, name, description string) (*model.Project, error) {
	p := model.Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert project")
	}
	return &p, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("project", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get project %s", id)
	}
	return &p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]model.ProjectSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.created_at,
			(SELECT COUNT(*) FROM leads l WHERE l.project_id = p.id),
			(SELECT COUNT(*) FROM strategies st WHERE st.project_id = p.id)
		FROM projects p
		ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list projects")
	}
	defer rows.Close()

	var out []model.ProjectSummary
	for rows.Next() {
		var ps model.ProjectSummary
		if err := rows.Scan(&ps.ID, &ps.Name, &ps.Description, &ps.CreatedAt, &ps.LeadCount, &ps.StrategyCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan project")
		}
		out = append(out, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list projects iterate")
	}

	for i := range out {
		if out[i].LeadCount == 0 {
			continue
		}
		var last time.Time
		err := s.db.QueryRowContext(ctx,
			`SELECT generated_date FROM leads WHERE project_id = ? ORDER BY generated_date DESC LIMIT 1`,
			out[i].ID,
		).Scan(&last)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: last activity for project %s", out[i].ID)
		}
		out[i].LastActivity = &last
	}
	return out, nil
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p model.Project) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ? WHERE id = ?`,
		p.Name, p.Description, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update project %s", p.ID)
	}
	return checkRowsAffected(res, "project", p.ID)
}

// DeleteProject removes the project with its leads and strategies.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin delete project")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, q := range []string{
		`DELETE FROM leads WHERE project_id = ?`,
		`DELETE FROM strategies WHERE project_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return eris.Wrapf(err, "sqlite: delete project %s children", id)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete project %s", id)
	}
	if err := checkRowsAffected(res, "project", id); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete project")
}

// --- Leads ---

func (s *SQLiteStore) NextLeadNumber(ctx context.Context, projectID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(lead_number), 0) + 1 FROM leads WHERE project_id = ?`, projectID,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: next lead number")
}

var sqliteInsertLead = fmt.Sprintf(
	`INSERT INTO leads (%s) VALUES (%s)`,
	strings.Join(leadColumns, ", "),
	strings.TrimSuffix(strings.Repeat("?, ", len(leadColumns)), ", "),
)

func sqliteUpsertLead() string {
	sets := make([]string, 0, len(leadColumns))
	for _, c := range leadUpdateColumns() {
		sets = append(sets, c+" = excluded."+c)
	}
	return sqliteInsertLead + ` ON CONFLICT (id) DO UPDATE SET ` + strings.Join(sets, ", ")
}

// CreateLeads inserts new leads, numbering them in the write transaction.
func (s *SQLiteStore) CreateLeads(ctx context.Context, leads []model.Lead) error {
	_, err := s.writeLeads(ctx, sqliteInsertLead, leads)
	return err
}

// SaveLeads inserts leads or updates existing rows with the same id. The
// project, lead number and generated date of an existing row are kept.
func (s *SQLiteStore) SaveLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	return s.writeLeads(ctx, sqliteUpsertLead(), leads)
}

func (s *SQLiteStore) writeLeads(ctx context.Context, query string, leads []model.Lead) (int64, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin write leads")
	}
	defer tx.Rollback() //nolint:errcheck

	numbered := slices.Clone(leads)
	if err := sqliteNumberLeads(ctx, tx, numbered); err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare write leads")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, l := range numbered {
		vals, err := leadValues(l)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, vals...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: write lead %s", l.ID)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit write leads")
	}
	copy(leads, numbered)
	return n, nil
}

func sqliteNumberLeads(ctx context.Context, tx *sql.Tx, leads []model.Lead) error {
	var stored []string
	for _, l := range leads {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM leads WHERE id = ?`, l.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return eris.Wrapf(err, "sqlite: find lead %s", l.ID)
		}
		stored = append(stored, l.ID)
	}
	return numberNewLeads(leads, stored, func(projectID string) (int, error) {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(lead_number), 0) + 1 FROM leads WHERE project_id = ?`, projectID,
		).Scan(&n)
		return n, eris.Wrapf(err, "sqlite: next lead number for %s", projectID)
	})
}

var sqliteSelectLeads = `SELECT ` + strings.Join(leadColumns, ", ") + ` FROM leads`

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	l, err := scanLead(s.db.QueryRowContext(ctx, sqliteSelectLeads+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("lead", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := sqliteSelectLeads + ` WHERE 1=1`
	var args []any

	if filter.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(filter.Stage))
	}
	query += ` ORDER BY lead_number ASC, generated_date ASC LIMIT ?`
	args = append(args, defaultLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

// UpdateLead overwrites every mutable column of the lead with l's values.
func (s *SQLiteStore) UpdateLead(ctx context.Context, l model.Lead) error {
	vals, err := leadValues(l)
	if err != nil {
		return err
	}
	cols := leadUpdateColumns()
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, vals[columnIndex(c)])
	}
	args = append(args, l.ID)

	res, err := s.db.ExecContext(ctx, `UPDATE leads SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %s", l.ID)
	}
	return checkRowsAffected(res, "lead", l.ID)
}

func (s *SQLiteStore) UpdateLeadStage(ctx context.Context, id string, stage model.PipelineStage) error {
	res, err := s.db.ExecContext(ctx, `UPDATE leads SET stage = ? WHERE id = ?`, string(stage), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead stage %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) AddComment(ctx context.Context, leadID, text, author string) (*model.Comment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin add comment")
	}
	defer tx.Rollback() //nolint:errcheck

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT comments FROM leads WHERE id = ?`, leadID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("lead", leadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read comments %s", leadID)
	}
	comments, err := unmarshalComments(raw)
	if err != nil {
		return nil, err
	}

	c := newComment(uuid.New().String(), text, author, time.Now())
	encoded, err := marshalComments(append(comments, c))
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE leads SET comments = ? WHERE id = ?`, encoded, leadID); err != nil {
		return nil, eris.Wrapf(err, "sqlite: write comments %s", leadID)
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit add comment")
	}
	return &c, nil
}

func (s *SQLiteStore) DeleteLead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete lead %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) DeleteLeadsByProject(ctx context.Context, projectID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE project_id = ?`, projectID)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete leads for project %s", projectID)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) CountLeads(ctx context.Context, projectID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads WHERE project_id = ?`, projectID).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count leads")
}

// --- Strategies ---

func (s *SQLiteStore) SaveStrategy(ctx context.Context, st model.SavedStrategy) (*model.SavedStrategy, error) {
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO strategies (id, project_id, persona_name, search_query, rationale, outreach_angle, profile, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET persona_name = excluded.persona_name, search_query = excluded.search_query,
		 rationale = excluded.rationale, outreach_angle = excluded.outreach_angle, profile = excluded.profile`,
		st.ID, st.ProjectID, st.PersonaName, st.SearchQuery, st.Rationale, st.OutreachAngle, profile, st.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: save strategy")
	}
	return &st, nil
}

const sqliteSelectStrategies = `SELECT id, project_id, persona_name, search_query, rationale, outreach_angle, profile, created_at FROM strategies`

func (s *SQLiteStore) GetStrategy(ctx context.Context, id string) (*model.SavedStrategy, error) {
	st, err := scanStrategy(s.db.QueryRowContext(ctx, sqliteSelectStrategies+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("strategy", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get strategy %s", id)
	}
	return st, nil
}

func (s *SQLiteStore) ListStrategies(ctx context.Context, projectID string) ([]model.SavedStrategy, error) {
	query := sqliteSelectStrategies
	var args []any
	if projectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list strategies")
	}
	defer rows.Close()

	var out []model.SavedStrategy
	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan strategy")
		}
		out = append(out, *st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list strategies iterate")
}

func (s *SQLiteStore) DeleteStrategy(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM strategies WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete strategy %s", id)
	}
	return checkRowsAffected(res, "strategy", id)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

func columnIndex(col string) int {
	for i, c := range leadColumns {
		if c == col {
			return i
		}
	}
	return -1
}
