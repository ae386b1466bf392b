package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"trackline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func scanProject(row *sql.Row) (domain.Project, error) {
	var p domain.Project
	var desc, begins, finishes sql.NullString
	err := row.Scan(&p.ID, &p.Name, &desc, &begins, &finishes, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if desc.Valid {
		p.Description = desc.String
	}
	if begins.Valid {
		p.BeginsAt = &begins.String
	}
	if finishes.Valid {
		p.FinishesAt = &finishes.String
	}
	return p, nil
}

const projectColumns = `id,name,description,begins_at,finishes_at,created_at`

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,name,description,begins_at,finishes_at,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.Name, nullable(p.Description), nullableStringPtr(p.BeginsAt), nullableStringPtr(p.FinishesAt), p.CreatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id))
}

// DoesProjectExist is the guard-chain existence primitive.
func (r Repo) DoesProjectExist(ctx context.Context, id string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id=? LIMIT 1`, id).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// ListProjectsForAccount returns projects the account participates in.
func (r Repo) ListProjectsForAccount(ctx context.Context, accountEmail string) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT p.id,p.name,p.description,p.begins_at,p.finishes_at,p.created_at
FROM projects p
JOIN participants pa ON pa.project_id=p.id
WHERE pa.account_email=?
ORDER BY p.created_at DESC, p.id DESC`, accountEmail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		var desc, begins, finishes sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &desc, &begins, &finishes, &p.CreatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			p.Description = desc.String
		}
		if begins.Valid {
			p.BeginsAt = &begins.String
		}
		if finishes.Valid {
			p.FinishesAt = &finishes.String
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, id string, name, description, beginsAt, finishesAt *string) error {
	var (
		fields []string
		args   []any
	)
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*description))
	}
	if beginsAt != nil {
		fields = append(fields, "begins_at=?")
		args = append(args, nullable(*beginsAt))
	}
	if finishesAt != nil {
		fields = append(fields, "finishes_at=?")
		args = append(args, nullable(*finishesAt))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE projects SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProject(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- participants ---

func (r Repo) InsertParticipant(ctx context.Context, tx *sql.Tx, p domain.Participant) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO participants(project_id,account_email,role,created_at) VALUES (?,?,?,?)`,
		p.ProjectID, p.AccountEmail, p.Role, p.CreatedAt)
	return err
}

func (r Repo) DoesParticipantExist(ctx context.Context, projectID, accountEmail string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM participants WHERE project_id=? AND account_email=? LIMIT 1`,
		projectID, accountEmail).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// FindParticipantRole is the authorization primitive: (project, email) -> role name.
func (r Repo) FindParticipantRole(ctx context.Context, projectID, accountEmail string) (string, error) {
	var role string
	err := r.DB.QueryRowContext(ctx, `SELECT role FROM participants WHERE project_id=? AND account_email=?`,
		projectID, accountEmail).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return role, err
}

func (r Repo) UpdateParticipantRole(ctx context.Context, tx *sql.Tx, projectID, accountEmail, role string) error {
	res, err := tx.ExecContext(ctx, `UPDATE participants SET role=? WHERE project_id=? AND account_email=?`,
		role, projectID, accountEmail)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteParticipant(ctx context.Context, tx *sql.Tx, projectID, accountEmail string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE project_id=? AND account_email=?`,
		projectID, accountEmail)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListParticipants(ctx context.Context, projectID string) ([]domain.Participant, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT project_id,account_email,role,created_at FROM participants WHERE project_id=? ORDER BY created_at, account_email`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ProjectID, &p.AccountEmail, &p.Role, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// --- events ---

// EventsAfter returns events with an id greater than afterID. An empty
// projectID matches every project.
func (r Repo) EventsAfter(ctx context.Context, limit int, afterID int64, projectID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `
SELECT id,ts,type,COALESCE(project_id,''),entity_kind,COALESCE(entity_id,''),account_email,payload_json
FROM events WHERE id > ? AND (?='' OR project_id=?) ORDER BY id ASC LIMIT ?`, afterID, projectID, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.ProjectID, &e.EntityKind, &e.EntityID, &e.AccountEmail, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) LatestEventID(ctx context.Context, projectID string) (int64, error) {
	var id sql.NullInt64
	err := r.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM events WHERE ?='' OR project_id=?`, projectID, projectID).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id.Int64, nil
}

func (r Repo) ListEvents(ctx context.Context, projectID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `
SELECT id,ts,type,COALESCE(project_id,''),entity_kind,COALESCE(entity_id,''),account_email,payload_json
FROM events WHERE project_id=? ORDER BY id DESC LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.ProjectID, &e.EntityKind, &e.EntityID, &e.AccountEmail, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
