package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"trackline/internal/domain"
)

// --- issue groups ---

func (r Repo) InsertIssueGroup(ctx context.Context, tx *sql.Tx, g domain.IssueGroup) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO issue_groups(id,project_id,title,is_final,created_at) VALUES (?,?,?,?,?)`,
		g.ID, g.ProjectID, g.Title, boolToInt(g.IsFinal), g.CreatedAt)
	return err
}

func (r Repo) GetIssueGroup(ctx context.Context, id string) (domain.IssueGroup, error) {
	var g domain.IssueGroup
	var isFinal int
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,title,is_final,created_at FROM issue_groups WHERE id=?`, id).
		Scan(&g.ID, &g.ProjectID, &g.Title, &isFinal, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return g, ErrNotFound
	}
	g.IsFinal = isFinal != 0
	return g, err
}

func (r Repo) DeleteIssueGroup(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM issue_groups WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListIssueGroups(ctx context.Context, projectID string) ([]domain.IssueGroup, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,title,is_final,created_at FROM issue_groups WHERE project_id=? ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.IssueGroup
	for rows.Next() {
		var g domain.IssueGroup
		var isFinal int
		if err := rows.Scan(&g.ID, &g.ProjectID, &g.Title, &isFinal, &g.CreatedAt); err != nil {
			return nil, err
		}
		g.IsFinal = isFinal != 0
		res = append(res, g)
	}
	return res, rows.Err()
}

// --- issues ---

func scanIssue(scan func(dest ...any) error) (domain.Issue, error) {
	var i domain.Issue
	var desc, expires, assignee sql.NullString
	var completed int
	err := scan(&i.ID, &i.IssueGroupID, &i.Title, &desc, &expires, &completed, &assignee, &i.CreatedAt)
	if err == sql.ErrNoRows {
		return i, ErrNotFound
	}
	if err != nil {
		return i, err
	}
	if desc.Valid {
		i.Description = desc.String
	}
	if expires.Valid {
		i.ExpiresAt = &expires.String
	}
	if assignee.Valid {
		i.AssignedToAccountEmail = &assignee.String
	}
	i.Completed = completed != 0
	return i, nil
}

const issueColumns = `id,issue_group_id,title,description,expires_at,completed,assigned_to_account_email,created_at`

func (r Repo) InsertIssue(ctx context.Context, tx *sql.Tx, i domain.Issue) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO issues(id,issue_group_id,title,description,expires_at,completed,assigned_to_account_email,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		i.ID, i.IssueGroupID, i.Title, nullable(i.Description), nullableStringPtr(i.ExpiresAt), boolToInt(i.Completed), nullableStringPtr(i.AssignedToAccountEmail), i.CreatedAt)
	return err
}

func (r Repo) GetIssue(ctx context.Context, id string) (domain.Issue, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id=?`, id)
	return scanIssue(row.Scan)
}

func (r Repo) UpdateIssue(ctx context.Context, tx *sql.Tx, id string, title, description, expiresAt *string) error {
	var (
		fields []string
		args   []any
	)
	if title != nil {
		fields = append(fields, "title=?")
		args = append(args, *title)
	}
	if description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*description))
	}
	if expiresAt != nil {
		fields = append(fields, "expires_at=?")
		args = append(args, nullable(*expiresAt))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE issues SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MoveIssue updates the owning group and the derived completed flag together.
func (r Repo) MoveIssue(ctx context.Context, tx *sql.Tx, id, issueGroupID string, completed bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE issues SET issue_group_id=?, completed=? WHERE id=?`,
		issueGroupID, boolToInt(completed), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) AssignIssue(ctx context.Context, tx *sql.Tx, id string, accountEmail *string) error {
	res, err := tx.ExecContext(ctx, `UPDATE issues SET assigned_to_account_email=? WHERE id=?`,
		nullableStringPtr(accountEmail), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteIssue(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListIssues(ctx context.Context, issueGroupID string) ([]domain.Issue, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE issue_group_id=? ORDER BY created_at, id`, issueGroupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Issue
	for rows.Next() {
		i, err := scanIssue(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, i)
	}
	return res, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
