package repo

import (
	"context"
	"database/sql"

	"trackline/internal/domain"
)

func (r Repo) InsertInvitation(ctx context.Context, tx *sql.Tx, inv domain.Invitation) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO invitations(token,project_id,account_email,role,created_at) VALUES (?,?,?,?,?)`,
		inv.Token, inv.ProjectID, inv.AccountEmail, inv.Role, inv.CreatedAt)
	return err
}

// GetInvitationByToken is the accept-invitation primitive. Token validity is
// pure existence; there is no expiry window.
func (r Repo) GetInvitationByToken(ctx context.Context, token string) (domain.Invitation, error) {
	var inv domain.Invitation
	err := r.DB.QueryRowContext(ctx, `SELECT token,project_id,account_email,role,created_at FROM invitations WHERE token=?`, token).
		Scan(&inv.Token, &inv.ProjectID, &inv.AccountEmail, &inv.Role, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		return inv, ErrNotFound
	}
	return inv, err
}

func (r Repo) HasPendingInvitation(ctx context.Context, projectID, accountEmail string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM invitations WHERE project_id=? AND account_email=? LIMIT 1`,
		projectID, accountEmail).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) DeleteInvitationByToken(ctx context.Context, tx *sql.Tx, token string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM invitations WHERE token=?`, token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteInvitation(ctx context.Context, tx *sql.Tx, projectID, accountEmail string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM invitations WHERE project_id=? AND account_email=?`,
		projectID, accountEmail)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListInvitations(ctx context.Context, projectID string) ([]domain.Invitation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT token,project_id,account_email,role,created_at FROM invitations WHERE project_id=? ORDER BY created_at, account_email`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Invitation
	for rows.Next() {
		var inv domain.Invitation
		if err := rows.Scan(&inv.Token, &inv.ProjectID, &inv.AccountEmail, &inv.Role, &inv.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, inv)
	}
	return res, rows.Err()
}
