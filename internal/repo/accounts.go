package repo

import (
	"context"
	"database/sql"

	"trackline/internal/domain"
)

func (r Repo) InsertAccount(ctx context.Context, a domain.Account) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO accounts(email,name,password_hash,created_at) VALUES (?,?,?,?)`,
		a.Email, a.Name, a.PasswordHash, a.CreatedAt)
	return err
}

func (r Repo) GetAccount(ctx context.Context, email string) (domain.Account, error) {
	var a domain.Account
	err := r.DB.QueryRowContext(ctx, `SELECT email,name,password_hash,created_at FROM accounts WHERE email=?`, email).
		Scan(&a.Email, &a.Name, &a.PasswordHash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) DoesAccountExist(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE email=? LIMIT 1`, email).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}
