package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"trackline/internal/domain"
	"trackline/internal/events"
	"trackline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// requireProject is the first link of every project-scoped guard chain.
func (e Engine) requireProject(ctx context.Context, projectID string) error {
	ok, err := e.Repo.DoesProjectExist(ctx, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ProjectNotFoundError{ProjectID: projectID}
	}
	return nil
}

// participantRole resolves the requester's role in a project, translating a
// missing row into the business-rule error.
func (e Engine) participantRole(ctx context.Context, projectID, accountEmail string) (domain.Role, error) {
	name, err := e.Repo.FindParticipantRole(ctx, projectID, accountEmail)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Role{}, domain.NotParticipantInProjectError{Email: accountEmail}
	}
	if err != nil {
		return domain.Role{}, err
	}
	return domain.ParseRole(name)
}

// authorize checks participation first, then the permission.
func (e Engine) authorize(ctx context.Context, projectID, accountEmail string, perm domain.Permission) error {
	role, err := e.participantRole(ctx, projectID, accountEmail)
	if err != nil {
		return err
	}
	if !role.Can(perm) {
		return domain.RoleInsufficientPermissionError{Role: role.Name(), Permission: perm}
	}
	return nil
}

// RequireParticipant verifies the project exists and the account participates
// in it. Read endpoints use this as their whole guard chain.
func (e Engine) RequireParticipant(ctx context.Context, projectID, accountEmail string) error {
	if err := e.requireProject(ctx, projectID); err != nil {
		return err
	}
	_, err := e.participantRole(ctx, projectID, accountEmail)
	return err
}

// Authorize verifies the project exists and the account holds the permission.
func (e Engine) Authorize(ctx context.Context, projectID, accountEmail string, perm domain.Permission) error {
	if err := e.requireProject(ctx, projectID); err != nil {
		return err
	}
	return e.authorize(ctx, projectID, accountEmail, perm)
}

// --- accounts ---

type AccountCreateOptions struct {
	Name     string
	Email    string
	Password string
}

func (e Engine) CreateAccount(ctx context.Context, opts AccountCreateOptions) (domain.Account, error) {
	if err := domain.ValidateEmail(opts.Email); err != nil {
		return domain.Account{}, err
	}
	exists, err := e.Repo.DoesAccountExist(ctx, opts.Email)
	if err != nil {
		return domain.Account{}, err
	}
	if exists {
		return domain.Account{}, domain.EmailAlreadyInUseError{Email: opts.Email}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Account{}, err
	}
	a := domain.Account{
		Email:        opts.Email,
		Name:         opts.Name,
		PasswordHash: string(hash),
		CreatedAt:    e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertAccount(ctx, a); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

// --- projects ---

type ProjectCreateOptions struct {
	Name        string
	Description string
	BeginsAt    *string
	FinishesAt  *string
	OwnerEmail  string
}

// CreateProject inserts the project and its owner participant in a single
// transaction; this is the one multi-insert write in the system.
func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	exists, err := e.Repo.DoesAccountExist(ctx, opts.OwnerEmail)
	if err != nil {
		return domain.Project{}, err
	}
	if !exists {
		return domain.Project{}, domain.AccountNotFoundError{Email: opts.OwnerEmail}
	}
	now := e.now()
	if opts.BeginsAt != nil {
		if err := domain.ValidateDate(*opts.BeginsAt, "begins_at"); err != nil {
			return domain.Project{}, err
		}
	}
	if opts.FinishesAt != nil {
		if err := domain.ValidateFutureDate(*opts.FinishesAt, "finishes_at", now); err != nil {
			return domain.Project{}, err
		}
	}
	nowStr := now.UTC().Format(time.RFC3339)
	p := domain.Project{
		ID:          uuid.New().String(),
		Name:        opts.Name,
		Description: opts.Description,
		BeginsAt:    opts.BeginsAt,
		FinishesAt:  opts.FinishesAt,
		CreatedAt:   nowStr,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, err
	}
	owner := domain.Participant{
		ProjectID:    p.ID,
		AccountEmail: opts.OwnerEmail,
		Role:         domain.RoleOwner,
		CreatedAt:    nowStr,
	}
	if err := e.Repo.InsertParticipant(ctx, tx, owner); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, "project.created", p.ID, "project", p.ID, opts.OwnerEmail, events.EventPayload{"name": p.Name}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

type ProjectUpdateOptions struct {
	ProjectID      string
	Name           *string
	Description    *string
	BeginsAt       *string
	FinishesAt     *string
	RequesterEmail string
}

func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	if err := e.requireProject(ctx, opts.ProjectID); err != nil {
		return domain.Project{}, err
	}
	if err := e.authorize(ctx, opts.ProjectID, opts.RequesterEmail, domain.PermUpdateProject); err != nil {
		return domain.Project{}, err
	}
	if opts.BeginsAt != nil && *opts.BeginsAt != "" {
		if err := domain.ValidateDate(*opts.BeginsAt, "begins_at"); err != nil {
			return domain.Project{}, err
		}
	}
	if opts.FinishesAt != nil && *opts.FinishesAt != "" {
		if err := domain.ValidateFutureDate(*opts.FinishesAt, "finishes_at", e.now()); err != nil {
			return domain.Project{}, err
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateProject(ctx, tx, opts.ProjectID, opts.Name, opts.Description, opts.BeginsAt, opts.FinishesAt); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, "project.updated", opts.ProjectID, "project", opts.ProjectID, opts.RequesterEmail, events.EventPayload{}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return e.Repo.GetProject(ctx, opts.ProjectID)
}

// DeleteProject returns the participants removed along with the project so
// the caller can notify them after the fact.
func (e Engine) DeleteProject(ctx context.Context, projectID, requesterEmail string) ([]domain.Participant, error) {
	if err := e.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, projectID, requesterEmail, domain.PermDeleteProject); err != nil {
		return nil, err
	}
	participants, err := e.Repo.ListParticipants(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteProject(ctx, tx, projectID); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, "project.deleted", projectID, "project", projectID, requesterEmail, events.EventPayload{}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return participants, nil
}
