package domain

type Account struct {
	Email        string `json:"email" format:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	BeginsAt    *string `json:"begins_at,omitempty" format:"date-time"`
	FinishesAt  *string `json:"finishes_at,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type Participant struct {
	ProjectID    string `json:"project_id"`
	AccountEmail string `json:"account_email" format:"email"`
	Role         string `json:"role" enum:"owner,admin,member,spectator"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Invitation struct {
	Token        string `json:"token"`
	ProjectID    string `json:"project_id"`
	AccountEmail string `json:"account_email" format:"email"`
	Role         string `json:"role" enum:"admin,member,spectator"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type IssueGroup struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	IsFinal   bool   `json:"is_final"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Issue struct {
	ID                     string  `json:"id"`
	IssueGroupID           string  `json:"issue_group_id"`
	Title                  string  `json:"title"`
	Description            string  `json:"description,omitempty"`
	ExpiresAt              *string `json:"expires_at,omitempty" format:"date-time"`
	Completed              bool    `json:"completed"`
	AssignedToAccountEmail *string `json:"assigned_to_account_email,omitempty" format:"email"`
	CreatedAt              string  `json:"created_at" format:"date-time"`
}

type Event struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts" format:"date-time"`
	Type         string `json:"type"`
	ProjectID    string `json:"project_id,omitempty"`
	EntityKind   string `json:"entity_kind"`
	EntityID     string `json:"entity_id,omitempty"`
	AccountEmail string `json:"account_email"`
	Payload      string `json:"payload_json"`
}
