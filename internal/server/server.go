package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"trackline/internal/config"
	"trackline/internal/domain"
	"trackline/internal/engine"
	"trackline/internal/notifier"
	"trackline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Notify   *notifier.Dispatcher
	Webhooks []config.Webhook
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"insufficient_role"`
	Message string         `json:"message" example:"role spectator lacks permission issue.create"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type service struct {
	eng    engine.Engine
	notify *notifier.Dispatcher
}

// New returns an HTTP handler exposing the Trackline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Trackline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	s := &service{eng: cfg.Engine, notify: cfg.Notify}

	registerDocs(router, basePath)
	registerHealth(group)
	registerAccounts(group, s)
	registerProjects(group, s)
	registerInvitations(group, s)
	registerParticipants(group, s)
	registerIssueGroups(group, s)
	registerIssues(group, s)
	registerEvents(group, s)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine, cfg.Webhooks)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError translates business errors into status codes: unknown entities
// are 404, missing permissions are 401, broken business rules are 400, and
// anything else is a 500. Unclassified errors are logged server-side only;
// the client never sees the underlying error string.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var insufficient domain.RoleInsufficientPermissionError
	if errors.As(err, &insufficient) {
		return newAPIError(http.StatusUnauthorized, "insufficient_role", err.Error(), map[string]any{
			"role":       insufficient.Role,
			"permission": string(insufficient.Permission),
		})
	}
	switch {
	case isNotFound(err):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case isBusinessRule(err):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	log.Printf("internal error: %v", err)
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
}

func isNotFound(err error) bool {
	if errors.Is(err, repo.ErrNotFound) {
		return true
	}
	var (
		pnf domain.ProjectNotFoundError
		anf domain.AccountNotFoundError
		gnf domain.IssueGroupNotFoundError
		inf domain.IssueNotFoundError
	)
	return errors.As(err, &pnf) || errors.As(err, &anf) || errors.As(err, &gnf) || errors.As(err, &inf)
}

func isBusinessRule(err error) bool {
	var (
		invalidEmail   domain.InvalidEmailError
		emailInUse     domain.EmailAlreadyInUseError
		invalidDate    domain.InvalidDateError
		notFuture      domain.NotFutureDateError
		invalidRole    domain.InvalidRoleNameError
		notParticipant domain.NotParticipantInProjectError
		alreadyIn      domain.AccountAlreadyParticipatesInProjectError
		alreadyInvited domain.AccountHasAlreadyBeenInvitedError
		ownerInvite    domain.OwnerRoleInInvitationError
		invalidToken   domain.InvalidInvitationTokenError
		kickSelf       domain.CannotKickYourselfError
		kickOwner      domain.CannotKickOwnerError
		ownRole        domain.CannotUpdateYourOwnRoleError
		ownerRole      domain.CannotUpdateRoleOfOwnerError
		toOwner        domain.CannotUpdateRoleToOwnerError
		wrongProject   domain.IssueGroupBelongsToDifferentProjectError
		notBegun       domain.ProjectHasntBegunError
		archived       domain.ProjectIsArchivedError
	)
	return errors.As(err, &invalidEmail) ||
		errors.As(err, &emailInUse) ||
		errors.As(err, &invalidDate) ||
		errors.As(err, &notFuture) ||
		errors.As(err, &invalidRole) ||
		errors.As(err, &notParticipant) ||
		errors.As(err, &alreadyIn) ||
		errors.As(err, &alreadyInvited) ||
		errors.As(err, &ownerInvite) ||
		errors.As(err, &invalidToken) ||
		errors.As(err, &kickSelf) ||
		errors.As(err, &kickOwner) ||
		errors.As(err, &ownRole) ||
		errors.As(err, &ownerRole) ||
		errors.As(err, &toOwner) ||
		errors.As(err, &wrongProject) ||
		errors.As(err, &notBegun) ||
		errors.As(err, &archived)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// sendNotification fires and forgets; delivery never blocks the response.
func (s *service) sendNotification(kind notifier.Kind, to []string, projectName string, data map[string]string) {
	if s.notify == nil || len(to) == 0 {
		return
	}
	s.notify.Go(notifier.Notification{
		Kind:        kind,
		To:          to,
		ProjectName: projectName,
		Data:        data,
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	accountsPath := path.Join("/", basePath, "accounts")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			if route == accountsPath && op == item.Post {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Trackline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAccounts(api huma.API, s *service) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-account",
		Method:        http.MethodPost,
		Path:          "/accounts",
		Summary:       "Create account",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateAccountRequest `json:"body"`
	}) (*struct {
		Body AccountResponse `json:"body"`
	}, error) {
		if input.Body.Email == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "email is required", nil)
		}
		if input.Body.Password == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "password is required", nil)
		}
		a, err := s.eng.CreateAccount(ctx, engine.AccountCreateOptions{
			Name:     input.Body.Name,
			Email:    input.Body.Email,
			Password: input.Body.Password,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AccountResponse `json:"body"`
		}{Body: accountResponse(a)}, nil
	})
}

func registerProjects(api huma.API, s *service) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		p, err := s.eng.CreateProject(ctx, engine.ProjectCreateOptions{
			Name:        input.Body.Name,
			Description: stringOrEmpty(input.Body.Description),
			BeginsAt:    input.Body.BeginsAt,
			FinishesAt:  input.Body.FinishesAt,
			OwnerEmail:  email,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects the requester participates in",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := s.eng.Repo.ListProjectsForAccount(ctx, email)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: mapProjects(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.eng.RequireParticipant(ctx, input.ProjectID, email); err != nil {
			return nil, handleError(err)
		}
		p, err := s.eng.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := s.eng.UpdateProject(ctx, engine.ProjectUpdateOptions{
			ProjectID:      input.ProjectID,
			Name:           input.Body.Name,
			Description:    input.Body.Description,
			BeginsAt:       input.Body.BeginsAt,
			FinishesAt:     input.Body.FinishesAt,
			RequesterEmail: email,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}",
		Summary:     "Delete project",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct{}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := s.eng.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		removed, err := s.eng.DeleteProject(ctx, input.ProjectID, email)
		if err != nil {
			return nil, handleError(err)
		}
		var recipients []string
		for _, participant := range removed {
			if participant.AccountEmail != email {
				recipients = append(recipients, participant.AccountEmail)
			}
		}
		s.sendNotification(notifier.KindProjectDeleted, recipients, p.Name, nil)
		return &struct{}{}, nil
	})
}

func registerInvitations(api huma.API, s *service) {
	huma.Register(api, huma.Operation{
		OperationID:   "invite-account",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/invitations",
		Summary:       "Invite an account to a project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string        `path:"project_id"`
		Body      InviteRequest `json:"body"`
	}) (*struct {
		Body InvitationResponse `json:"body"`
	}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		inv, err := s.eng.InviteAccount(ctx, engine.InviteOptions{
			ProjectID:    input.ProjectID,
			InviterEmail: email,
			InviteeEmail: input.Body.Email,
			RoleName:     input.Body.Role,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if p, err := s.eng.Repo.GetProject(ctx, input.ProjectID); err == nil {
			s.sendNotification(notifier.KindInvitation, []string{inv.AccountEmail}, p.Name, map[string]string{
				"role":  inv.Role,
				"token": inv.Token,
			})
		}
		return &struct {
			Body InvitationResponse `json:"body"`
		}{Body: invitationResponse(inv)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-invitations",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/invitations",
		Summary:     "List pending invitations",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []InvitationResponse `json:"body"`
	}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.eng.Authorize(ctx, input.ProjectID, email, domain.PermInviteAccount); err != nil {
			return nil, handleError(err)
		}
		items, err := s.eng.Repo.ListInvitations(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []InvitationResponse `json:"body"`
		}{Body: mapInvitations(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-invitation",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/invitations/{account_email}",
		Summary:     "Revoke a pending invitation",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID    string `path:"project_id"`
		AccountEmail string `path:"account_email"`
	}) (*struct{}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		err := s.eng.RevokeInvitation(ctx, engine.RevokeInvitationOptions{
			ProjectID:      input.ProjectID,
			RequesterEmail: email,
			TargetEmail:    input.AccountEmail,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-invitation",
		Method:      http.MethodPost,
		Path:        "/invitations/accept",
		Summary:     "Accept an invitation by token",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body AcceptInvitationRequest `json:"body"`
	}) (*struct {
		Body ParticipantResponse `json:"body"`
	}, error) {
		if _, authErr := accountEmailFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if input.Body.Token == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "token is required", nil)
		}
		p, err := s.eng.AcceptInvitation(ctx, input.Body.Token)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ParticipantResponse `json:"body"`
		}{Body: participantResponse(p)}, nil
	})
}

func registerParticipants(api huma.API, s *service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-participants",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/participants",
		Summary:     "List participants",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []ParticipantResponse `json:"body"`
	}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.eng.RequireParticipant(ctx, input.ProjectID, email); err != nil {
			return nil, handleError(err)
		}
		items, err := s.eng.Repo.ListParticipants(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ParticipantResponse `json:"body"`
		}{Body: mapParticipants(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "kick-participant",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/participants/{account_email}",
		Summary:     "Kick a participant",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID    string `path:"project_id"`
		AccountEmail string `path:"account_email"`
	}) (*struct{}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		err := s.eng.KickParticipant(ctx, engine.KickOptions{
			ProjectID:      input.ProjectID,
			RequesterEmail: email,
			TargetEmail:    input.AccountEmail,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if p, err := s.eng.Repo.GetProject(ctx, input.ProjectID); err == nil {
			s.sendNotification(notifier.KindKicked, []string{input.AccountEmail}, p.Name, nil)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-participant-role",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/participants/{account_email}/role",
		Summary:     "Update a participant's role",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID    string            `path:"project_id"`
		AccountEmail string            `path:"account_email"`
		Body         UpdateRoleRequest `json:"body"`
	}) (*struct{}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		err := s.eng.UpdateParticipantRole(ctx, engine.RoleUpdateOptions{
			ProjectID:      input.ProjectID,
			RequesterEmail: email,
			TargetEmail:    input.AccountEmail,
			RoleName:       input.Body.Role,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if p, err := s.eng.Repo.GetProject(ctx, input.ProjectID); err == nil {
			s.sendNotification(notifier.KindRoleUpdated, []string{input.AccountEmail}, p.Name, map[string]string{
				"role": input.Body.Role,
			})
		}
		return &struct{}{}, nil
	})
}

func registerIssueGroups(api huma.API, s *service) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-issue-group",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/groups",
		Summary:       "Create issue group",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string                  `path:"project_id"`
		Body      CreateIssueGroupRequest `json:"body"`
	}) (*struct {
		Body IssueGroupResponse `json:"body"`
	}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		g, err := s.eng.CreateIssueGroup(ctx, engine.IssueGroupCreateOptions{
			ProjectID:      input.ProjectID,
			Title:          input.Body.Title,
			IsFinal:        input.Body.IsFinal,
			RequesterEmail: email,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IssueGroupResponse `json:"body"`
		}{Body: issueGroupResponse(g)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-issue-groups",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/groups",
		Summary:     "List issue groups",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []IssueGroupResponse `json:"body"`
	}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.eng.RequireParticipant(ctx, input.ProjectID, email); err != nil {
			return nil, handleError(err)
		}
		items, err := s.eng.Repo.ListIssueGroups(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []IssueGroupResponse `json:"body"`
		}{Body: mapIssueGroups(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-issue-group",
		Method:      http.MethodDelete,
		Path:        "/groups/{group_id}",
		Summary:     "Delete issue group",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		GroupID string `path:"group_id"`
	}) (*struct{}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.eng.DeleteIssueGroup(ctx, input.GroupID, email); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerIssues(api huma.API, s *service) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-issue",
		Method:        http.MethodPost,
		Path:          "/groups/{group_id}/issues",
		Summary:       "Create issue",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		GroupID string             `path:"group_id"`
		Body    CreateIssueRequest `json:"body"`
	}) (*struct {
		Body IssueResponse `json:"body"`
	}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		i, err := s.eng.CreateIssue(ctx, engine.IssueCreateOptions{
			IssueGroupID:   input.GroupID,
			Title:          input.Body.Title,
			Description:    stringOrEmpty(input.Body.Description),
			ExpiresAt:      input.Body.ExpiresAt,
			RequesterEmail: email,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IssueResponse `json:"body"`
		}{Body: issueResponse(i)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-issues",
		Method:      http.MethodGet,
		Path:        "/groups/{group_id}/issues",
		Summary:     "List issues in a group",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		GroupID string `path:"group_id"`
	}) (*struct {
		Body []IssueResponse `json:"body"`
	}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		g, err := s.eng.Repo.GetIssueGroup(ctx, input.GroupID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := s.eng.RequireParticipant(ctx, g.ProjectID, email); err != nil {
			return nil, handleError(err)
		}
		items, err := s.eng.Repo.ListIssues(ctx, input.GroupID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []IssueResponse `json:"body"`
		}{Body: mapIssues(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-issue",
		Method:      http.MethodPatch,
		Path:        "/issues/{issue_id}",
		Summary:     "Update issue",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		IssueID string             `path:"issue_id"`
		Body    UpdateIssueRequest `json:"body"`
	}) (*struct {
		Body IssueResponse `json:"body"`
	}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		i, err := s.eng.UpdateIssue(ctx, engine.IssueUpdateOptions{
			IssueID:        input.IssueID,
			Title:          input.Body.Title,
			Description:    input.Body.Description,
			ExpiresAt:      input.Body.ExpiresAt,
			RequesterEmail: email,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IssueResponse `json:"body"`
		}{Body: issueResponse(i)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-issue",
		Method:      http.MethodDelete,
		Path:        "/issues/{issue_id}",
		Summary:     "Delete issue",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
	}) (*struct{}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.eng.DeleteIssue(ctx, input.IssueID, email); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-issue",
		Method:      http.MethodPost,
		Path:        "/issues/{issue_id}/move",
		Summary:     "Move issue to another group",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		IssueID string           `path:"issue_id"`
		Body    MoveIssueRequest `json:"body"`
	}) (*struct {
		Body IssueResponse `json:"body"`
	}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.IssueGroupID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "issue_group_id is required", nil)
		}
		i, err := s.eng.MoveIssue(ctx, engine.IssueMoveOptions{
			IssueID:        input.IssueID,
			IssueGroupID:   input.Body.IssueGroupID,
			RequesterEmail: email,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IssueResponse `json:"body"`
		}{Body: issueResponse(i)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-issue",
		Method:      http.MethodPost,
		Path:        "/issues/{issue_id}/assign",
		Summary:     "Assign or unassign an issue",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		IssueID string             `path:"issue_id"`
		Body    AssignIssueRequest `json:"body"`
	}) (*struct {
		Body IssueResponse `json:"body"`
	}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		i, err := s.eng.AssignIssue(ctx, engine.IssueAssignOptions{
			IssueID:        input.IssueID,
			AssigneeEmail:  input.Body.AssigneeEmail,
			RequesterEmail: email,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if i.AssignedToAccountEmail != nil && *i.AssignedToAccountEmail != email {
			if g, err := s.eng.Repo.GetIssueGroup(ctx, i.IssueGroupID); err == nil {
				if p, err := s.eng.Repo.GetProject(ctx, g.ProjectID); err == nil {
					s.sendNotification(notifier.KindIssueAssigned, []string{*i.AssignedToAccountEmail}, p.Name, map[string]string{
						"issue_title": i.Title,
					})
				}
			}
		}
		return &struct {
			Body IssueResponse `json:"body"`
		}{Body: issueResponse(i)}, nil
	})
}

func registerEvents(api huma.API, s *service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/events",
		Summary:     "List recent project events",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Limit     int    `query:"limit" default:"50"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		email, authErr := accountEmailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := s.eng.RequireParticipant(ctx, input.ProjectID, email); err != nil {
			return nil, handleError(err)
		}
		items, err := s.eng.Repo.ListEvents(ctx, input.ProjectID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
