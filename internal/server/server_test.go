package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"trackline/internal/db"
	"trackline/internal/engine"
	"trackline/internal/migrate"
	"trackline/internal/notifier"
)

const testJWTSecret = "test-secret"

type chanNotifier struct {
	sent chan notifier.Notification
}

func (c *chanNotifier) Name() string { return "chan" }

func (c *chanNotifier) Send(_ context.Context, n notifier.Notification) error {
	c.sent <- n
	return nil
}

func (c *chanNotifier) Close() error { return nil }

type testServer struct {
	URL    string
	client *http.Client
	sent   chan notifier.Notification
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn)

	sent := make(chan notifier.Notification, 16)
	dispatcher := notifier.NewDispatcher()
	dispatcher.Register(&chanNotifier{sent: sent})

	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              testJWTSecret,
			AllowLegacyEmailHeader: true,
			Logger:                 log.New(io.Discard, "", 0),
		},
		Notify: dispatcher,
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		sent:   sent,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asEmail(email string) map[string]string {
	return map[string]string{"X-Account-Email": email}
}

func createAccount(t *testing.T, srv *testServer, email string) {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/accounts", map[string]any{
		"name":     "Tester",
		"email":    email,
		"password": "hunter22",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create account %s: %d %s", email, res.StatusCode, string(data))
	}
}

func createProject(t *testing.T, srv *testServer, ownerEmail, name string) ProjectResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name": name,
	}, asEmail(ownerEmail))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var p ProjectResponse
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	return p
}

func waitNotification(t *testing.T, srv *testServer) notifier.Notification {
	t.Helper()
	select {
	case n := <-srv.sent:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return notifier.Notification{}
	}
}

func TestInvitationFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createAccount(t, srv, "owner@email.com")
	createAccount(t, srv, "garcia@email.com")
	p := createProject(t, srv, "owner@email.com", "board")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+p.ID+"/invitations", map[string]any{
		"email": "garcia@email.com",
		"role":  "member",
	}, asEmail("owner@email.com"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("invite: %d %s", res.StatusCode, string(data))
	}
	var inv InvitationResponse
	if err := json.Unmarshal(data, &inv); err != nil {
		t.Fatalf("unmarshal invitation: %v", err)
	}
	if inv.Token == "" {
		t.Fatal("expected invitation token")
	}

	n := waitNotification(t, srv)
	if n.Kind != notifier.KindInvitation {
		t.Fatalf("unexpected notification kind %s", n.Kind)
	}
	if len(n.To) != 1 || n.To[0] != "garcia@email.com" {
		t.Fatalf("unexpected recipients %v", n.To)
	}
	if n.Data["token"] != inv.Token {
		t.Fatal("notification must carry the invitation token")
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/invitations/accept", map[string]any{
		"token": inv.Token,
	}, asEmail("garcia@email.com"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept: %d %s", res.StatusCode, string(data))
	}
	var joined ParticipantResponse
	if err := json.Unmarshal(data, &joined); err != nil {
		t.Fatalf("unmarshal participant: %v", err)
	}
	if joined.Role != "member" {
		t.Fatalf("unexpected role %s", joined.Role)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+p.ID+"/participants", nil, asEmail("owner@email.com"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list participants: %d %s", res.StatusCode, string(data))
	}
	var participants []ParticipantResponse
	if err := json.Unmarshal(data, &participants); err != nil {
		t.Fatalf("unmarshal participants: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(participants))
	}

	// accepting the same token again must fail
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/invitations/accept", map[string]any{
		"token": inv.Token,
	}, asEmail("garcia@email.com"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on token reuse, got %d %s", res.StatusCode, string(data))
	}
}

func TestInsufficientRoleIs401(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createAccount(t, srv, "owner@email.com")
	createAccount(t, srv, "watcher@email.com")
	p := createProject(t, srv, "owner@email.com", "board")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+p.ID+"/invitations", map[string]any{
		"email": "watcher@email.com",
		"role":  "spectator",
	}, asEmail("owner@email.com"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("invite: %d %s", res.StatusCode, string(data))
	}
	<-srv.sent
	var inv InvitationResponse
	_ = json.Unmarshal(data, &inv)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/invitations/accept", map[string]any{
		"token": inv.Token,
	}, asEmail("watcher@email.com"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+p.ID+"/groups", map[string]any{
		"title": "todo",
	}, asEmail("watcher@email.com"))
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "insufficient_role" {
		t.Fatalf("unexpected error code %s", envelope.Error.Code)
	}
}

func TestUnknownProjectIs404(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	createAccount(t, srv, "owner@email.com")
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/missing", nil, asEmail("owner@email.com"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}
}

func TestOwnerRoleInvitationIs400(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	createAccount(t, srv, "owner@email.com")
	createAccount(t, srv, "garcia@email.com")
	p := createProject(t, srv, "owner@email.com", "board")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects/"+p.ID+"/invitations", map[string]any{
		"email": "garcia@email.com",
		"role":  "owner",
	}, asEmail("owner@email.com"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", res.StatusCode, string(data))
	}
}

func TestMissingAuthIs401(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
}

func TestJWTAuthentication(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	createAccount(t, srv, "owner@email.com")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "owner@email.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"name": "jwt project",
	}, map[string]string{"Authorization": "Bearer " + signed})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project with jwt: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d %s", res.StatusCode, string(data))
	}
}

func TestUnclassifiedErrorHidesInternalDetail(t *testing.T) {
	internal := errors.New("dial tcp 10.0.0.5:5432: connection refused (dsn=postgres://admin:s3cret@db)")
	statusErr := handleError(internal)
	apiErr, ok := statusErr.(*apiError)
	if !ok {
		t.Fatalf("expected *apiError, got %T", statusErr)
	}
	if apiErr.GetStatus() != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", apiErr.GetStatus())
	}
	if apiErr.Body.Code != "internal_error" {
		t.Fatalf("unexpected code %s", apiErr.Body.Code)
	}
	if apiErr.Body.Message != "internal error" {
		t.Fatalf("expected generic message, got %q", apiErr.Body.Message)
	}
	if apiErr.Body.Details != nil {
		t.Fatalf("expected no details, got %v", apiErr.Body.Details)
	}
	encoded, err := json.Marshal(apiErr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(encoded), "s3cret") || strings.Contains(string(encoded), "10.0.0.5") {
		t.Fatalf("response body leaks internal detail: %s", encoded)
	}
}

func TestIssueLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createAccount(t, srv, "owner@email.com")
	p := createProject(t, srv, "owner@email.com", "board")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+p.ID+"/groups", map[string]any{
		"title": "todo",
	}, asEmail("owner@email.com"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create group: %d %s", res.StatusCode, string(data))
	}
	var todo IssueGroupResponse
	_ = json.Unmarshal(data, &todo)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+p.ID+"/groups", map[string]any{
		"title":    "done",
		"is_final": true,
	}, asEmail("owner@email.com"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create final group: %d %s", res.StatusCode, string(data))
	}
	var done IssueGroupResponse
	_ = json.Unmarshal(data, &done)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/groups/"+todo.ID+"/issues", map[string]any{
		"title": "ship it",
	}, asEmail("owner@email.com"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create issue: %d %s", res.StatusCode, string(data))
	}
	var issue IssueResponse
	_ = json.Unmarshal(data, &issue)
	if issue.Completed {
		t.Fatal("new issue must not be completed")
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/issues/"+issue.ID+"/move", map[string]any{
		"issue_group_id": done.ID,
	}, asEmail("owner@email.com"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("move issue: %d %s", res.StatusCode, string(data))
	}
	var moved IssueResponse
	_ = json.Unmarshal(data, &moved)
	if !moved.Completed {
		t.Fatal("expected issue completed after move into final group")
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+p.ID+"/events", nil, asEmail("owner@email.com"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list events: %d %s", res.StatusCode, string(data))
	}
	var events []EventResponse
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected recorded events")
	}
}
