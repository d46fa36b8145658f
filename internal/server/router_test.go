package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scribehq/scribe/internal/auth"
	"github.com/scribehq/scribe/internal/database"
	"github.com/scribehq/scribe/internal/notes"
	"github.com/scribehq/scribe/internal/store"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "scribe_test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	accounts, err := auth.NewService(auth.ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1700000600, 0).UTC() },
		IDProvider: notes.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct accounts service: %v", err)
	}

	hub, err := store.NewHub(store.HubConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1700000600, 0).UTC() },
		IDProvider: notes.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct hub: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Accounts:     accounts,
		TokenManager: auth.NewTokenIssuer(auth.TokenIssuerConfig{SigningSecret: []byte("test-secret")}),
		Hub:          hub,
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}
	return handler
}

func performJSON(t *testing.T, handler http.Handler, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to encode payload: %v", err)
		}
		body = bytes.NewBuffer(encoded)
	} else {
		body = bytes.NewBuffer(nil)
	}
	request := httptest.NewRequest(method, path, body)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

func signupUser(t *testing.T, handler http.Handler, email string) string {
	t.Helper()
	recorder := performJSON(t, handler, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    email,
		"password": "hunter22",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("signup failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	var response struct {
		AccessToken string `json:"access_token"`
	}
	decodeBody(t, recorder, &response)
	if response.AccessToken == "" {
		t.Fatalf("expected access token in signup response")
	}
	return response.AccessToken
}

func createNote(t *testing.T, handler http.Handler, token, title string) notePayload {
	t.Helper()
	recorder := performJSON(t, handler, http.MethodPost, "/notes", token, map[string]string{"title": title})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create note failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	var note notePayload
	decodeBody(t, recorder, &note)
	return note
}

func TestSignupAndLoginFlow(t *testing.T) {
	handler := newTestServer(t)
	signupUser(t, handler, "me@example.com")

	duplicate := performJSON(t, handler, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    "me@example.com",
		"password": "hunter22",
	})
	if duplicate.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate signup, got %d", duplicate.Code)
	}

	weak := performJSON(t, handler, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    "other@example.com",
		"password": "short",
	})
	if weak.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for weak password, got %d", weak.Code)
	}
	var weakResponse struct {
		Error string `json:"error"`
	}
	decodeBody(t, weak, &weakResponse)
	if weakResponse.Error != "password must be at least 6 characters" {
		t.Fatalf("expected stripped provider prefix, got %q", weakResponse.Error)
	}

	login := performJSON(t, handler, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "me@example.com",
		"password": "hunter22",
	})
	if login.Code != http.StatusOK {
		t.Fatalf("login failed with %d: %s", login.Code, login.Body.String())
	}

	wrongPassword := performJSON(t, handler, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "me@example.com",
		"password": "wrong-pass",
	})
	if wrongPassword.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", wrongPassword.Code)
	}
}

func TestNotesRequireAuthorization(t *testing.T) {
	handler := newTestServer(t)

	recorder := performJSON(t, handler, http.MethodPost, "/notes", "", map[string]string{"title": "x"})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", recorder.Code)
	}

	forged := performJSON(t, handler, http.MethodPost, "/notes", "not-a-token", map[string]string{"title": "x"})
	if forged.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", forged.Code)
	}
}

func TestCreateAndListNotes(t *testing.T) {
	handler := newTestServer(t)
	token := signupUser(t, handler, "me@example.com")

	created := createNote(t, handler, token, "")
	if created.Title != notes.DefaultTitle {
		t.Fatalf("expected default title, got %q", created.Title)
	}
	createNote(t, handler, token, "Groceries")

	list := performJSON(t, handler, http.MethodGet, "/notes", token, nil)
	if list.Code != http.StatusOK {
		t.Fatalf("list failed with %d: %s", list.Code, list.Body.String())
	}
	var response struct {
		Notes []notePayload `json:"notes"`
	}
	decodeBody(t, list, &response)
	if len(response.Notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(response.Notes))
	}
}

func TestSaveNoteUpdatesContentAndReleasesLock(t *testing.T) {
	handler := newTestServer(t)
	token := signupUser(t, handler, "me@example.com")
	note := createNote(t, handler, token, "Draft")

	lock := performJSON(t, handler, http.MethodPost, "/notes/"+note.ID+"/lock", token, nil)
	if lock.Code != http.StatusNoContent {
		t.Fatalf("lock failed with %d: %s", lock.Code, lock.Body.String())
	}

	save := performJSON(t, handler, http.MethodPatch, "/notes/"+note.ID, token, map[string]string{
		"title":       "Draft",
		"content":     "<div>updated body</div>",
		"title_align": "center",
	})
	if save.Code != http.StatusOK {
		t.Fatalf("save failed with %d: %s", save.Code, save.Body.String())
	}
	var saved notePayload
	decodeBody(t, save, &saved)
	if saved.Content != "<div>updated body</div>" {
		t.Fatalf("unexpected content %q", saved.Content)
	}
	if saved.TitleAlign != "center" {
		t.Fatalf("unexpected alignment %q", saved.TitleAlign)
	}
	if saved.LockedBy != "" {
		t.Fatalf("expected save to release the lock, held by %q", saved.LockedBy)
	}
	if saved.Preview != "updated body" {
		t.Fatalf("unexpected preview %q", saved.Preview)
	}
}

func TestDeleteNoteOwnerOnly(t *testing.T) {
	handler := newTestServer(t)
	ownerToken := signupUser(t, handler, "owner@example.com")
	guestToken := signupUser(t, handler, "guest@example.com")
	note := createNote(t, handler, ownerToken, "Mine")

	share := performJSON(t, handler, http.MethodPost, "/notes/"+note.ID+"/share", ownerToken, nil)
	if share.Code != http.StatusOK {
		t.Fatalf("share failed with %d: %s", share.Code, share.Body.String())
	}
	var shareResponse struct {
		ShareKey string `json:"share_key"`
	}
	decodeBody(t, share, &shareResponse)

	connect := performJSON(t, handler, http.MethodPost, "/notes/connect", guestToken, map[string]string{"key": shareResponse.ShareKey})
	if connect.Code != http.StatusOK {
		t.Fatalf("connect failed with %d: %s", connect.Code, connect.Body.String())
	}

	forbidden := performJSON(t, handler, http.MethodDelete, "/notes/"+note.ID, guestToken, nil)
	if forbidden.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner delete, got %d", forbidden.Code)
	}

	allowed := performJSON(t, handler, http.MethodDelete, "/notes/"+note.ID, ownerToken, nil)
	if allowed.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for owner delete, got %d", allowed.Code)
	}
}

func TestShareKeyStableAndConnectOutcomes(t *testing.T) {
	handler := newTestServer(t)
	ownerToken := signupUser(t, handler, "owner@example.com")
	guestToken := signupUser(t, handler, "guest@example.com")
	note := createNote(t, handler, ownerToken, "Shared")

	var firstKey string
	for attempt := 0; attempt < 2; attempt++ {
		share := performJSON(t, handler, http.MethodPost, "/notes/"+note.ID+"/share", ownerToken, nil)
		if share.Code != http.StatusOK {
			t.Fatalf("share failed with %d: %s", share.Code, share.Body.String())
		}
		var response struct {
			ShareKey string `json:"share_key"`
		}
		decodeBody(t, share, &response)
		if attempt == 0 {
			firstKey = response.ShareKey
			continue
		}
		if response.ShareKey != firstKey {
			t.Fatalf("expected stable share key, got %q then %q", firstKey, response.ShareKey)
		}
	}

	ownerConnect := performJSON(t, handler, http.MethodPost, "/notes/connect", ownerToken, map[string]string{"key": firstKey})
	var ownerOutcome struct {
		Outcome string `json:"outcome"`
	}
	decodeBody(t, ownerConnect, &ownerOutcome)
	if ownerOutcome.Outcome != "already_owner" {
		t.Fatalf("expected already_owner, got %q", ownerOutcome.Outcome)
	}

	for attempt := 0; attempt < 2; attempt++ {
		guestConnect := performJSON(t, handler, http.MethodPost, "/notes/connect", guestToken, map[string]string{"key": firstKey})
		var guestOutcome struct {
			Outcome string `json:"outcome"`
		}
		decodeBody(t, guestConnect, &guestOutcome)
		expected := "joined"
		if attempt == 1 {
			expected = "already_member"
		}
		if guestOutcome.Outcome != expected {
			t.Fatalf("attempt %d: expected %q, got %q", attempt, expected, guestOutcome.Outcome)
		}
	}

	missing := performJSON(t, handler, http.MethodPost, "/notes/connect", guestToken, map[string]string{"key": "NOSUCH99"})
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown key, got %d", missing.Code)
	}
	malformed := performJSON(t, handler, http.MethodPost, "/notes/connect", guestToken, map[string]string{"key": "nope"})
	if malformed.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed key, got %d", malformed.Code)
	}
}

func TestLeaveNoteRemovesMembership(t *testing.T) {
	handler := newTestServer(t)
	ownerToken := signupUser(t, handler, "owner@example.com")
	guestToken := signupUser(t, handler, "guest@example.com")
	note := createNote(t, handler, ownerToken, "Shared")

	share := performJSON(t, handler, http.MethodPost, "/notes/"+note.ID+"/share", ownerToken, nil)
	var shareResponse struct {
		ShareKey string `json:"share_key"`
	}
	decodeBody(t, share, &shareResponse)
	performJSON(t, handler, http.MethodPost, "/notes/connect", guestToken, map[string]string{"key": shareResponse.ShareKey})

	leave := performJSON(t, handler, http.MethodPost, "/notes/"+note.ID+"/leave", guestToken, nil)
	if leave.Code != http.StatusNoContent {
		t.Fatalf("leave failed with %d: %s", leave.Code, leave.Body.String())
	}

	list := performJSON(t, handler, http.MethodGet, "/notes", guestToken, nil)
	var response struct {
		Notes []notePayload `json:"notes"`
	}
	decodeBody(t, list, &response)
	if len(response.Notes) != 0 {
		t.Fatalf("expected empty collection after leaving, got %d", len(response.Notes))
	}
}

func TestCORSPreflightAllowsBrowserClients(t *testing.T) {
	handler := newTestServer(t)

	request := httptest.NewRequest(http.MethodOptions, "/notes", http.NoBody)
	request.Header.Set("Origin", "https://notes.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected preflight status %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected wildcard origin, got %q", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}
