package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/karte/internal/model"
)

// TestIntentSet_PersistsPointer は復帰ポインタの設定が永続化されることを検証する。
func TestIntentSet_PersistsPointer(t *testing.T) {
	intents := newMockIntentService()
	h := NewIntentHandler(intents)

	req := newInviteRequest(t, http.MethodPut, "/api/intents/pending_invite", "user-1",
		`{"path":"/invite/tok-1?org=org-1"}`, map[string]string{"kind": "pending_invite"})
	w := httptest.NewRecorder()

	h.Set(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	got := intents.sets["user-1/"+string(model.NavIntentPendingInvite)]
	if got != "/invite/tok-1?org=org-1" {
		t.Errorf("persisted path = %q", got)
	}
}

// TestIntentSet_UnknownKind_Returns400 は不明な種別の設定が400になることを検証する。
func TestIntentSet_UnknownKind_Returns400(t *testing.T) {
	h := NewIntentHandler(newMockIntentService())

	req := newInviteRequest(t, http.MethodPut, "/api/intents/bogus", "user-1",
		`{"path":"/somewhere"}`, map[string]string{"kind": "bogus"})
	w := httptest.NewRecorder()

	h.Set(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// TestIntentConsume_ReturnsAndDeletes は消費でパスが返り、二度目はnullになることを検証する。
func TestIntentConsume_ReturnsAndDeletes(t *testing.T) {
	intents := newMockIntentService()
	intents.consumes["user-1/"+string(model.NavIntentPostLogin)] = &model.NavIntent{
		Owner: "user-1",
		Kind:  model.NavIntentPostLogin,
		Path:  "/invite/tok-1?org=org-1",
	}
	h := NewIntentHandler(intents)

	req := newInviteRequest(t, http.MethodPost, "/api/intents/post_login/consume", "user-1",
		"", map[string]string{"kind": "post_login"})
	w := httptest.NewRecorder()

	h.Consume(w, req)

	var body struct {
		Path *string `json:"path"`
	}
	json.NewDecoder(w.Result().Body).Decode(&body)
	if body.Path == nil || *body.Path != "/invite/tok-1?org=org-1" {
		t.Fatalf("path = %v, want invite link", body.Path)
	}

	// 二度目の消費はnull
	req2 := newInviteRequest(t, http.MethodPost, "/api/intents/post_login/consume", "user-1",
		"", map[string]string{"kind": "post_login"})
	w2 := httptest.NewRecorder()

	h.Consume(w2, req2)

	var body2 struct {
		Path *string `json:"path"`
	}
	json.NewDecoder(w2.Result().Body).Decode(&body2)
	if body2.Path != nil {
		t.Errorf("second consume should return null, got %v", *body2.Path)
	}
}

// TestIntentPeek_DoesNotDelete はPeekがポインタを残すことを検証する。
func TestIntentPeek_DoesNotDelete(t *testing.T) {
	intents := newMockIntentService()
	key := "user-1/" + string(model.NavIntentPendingInvite)
	intents.consumes[key] = &model.NavIntent{Owner: "user-1", Kind: model.NavIntentPendingInvite, Path: "/invite/t?org=o"}
	h := NewIntentHandler(intents)

	req := newInviteRequest(t, http.MethodGet, "/api/intents/pending_invite", "user-1",
		"", map[string]string{"kind": "pending_invite"})
	w := httptest.NewRecorder()

	h.Peek(w, req)

	if intents.consumes[key] == nil {
		t.Error("peek should not delete the pointer")
	}
}

// TestIntent_WithoutAuth_Returns401 は未認証の復帰ポインタ操作が401になることを検証する。
func TestIntent_WithoutAuth_Returns401(t *testing.T) {
	h := NewIntentHandler(newMockIntentService())

	req := newInviteRequest(t, http.MethodGet, "/api/intents/post_login", "",
		"", map[string]string{"kind": "post_login"})
	w := httptest.NewRecorder()

	h.Peek(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
