// internal/instagram/client_test.go
package instagram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/commentflow/internal/types"
)

func TestClient_PostReply(t *testing.T) {
	var gotPath, gotMessage, gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		gotMessage = r.PostFormValue("message")
		gotToken = r.PostFormValue("access_token")
		w.Write([]byte(`{"id": "r-42"}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, AccessToken: "tok"})
	replyID, err := client.PostReply(context.Background(), "c-1", "thanks for asking!")
	if err != nil {
		t.Fatal(err)
	}
	if replyID != "r-42" {
		t.Errorf("unexpected reply ID %q", replyID)
	}
	if gotPath != "/c-1/replies" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotMessage != "thanks for asking!" {
		t.Errorf("unexpected message %q", gotMessage)
	}
	if gotToken != "tok" {
		t.Errorf("access token not sent, got %q", gotToken)
	}
}

func TestClient_PostReplyMissingIDIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	_, err := client.PostReply(context.Background(), "c-1", "hi")
	var transient *types.TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestClient_HideComment(t *testing.T) {
	var gotHide string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		gotHide = r.PostFormValue("hide")
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	if err := client.HideComment(context.Background(), "c-1"); err != nil {
		t.Fatal(err)
	}
	if gotHide != "true" {
		t.Errorf("expected hide=true, got %q", gotHide)
	}
}

func TestClient_FetchMedia(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("fields"); got == "" {
			t.Error("expected fields parameter")
		}
		w.Write([]byte(`{"id":"m-1","caption":"summer drop","media_type":"IMAGE","media_url":"https://cdn/m-1.jpg","owner":{"id":"acct-1"}}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	media, err := client.FetchMedia(context.Background(), "m-1")
	if err != nil {
		t.Fatal(err)
	}
	if media.Caption != "summer drop" || media.MediaURL != "https://cdn/m-1.jpg" {
		t.Errorf("unexpected media %+v", media)
	}
	if media.OwnerID != "acct-1" {
		t.Errorf("unexpected owner %q", media.OwnerID)
	}
	if !media.ProcessingEnabled {
		t.Error("new media should default to processing enabled")
	}
}

func TestClient_RateLimitIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	err := client.HideComment(context.Background(), "c-1")
	var transient *types.TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("expected transient error for 429, got %v", err)
	}
}

func TestClient_BadRequestIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "comment deleted"}}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	err := client.HideComment(context.Background(), "c-1")
	var permanent *types.PermanentError
	if !errors.As(err, &permanent) {
		t.Fatalf("expected permanent error for 400, got %v", err)
	}
}
