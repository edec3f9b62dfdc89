package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/astra-ventures/pulse/internal/config"
)

func TestDeliverSuccess(t *testing.T) {
	var gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req Request
		body := json.NewDecoder(r.Body)
		_ = body.Decode(&req)
		gotBody = req.Message
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(Response{RunID: "run-123"})
	}))
	defer server.Close()

	c := New(config.Openclaw{WebhookURL: server.URL, WebhookToken: "secret-token"})
	resp, err := c.Deliver(context.Background(), Request{Message: "hello", Name: "pulse", WakeMode: "now", Deliver: "chat"})
	if err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	if resp.RunID != "run-123" {
		t.Errorf("RunID = %q, want run-123", resp.RunID)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization header = %q, want Bearer secret-token", gotAuth)
	}
	if gotBody != "hello" {
		t.Errorf("message = %q, want hello", gotBody)
	}
}

func TestDeliverNonAcceptedStatusIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	c := New(config.Openclaw{WebhookURL: server.URL})
	_, err := c.Deliver(context.Background(), Request{Message: "hi"})
	if err == nil {
		t.Fatal("expected an error for a non-202 status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %v, want it to mention the status code", err)
	}
}

func TestDeliverNoURLConfigured(t *testing.T) {
	c := New(config.Openclaw{})
	_, err := c.Deliver(context.Background(), Request{Message: "hi"})
	if err == nil {
		t.Fatal("expected an error when no webhook URL is configured")
	}
}

func TestBuildMessage(t *testing.T) {
	got := BuildMessage("[pulse]", "single_drive_threshold:goals", "goals")
	want := "[pulse] trigger: single_drive_threshold:goals (drive: goals)"
	if got != want {
		t.Errorf("BuildMessage = %q, want %q", got, want)
	}

	got = BuildMessage("[pulse]", "no_trigger", "")
	want = "[pulse] trigger: no_trigger"
	if got != want {
		t.Errorf("BuildMessage (no drive) = %q, want %q", got, want)
	}
}
