package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"student-registry/internal/logging"
)

func TestLogger_EmitsRequestLine(t *testing.T) {
	var buf bytes.Buffer
	logging.SetupWriter(&buf, "info", "json")

	handler := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	}))

	req := httptest.NewRequest(http.MethodPost, "/add", nil)
	req.RemoteAddr = "203.0.113.9"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}

	if entry["msg"] != "request" {
		t.Errorf("msg = %v, want request", entry["msg"])
	}
	if entry["method"] != "POST" || entry["path"] != "/add" {
		t.Errorf("method/path = %v/%v, want POST//add", entry["method"], entry["path"])
	}
	if entry["status"] != float64(http.StatusSeeOther) {
		t.Errorf("status = %v, want %d", entry["status"], http.StatusSeeOther)
	}
	if entry["ip"] != "203.0.113.9" {
		t.Errorf("ip = %v, want 203.0.113.9", entry["ip"])
	}
}

func TestLogger_DefaultsStatusTo200(t *testing.T) {
	var buf bytes.Buffer
	logging.SetupWriter(&buf, "info", "json")

	handler := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) // implicit 200
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["status"] != float64(http.StatusOK) {
		t.Errorf("status = %v, want %d", entry["status"], http.StatusOK)
	}
}
