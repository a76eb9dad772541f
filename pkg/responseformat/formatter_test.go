package responseformat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	RunID string  `json:"run_id"`
	Mean  float64 `json:"mean"`
}

func TestWriteResponseJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	rec := httptest.NewRecorder()

	if err := NewFormatter().WriteResponse(rec, req, http.StatusOK, payload{RunID: "r1", Mean: 180}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != ContentTypeJSON {
		t.Errorf("expected %s, got %s", ContentTypeJSON, ct)
	}

	var got payload
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.RunID != "r1" || got.Mean != 180 {
		t.Errorf("unexpected body %+v", got)
	}
}

func TestWriteResponseMsgPack(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/report?format=msgpack", nil)
	rec := httptest.NewRecorder()

	if err := NewFormatter().WriteResponse(rec, req, http.StatusOK, payload{RunID: "r2", Mean: 42.5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != ContentTypeMsgPack {
		t.Errorf("expected %s, got %s", ContentTypeMsgPack, ct)
	}

	var got map[string]any
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid msgpack: %v", err)
	}
	if got["run_id"] != "r2" {
		t.Errorf("expected json tag names in msgpack keys, got %v", got)
	}
}

func TestWriteError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nodes/x", nil)
	rec := httptest.NewRecorder()

	NewFormatter().WriteError(rec, req, http.StatusBadRequest, "bad node")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error != "bad node" {
		t.Errorf("unexpected error body %q (%v)", rec.Body.String(), err)
	}
}
