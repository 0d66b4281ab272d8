package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHashString(t *testing.T) {
	h1 := HashString("rfa_abc")
	h2 := HashString("rfa_abc")
	h3 := HashString("rfa_def")

	if h1 != h2 {
		t.Error("hash is not deterministic")
	}
	if h1 == h3 {
		t.Error("different inputs share a hash")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
	if h1 == "rfa_abc" || strings.Contains(h1, "rfa_") {
		t.Error("hash leaks its input")
	}
}

func TestRespondWithJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	if err := RespondWithJSON(rr, http.StatusCreated, map[string]int{"n": 1}); err != nil {
		t.Fatalf("RespondWithJSON failed: %v", err)
	}
	if rr.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	var body map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body["n"] != 1 {
		t.Errorf("bad body %q: %v", rr.Body.String(), err)
	}
}

func TestRespondWithError(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondWithError(rr, http.StatusTeapot, "nope")
	if rr.Code != http.StatusTeapot {
		t.Errorf("expected 418, got %d", rr.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Error != "nope" {
		t.Errorf("bad body %q: %v", rr.Body.String(), err)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Code string `json:"code"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"x"}`))
	if err := DecodeJSONBody(req, &dst); err != nil {
		t.Fatalf("valid body rejected: %v", err)
	}
	if dst.Code != "x" {
		t.Errorf("expected code x, got %q", dst.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"x","bogus":1}`))
	if err := DecodeJSONBody(req, &dst); err == nil {
		t.Error("unknown field accepted")
	}
}
