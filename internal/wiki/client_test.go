package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stenmark/docbridge/internal/apperr"
)

func TestGetPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pages/42" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("auth header = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "42", "title": "Runbook", "space_key": "OPS", "version": 5, "body": "<p>x</p>",
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret")
	page, err := c.GetPage(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if page.Title != "Runbook" || page.Version != 5 {
		t.Errorf("page = %+v", page)
	}
}

func TestUpdatePage_StaleVersionIsDistinct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	_, err := c.UpdatePage(context.Background(), "42", "T", "<p>b</p>", 3)
	if !errors.Is(err, apperr.ErrVersionConflict) {
		t.Errorf("err = %v, want ErrVersionConflict", err)
	}
	if errors.Is(err, apperr.ErrRemoteAPI) {
		t.Error("stale version must not be classified as a generic remote error")
	}
}

func TestCreatePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["space_key"] != "DOCS" || req["title"] != "New Page" {
			t.Errorf("request = %v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "77", "version": 1})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	id, err := c.CreatePage(context.Background(), "DOCS", "New Page", "<p>b</p>", "")
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if id != "77" {
		t.Errorf("id = %q", id)
	}
}

func TestServerErrorIsRemoteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	_, err := c.GetSpacePages(context.Background(), "DOCS")
	if !errors.Is(err, apperr.ErrRemoteAPI) {
		t.Errorf("err = %v, want ErrRemoteAPI", err)
	}
}
