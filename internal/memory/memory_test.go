package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func openTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := OpenLocal(t.TempDir())
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLocalAddAndGetAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	item, err := s.Add(ctx, "research", "WASM compilation is CPU bound", StampMetadata(nil, "wasm"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if item.ID == "" || item.CreatedAt == "" {
		t.Errorf("expected id and timestamp: %+v", item)
	}
	if item.Metadata["source"] != Source {
		t.Errorf("expected source metadata, got %v", item.Metadata)
	}

	if _, err := s.Add(ctx, "other", "unrelated fact", nil); err != nil {
		t.Fatal(err)
	}

	items, err := s.GetAll(ctx, "research")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one memory for research, got %d", len(items))
	}
	if items[0].Memory != "WASM compilation is CPU bound" {
		t.Errorf("unexpected memory: %q", items[0].Memory)
	}
	if items[0].Metadata["topic"] != "wasm" {
		t.Errorf("expected topic metadata round-tripped: %v", items[0].Metadata)
	}
}

func TestLocalAddValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Add(ctx, "", "text", nil); err == nil {
		t.Error("expected error for empty user")
	}
	if _, err := s.Add(ctx, "u", "   ", nil); err == nil {
		t.Error("expected error for blank text")
	}
}

func TestLocalSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	texts := []string{
		"WASM performance depends on the compiler backend",
		"Authentication tokens rotate every hour",
		"The cache keys include file mtimes",
	}
	for _, text := range texts {
		if _, err := s.Add(ctx, "research", text, nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Add(ctx, "other", "WASM notes from another user", nil); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, "research", "WASM performance", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one match scoped to the user, got %d", len(results))
	}
	if !strings.Contains(results[0].Memory, "WASM performance") {
		t.Errorf("unexpected match: %q", results[0].Memory)
	}
}

func TestLocalSearch_EmptyQueryReturnsRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		if _, err := s.Add(ctx, "u", text, nil); err != nil {
			t.Fatal(err)
		}
	}

	results, err := s.Search(ctx, "u", "  ", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("expected limit applied, got %d results", len(results))
	}
}

func TestLocalDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	item, err := s.Add(ctx, "u", "to be deleted", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, item.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, item.ID); err == nil {
		t.Error("expected error deleting twice")
	}

	results, err := s.Search(ctx, "u", "deleted", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("deleted memory still indexed: %v", results)
	}
}

func TestLocalStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	status, err := s.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.Backend != "local" || !status.Ready {
		t.Errorf("unexpected status: %+v", status)
	}
	if !strings.Contains(status.Detail, "0 memories") {
		t.Errorf("unexpected detail: %q", status.Detail)
	}
}

func TestSanitizeFTS(t *testing.T) {
	got := sanitizeFTS(`fix "auth" bug`)
	want := `"fix" "auth" "bug"`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if sanitizeFTS("   ") != "" {
		t.Error("expected empty result for whitespace")
	}
}

func TestStampMetadata(t *testing.T) {
	m := StampMetadata(map[string]interface{}{"source": "custom"}, "wasm")
	if m["source"] != "custom" {
		t.Errorf("caller keys should win: %v", m)
	}
	if m["topic"] != "wasm" {
		t.Errorf("expected topic set: %v", m)
	}
	if m["timestamp"] == "" {
		t.Error("expected timestamp set")
	}
}

func TestStoreResponse(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := []byte(`{"response": "summary of findings", "model": "gemini-2.5-pro", "tokens": 1234}`)
	item, err := StoreResponse(ctx, s, "research", "wasm", doc)
	if err != nil {
		t.Fatalf("StoreResponse: %v", err)
	}
	if item.Memory != "summary of findings" {
		t.Errorf("unexpected memory: %q", item.Memory)
	}
	if item.Metadata["model"] != "gemini-2.5-pro" {
		t.Errorf("expected model metadata: %v", item.Metadata)
	}

	if _, err := StoreResponse(ctx, s, "research", "t", []byte(`{"model": "x"}`)); err == nil {
		t.Error("expected error for document without response text")
	}
	if _, err := StoreResponse(ctx, s, "research", "t", []byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestHostedClient(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/memories/":
			json.NewDecoder(r.Body).Decode(&gotBody)
			json.NewEncoder(w).Encode([]Item{{ID: "mem-1", Memory: "stored"}})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/memories/search/":
			json.NewEncoder(w).Encode([]Item{{ID: "mem-1", Memory: "hit", Score: 0.9}})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/memories/":
			json.NewEncoder(w).Encode([]Item{{ID: "mem-1"}, {ID: "mem-2"}})
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewHostedClient("test-key", WithBaseURL(server.URL))
	ctx := context.Background()

	item, err := c.Add(ctx, "research", "fact", map[string]interface{}{"topic": "wasm"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if gotAuth != "Token test-key" {
		t.Errorf("unexpected auth header: %q", gotAuth)
	}
	if item.ID != "mem-1" || item.UserID != "research" {
		t.Errorf("unexpected item: %+v", item)
	}
	if gotBody["user_id"] != "research" {
		t.Errorf("unexpected request body: %v", gotBody)
	}

	results, err := c.Search(ctx, "research", "wasm", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Score != 0.9 {
		t.Errorf("unexpected results: %+v", results)
	}

	all, err := c.GetAll(ctx, "research")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected two memories, got %d", len(all))
	}

	if err := c.Delete(ctx, "mem-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotPath != "/v1/memories/mem-1/" {
		t.Errorf("unexpected delete path: %q", gotPath)
	}

	status, err := c.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !status.Ready || status.Backend != "mem0" {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestHostedClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "invalid token"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewHostedClient("bad-key", WithBaseURL(server.URL))
	_, err := c.Add(context.Background(), "u", "x", nil)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("expected 401 error, got %v", err)
	}

	status, err := c.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if status.Ready {
		t.Error("expected not ready on auth failure")
	}
}
