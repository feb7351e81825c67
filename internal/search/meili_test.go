package search

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeMeiliServer answers just enough of the Meilisearch HTTP API for the
// client to come up healthy and accept documents.
type fakeMeiliServer struct {
	mu        sync.Mutex
	documents map[string][]byte
}

func (f *fakeMeiliServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/health":
			json.NewEncoder(w).Encode(map[string]string{"status": "available"})
		case strings.HasSuffix(r.URL.Path, "/documents"):
			body, _ := io.ReadAll(r.Body)
			index := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/indexes/"), "/documents")
			f.mu.Lock()
			f.documents[index] = body
			f.mu.Unlock()
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]any{
				"taskUid": 1, "status": "enqueued", "type": "documentAdditionOrUpdate",
				"enqueuedAt": "2026-01-01T00:00:00Z",
			})
		default:
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]any{
				"taskUid": 1, "status": "enqueued", "type": "indexCreation",
				"enqueuedAt": "2026-01-01T00:00:00Z",
			})
		}
	})
}

func (f *fakeMeiliServer) document(index string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.documents[index]
}

func TestMeiliIndexPostSendsDocument(t *testing.T) {
	fake := &fakeMeiliServer{documents: map[string][]byte{}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	m := NewMeili(srv.URL, "test-key")
	defer m.Close()

	if !m.Healthy() {
		t.Fatal("expected healthy client against responsive server")
	}

	if err := m.IndexPost(PostRecord{ID: "a1b2c3d4e5f6", Title: "Hello", Excerpt: "hi", Slug: "hello"}); err != nil {
		t.Fatalf("IndexPost: %v", err)
	}

	body := fake.document(idxPosts)
	if body == nil {
		t.Fatal("no document write reached the posts index")
	}
	var records []PostRecord
	if err := json.Unmarshal(body, &records); err != nil {
		t.Fatalf("decode document payload %q: %v", body, err)
	}
	if len(records) != 1 || records[0].ID != "a1b2c3d4e5f6" || records[0].Slug != "hello" {
		t.Fatalf("unexpected payload %+v", records)
	}
}

func TestMeiliIndexProjectSendsDocument(t *testing.T) {
	fake := &fakeMeiliServer{documents: map[string][]byte{}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	m := NewMeili(srv.URL, "test-key")
	defer m.Close()

	if err := m.IndexProject(ProjectRecord{ID: "deadbeef0001", Title: "Folio", Slug: "folio"}); err != nil {
		t.Fatalf("IndexProject: %v", err)
	}

	body := fake.document(idxProjects)
	if body == nil {
		t.Fatal("no document write reached the projects index")
	}
	var records []ProjectRecord
	if err := json.Unmarshal(body, &records); err != nil {
		t.Fatalf("decode document payload %q: %v", body, err)
	}
	if len(records) != 1 || records[0].ID != "deadbeef0001" {
		t.Fatalf("unexpected payload %+v", records)
	}
}

func TestMeiliStartsUnhealthyWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	m := NewMeili(srv.URL, "test-key")
	defer m.Close()

	if m.Healthy() {
		t.Fatal("expected unhealthy client when the server is unreachable")
	}
}
