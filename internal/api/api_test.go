package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/halvard/munin/internal/block"
	"github.com/halvard/munin/internal/membank"
	"github.com/halvard/munin/internal/testutil"
)

// testEnv builds a bank on temp storage and the router over it.
// authEnabled=false means disabled mode; a non-empty token enables it.
func testEnv(t *testing.T, authToken string) (*membank.Bank, http.Handler) {
	t.Helper()
	bank := testutil.TestBank(t)
	router := NewRouter(bank, authToken != "", authToken, nil)
	return bank, router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetBlock(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/blocks", map[string]any{
		"id":   "k1",
		"type": "knowledge",
		"text": "Mars is a planet.",
		"tags": []string{"space"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/blocks/k1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got block.Block
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Text != "Mars is a planet." || got.Type != "knowledge" {
		t.Errorf("block = %+v", got)
	}
}

func TestCreateBlock_GeneratesID(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/blocks", map[string]any{
		"type": "knowledge",
		"text": "anonymous",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	var got block.Block
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.ID == "" {
		t.Error("response should carry the generated id")
	}
}

func TestCreateBlock_ValidationError(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/blocks", map[string]any{
		"id":   "t1",
		"type": "task",
		"text": "no metadata",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body = %s", w.Code, w.Body.String())
	}
}

func TestGetBlock_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/blocks/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestUpdateAndDeleteBlock(t *testing.T) {
	_, router := testEnv(t, "")

	_ = doJSON(t, router, http.MethodPost, "/blocks", map[string]any{
		"id": "k1", "type": "knowledge", "text": "v1",
	})

	w := doJSON(t, router, http.MethodPut, "/blocks/k1", map[string]any{
		"text": "v2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	var got block.Block
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Text != "v2" {
		t.Errorf("text = %q, want v2", got.Text)
	}

	w = doJSON(t, router, http.MethodDelete, "/blocks/k1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/blocks/k1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", w.Code)
	}
}

func TestListBlocks_TypeFilter(t *testing.T) {
	_, router := testEnv(t, "")

	_ = doJSON(t, router, http.MethodPost, "/blocks", map[string]any{
		"id": "k1", "type": "knowledge", "text": "fact",
	})
	_ = doJSON(t, router, http.MethodPost, "/blocks", map[string]any{
		"id": "t1", "type": "task", "text": "todo",
		"metadata": map[string]any{"title": "x", "status": "todo"},
	})

	w := doJSON(t, router, http.MethodGet, "/blocks?type=task", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp BlockListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Blocks[0].ID != "t1" {
		t.Errorf("filtered list = %+v", resp)
	}
}

func TestLinksAndBacklinks(t *testing.T) {
	_, router := testEnv(t, "")

	_ = doJSON(t, router, http.MethodPost, "/blocks", map[string]any{
		"id": "p1", "type": "knowledge", "text": "parent",
	})
	_ = doJSON(t, router, http.MethodPost, "/blocks", map[string]any{
		"id": "c1", "type": "knowledge", "text": "child",
		"links": []map[string]string{{"to_id": "p1", "relation": "child_of"}},
	})

	w := doJSON(t, router, http.MethodGet, "/blocks/c1/links", nil)
	var links LinkListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &links)
	if len(links.Links) != 1 || links.Links[0].ToID != "p1" {
		t.Errorf("links = %+v", links)
	}

	w = doJSON(t, router, http.MethodGet, "/blocks/p1/backlinks?relation=child_of", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &links)
	if len(links.Links) != 1 || links.Links[0].ToID != "c1" {
		t.Errorf("backlinks = %+v", links)
	}
}

func TestProofsEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	_ = doJSON(t, router, http.MethodPost, "/blocks", map[string]any{
		"id": "k1", "type": "knowledge", "text": "v1",
	})
	_ = doJSON(t, router, http.MethodPut, "/blocks/k1", map[string]any{"text": "v2"})

	w := doJSON(t, router, http.MethodGet, "/blocks/k1/proofs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("proofs status = %d", w.Code)
	}
	var resp ProofListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Proofs) != 2 {
		t.Fatalf("expected 2 proofs, got %d", len(resp.Proofs))
	}
	if resp.Proofs[0].Operation != "update" {
		t.Errorf("newest proof = %+v", resp.Proofs[0])
	}
}

func TestQueryByTags(t *testing.T) {
	_, router := testEnv(t, "")

	_ = doJSON(t, router, http.MethodPost, "/blocks", map[string]any{
		"id": "a", "type": "knowledge", "text": "x", "tags": []string{"alpha"},
	})
	_ = doJSON(t, router, http.MethodPost, "/blocks", map[string]any{
		"id": "ab", "type": "knowledge", "text": "x", "tags": []string{"alpha", "beta"},
	})

	w := doJSON(t, router, http.MethodGet, "/query/tags?tags=alpha,beta&match=all", nil)
	var resp BlockListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Blocks[0].ID != "ab" {
		t.Errorf("match=all = %+v", resp)
	}

	w = doJSON(t, router, http.MethodGet, "/query/tags?tags=alpha,beta", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 {
		t.Errorf("match=any total = %d, want 2", resp.Total)
	}
}

func TestQuerySemantic(t *testing.T) {
	_, router := testEnv(t, "")

	_ = doJSON(t, router, http.MethodPost, "/blocks", map[string]any{
		"id": "k1", "type": "knowledge", "text": "Mars is a planet.",
	})

	w := doJSON(t, router, http.MethodPost, "/query/semantic", SemanticQueryRequest{Text: "planet", TopK: 5})
	if w.Code != http.StatusOK {
		t.Fatalf("semantic status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp BlockListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Blocks[0].ID != "k1" {
		t.Errorf("semantic results = %+v", resp)
	}

	w = doJSON(t, router, http.MethodPost, "/query/semantic", SemanticQueryRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty text should 400, got %d", w.Code)
	}
}

func TestListSchemas(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/schemas", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("schemas status = %d", w.Code)
	}
	var resp SchemaListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Schemas) != 5 {
		t.Errorf("expected 5 builtin schemas, got %d", len(resp.Schemas))
	}
}

func TestReindexAll(t *testing.T) {
	_, router := testEnv(t, "")

	_ = doJSON(t, router, http.MethodPost, "/blocks", map[string]any{
		"id": "k1", "type": "knowledge", "text": "x",
	})

	w := doJSON(t, router, http.MethodPost, "/reindex", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reindex status = %d", w.Code)
	}
	var resp ReindexResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Reindexed != 1 {
		t.Errorf("reindexed = %d, want 1", resp.Reindexed)
	}
}

func TestAuth(t *testing.T) {
	_, router := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/blocks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/blocks", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/blocks", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token status = %d, want 200", w.Code)
	}
}
