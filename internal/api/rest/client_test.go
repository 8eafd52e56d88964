package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"transferencias/internal/api"
	"transferencias/internal/core"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cli, err := New(srv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return cli, srv
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, bad := range []string{"", "not a url", "localhost:4000"} {
		if _, err := New(bad, time.Second); err == nil {
			t.Fatalf("expected error for base URL %q", bad)
		}
	}
}

func TestListTransactions(t *testing.T) {
	cli, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/transacoes" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("usuario_id"); got != "42" {
			t.Errorf("usuario_id = %q, want 42", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[
			{"id":1,"descricao":"salário","valor":"100.50","tipo":"RECEITA","data":"2025-06-01","tags":[{"id":9,"nome":"renda"}]},
			{"id":2,"descricao":"mercado","valor":"20.00","tipo":"DESPESA","data":"2025-06-02T00:00:00Z","tags":[]}
		]}`))
	}))

	txs, err := cli.ListTransactions(context.Background(), "tok-1", 42)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	first := txs[0]
	if first.ID != 1 || first.Amount != "100.50" || first.Kind != core.Receita {
		t.Fatalf("unexpected first transaction: %+v", first)
	}
	if first.Date.ISO() != "2025-06-01" || len(first.Tags) != 1 || first.Tags[0].Name != "renda" {
		t.Fatalf("unexpected first transaction detail: %+v", first)
	}
	if txs[1].Date.ISO() != "2025-06-02" {
		t.Fatalf("RFC3339 date not parsed: %s", txs[1].Date.ISO())
	}
}

func TestListTransactionsUnauthorized(t *testing.T) {
	cli, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	_, err := cli.ListTransactions(context.Background(), "stale", 1)
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCreateTransaction(t *testing.T) {
	var got map[string]map[string]any
	cli, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/transacoes" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("unmarshal body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))

	draft := core.Draft{
		Description: "mercado",
		Kind:        core.Despesa,
		Amount:      "42.90",
		Date:        core.NewDate(2025, 6, 1),
		TagIDs:      []int64{1, 3},
	}
	if err := cli.CreateTransaction(context.Background(), "tok", 7, draft); err != nil {
		t.Fatalf("create: %v", err)
	}
	tx := got["transacao"]
	if tx == nil {
		t.Fatalf("payload missing transacao wrapper: %v", got)
	}
	if tx["descricao"] != "mercado" || tx["tipo"] != "DESPESA" || tx["valor"] != "42.90" {
		t.Fatalf("unexpected payload: %v", tx)
	}
	if tx["usuario_id"] != float64(7) || tx["data"] != "2025-06-01" {
		t.Fatalf("unexpected payload: %v", tx)
	}
	if ids, ok := tx["tag_ids"].([]any); !ok || len(ids) != 2 {
		t.Fatalf("unexpected tag_ids: %v", tx["tag_ids"])
	}
}

func TestCreateTransactionEmptyTagSetSerializesAsArray(t *testing.T) {
	var raw []byte
	cli, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
	}))
	draft := core.Draft{Description: "x", Kind: core.Receita, Amount: "1", Date: core.NewDate(2025, 1, 1)}
	if err := cli.CreateTransaction(context.Background(), "tok", 1, draft); err != nil {
		t.Fatalf("create: %v", err)
	}
	var decoded map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(decoded["transacao"]["tag_ids"]) != "[]" {
		t.Fatalf("tag_ids = %s, want []", decoded["transacao"]["tag_ids"])
	}
}

func TestUpdateTransaction(t *testing.T) {
	var gotMethod, gotPath string
	var got map[string]any
	cli, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
	}))

	draft := core.Draft{
		Description: "cinema",
		Kind:        core.Despesa,
		Amount:      "30",
		Date:        core.NewDate(2025, 6, 2),
		TagIDs:      []int64{2},
	}
	if err := cli.UpdateTransaction(context.Background(), "tok", 11, draft); err != nil {
		t.Fatalf("update: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/api/transacoes/11" {
		t.Fatalf("unexpected request: %s %s", gotMethod, gotPath)
	}
	if got["descricao"] != "cinema" || got["valor"] != "30" || got["data"] != "2025-06-02" {
		t.Fatalf("unexpected payload: %v", got)
	}
	if _, wrapped := got["transacao"]; wrapped {
		t.Fatalf("update payload must not be wrapped: %v", got)
	}
}

func TestDeleteTransaction(t *testing.T) {
	var gotMethod, gotPath string
	cli, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
	}))
	if err := cli.DeleteTransaction(context.Background(), "tok", 7); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/transacoes/7" {
		t.Fatalf("unexpected request: %s %s", gotMethod, gotPath)
	}
}

func TestDeleteTransactionNotFound(t *testing.T) {
	cli, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	if err := cli.DeleteTransaction(context.Background(), "tok", 99); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTagsUnauthenticated(t *testing.T) {
	cli, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("tags request must not carry auth")
		}
		_, _ = w.Write([]byte(`{"data":[{"id":1,"nome":"casa"},{"id":2,"nome":"lazer"}]}`))
	}))
	tags, err := cli.ListTags(context.Background())
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if len(tags) != 2 || tags[0].Name != "casa" {
		t.Fatalf("unexpected tags: %v", tags)
	}
}

func TestRegisterOnlyAcceptsCreated(t *testing.T) {
	status := http.StatusCreated
	var fields map[string]string
	cli, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("expected multipart form: %v", err)
		}
		fields = map[string]string{
			"name":     r.FormValue("name"),
			"email":    r.FormValue("email"),
			"password": r.FormValue("password"),
		}
		w.WriteHeader(status)
	}))

	if err := cli.Register(context.Background(), "Ana", "ana@example.com", "s3cret"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if fields["name"] != "Ana" || fields["email"] != "ana@example.com" || fields["password"] != "s3cret" {
		t.Fatalf("unexpected form fields: %v", fields)
	}

	// A plain 200 is not a success for signup.
	status = http.StatusOK
	if err := cli.Register(context.Background(), "Ana", "ana@example.com", "s3cret"); err == nil {
		t.Fatalf("expected error for 200 response")
	}
}

func TestLogin(t *testing.T) {
	cli, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/login" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "ana@example.com" || body["senha"] != "s3cret" {
			t.Errorf("unexpected login payload: %v", body)
		}
		_, _ = w.Write([]byte(`{"token":"tok-xyz","user":{"id":42,"name":"Ana","email":"ana@example.com"}}`))
	}))

	creds, err := cli.Login(context.Background(), "ana@example.com", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if creds.Token != "tok-xyz" || creds.User.ID != 42 || creds.User.Name != "Ana" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestLoginIncompleteResponse(t *testing.T) {
	cli, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"","user":{"id":0}}`))
	}))
	if _, err := cli.Login(context.Background(), "a@b.c", "pw"); err == nil {
		t.Fatalf("expected error for incomplete login response")
	}
}
