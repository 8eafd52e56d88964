// Package rest is the HTTP adapter for the remote transferências API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"transferencias/internal/api"
	"transferencias/internal/core"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Ensure interface conformance
var (
	_ api.TransactionLister = (*Client)(nil)
	_ api.TransactionWriter = (*Client)(nil)
	_ api.TagLister         = (*Client)(nil)
	_ api.UserRegistrar     = (*Client)(nil)
	_ api.Authenticator     = (*Client)(nil)
)

// New creates a client for the API at baseURL (scheme + host, no trailing
// slash required). timeout bounds each request end to end.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", baseURL)
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: newHTTPClientWithPooling(timeout),
	}, nil
}

func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Wire DTOs. Field names follow the API's Portuguese contract.
type (
	tagDTO struct {
		ID   int64  `json:"id"`
		Nome string `json:"nome"`
	}

	transacaoDTO struct {
		ID        int64    `json:"id"`
		Descricao string   `json:"descricao"`
		Valor     string   `json:"valor"`
		Tipo      string   `json:"tipo"`
		Data      string   `json:"data"`
		Tags      []tagDTO `json:"tags"`
	}

	transacoesResponse struct {
		Data []transacaoDTO `json:"data"`
	}

	tagsResponse struct {
		Data []tagDTO `json:"data"`
	}

	createPayload struct {
		Transacao createFields `json:"transacao"`
	}

	createFields struct {
		Descricao string  `json:"descricao"`
		UsuarioID int64   `json:"usuario_id"`
		Tipo      string  `json:"tipo"`
		Valor     string  `json:"valor"`
		Data      string  `json:"data"`
		TagIDs    []int64 `json:"tag_ids"`
	}

	updatePayload struct {
		Descricao string  `json:"descricao"`
		Valor     string  `json:"valor"`
		Tipo      string  `json:"tipo"`
		Data      string  `json:"data"`
		TagIDs    []int64 `json:"tag_ids"`
	}

	loginPayload struct {
		Email string `json:"email"`
		Senha string `json:"senha"`
	}

	loginResponse struct {
		Token string `json:"token"`
		User  struct {
			ID    int64  `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"user"`
	}
)

func (c *Client) ListTransactions(ctx context.Context, token string, userID int64) ([]core.Transaction, error) {
	endpoint := c.baseURL + "/api/transacoes?usuario_id=" + strconv.FormatInt(userID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	setBearer(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer drainAndClose(resp.Body)

	if err := statusError(resp); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	var body transacoesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	txs := make([]core.Transaction, 0, len(body.Data))
	for _, dto := range body.Data {
		txs = append(txs, toTransaction(ctx, dto))
	}
	return txs, nil
}

func (c *Client) CreateTransaction(ctx context.Context, token string, userID int64, d core.Draft) error {
	payload := createPayload{Transacao: createFields{
		Descricao: strings.TrimSpace(d.Description),
		UsuarioID: userID,
		Tipo:      string(d.Kind),
		Valor:     strings.TrimSpace(d.Amount),
		Data:      d.Date.ISO(),
		TagIDs:    tagIDsOrEmpty(d.TagIDs),
	}}
	return c.sendJSON(ctx, http.MethodPost, "/api/transacoes", token, payload, "create transaction")
}

func (c *Client) UpdateTransaction(ctx context.Context, token string, id int64, d core.Draft) error {
	payload := updatePayload{
		Descricao: strings.TrimSpace(d.Description),
		Valor:     strings.TrimSpace(d.Amount),
		Tipo:      string(d.Kind),
		Data:      d.Date.ISO(),
		TagIDs:    tagIDsOrEmpty(d.TagIDs),
	}
	path := "/api/transacoes/" + strconv.FormatInt(id, 10)
	return c.sendJSON(ctx, http.MethodPut, path, token, payload, "update transaction")
}

func (c *Client) DeleteTransaction(ctx context.Context, token string, id int64) error {
	path := "/api/transacoes/" + strconv.FormatInt(id, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	setBearer(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	defer drainAndClose(resp.Body)

	if err := statusError(resp); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (c *Client) ListTags(ctx context.Context) ([]core.Tag, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build tags request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer drainAndClose(resp.Body)

	if err := statusError(resp); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	var body tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}

	tags := make([]core.Tag, 0, len(body.Data))
	for _, dto := range body.Data {
		tags = append(tags, core.Tag{ID: dto.ID, Name: dto.Nome})
	}
	return tags, nil
}

// Register submits the signup form as multipart form data. The API answers
// 201 on success; every other status is a failure.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, value := range map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	} {
		if err := mw.WriteField(field, value); err != nil {
			return fmt.Errorf("write signup field %s: %w", field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("finalize signup form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/users", &buf)
	if err != nil {
		return fmt.Errorf("build signup request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("register user: status %d: %w", resp.StatusCode, api.ErrRejected)
	}
	return nil
}

func (c *Client) Login(ctx context.Context, email, password string) (api.Credentials, error) {
	body, err := json.Marshal(loginPayload{Email: email, Senha: password})
	if err != nil {
		return api.Credentials{}, fmt.Errorf("encode login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/login", bytes.NewReader(body))
	if err != nil {
		return api.Credentials{}, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return api.Credentials{}, fmt.Errorf("login: %w", err)
	}
	defer drainAndClose(resp.Body)

	if err := statusError(resp); err != nil {
		return api.Credentials{}, fmt.Errorf("login: %w", err)
	}

	var decoded loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return api.Credentials{}, fmt.Errorf("decode login response: %w", err)
	}
	if decoded.Token == "" || decoded.User.ID == 0 {
		return api.Credentials{}, fmt.Errorf("login: incomplete response: %w", api.ErrRejected)
	}
	return api.Credentials{
		Token: decoded.Token,
		User: core.User{
			ID:    decoded.User.ID,
			Name:  decoded.User.Name,
			Email: decoded.User.Email,
		},
	}, nil
}

// sendJSON posts (or puts) a JSON payload with bearer auth and treats any
// 2xx as success.
func (c *Client) sendJSON(ctx context.Context, method, path, token string, payload any, op string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	setBearer(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer drainAndClose(resp.Body)

	if err := statusError(resp); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func setBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// statusError maps a response status to the api sentinel errors. Any 2xx is
// success.
func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return api.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return api.ErrNotFound
	default:
		return fmt.Errorf("status %d: %w", resp.StatusCode, api.ErrRejected)
	}
}

// drainAndClose consumes any leftover body so the connection can be reused
// by the pooled transport.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<16))
	_ = body.Close()
}

func toTransaction(ctx context.Context, dto transacaoDTO) core.Transaction {
	date, err := core.ParseDate(dto.Data)
	if err != nil {
		// Keep the record; a bad date only degrades its display.
		slog.WarnContext(ctx, "Unparseable transaction date", "id", dto.ID, "data", dto.Data)
	}
	tags := make([]core.Tag, 0, len(dto.Tags))
	for _, tag := range dto.Tags {
		tags = append(tags, core.Tag{ID: tag.ID, Name: tag.Nome})
	}
	return core.Transaction{
		ID:          dto.ID,
		Description: dto.Descricao,
		Amount:      dto.Valor,
		Kind:        core.Kind(dto.Tipo),
		Date:        date,
		Tags:        tags,
	}
}

func tagIDsOrEmpty(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
