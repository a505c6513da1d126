package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"assessync/internal/app/client/config"
	"assessync/internal/domain/entity"
)

// HTTPClient реализация API поверх HTTP/JSON. Повторов здесь нет: за них
// отвечает очередь синхронизации.
type HTTPClient struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	token     string
	userAgent string
}

func NewHTTPClient(cfg *config.Config, log *slog.Logger) *HTTPClient {
	client := &http.Client{
		Timeout: cfg.CallTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return NewHTTPClientWith(cfg.BaseURL(), cfg.Token, client, log)
}

// NewHTTPClientWith создаёт клиент с готовым http.Client (используется в тестах).
func NewHTTPClientWith(baseURL, token string, client *http.Client, log *slog.Logger) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{
		client:    client,
		log:       log.With("component", "remote_api"),
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		userAgent: "Assessync-Client/1.0",
	}
}

// HealthCheck проверяет доступность сервера
func (h *HTTPClient) HealthCheck(ctx context.Context) error {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return &TransportError{Op: "health", Err: err}
	}
	_, err = h.parseResponse("health", resp)
	return err
}

func (h *HTTPClient) List(ctx context.Context, t entity.Type) (json.RawMessage, error) {
	return h.call(ctx, "list "+t.String(), http.MethodGet, collectionPath(t, ""), nil)
}

func (h *HTTPClient) Get(ctx context.Context, t entity.Type, id string) (json.RawMessage, error) {
	return h.call(ctx, "get "+t.String(), http.MethodGet, collectionPath(t, id), nil)
}

func (h *HTTPClient) Create(ctx context.Context, t entity.Type, p entity.Payload) (json.RawMessage, error) {
	return h.call(ctx, "create "+t.String(), http.MethodPost, collectionPath(t, ""), p)
}

func (h *HTTPClient) Update(ctx context.Context, t entity.Type, id string, p entity.Payload) (json.RawMessage, error) {
	return h.call(ctx, "update "+t.String(), http.MethodPut, collectionPath(t, id), p)
}

func (h *HTTPClient) Delete(ctx context.Context, t entity.Type, id string) error {
	_, err := h.call(ctx, "delete "+t.String(), http.MethodDelete, collectionPath(t, id), nil)
	return err
}

func (h *HTTPClient) call(ctx context.Context, op, method, path string, body any) (json.RawMessage, error) {
	resp, err := h.doRequest(ctx, method, path, body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return h.parseResponse(op, resp)
}

func (h *HTTPClient) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	h.log.Debug("Отправка запроса",
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}

	return resp, nil
}

func (h *HTTPClient) parseResponse(op string, resp *http.Response) (json.RawMessage, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("ошибка чтения ответа: %w", err)}
	}

	h.log.Debug("Получен ответ",
		"op", op,
		"status", resp.StatusCode,
		"size", len(body),
	)

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
			Title  string `json:"title"`
		}
		msg := ""
		if err := json.Unmarshal(body, &errResp); err == nil {
			switch {
			case errResp.Error != "":
				msg = errResp.Error
			case errResp.Detail != "":
				msg = errResp.Detail
			default:
				msg = errResp.Title
			}
		}
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("ответ не является JSON")}
	}

	return json.RawMessage(body), nil
}

func collectionPath(t entity.Type, id string) string {
	p := "/api/v1/" + url.PathEscape(t.String())
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}
