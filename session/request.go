package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/vocacrm/vocacrm-go/internal/errors"
	"github.com/vocacrm/vocacrm-go/internal/messages"
	"github.com/vocacrm/vocacrm-go/token"
)

const requestIDHeader = "X-Request-ID"

// Get decodes the JSON answer of GET endpoint into out. query may be nil.
func (m *Manager) Get(ctx context.Context, endpoint string, query url.Values, out any) error {
	return m.do(ctx, http.MethodGet, m.url(endpoint, query), nil, out, true)
}

// Post sends body as JSON and decodes the answer into out. body and out may
// be nil.
func (m *Manager) Post(ctx context.Context, endpoint string, body, out any) error {
	return m.do(ctx, http.MethodPost, m.url(endpoint, nil), body, out, true)
}

func (m *Manager) Put(ctx context.Context, endpoint string, body, out any) error {
	return m.do(ctx, http.MethodPut, m.url(endpoint, nil), body, out, true)
}

func (m *Manager) Patch(ctx context.Context, endpoint string, body, out any) error {
	return m.do(ctx, http.MethodPatch, m.url(endpoint, nil), body, out, true)
}

func (m *Manager) Delete(ctx context.Context, endpoint string, out any) error {
	return m.do(ctx, http.MethodDelete, m.url(endpoint, nil), nil, out, true)
}

// PostPublic sends a POST without credentials and without refreshing, for the
// sign-in endpoints.
func (m *Manager) PostPublic(ctx context.Context, endpoint string, body, out any) error {
	return m.do(ctx, http.MethodPost, m.url(endpoint, nil), body, out, false)
}

// url resolves endpoint against the base URL. Endpoints not already under
// /api get the prefix.
func (m *Manager) url(endpoint string, query url.Values) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	if !strings.HasPrefix(endpoint, "/api") {
		endpoint = "/api" + endpoint
	}
	u := m.baseURL + endpoint
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	return u
}

func (m *Manager) do(ctx context.Context, method, target string, body, out any, authenticated bool) error {
	payload, err := encodeBody(body)
	if err != nil {
		return err
	}

	var pair *token.Pair
	if authenticated {
		if pair, err = m.ensureFresh(ctx); err != nil {
			return err
		}
	}

	resp, err := m.send(ctx, method, target, payload, pair)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && pair != nil {
		drain(resp)

		current := m.Tokens()
		if current.Equal(pair) {
			ok, err := m.refreshFrom(ctx, pair)
			if err != nil {
				return err
			}
			if !ok {
				m.expire(pair)
				return m.sessionExpired()
			}
			current = m.Tokens()
		}
		if current == nil {
			return m.sessionExpired()
		}
		// Retry once, with whatever pair is current after the refresh.
		if resp, err = m.send(ctx, method, target, payload, current); err != nil {
			return err
		}
	}

	return m.decode(resp, out)
}

// ensureFresh returns the pair to send, refreshing it first when the access
// token has expired.
func (m *Manager) ensureFresh(ctx context.Context) (*token.Pair, error) {
	pair := m.Tokens()
	if pair == nil || !m.codec.IsExpired(pair.AccessToken, m.now()) {
		return pair, nil
	}

	m.logger.Debug().Msg("access token expired, refreshing before request")
	ok, err := m.refreshFrom(ctx, pair)
	if err != nil {
		return nil, err
	}
	if !ok {
		m.expire(pair)
		return nil, m.sessionExpired()
	}
	if current := m.Tokens(); current != nil {
		return current, nil
	}
	return nil, m.sessionExpired()
}

func (m *Manager) send(ctx context.Context, method, target string, payload []byte, pair *token.Pair) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s request", method)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if pair != nil {
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Warn().Err(err).Str("method", method).Str("url", req.URL.Path).Str("request_id", requestID).Msg("request failed")
		return nil, &APIError{
			Message: m.messages.Get(messages.NetworkError),
			cause:   err,
		}
	}
	m.logger.Debug().
		Str("method", method).
		Str("url", req.URL.Path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Msg("api request")
	return resp, nil
}

// decode consumes resp. A non-2xx status becomes an *APIError; a 2xx answer
// without content leaves out untouched.
func (m *Manager) decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Status: resp.StatusCode, Message: m.messages.Get(messages.NetworkError), cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Body: map[string]any{}}
		_ = json.Unmarshal(data, &apiErr.Body)
		apiErr.Code, _ = apiErr.Body["error"].(string)
		apiErr.Message, _ = apiErr.Body["message"].(string)
		if apiErr.Message == "" {
			apiErr.Message = m.messages.Get(messages.RequestFailed)
		}
		return apiErr
	}

	if resp.StatusCode == http.StatusNoContent || out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decode response of %s", resp.Request.URL.Path)
	}
	return nil
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrapf(err, "encode request body")
	}
	return payload, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
