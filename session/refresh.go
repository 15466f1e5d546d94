package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vocacrm/vocacrm-go/internal/errors"
	"github.com/vocacrm/vocacrm-go/token"
)

const (
	refreshEndpoint   = "/api/auth/refresh"
	logoutEndpoint    = "/api/auth/logout"
	logoutAllEndpoint = "/api/auth/logout-all"

	refreshTimeout = 15 * time.Second
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh exchanges the refresh token for a new pair. On failure the current
// credentials are left as they are.
func (m *Manager) Refresh(ctx context.Context) bool {
	pair := m.Tokens()
	if pair == nil {
		return false
	}
	ok, _ := m.refreshFrom(ctx, pair)
	return ok
}

// refreshFrom refreshes seen unless another caller already replaced it.
// Concurrent callers share one request. It reports whether a usable pair is
// current afterwards; a non-nil error means ctx ended first and nothing can
// be concluded about the refresh, which keeps running for the other callers.
func (m *Manager) refreshFrom(ctx context.Context, seen *token.Pair) (bool, error) {
	if current := m.Tokens(); !current.Equal(seen) {
		return current != nil, nil
	}

	ch := m.refreshGroup.DoChan("refresh", func() (any, error) {
		if current := m.Tokens(); !current.Equal(seen) {
			if current == nil {
				return nil, errors.ErrNotAuthenticated
			}
			return current, nil
		}
		// The refresh outlives a caller that stops waiting for it.
		return m.refresh(context.WithoutCancel(ctx), seen)
	})

	select {
	case res := <-ch:
		if res.Err == nil {
			return true, nil
		}
		m.logger.Warn().Err(res.Err).Msg("token refresh failed")
		// A pair installed by someone else while this refresh ran is still usable.
		current := m.Tokens()
		return current != nil && !current.Equal(seen), nil
	case <-ctx.Done():
		return false, m.interrupted(ctx)
	}
}

func (m *Manager) refresh(ctx context.Context, seen *token.Pair) (*token.Pair, error) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	payload, err := encodeBody(refreshRequest{RefreshToken: seen.RefreshToken})
	if err != nil {
		return nil, err
	}
	resp, err := m.send(ctx, http.MethodPost, m.baseURL+refreshEndpoint, payload, nil)
	if err != nil {
		return nil, err
	}

	var next token.Pair
	if err := m.decode(resp, &next); err != nil {
		return nil, err
	}
	if !next.Valid() {
		return nil, fmt.Errorf("refresh response: %w", errors.ErrPartialPair)
	}

	if err := m.replace(seen, &next); err != nil {
		return nil, err
	}
	m.logger.Debug().Msg("token refreshed")
	return &next, nil
}

// Logout revokes the refresh token on the server, best effort, and always
// clears the local credentials.
func (m *Manager) Logout(ctx context.Context) {
	if pair := m.Tokens(); pair != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.logoutTimeout)
		defer cancel()

		payload, err := encodeBody(refreshRequest{RefreshToken: pair.RefreshToken})
		if err == nil {
			var resp *http.Response
			if resp, err = m.send(ctx, http.MethodPost, m.baseURL+logoutEndpoint, payload, nil); err == nil {
				err = m.decode(resp, nil)
			}
		}
		if err != nil {
			m.logger.Warn().Err(err).Msg("server logout failed, clearing local credentials anyway")
		}
	}
	m.ClearTokens()
}

// LogoutAll revokes every session of the user, then clears the local
// credentials whatever the outcome.
func (m *Manager) LogoutAll(ctx context.Context) error {
	defer m.ClearTokens()
	if m.Tokens() == nil {
		return errors.ErrNotAuthenticated
	}
	return m.Post(ctx, logoutAllEndpoint, nil, nil)
}
