package session_test

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vocacrm/vocacrm-go/credentials/credentialsfake"
	"github.com/vocacrm/vocacrm-go/internal/backendtest"
	"github.com/vocacrm/vocacrm-go/internal/messages"
	"github.com/vocacrm/vocacrm-go/session"
	"github.com/vocacrm/vocacrm-go/token"
)

type testConfig struct {
	baseURL string
}

func (c testConfig) GetAPIBaseURL() string         { return c.baseURL }
func (c testConfig) GetHTTPTimeout() time.Duration { return 5 * time.Second }

type testFixture struct {
	backend *backendtest.Server
	store   *credentialsfake.FakeStore
	manager *session.Manager
	expired atomic.Int32
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{backend: backendtest.New(t)}
	f.store = credentialsfake.NewFakeStore()
	f.manager = session.New(testConfig{baseURL: f.backend.URL + "/"}, f.store)
	t.Cleanup(f.manager.Dispose)
	f.manager.OnSessionExpired(func() { f.expired.Add(1) })
	require.NoError(t, f.manager.Init(context.Background()))
	return f
}

func (f *testFixture) withPair(t *testing.T, pair *token.Pair) {
	t.Helper()
	require.NoError(t, f.store.Save(pair))
	require.NoError(t, f.manager.Init(context.Background()))
}

type meResponse struct {
	Subject string `json:"subject"`
	Query   string `json:"query"`
}

func TestManager_Init(t *testing.T) {
	t.Run("restores the stored pair", func(t *testing.T) {
		f := setupTestFixture(t)
		pair := f.backend.Issue("user-1")
		f.withPair(t, pair)

		require.Equal(t, pair, f.manager.Tokens())
		require.True(t, f.manager.HasValidToken())
	})

	t.Run("starts empty without a stored pair", func(t *testing.T) {
		f := setupTestFixture(t)
		require.Nil(t, f.manager.Tokens())
		require.False(t, f.manager.HasValidToken())
	})

	t.Run("corrupt record starts empty", func(t *testing.T) {
		f := setupTestFixture(t)
		f.store.SetRaw([]byte("{"))
		require.NoError(t, f.manager.Init(context.Background()))
		require.Nil(t, f.manager.Tokens())
	})
}

func TestManager_Requests(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.backend.Issue("user-1")
	f.withPair(t, pair)

	t.Run("attaches the bearer token", func(t *testing.T) {
		var out meResponse
		require.NoError(t, f.manager.Get(context.Background(), "/me", url.Values{"q": {"hello world"}}, &out))
		require.Equal(t, meResponse{Subject: "user-1", Query: "hello world"}, out)
		require.Equal(t, "Bearer "+pair.AccessToken, f.backend.LastAuthorization())
	})

	t.Run("endpoints under /api are not prefixed twice", func(t *testing.T) {
		var out meResponse
		require.NoError(t, f.manager.Get(context.Background(), "/api/me", nil, &out))
		require.Equal(t, "user-1", out.Subject)
	})

	t.Run("sends json bodies with every method", func(t *testing.T) {
		type echo struct {
			Method        string         `json:"method"`
			Body          map[string]any `json:"body"`
			Authorization string         `json:"authorization"`
			RequestID     string         `json:"requestId"`
		}
		body := map[string]any{"name": "memo"}

		var out echo
		require.NoError(t, f.manager.Post(context.Background(), "/echo", body, &out))
		require.Equal(t, "POST", out.Method)
		require.Equal(t, body, out.Body)
		require.Equal(t, "Bearer "+pair.AccessToken, out.Authorization)
		require.NotEmpty(t, out.RequestID)

		require.NoError(t, f.manager.Put(context.Background(), "/echo", body, &out))
		require.Equal(t, "PUT", out.Method)
		require.NoError(t, f.manager.Patch(context.Background(), "/echo", body, &out))
		require.Equal(t, "PATCH", out.Method)
		require.NoError(t, f.manager.Delete(context.Background(), "/echo", &out))
		require.Equal(t, "DELETE", out.Method)
	})

	t.Run("204 leaves out untouched", func(t *testing.T) {
		out := meResponse{Subject: "unchanged"}
		require.NoError(t, f.manager.Get(context.Background(), "/no-content", nil, &out))
		require.Equal(t, "unchanged", out.Subject)
	})

	t.Run("error response carries the body", func(t *testing.T) {
		err := f.manager.Get(context.Background(), "/fail", nil, nil)
		var apiErr *session.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, 400, apiErr.Status)
		require.Equal(t, "INVALID_INPUT", apiErr.Code)
		require.Equal(t, "전화번호 형식이 올바르지 않습니다.", apiErr.Message)
		require.Equal(t, "phone", apiErr.Body["field"])
		require.False(t, session.IsSessionExpired(err))
	})

	t.Run("error without message gets the localized default", func(t *testing.T) {
		err := f.manager.Get(context.Background(), "/missing", nil, nil)
		var apiErr *session.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, 404, apiErr.Status)
		require.Equal(t, messages.For("ko").Get(messages.RequestFailed), apiErr.Message)
	})
}

func TestManager_NetworkError(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.Close()

	err := f.manager.Get(context.Background(), "/me", nil, nil)
	var apiErr *session.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Zero(t, apiErr.Status)
	require.Equal(t, messages.For("ko").Get(messages.NetworkError), apiErr.Message)
}

func TestManager_PreemptiveRefresh(t *testing.T) {
	f := setupTestFixture(t)
	stale := f.backend.IssueExpired("user-1")
	f.withPair(t, stale)

	var out meResponse
	require.NoError(t, f.manager.Get(context.Background(), "/me", nil, &out))
	require.Equal(t, "user-1", out.Subject)
	require.EqualValues(t, 1, f.backend.RefreshHits.Load())

	current := f.manager.Tokens()
	require.NotEqual(t, stale.AccessToken, current.AccessToken)
	require.Equal(t, "Bearer "+current.AccessToken, f.backend.LastAuthorization())
	require.Equal(t, current, f.store.Load(), "refreshed pair is persisted")
	require.Zero(t, f.expired.Load())
}

func TestManager_ReactiveRefresh(t *testing.T) {
	f := setupTestFixture(t)
	pair := f.backend.Issue("user-1")
	f.withPair(t, pair)
	f.backend.Revoke(pair.AccessToken)

	var out meResponse
	require.NoError(t, f.manager.Get(context.Background(), "/me", nil, &out))
	require.Equal(t, "user-1", out.Subject)
	require.EqualValues(t, 1, f.backend.RefreshHits.Load())
	require.Equal(t, "Bearer "+f.manager.Tokens().AccessToken, f.backend.LastAuthorization(), "retry carries the new token")
}

func TestManager_RefreshFailure(t *testing.T) {
	t.Run("preemptive", func(t *testing.T) {
		f := setupTestFixture(t)
		f.withPair(t, f.backend.IssueExpired("user-1"))
		f.backend.FailRefresh.Store(true)

		err := f.manager.Get(context.Background(), "/me", nil, nil)
		require.True(t, session.IsSessionExpired(err))
		require.Equal(t, 401, session.StatusOf(err))
		require.Nil(t, f.manager.Tokens())
		require.Nil(t, f.store.Load())
		require.EqualValues(t, 1, f.expired.Load())
		require.Empty(t, f.backend.LastAuthorization(), "the request is never sent")
	})

	t.Run("reactive", func(t *testing.T) {
		f := setupTestFixture(t)
		pair := f.backend.Issue("user-1")
		f.withPair(t, pair)
		f.backend.Revoke(pair.AccessToken)
		f.backend.FailRefresh.Store(true)

		err := f.manager.Get(context.Background(), "/me", nil, nil)
		require.True(t, session.IsSessionExpired(err))
		require.Nil(t, f.manager.Tokens())
		require.EqualValues(t, 1, f.expired.Load())

		var apiErr *session.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "인증이 만료되었습니다. 다시 로그인해주세요.", apiErr.Message)
	})

	t.Run("without credentials a 401 is a plain api error", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.manager.Get(context.Background(), "/me", nil, nil)
		require.Equal(t, 401, session.StatusOf(err))
		require.False(t, session.IsSessionExpired(err))
		require.Zero(t, f.backend.RefreshHits.Load())
		require.Zero(t, f.expired.Load())
	})
}

func TestManager_ConcurrentRequestsShareOneRefresh(t *testing.T) {
	for name, revoke := range map[string]bool{"preemptive": false, "reactive": true} {
		t.Run(name, func(t *testing.T) {
			f := setupTestFixture(t)
			var pair *token.Pair
			if revoke {
				pair = f.backend.Issue("user-1")
				f.backend.Revoke(pair.AccessToken)
			} else {
				pair = f.backend.IssueExpired("user-1")
			}
			f.withPair(t, pair)
			f.backend.RefreshDelay.Store(100)

			const callers = 10
			var wg sync.WaitGroup
			errs := make(chan error, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					var out meResponse
					errs <- f.manager.Get(context.Background(), "/me", nil, &out)
				}()
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				require.NoError(t, err)
			}
			require.EqualValues(t, 1, f.backend.RefreshHits.Load())
			require.Zero(t, f.expired.Load())
		})
	}
}

func TestManager_ConcurrentRefreshFailureNotifiesOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.withPair(t, f.backend.IssueExpired("user-1"))
	f.backend.FailRefresh.Store(true)
	f.backend.RefreshDelay.Store(200)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.manager.Get(context.Background(), "/me", nil, nil)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.True(t, session.IsSessionExpired(err))
	}

	require.EqualValues(t, 1, f.backend.RefreshHits.Load())
	require.EqualValues(t, 1, f.expired.Load())
}

func TestManager_CallerGivesUpDuringRefresh(t *testing.T) {
	t.Run("session survives", func(t *testing.T) {
		f := setupTestFixture(t)
		stale := f.backend.IssueExpired("user-1")
		f.withPair(t, stale)
		f.backend.RefreshDelay.Store(300)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		err := f.manager.Get(ctx, "/me", nil, nil)

		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.False(t, session.IsSessionExpired(err))
		require.Zero(t, session.StatusOf(err))
		require.Zero(t, f.expired.Load())
		require.NotNil(t, f.manager.Tokens(), "credentials are kept while the refresh runs")

		require.Eventually(t, func() bool {
			current := f.manager.Tokens()
			return current != nil && current.AccessToken != stale.AccessToken
		}, 2*time.Second, 10*time.Millisecond)
		require.Equal(t, f.manager.Tokens(), f.store.Load())
		require.EqualValues(t, 1, f.backend.RefreshHits.Load())
		require.Zero(t, f.expired.Load())
	})

	t.Run("other callers still get the refreshed pair", func(t *testing.T) {
		f := setupTestFixture(t)
		f.withPair(t, f.backend.IssueExpired("user-1"))
		f.backend.RefreshDelay.Store(300)

		patient := make(chan error, 1)
		go func() {
			var out meResponse
			patient <- f.manager.Get(context.Background(), "/me", nil, &out)
		}()
		require.Eventually(t, func() bool { return f.backend.RefreshHits.Load() == 1 }, time.Second, 5*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorIs(t, f.manager.Get(ctx, "/me", nil, nil), context.Canceled)

		require.NoError(t, <-patient)
		require.EqualValues(t, 1, f.backend.RefreshHits.Load())
		require.Zero(t, f.expired.Load())
	})
}

func TestManager_ClearDuringRefresh(t *testing.T) {
	testCases := []struct {
		name  string
		clear func(f *testFixture)
	}{
		{
			name:  "clear tokens",
			clear: func(f *testFixture) { f.manager.ClearTokens() },
		},
		{
			name: "logout while the server fails",
			clear: func(f *testFixture) {
				f.backend.LogoutStatus.Store(500)
				f.manager.Logout(context.Background())
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.withPair(t, f.backend.IssueExpired("user-1"))
			f.backend.RefreshDelay.Store(300)

			inFlight := make(chan error, 1)
			go func() {
				inFlight <- f.manager.Get(context.Background(), "/me", nil, nil)
			}()
			require.Eventually(t, func() bool { return f.backend.RefreshHits.Load() == 1 }, time.Second, 5*time.Millisecond)

			tc.clear(f)
			require.Nil(t, f.manager.Tokens())

			err := <-inFlight
			require.True(t, session.IsSessionExpired(err))
			require.Nil(t, f.manager.Tokens(), "the refreshed pair is not brought back")
			require.Nil(t, f.store.Load())
			require.Zero(t, f.expired.Load(), "an explicit clear is not an expiry")
		})
	}
}

func TestManager_Refresh(t *testing.T) {
	t.Run("success replaces the pair", func(t *testing.T) {
		f := setupTestFixture(t)
		pair := f.backend.Issue("user-1")
		f.withPair(t, pair)

		require.True(t, f.manager.Refresh(context.Background()))
		require.NotEqual(t, pair, f.manager.Tokens())
		require.False(t, f.backend.RefreshTokenValid(pair.RefreshToken), "refresh token is rotated")
	})

	t.Run("failure leaves the pair untouched", func(t *testing.T) {
		f := setupTestFixture(t)
		pair := f.backend.Issue("user-1")
		f.withPair(t, pair)
		f.backend.FailRefresh.Store(true)

		require.False(t, f.manager.Refresh(context.Background()))
		require.Equal(t, pair, f.manager.Tokens())
		require.Equal(t, pair, f.store.Load())
		require.Zero(t, f.expired.Load())
	})

	t.Run("without credentials there is nothing to refresh", func(t *testing.T) {
		f := setupTestFixture(t)
		require.False(t, f.manager.Refresh(context.Background()))
		require.Zero(t, f.backend.RefreshHits.Load())
	})
}

func TestManager_Logout(t *testing.T) {
	t.Run("revokes and clears", func(t *testing.T) {
		f := setupTestFixture(t)
		pair := f.backend.Issue("user-1")
		f.withPair(t, pair)

		f.manager.Logout(context.Background())
		require.EqualValues(t, 1, f.backend.LogoutHits.Load())
		require.False(t, f.backend.RefreshTokenValid(pair.RefreshToken))
		require.Nil(t, f.manager.Tokens())
		require.Nil(t, f.store.Load())
	})

	t.Run("clears even when the server fails", func(t *testing.T) {
		f := setupTestFixture(t)
		f.withPair(t, f.backend.Issue("user-1"))
		f.backend.LogoutStatus.Store(500)

		f.manager.Logout(context.Background())
		require.Nil(t, f.manager.Tokens())
		require.Nil(t, f.store.Load())
	})

	t.Run("clears even when the server is unreachable", func(t *testing.T) {
		f := setupTestFixture(t)
		f.withPair(t, f.backend.Issue("user-1"))
		f.backend.Close()

		f.manager.Logout(context.Background())
		require.Nil(t, f.manager.Tokens())
		require.Nil(t, f.store.Load())
	})

	t.Run("does not notify expiry listeners", func(t *testing.T) {
		f := setupTestFixture(t)
		f.withPair(t, f.backend.Issue("user-1"))
		f.manager.Logout(context.Background())
		require.Zero(t, f.expired.Load())
	})

	t.Run("logout all", func(t *testing.T) {
		f := setupTestFixture(t)
		f.withPair(t, f.backend.Issue("user-1"))

		require.NoError(t, f.manager.LogoutAll(context.Background()))
		require.EqualValues(t, 1, f.backend.LogoutAllHits.Load())
		require.Nil(t, f.manager.Tokens())
	})
}

func TestManager_SaveAndClearTokens(t *testing.T) {
	f := setupTestFixture(t)

	require.Error(t, f.manager.SaveTokens(&token.Pair{AccessToken: "only-access"}))
	require.Nil(t, f.manager.Tokens())

	pair := f.backend.Issue("user-1")
	require.NoError(t, f.manager.SaveTokens(pair))
	require.Equal(t, pair, f.manager.Tokens())
	require.Equal(t, pair, f.store.Load())

	f.manager.ClearTokens()
	require.Nil(t, f.manager.Tokens())
	require.Nil(t, f.store.Load())
}

func TestManager_OnSessionExpired_Unsubscribe(t *testing.T) {
	f := setupTestFixture(t)
	var calls atomic.Int32
	unsubscribe := f.manager.OnSessionExpired(func() { calls.Add(1) })
	unsubscribe()
	unsubscribe()

	f.withPair(t, f.backend.IssueExpired("user-1"))
	f.backend.FailRefresh.Store(true)
	_ = f.manager.Get(context.Background(), "/me", nil, nil)

	require.Zero(t, calls.Load())
	require.EqualValues(t, 1, f.expired.Load(), "other listeners still fire")
}

func TestManager_PublicPostSkipsCredentials(t *testing.T) {
	f := setupTestFixture(t)
	f.withPair(t, f.backend.IssueExpired("user-1"))

	var out struct {
		Authorization string `json:"authorization"`
	}
	require.NoError(t, f.manager.PostPublic(context.Background(), "/echo", map[string]string{"a": "b"}, &out))
	require.Empty(t, out.Authorization)
	require.Zero(t, f.backend.RefreshHits.Load())
}
