// Package backendtest runs an in-process VocaCRM backend for tests. It issues
// real looking JWT access tokens, rotates refresh tokens and tracks how often
// each auth endpoint was hit.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vocacrm/vocacrm-go/token"
	"github.com/vocacrm/vocacrm-go/token/tokentest"
)

// Place is one entry of GET /api/business-places/my.
type Place struct {
	BusinessPlace PlaceInfo `json:"businessPlace"`
	UserRole      string    `json:"userRole"`
	MemberCount   int       `json:"memberCount"`
}

type PlaceInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

type Server struct {
	*httptest.Server
	t testing.TB

	RefreshHits   atomic.Int32
	LogoutHits    atomic.Int32
	LogoutAllHits atomic.Int32
	LoginHits     atomic.Int32
	SignupHits    atomic.Int32
	PlacesHits    atomic.Int32

	// FailRefresh rejects every refresh with 401 INVALID_REFRESH_TOKEN.
	FailRefresh atomic.Bool
	// LogoutStatus overrides the status of POST /api/auth/logout when set.
	LogoutStatus atomic.Int32
	// PlacesStatus overrides the status of GET /api/business-places/my.
	PlacesStatus atomic.Int32
	// RefreshDelay holds every refresh for the given number of milliseconds.
	RefreshDelay atomic.Int64

	lock     sync.Mutex
	access   map[string]string // access token -> subject
	refresh  map[string]string // refresh token -> subject
	users    map[string]string // provider token -> subject
	places   []Place
	lastAuth string
}

func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		t:       t,
		access:  make(map[string]string),
		refresh: make(map[string]string),
		users:   make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/signup", s.signup)
	mux.HandleFunc("POST /api/auth/refresh", s.refreshToken)
	mux.HandleFunc("POST /api/auth/logout", s.logout)
	mux.HandleFunc("POST /api/auth/logout-all", s.authorized(s.logoutAll))
	mux.HandleFunc("GET /api/business-places/my", s.authorized(s.myPlaces))
	mux.HandleFunc("GET /api/me", s.authorized(s.me))
	mux.HandleFunc("GET /api/no-content", s.authorized(func(w http.ResponseWriter, _ *http.Request, _ string) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("POST /api/echo", s.echo)
	mux.HandleFunc("PUT /api/echo", s.echo)
	mux.HandleFunc("PATCH /api/echo", s.echo)
	mux.HandleFunc("DELETE /api/echo", s.echo)
	mux.HandleFunc("GET /api/fail", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "INVALID_INPUT", "message": "전화번호 형식이 올바르지 않습니다.", "field": "phone"})
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Issue mints and accepts a new pair for subject.
func (s *Server) Issue(subject string) *token.Pair {
	return s.issue(tokentest.Valid(s.t, subject), subject)
}

// IssueExpired returns a pair whose access token has expired but whose
// refresh token is still accepted.
func (s *Server) IssueExpired(subject string) *token.Pair {
	return s.issue(tokentest.Expired(s.t, subject), subject)
}

func (s *Server) issue(access, subject string) *token.Pair {
	pair := &token.Pair{AccessToken: access, RefreshToken: "refresh-" + uuid.NewString()}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.access[pair.AccessToken] = subject
	s.refresh[pair.RefreshToken] = subject
	return pair
}

// Revoke makes the server reject access as if it had been invalidated
// server side.
func (s *Server) Revoke(access string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.access, access)
}

// RegisterUser makes providerToken sign in as subject.
func (s *Server) RegisterUser(providerToken, subject string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.users[providerToken] = subject
}

func (s *Server) SetPlaces(places ...Place) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.places = places
}

// LastAuthorization is the Authorization header of the last authenticated
// request.
func (s *Server) LastAuthorization() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastAuth
}

func (s *Server) RefreshTokenValid(refresh string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := s.refresh[refresh]
	return ok
}

type authedHandler func(w http.ResponseWriter, r *http.Request, subject string)

func (s *Server) authorized(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		s.lock.Lock()
		s.lastAuth = header
		subject, ok := s.access[strings.TrimPrefix(header, "Bearer ")]
		s.lock.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "UNAUTHORIZED", "message": "unauthorized"})
			return
		}
		next(w, r, subject)
	}
}

type providerLogin struct {
	Provider string `json:"provider"`
	Token    string `json:"token"`
	Username string `json:"username"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.LoginHits.Add(1)
	var req providerLogin
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Provider == "" || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "INVALID_INPUT", "message": "invalid login request"})
		return
	}
	s.lock.Lock()
	subject, ok := s.users[req.Token]
	s.lock.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "USER_NOT_FOUND", "message": "가입되지 않은 사용자입니다."})
		return
	}
	writeJSON(w, http.StatusOK, s.Issue(subject))
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	s.SignupHits.Add(1)
	var req providerLogin
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" || req.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "INVALID_INPUT", "message": "invalid signup request"})
		return
	}
	s.lock.Lock()
	_, exists := s.users[req.Token]
	if !exists {
		s.users[req.Token] = "user-" + req.Username
	}
	subject := s.users[req.Token]
	s.lock.Unlock()
	if exists {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "USER_ALREADY_EXISTS", "message": "이미 가입된 사용자입니다."})
		return
	}
	writeJSON(w, http.StatusCreated, s.Issue(subject))
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	s.RefreshHits.Add(1)
	if delay := s.RefreshDelay.Load(); delay > 0 {
		time.Sleep(time.Duration(delay) * time.Millisecond)
	}
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.lock.Lock()
	subject, ok := s.refresh[req.RefreshToken]
	if ok && !s.FailRefresh.Load() {
		delete(s.refresh, req.RefreshToken)
	}
	s.lock.Unlock()

	if !ok || s.FailRefresh.Load() {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "INVALID_REFRESH_TOKEN", "message": "유효하지 않은 리프레시 토큰입니다."})
		return
	}
	writeJSON(w, http.StatusOK, s.Issue(subject))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.LogoutHits.Add(1)
	if status := s.LogoutStatus.Load(); status != 0 {
		writeJSON(w, int(status), map[string]any{"error": "INTERNAL_ERROR", "message": "logout failed"})
		return
	}
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.lock.Lock()
	delete(s.refresh, req.RefreshToken)
	s.lock.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logoutAll(w http.ResponseWriter, _ *http.Request, subject string) {
	s.LogoutAllHits.Add(1)
	s.lock.Lock()
	for k, v := range s.refresh {
		if v == subject {
			delete(s.refresh, k)
		}
	}
	s.lock.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) myPlaces(w http.ResponseWriter, _ *http.Request, _ string) {
	s.PlacesHits.Add(1)
	if status := s.PlacesStatus.Load(); status != 0 {
		writeJSON(w, int(status), map[string]any{"error": "INTERNAL_ERROR", "message": "places unavailable"})
		return
	}
	s.lock.Lock()
	places := append([]Place{}, s.places...)
	s.lock.Unlock()
	writeJSON(w, http.StatusOK, places)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request, subject string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"subject": subject,
		"query":   r.URL.Query().Get("q"),
	})
}

func (s *Server) echo(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	writeJSON(w, http.StatusOK, map[string]any{
		"method":        r.Method,
		"body":          body,
		"authorization": r.Header.Get("Authorization"),
		"requestId":     r.Header.Get("X-Request-ID"),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
