package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const callbackPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>VocaCRM</title></head>
<body><p>로그인 처리가 끝났습니다. 이 창을 닫고 앱으로 돌아가세요.</p>
<p>You can close this window and return to the application.</p></body></html>`

// callbackResult holds the parameters delivered to the redirect URI, whether
// they arrived in the query string or in a form_post body.
type callbackResult struct {
	Code             string
	State            string
	IDToken          string
	Error            string
	ErrorDescription string
}

func (r callbackResult) err() error {
	if r.Error == "" {
		return nil
	}
	return &providerError{Code: r.Error, Description: r.ErrorDescription}
}

// callbackServer is a loopback HTTP listener that receives exactly one
// authorization response.
type callbackServer struct {
	server      *http.Server
	redirectURL string
	results     chan callbackResult
	logger      zerolog.Logger
}

// startCallbackServer listens on the host and port of redirectURI. Port 0
// picks a free port; RedirectURL reports the address actually bound.
func startCallbackServer(redirectURI string, logger zerolog.Logger) (*callbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("parse redirect uri: %w", err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("redirect uri %q is not a loopback http address", redirectURI)
	}
	port := u.Port()
	if port == "" {
		port = "80"
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(u.Hostname(), port))
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}

	bound := *u
	bound.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(listener.Addr().(*net.TCPAddr).Port))

	path := u.Path
	if path == "" {
		path = "/"
	}

	s := &callbackServer{
		redirectURL: bound.String(),
		results:     make(chan callbackResult, 1),
		logger:      logger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handle)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Err(err).Msg("oauth callback server stopped")
		}
	}()
	logger.Debug().Str("url", s.redirectURL).Msg("oauth callback server listening")
	return s, nil
}

func (s *callbackServer) RedirectURL() string {
	return s.redirectURL
}

func (s *callbackServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid callback request", http.StatusBadRequest)
		return
	}

	res := callbackResult{
		Code:             r.Form.Get("code"),
		State:            r.Form.Get("state"),
		IDToken:          r.Form.Get(paramIDToken),
		Error:            r.Form.Get("error"),
		ErrorDescription: r.Form.Get("error_description"),
	}
	if res.Code == "" && res.IDToken == "" && res.Error == "" {
		http.Error(w, "missing authorization response", http.StatusBadRequest)
		return
	}

	// Only the first response counts; reloads of the page are ignored.
	select {
	case s.results <- res:
	default:
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(callbackPage))
}

func (s *callbackServer) wait(ctx context.Context) (callbackResult, error) {
	select {
	case res := <-s.results:
		return res, nil
	case <-ctx.Done():
		return callbackResult{}, context.Cause(ctx)
	}
}

func (s *callbackServer) Close() {
	if err := s.server.Close(); err != nil {
		s.logger.Err(err).Msg("closing oauth callback server")
	}
}
