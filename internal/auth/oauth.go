package auth

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// LoginTimeout bounds how long the loopback flow waits for the browser
const LoginTimeout = 5 * time.Minute

// OAuthFlow runs one authorization code exchange with PKCE. It exists only
// to mint the refresh token a sync target is configured with.
type OAuthFlow struct {
	config       *oauth2.Config
	listener     net.Listener
	redirectURL  string
	state        string
	codeVerifier string
	codeChan     chan string
	errChan      chan error
}

// NewOAuthFlow creates a flow that redirects to redirectURL. listener may be
// nil for the manual copy-and-paste variant.
func NewOAuthFlow(config *oauth2.Config, listener net.Listener, redirectURL string) (*OAuthFlow, error) {
	if config == nil {
		return nil, fmt.Errorf("OAuth config not set")
	}
	state, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}
	verifier, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	cfg := *config
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("redirect URL not set")
	}

	return &OAuthFlow{
		config:       &cfg,
		listener:     listener,
		redirectURL:  cfg.RedirectURL,
		state:        state,
		codeVerifier: verifier,
		codeChan:     make(chan string, 1),
		errChan:      make(chan error, 1),
	}, nil
}

// AuthURL is the consent page URL. Offline access is requested so the
// exchange yields a refresh token.
func (f *OAuthFlow) AuthURL() string {
	return f.config.AuthCodeURL(
		f.state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("code_challenge", codeChallengeS256(f.codeVerifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// StartCallbackServer serves /callback on the flow's listener until ctx ends
func (f *OAuthFlow) StartCallbackServer(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", f.handleCallback)

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(f.listener); err != http.ErrServerClosed {
			f.sendErr(err)
		}
	}()
	go func() {
		<-ctx.Done()
		server.Close()
	}()
}

func (f *OAuthFlow) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("state") != f.state {
		f.sendErr(fmt.Errorf("invalid state parameter"))
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}
	code := q.Get("code")
	if code == "" {
		f.sendErr(fmt.Errorf("auth error: %s", q.Get("error")))
		http.Error(w, "No code received", http.StatusBadRequest)
		return
	}

	select {
	case f.codeChan <- code:
	default:
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<html><body><h1>gdsync is authorized</h1><p>You can close this window.</p></body></html>`)
}

func (f *OAuthFlow) sendErr(err error) {
	select {
	case f.errChan <- err:
	default:
	}
}

// WaitForCode blocks until the callback delivers a code or timeout passes
func (f *OAuthFlow) WaitForCode(timeout time.Duration) (string, error) {
	select {
	case code := <-f.codeChan:
		return code, nil
	case err := <-f.errChan:
		return "", err
	case <-time.After(timeout):
		return "", fmt.Errorf("authentication timed out")
	}
}

// ExchangeCode trades code for a token and returns its refresh token
func (f *OAuthFlow) ExchangeCode(ctx context.Context, code string) (string, error) {
	token, err := f.config.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", f.codeVerifier))
	if err != nil {
		return "", fmt.Errorf("failed to exchange code: %w", err)
	}
	if token.RefreshToken == "" {
		return "", fmt.Errorf("token response has no refresh token; revoke the app grant and retry")
	}
	return token.RefreshToken, nil
}

// Close releases the loopback listener
func (f *OAuthFlow) Close() {
	if f.listener != nil {
		f.listener.Close()
	}
}

// LoginOptions controls Login
type LoginOptions struct {
	NoBrowser   bool
	OpenBrowser func(url string) error
	In          io.Reader
	Out         io.Writer
}

// Login obtains a refresh token for config. It uses a loopback redirect
// when a browser is available and falls back to pasting the code.
func Login(ctx context.Context, config *oauth2.Config, opts LoginOptions) (string, error) {
	if opts.Out == nil {
		opts.Out = os.Stderr
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}

	if !opts.NoBrowser && opts.OpenBrowser != nil && !isHeadlessEnv() {
		flow, err := newLoopbackFlow(config)
		if err == nil {
			defer flow.Close()
			authURL := flow.AuthURL()

			flowCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			flow.StartCallbackServer(flowCtx)

			fmt.Fprintf(opts.Out, "Opening browser for authentication...\nIf it does not open, visit: %s\n", authURL)
			if err := opts.OpenBrowser(authURL); err == nil {
				code, err := flow.WaitForCode(LoginTimeout)
				if err != nil {
					return "", err
				}
				return flow.ExchangeCode(ctx, code)
			}
			fmt.Fprintln(opts.Out, "Failed to open browser, switching to manual authentication.")
		}
	}

	flow, err := newManualFlow(config)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(opts.Out, "Open this URL in a browser and approve access:\n%s\n", flow.AuthURL())
	fmt.Fprintln(opts.Out, "Copy the `code` parameter from the redirected localhost URL and paste it here.")
	code, err := promptForAuthCode(bufio.NewReader(opts.In), opts.Out)
	if err != nil {
		return "", err
	}
	return flow.ExchangeCode(ctx, code)
}

func newLoopbackFlow(config *oauth2.Config) (*OAuthFlow, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start local server: %w", err)
	}
	addr := listener.Addr().(*net.TCPAddr)
	return NewOAuthFlow(config, listener, fmt.Sprintf("http://127.0.0.1:%d/callback", addr.Port))
}

func newManualFlow(config *oauth2.Config) (*OAuthFlow, error) {
	port := 8765
	if listener, err := net.Listen("tcp", "127.0.0.1:0"); err == nil {
		port = listener.Addr().(*net.TCPAddr).Port
		_ = listener.Close()
	}
	return NewOAuthFlow(config, nil, fmt.Sprintf("http://127.0.0.1:%d/callback", port))
}

func promptForAuthCode(reader *bufio.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Authorization code: ")
	code, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || code == "") {
		return "", err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("no authorization code entered")
	}
	return code, nil
}

func isHeadlessEnv() bool {
	if os.Getenv("GDSYNC_NO_BROWSER") != "" {
		return true
	}
	if os.Getenv("CI") != "" || os.Getenv("SSH_CONNECTION") != "" || os.Getenv("SSH_TTY") != "" {
		return true
	}
	if runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return true
	}
	return false
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func codeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
