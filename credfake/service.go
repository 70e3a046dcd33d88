// Package credfake is an in-memory stand-in for the LexLink credential
// service. It issues real HS256 access tokens with real expiries, so clients
// under test hit genuine authorization failures instead of scripted ones.
package credfake

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lexlink/client-go/apiclient"
	"github.com/lexlink/client-go/identity"
)

const defaultAccessTTL = 15 * time.Minute

type account struct {
	passwordHash []byte
	user         *identity.Identity
}

// Service implements the credential-issuing endpoints plus a couple of gated
// marketplace resources. Zero value is not usable; construct with New.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	appBaseURL string
	nowFunc    func() time.Time

	lock          sync.Mutex
	users         map[string]*account
	refreshTokens map[string]string // refresh token -> email

	refreshCalls int
	failLogout   bool

	mux *http.ServeMux
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAccessTTL sets the minted access-token lifetime. A negative TTL mints
// already-expired tokens.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.accessTTL = ttl
	}
}

// WithNowFunc sets the clock (primarily for testing expiry).
func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

// WithAppBaseURL sets where the Google entry point redirects back to.
func WithAppBaseURL(baseURL string) ServiceOption {
	return func(s *Service) {
		s.appBaseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithFailingLogout makes the logout endpoint return 500, for exercising
// best-effort teardown.
func WithFailingLogout() ServiceOption {
	return func(s *Service) {
		s.failLogout = true
	}
}

func New(secret string, options ...ServiceOption) *Service {
	s := &Service{
		secret:        []byte(secret),
		accessTTL:     defaultAccessTTL,
		nowFunc:       time.Now,
		users:         make(map[string]*account),
		refreshTokens: make(map[string]string),
	}
	for _, opt := range options {
		opt(s)
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("POST "+apiclient.RouteAuthLogin, s.handleLogin)
	s.mux.HandleFunc("POST "+apiclient.RouteAuthRegister, s.handleRegister)
	s.mux.HandleFunc("POST "+apiclient.RouteAuthLogout, s.handleLogout)
	s.mux.HandleFunc("POST "+apiclient.RouteAuthRefresh, s.handleRefresh)
	s.mux.HandleFunc("GET "+apiclient.RouteAuthMe, s.handleMe)
	s.mux.HandleFunc("GET "+apiclient.RouteAuthGoogle, s.handleGoogle)
	s.mux.HandleFunc("GET "+apiclient.RouteLawyerAvailableCase, s.handleAvailableCases)
	s.mux.HandleFunc("GET "+apiclient.RouteLawyerAssignedCases, s.handleAssignedCases)

	return s
}

func (s *Service) Handler() http.Handler {
	return s.mux
}

// AddUser registers an account. The identity's email is the login name.
func (s *Service) AddUser(password string, user *identity.Identity) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.users[user.Email] = &account{passwordHash: hash, user: user}
	return nil
}

// IssueCredentials mints a token pair for a registered user, for seeding
// stored-session scenarios without going through login.
func (s *Service) IssueCredentials(email string) (identity.Credentials, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.users[email]; !ok {
		return identity.Credentials{}, false
	}
	return s.issueLocked(email), true
}

// RevokeRefreshToken invalidates a refresh token, simulating server-side
// expiry.
func (s *Service) RevokeRefreshToken(token string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.refreshTokens, token)
}

// RefreshCalls reports how many renewal calls the service has served.
func (s *Service) RefreshCalls() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.refreshCalls
}

func (s *Service) issueLocked(email string) identity.Credentials {
	claims := jwt.MapClaims{
		"sub": email,
		"iat": s.nowFunc().Unix(),
		"exp": s.nowFunc().Add(s.accessTTL).Unix(),
		"jti": uuid.New().String(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		// HS256 signing of a map claim set cannot fail with a valid key.
		panic(err)
	}

	refreshToken := uuid.New().String()
	s.refreshTokens[refreshToken] = email
	return identity.Credentials{AccessToken: accessToken, RefreshToken: refreshToken}
}

// subject validates an access token and returns the account it names.
func (s *Service) subject(r *http.Request) (*account, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, false
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.nowFunc))
	if err != nil || !token.Valid {
		return nil, false
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return nil, false
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	acct, ok := s.users[sub]
	return acct, ok
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req apiclient.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, nil, "invalid request body")
		return
	}

	s.lock.Lock()
	acct, ok := s.users[req.Email]
	s.lock.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(req.Password)) != nil {
		writeEnvelope(w, http.StatusUnauthorized, nil, "invalid email or password")
		return
	}

	s.lock.Lock()
	creds := s.issueLocked(req.Email)
	s.lock.Unlock()
	writeEnvelope(w, http.StatusOK, authData(creds, acct.user), "login successful")
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req apiclient.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, nil, "invalid request body")
		return
	}

	s.lock.Lock()
	if _, exists := s.users[req.Email]; exists {
		s.lock.Unlock()
		writeEnvelope(w, http.StatusConflict, nil, "account already exists")
		return
	}
	s.lock.Unlock()

	user := &identity.Identity{
		ID:        uuid.New().String(),
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Roles:     []identity.RoleType{req.Role},
		Address:   req.Address,
		Location:  req.Location,
		Phone:     req.Phone,
	}
	if err := s.AddUser(req.Password, user); err != nil {
		writeEnvelope(w, http.StatusInternalServerError, nil, "failed to store account")
		return
	}

	s.lock.Lock()
	creds := s.issueLocked(req.Email)
	s.lock.Unlock()
	writeEnvelope(w, http.StatusCreated, authData(creds, user), "registration successful")
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.failLogout {
		writeEnvelope(w, http.StatusInternalServerError, nil, "logout unavailable")
		return
	}
	if acct, ok := s.subject(r); ok {
		s.lock.Lock()
		for token, email := range s.refreshTokens {
			if email == acct.user.Email {
				delete(s.refreshTokens, token)
			}
		}
		s.lock.Unlock()
	}
	writeEnvelope(w, http.StatusOK, nil, "logged out")
}

func (s *Service) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	s.refreshCalls++
	s.lock.Unlock()

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		writeEnvelope(w, http.StatusUnauthorized, nil, "missing refresh token")
		return
	}
	refreshToken := strings.TrimPrefix(auth, "Bearer ")

	s.lock.Lock()
	email, ok := s.refreshTokens[refreshToken]
	if !ok {
		s.lock.Unlock()
		writeEnvelope(w, http.StatusUnauthorized, nil, "refresh token expired")
		return
	}
	creds := s.issueLocked(email)
	s.lock.Unlock()

	writeEnvelope(w, http.StatusOK, map[string]string{"access_token": creds.AccessToken}, "token refreshed")
}

func (s *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.subject(r)
	if !ok {
		writeEnvelope(w, http.StatusUnauthorized, nil, "invalid or expired token")
		return
	}
	writeEnvelope(w, http.StatusOK, acct.user, "")
}

// handleGoogle plays the external identity provider: it picks the account
// named in the query, issues a pair, and redirects back to the application
// with the credentials and identity as query parameters.
func (s *Service) handleGoogle(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	s.lock.Lock()
	acct, ok := s.users[email]
	if !ok {
		s.lock.Unlock()
		writeEnvelope(w, http.StatusNotFound, nil, "unknown account")
		return
	}
	creds := s.issueLocked(email)
	s.lock.Unlock()

	userPayload, err := json.Marshal(acct.user)
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, nil, "failed to encode identity")
		return
	}

	params := url.Values{}
	params.Set("access_token", creds.AccessToken)
	params.Set("refresh_token", creds.RefreshToken)
	params.Set("user", string(userPayload))
	http.Redirect(w, r, s.appBaseURL+"/?"+params.Encode(), http.StatusFound)
}

func (s *Service) handleAvailableCases(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.subject(r)
	if !ok {
		writeEnvelope(w, http.StatusUnauthorized, nil, "invalid or expired token")
		return
	}
	if !acct.user.HasRole(identity.RoleLawyer) {
		writeEnvelope(w, http.StatusForbidden, nil, "lawyers only")
		return
	}
	writeEnvelope(w, http.StatusOK, map[string][]apiclient.Case{"available_cases": {}}, "")
}

func (s *Service) handleAssignedCases(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.subject(r)
	if !ok {
		writeEnvelope(w, http.StatusUnauthorized, nil, "invalid or expired token")
		return
	}
	if !acct.user.HasRole(identity.RoleLawyer) {
		writeEnvelope(w, http.StatusForbidden, nil, "lawyers only")
		return
	}
	writeEnvelope(w, http.StatusOK, map[string][]apiclient.Case{"assigned_cases": {}}, "")
}

func authData(creds identity.Credentials, user *identity.Identity) map[string]any {
	return map[string]any{
		"access_token":  creds.AccessToken,
		"refresh_token": creds.RefreshToken,
		"user":          user,
	}
}

func writeEnvelope(w http.ResponseWriter, status int, data any, message string) {
	body := map[string]any{
		"status": "success",
	}
	if status >= http.StatusBadRequest {
		body["status"] = "error"
	}
	if data != nil {
		body["data"] = data
	}
	if message != "" {
		body["message"] = message
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
