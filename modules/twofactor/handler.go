package twofactor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/mfakit/pkg/binder"
	"github.com/dmitrymomot/mfakit/pkg/clientip"
	"github.com/dmitrymomot/mfakit/pkg/logger"
	"github.com/dmitrymomot/mfakit/pkg/ratelimiter"
	"github.com/dmitrymomot/mfakit/pkg/session"
	mfa "github.com/dmitrymomot/mfakit/pkg/twofactor"
)

// PasswordVerifier checks the first factor. It returns ErrInvalidCredentials
// (or any error) when the password is wrong.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, login, password string) (accountID string, err error)
}

// AccountResolver identifies the signed-in account of a request.
type AccountResolver interface {
	AccountID(r *http.Request) (string, error)
}

// AccountResolverFunc adapts a function to AccountResolver.
type AccountResolverFunc func(r *http.Request) (string, error)

func (f AccountResolverFunc) AccountID(r *http.Request) (string, error) { return f(r) }

// sessionAccounts reads the account placed in the context by
// session.Manager.RequireAuth.
var sessionAccounts = AccountResolverFunc(func(r *http.Request) (string, error) {
	id, ok := session.AccountIDFromContext(r.Context())
	if !ok {
		return "", ErrUnauthorized
	}
	return id, nil
})

// Handler serves the enrollment and login endpoints.
type Handler struct {
	svc       *mfa.Service
	sessions  *session.Manager
	passwords PasswordVerifier
	transport session.Transport
	accounts  AccountResolver
	registry  *Registry
	attempts  ratelimiter.RateLimiter
	logger    *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithTransport sets how session tokens are returned. Defaults to the
// Authorization header.
func WithTransport(t session.Transport) HandlerOption {
	return func(h *Handler) {
		if t != nil {
			h.transport = t
		}
	}
}

// WithAccountResolver replaces the built-in session based account lookup.
// The host is then responsible for authenticating the account routes.
func WithAccountResolver(r AccountResolver) HandlerOption {
	return func(h *Handler) {
		if r != nil {
			h.accounts = r
		}
	}
}

// WithRegistry shares a Registry, for example one driven by a custom sweeper.
func WithRegistry(r *Registry) HandlerOption {
	return func(h *Handler) {
		if r != nil {
			h.registry = r
		}
	}
}

// WithAttemptLimiter limits password attempts per client address and code
// attempts per account. Without it attempts are unlimited.
func WithAttemptLimiter(l ratelimiter.RateLimiter) HandlerOption {
	return func(h *Handler) {
		h.attempts = l
	}
}

// WithLogger sets a custom logger for the handler.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates the HTTP handler. sessions must be the same manager the
// Service activates credentials with.
func NewHandler(svc *mfa.Service, sessions *session.Manager, passwords PasswordVerifier, opts ...HandlerOption) *Handler {
	h := &Handler{
		svc:       svc,
		sessions:  sessions,
		passwords: passwords,
		transport: session.NewHeaderTransport(""),
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.registry == nil {
		h.registry = NewRegistry(WithRegistryLogger(h.logger))
	}
	h.logger = h.logger.With(logger.Component("twofactor_http"))
	return h
}

// Registry returns the registry holding in-flight logins and enrollments.
func (h *Handler) Registry() *Registry { return h.registry }

func (h *Handler) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/login", h.login)
	r.Post("/login/verify", h.verify)
	r.Post("/login/cancel", h.cancel)

	r.Group(func(r chi.Router) {
		if h.accounts == nil {
			r.Use(h.sessions.RequireAuth(h.transport))
		}
		r.Get("/status", h.status)
		r.Post("/enroll", h.beginEnrollment)
		r.Post("/enroll/confirm", h.confirmEnrollment)
		r.Delete("/enroll", h.abandonEnrollment)
		r.Post("/backup-codes", h.regenerateBackupCodes)
		r.Post("/disable", h.disable)
	})

	return r
}

type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Status      string    `json:"status"`
	ChallengeID string    `json:"challenge_id,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req LoginRequest
	if err := binder.JSON()(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.allow(w, r, "login:"+clientip.GetIP(r)) {
		return
	}

	accountID, err := h.passwords.VerifyPassword(ctx, req.Login, req.Password)
	if err != nil || accountID == "" {
		h.logger.InfoContext(ctx, "password rejected", logger.Error(err))
		h.fail(w, r, ErrInvalidCredentials)
		return
	}

	sess, err := h.sessions.Mint(ctx)
	if err != nil {
		h.fail(w, r, errors.Join(mfa.ErrSessionManager, err))
		return
	}

	gate := h.svc.NewGate()
	state, err := gate.OnPasswordVerified(ctx, sess.Token, accountID)
	if err != nil {
		_ = h.sessions.Revoke(ctx, sess.Token)
		h.fail(w, r, err)
		return
	}

	if state == mfa.Active {
		h.issue(w, r, sess.Token)
		return
	}

	id := h.registry.AddChallenge(gate, sess.Token)
	h.writeJSON(w, http.StatusAccepted, LoginResponse{
		Status:      mfa.Pending2FA.String(),
		ChallengeID: id,
		ExpiresAt:   gate.ExpiresAt(),
	})
}

type VerifyRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := binder.JSON()(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, ok := h.registry.challenge(req.ChallengeID)
	if !ok {
		h.fail(w, r, ErrChallengeNotFound)
		return
	}
	key := accountKey(c.gate.AccountID())
	if !h.allow(w, r, key) {
		return
	}

	if err := c.gate.Verify(r.Context(), req.Code); err != nil {
		if c.gate.State() != mfa.Pending2FA {
			h.registry.RemoveChallenge(req.ChallengeID)
		}
		h.fail(w, r, err)
		return
	}

	h.registry.RemoveChallenge(req.ChallengeID)
	h.resetAttempts(r, key)
	h.issue(w, r, c.credential)
}

type CancelRequest struct {
	ChallengeID string `json:"challenge_id"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := binder.JSON()(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, ok := h.registry.challenge(req.ChallengeID)
	if !ok {
		h.fail(w, r, ErrChallengeNotFound)
		return
	}
	if err := c.gate.Cancel(r.Context()); err != nil && !errors.Is(err, mfa.ErrInvalidState) {
		h.fail(w, r, err)
		return
	}
	h.registry.RemoveChallenge(req.ChallengeID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	status, err := h.svc.Status(r.Context(), accountID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

type EnrollRequest struct {
	Label string `json:"label"`
}

type EnrollResponse struct {
	URI            string   `json:"uri"`
	ManualEntryKey string   `json:"manual_entry_key"`
	BackupCodes    []string `json:"backup_codes"`
	QRCode         string   `json:"qr_code"`
}

func (h *Handler) beginEnrollment(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	var req EnrollRequest
	if r.ContentLength != 0 {
		if err := binder.JSON()(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	e, err := h.svc.BeginEnrollment(r.Context(), accountID, req.Label)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	qr, err := e.QRCode()
	if err != nil {
		e.Abandon()
		h.fail(w, r, err)
		return
	}
	h.registry.PutEnrollment(e)

	h.writeJSON(w, http.StatusCreated, EnrollResponse{
		URI:            e.URI(),
		ManualEntryKey: e.ManualEntryKey(),
		BackupCodes:    e.BackupCodes(),
		QRCode:         "data:image/png;base64," + base64.StdEncoding.EncodeToString(qr),
	})
}

type CodeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) confirmEnrollment(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	var req CodeRequest
	if err := binder.JSON()(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	e, ok := h.registry.Enrollment(accountID)
	if !ok {
		h.fail(w, r, ErrNoEnrollment)
		return
	}
	if !h.allow(w, r, accountKey(accountID)) {
		return
	}
	if err := e.Confirm(r.Context(), req.Code); err != nil {
		if errors.Is(err, mfa.ErrAlreadyEnrolled) {
			h.registry.TakeEnrollment(accountID)
		}
		h.fail(w, r, err)
		return
	}
	h.registry.TakeEnrollment(accountID)

	status, err := h.svc.Status(r.Context(), accountID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) abandonEnrollment(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	e, ok := h.registry.TakeEnrollment(accountID)
	if !ok {
		h.fail(w, r, ErrNoEnrollment)
		return
	}
	e.Abandon()
	w.WriteHeader(http.StatusNoContent)
}

type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

func (h *Handler) regenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	var req CodeRequest
	if err := binder.JSON()(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.allow(w, r, accountKey(accountID)) {
		return
	}
	codes, err := h.svc.RegenerateBackupCodes(r.Context(), accountID, req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BackupCodesResponse{BackupCodes: codes})
}

func (h *Handler) disable(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.account(w, r)
	if !ok {
		return
	}
	var req CodeRequest
	if err := binder.JSON()(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.allow(w, r, accountKey(accountID)) {
		return
	}
	if err := h.svc.Disable(r.Context(), accountID, req.Code); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) account(w http.ResponseWriter, r *http.Request) (string, bool) {
	resolver := h.accounts
	if resolver == nil {
		resolver = sessionAccounts
	}
	id, err := resolver.AccountID(r)
	if err != nil || id == "" {
		h.fail(w, r, ErrUnauthorized)
		return "", false
	}
	return id, true
}

func accountKey(accountID string) string { return "account:" + accountID }

// allow spends one attempt for key. When the attempt is refused the response
// has been written and false is returned.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, key string) bool {
	if h.attempts == nil {
		return true
	}
	res, err := h.attempts.Allow(r.Context(), key)
	if err != nil {
		h.fail(w, r, errors.Join(mfa.ErrStorage, err))
		return false
	}
	if !res.Allowed() {
		wait := math.Ceil(res.RetryAfter(time.Now()).Seconds())
		w.Header().Set("Retry-After", strconv.Itoa(max(int(wait), 1)))
		h.logger.WarnContext(r.Context(), "too many attempts",
			slog.String("key", key), slog.String("ip", clientip.GetIP(r)))
		h.fail(w, r, ErrTooManyAttempts)
		return false
	}
	return true
}

func (h *Handler) resetAttempts(r *http.Request, key string) {
	if h.attempts == nil {
		return
	}
	if err := h.attempts.Reset(r.Context(), key); err != nil {
		h.logger.WarnContext(r.Context(), "failed to reset attempts", logger.Error(err))
	}
}

// issue hands an activated credential to the client.
func (h *Handler) issue(w http.ResponseWriter, r *http.Request, credential string) {
	if err := h.transport.SetToken(w, credential, 0); err != nil {
		h.fail(w, r, errors.Join(mfa.ErrSessionManager, err))
		return
	}
	h.writeJSON(w, http.StatusOK, LoginResponse{Status: mfa.Active.String()})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, name := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path), logger.Error(err))
	}
	h.writeJSON(w, code, errorResponse{Error: name, Message: http.StatusText(code)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", logger.Error(err))
	}
}
