package authclient

import (
	"context"
	"sync"
	"time"
)

// Phase is the derived state of a Session.
type Phase string

const (
	PhaseAnonymous              Phase = "anonymous"
	PhaseAuthenticating         Phase = "authenticating"
	PhaseAuthenticatedNoProfile Phase = "authenticated_no_profile"
	PhaseAuthenticated          Phase = "authenticated"
)

// State is a point in time copy of the session.
type State struct {
	Token   string
	User    *User
	Loading bool
	Error   string
}

// Phase derives the session phase from the snapshot.
func (s State) Phase() Phase {
	switch {
	case s.Loading:
		return PhaseAuthenticating
	case s.Token == "":
		return PhaseAnonymous
	case s.User == nil:
		return PhaseAuthenticatedNoProfile
	default:
		return PhaseAuthenticated
	}
}

// IsAuthenticated reports whether the snapshot holds a token.
func (s State) IsAuthenticated() bool {
	return s.Token != ""
}

// AuthAPI is the backend surface used by Session.
type AuthAPI interface {
	Login(ctx context.Context, payload LoginRequest) (*LoginResponse, error)
	Profile(ctx context.Context) (*User, error)
	Logout(ctx context.Context) error
}

// TokenBinder attaches the session token to outgoing requests.
type TokenBinder interface {
	Bind(token string)
}

// Session owns the in-memory {token, user, loading, error} state and
// orchestrates login, profile fetch and logout. The lock is never held across
// network calls.
type Session struct {
	mu         sync.RWMutex
	token      string
	user       *User
	inflight   int
	errMsg     string
	generation uint64
	loginSeq   uint64

	credentials *CredentialStore
	device      *DeviceIdentity
	binder      TokenBinder
	api         AuthAPI

	policy         ProfilePolicy
	userAgent      string
	failureMessage string
	discardExpired bool

	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

// SessionOption customizes Session construction.
type SessionOption func(*Session)

// WithSessionLogger sets the session logger.
func WithSessionLogger(logger Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionActivitySink sets the ActivitySink used to publish session events.
func WithSessionActivitySink(sink ActivitySink) SessionOption {
	return func(s *Session) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithSessionClock injects a custom clock (useful for tests).
func WithSessionClock(clock func() time.Time) SessionOption {
	return func(s *Session) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithProfilePolicy overrides the configured profile failure policy.
func WithProfilePolicy(policy ProfilePolicy) SessionOption {
	return func(s *Session) {
		if policy.IsValid() {
			s.policy = policy
		}
	}
}

// NewSession builds a session and restores a stored token synchronously so it
// is available before the first navigation decision.
func NewSession(cfg Config, credentials *CredentialStore, device *DeviceIdentity, binder TokenBinder, api AuthAPI, opts ...SessionOption) *Session {
	s := &Session{
		credentials:    credentials,
		device:         device,
		binder:         binder,
		api:            api,
		policy:         cfg.GetProfilePolicy(),
		userAgent:      cfg.GetUserAgent(),
		failureMessage: cfg.GetLoginFailureMessage(),
		discardExpired: cfg.GetDiscardExpiredTokens(),
		logger:         defLogger{},
		activitySink:   noopActivitySink{},
		now:            time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.restore(context.Background())

	return s
}

func (s *Session) restore(ctx context.Context) {
	token, ok := s.credentials.Get(ctx)
	if !ok {
		return
	}

	if s.discardExpired && TokenExpired(token, s.now()) {
		s.logger.Info("discarding expired stored token")
		if err := s.credentials.Clear(ctx); err != nil {
			s.logger.Warn("unable to clear expired token: %v", err)
		}
		return
	}

	s.token = token
	s.binder.Bind(token)
}

// Policy returns the active profile failure policy.
func (s *Session) Policy() ProfilePolicy {
	return s.policy
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	var user *User
	if s.user != nil {
		u := *s.user
		user = &u
	}
	return State{
		Token:   s.token,
		User:    user,
		Loading: s.inflight > 0,
		Error:   s.errMsg,
	}
}

// Phase returns the derived session phase.
func (s *Session) Phase() Phase {
	return s.Snapshot().Phase()
}

// Token returns the current bearer token, empty when anonymous.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the loaded profile, or nil.
func (s *Session) User() *User {
	return s.Snapshot().User
}

// Loading reports whether a login is in flight.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Error returns the last login failure message.
func (s *Session) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// IsAuthenticated reports whether the session holds a token.
func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

// IsAdmin reports whether the loaded profile has an admin role.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.IsAdmin()
}

// IsMember reports whether the loaded profile is a member. Admins are members.
func (s *Session) IsMember() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.IsMember()
}

// Login authenticates against the backend, persists and binds the returned
// token, then loads the profile. Failures are recorded in Error and returned.
// Loading is released on every exit path.
func (s *Session) Login(ctx context.Context, email, password string) error {
	seq, gen, from := s.beginLogin()
	defer s.endLogin()

	deviceID := s.device.DeviceID(ctx)

	resp, err := s.api.Login(ctx, LoginRequest{
		Email:      email,
		Password:   password,
		DeviceID:   deviceID,
		DeviceInfo: s.userAgent,
	})
	if err != nil {
		s.failLogin(seq, err)
		s.logger.Error("login failed for %s: %v", email, err)
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			DeviceID:  deviceID,
			From:      from,
			To:        PhaseAnonymous,
			Metadata: map[string]any{
				"email": email,
				"error": err.Error(),
			},
		})
		return err
	}

	if err := s.commitToken(ctx, gen, resp.AccessToken); err != nil {
		s.logger.Warn("discarding login result for %s: %v", email, err)
		return err
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		DeviceID:  deviceID,
		From:      from,
		To:        PhaseAuthenticatedNoProfile,
		Metadata: map[string]any{
			"email": email,
		},
	})

	if err := s.fetchProfile(ctx, gen); err != nil {
		if !IsSuperseded(err) {
			s.failLogin(seq, err)
		}
		return err
	}

	return nil
}

// beginLogin starts a new generation and makes this call the owner of the
// error message until another login begins.
func (s *Session) beginLogin() (seq uint64, gen uint64, from Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	from = s.snapshotLocked().Phase()
	s.inflight++
	s.errMsg = ""
	s.generation++
	s.loginSeq++
	return s.loginSeq, s.generation, from
}

func (s *Session) endLogin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight > 0 {
		s.inflight--
	}
}

// failLogin records the failure message unless a newer login has started.
// Logouts and expiries do not take ownership of the message, so a 401 that
// expires the session still leaves the backend detail visible.
func (s *Session) failLogin(seq uint64, err error) {
	msg := DetailMessage(err)
	if msg == "" {
		msg = s.failureMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.loginSeq {
		return
	}
	s.errMsg = msg
}

func (s *Session) commitToken(ctx context.Context, gen uint64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return newError(ErrSuperseded, nil, map[string]any{"operation": "login"})
	}

	s.token = token
	s.user = nil
	if err := s.credentials.Set(ctx, token); err != nil {
		s.logger.Warn("unable to persist token: %v", err)
	}
	s.binder.Bind(token)
	return nil
}

func (s *Session) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// FetchProfile loads the profile for the current token. It is a no-op without
// a token. A failure is returned and, under PolicyLogout, also clears the
// session.
func (s *Session) FetchProfile(ctx context.Context) error {
	return s.fetchProfile(ctx, 0)
}

// fetchProfile loads the profile for the current token. A non zero expected
// generation pins the fetch to the login that committed the token: if the
// session moved on since, the fetch is reported as superseded.
func (s *Session) fetchProfile(ctx context.Context, expected uint64) error {
	s.mu.RLock()
	token, gen := s.token, s.generation
	s.mu.RUnlock()

	if expected != 0 && (gen != expected || token == "") {
		return newError(ErrSuperseded, nil, map[string]any{"operation": "profile"})
	}

	if token == "" {
		return nil
	}

	user, err := s.api.Profile(ctx)
	if err != nil {
		if s.currentGeneration() != gen {
			// A newer login, logout or expiry already handled this token.
			return err
		}

		s.logger.Error("failed to fetch profile: %v", err)
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventProfileFailure,
			From:      PhaseAuthenticatedNoProfile,
			To:        s.phaseAfterProfileFailure(),
			Metadata: map[string]any{
				"error":  err.Error(),
				"policy": string(s.policy),
			},
		})

		if s.policy == PolicyLogout {
			s.expire(ctx, gen, "profile fetch failed")
		}
		return err
	}

	s.mu.Lock()
	if gen != s.generation || s.token != token {
		s.mu.Unlock()
		return newError(ErrSuperseded, nil, map[string]any{"operation": "profile"})
	}
	u := *user
	s.user = &u
	s.mu.Unlock()

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventProfileLoaded,
		UserID:    user.ID,
		From:      PhaseAuthenticatedNoProfile,
		To:        PhaseAuthenticated,
		Metadata: map[string]any{
			"role": string(user.Role),
		},
	})

	return nil
}

func (s *Session) phaseAfterProfileFailure() Phase {
	if s.policy == PolicyLogout {
		return PhaseAnonymous
	}
	return PhaseAuthenticatedNoProfile
}

// Logout notifies the backend best effort and always clears local state.
func (s *Session) Logout(ctx context.Context) {
	s.mu.RLock()
	token := s.token
	userID := ""
	if s.user != nil {
		userID = s.user.ID
	}
	s.mu.RUnlock()

	if token != "" {
		if err := s.api.Logout(WithoutUnauthorizedSignal(ctx)); err != nil {
			s.logger.Warn("logout notification failed: %v", err)
		}
	}

	from := s.clear(ctx)

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventLogout,
		UserID:    userID,
		From:      from,
		To:        PhaseAnonymous,
	})
}

// Expire clears the session locally without contacting the backend. It is
// used when the backend reports the credential is no longer valid.
func (s *Session) Expire(ctx context.Context, reason string) {
	s.expire(ctx, 0, reason)
}

// expire clears the session. A non zero gen only clears when it is still the
// current generation.
func (s *Session) expire(ctx context.Context, gen uint64, reason string) {
	s.mu.Lock()
	if gen != 0 && gen != s.generation {
		s.mu.Unlock()
		return
	}
	from := s.snapshotLocked().Phase()
	hadToken := s.token != ""
	userID := ""
	if s.user != nil {
		userID = s.user.ID
	}
	s.clearLocked(ctx, hadToken)
	s.mu.Unlock()

	if !hadToken {
		return
	}

	s.logger.Info("session expired: %s", reason)
	s.record(ctx, ActivityEvent{
		EventType: ActivityEventExpired,
		UserID:    userID,
		From:      from,
		To:        PhaseAnonymous,
		Metadata: map[string]any{
			"reason": reason,
		},
	})
}

// HandleUnauthorized is the UnauthorizedListener the session registers with
// the transport binder.
func (s *Session) HandleUnauthorized(ctx context.Context, event UnauthorizedEvent) {
	s.Expire(ctx, "unauthorized response from "+event.Method+" "+event.Path)
}

func (s *Session) clear(ctx context.Context) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	from := s.snapshotLocked().Phase()
	s.clearLocked(ctx, true)
	return from
}

// clearLocked drops token and user together. The generation only moves when
// state actually changed.
func (s *Session) clearLocked(ctx context.Context, bump bool) {
	if bump {
		s.generation++
	}
	s.token = ""
	s.user = nil
	if err := s.credentials.Clear(ctx); err != nil {
		s.logger.Warn("unable to clear stored token: %v", err)
	}
	s.binder.Bind("")
}

func (s *Session) record(ctx context.Context, event ActivityEvent) {
	recordActivity(ctx, s.activitySink, s.logger, s.now, event)
}
