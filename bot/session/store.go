// Package session keeps per-operator conversation state in memory.
// Sessions are keyed by Telegram user ID and never persisted; a restart
// logs everyone out.
package session

import (
	"sync"
)

// Step identifies where an operator is inside the login/buy dialog.
type Step string

const (
	StepIdle             Step = ""
	StepAwaitingUsername Step = "awaiting_username"
	StepAwaitingSidToken Step = "awaiting_sid_token"
	StepAwaitingAreaCode Step = "awaiting_area_code"
)

// Credentials holds a validated provider SID/token pair.
type Credentials struct {
	AccountSID string
	AuthToken  string
}

// Session is the full conversation state for one operator.
type Session struct {
	Step     Step
	Username string
	Creds    *Credentials
	// Numbers lists provider SIDs of numbers rented through this session.
	Numbers []string
	// LastMessageID is the confirmation message to retract on the next purchase.
	LastMessageID int
}

// Authenticated reports whether the session carries working credentials.
func (s *Session) Authenticated() bool {
	return s != nil && s.Creds != nil
}

// Store is an in-memory session registry with a per-user serialization lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	locks    map[int64]*sync.Mutex
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		locks:    make(map[int64]*sync.Mutex),
	}
}

// Acquire locks the per-user mutex and returns the unlock function.
// Every update for a user is processed under this lock so dialog steps
// and purchases cannot interleave.
func (s *Store) Acquire(userID int64) func() {
	s.mu.Lock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Get returns the session for a user, creating an idle one if absent.
func (s *Store) Get(userID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{Step: StepIdle}
		s.sessions[userID] = sess
	}
	return sess
}

// Peek returns the session without creating one.
func (s *Store) Peek(userID int64) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// InProgress reports whether the user is mid-dialog and free text should
// be treated as a step answer.
func (s *Store) InProgress(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return ok && sess.Step != StepIdle
}

// SetStep moves the user's dialog to the given step.
func (s *Store) SetStep(userID int64, step Step) {
	sess := s.Get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.Step = step
}

// SetPendingUsername records the allow-listed username mid-login.
func (s *Store) SetPendingUsername(userID int64, username string) {
	sess := s.Get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.Username = username
}

// SetCredentials stores validated credentials and ends the login dialog.
func (s *Store) SetCredentials(userID int64, creds Credentials) {
	sess := s.Get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.Creds = &creds
	sess.Step = StepIdle
}

// AppendNumber records a rented number on the session.
func (s *Store) AppendNumber(userID int64, number string) {
	sess := s.Get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.Numbers = append(sess.Numbers, number)
}

// RemoveNumber drops a released number from the session. Unknown numbers
// are ignored.
func (s *Store) RemoveNumber(userID int64, number string) {
	sess := s.Get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := sess.Numbers[:0]
	for _, n := range sess.Numbers {
		if n != number {
			kept = append(kept, n)
		}
	}
	sess.Numbers = kept
}

// SetLastMessage remembers the confirmation message ID for later retraction.
func (s *Store) SetLastMessage(userID int64, messageID int) {
	sess := s.Get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.LastMessageID = messageID
}

// TakeLastMessage returns and clears the remembered message ID.
func (s *Store) TakeLastMessage(userID int64) int {
	sess := s.Get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := sess.LastMessageID
	sess.LastMessageID = 0
	return id
}

// Reset clears the session contents but keeps the entry, so the
// per-user lock and any in-flight handler keep a stable pointer.
func (s *Store) Reset(userID int64) {
	sess := s.Get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	*sess = Session{Step: StepIdle}
}
