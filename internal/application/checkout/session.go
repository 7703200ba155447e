package checkout

import (
	"sync"
	"time"
)

// State is the dialog position of one buyer. Every buyer message is routed by
// the state, never by message content alone.
type State string

const (
	StateIdle          State = "idle"
	StateAskPhone      State = "ask_phone"
	StateAskName       State = "ask_name"
	StateAskAddress    State = "ask_address"
	StateAskEmail      State = "ask_email"
	StateConfirm       State = "confirm"
	StateWaitlistPhone State = "waitlist_phone"
)

// Session accumulates one buyer's answers across the dialog. Value semantics:
// callers get a copy, mutate it and put it back.
type Session struct {
	ChatID    int64
	State     State
	ProductID string
	Phone     string
	FullName  string
	Address   string
	Email     string
	UpdatedAt time.Time
}

// Sessions is the in-process dialog state, keyed by chat id.
type Sessions struct {
	mu     sync.RWMutex
	byChat map[int64]Session
}

func NewSessions() *Sessions {
	return &Sessions{byChat: make(map[int64]Session)}
}

func (s *Sessions) Get(chatID int64) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byChat[chatID]
	return sess, ok
}

func (s *Sessions) Put(sess Session) {
	sess.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byChat[sess.ChatID] = sess
}

func (s *Sessions) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byChat, chatID)
}
