// internal/livesession/store.go
package livesession

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	xerrors "maproom-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Kind discriminates what state a session carries
type Kind string

const (
	KindPoll         Kind = "poll"
	KindTreasureHunt Kind = "treasure_hunt"
	KindGroup        Kind = "group"
)

// Participant is a user currently joined to a session
type Participant struct {
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Session is the live state of one running session. All access goes through
// the Store; callers only ever see copies.
type Session struct {
	Code           string                 `json:"code"`
	Kind           Kind                   `json:"kind"`
	HostID         int64                  `json:"host_id"`
	OrganizationID int64                  `json:"organization_id"`
	MapID          int64                  `json:"map_id"`
	Title          string                 `json:"title"`
	Options        []string               `json:"options,omitempty"` // poll choices
	Votes          map[int64]int          `json:"votes,omitempty"`   // user -> choice index
	Payload        map[string]interface{} `json:"payload,omitempty"` // kind-specific extras (hunt waypoints, group cursor state)
	Participants   map[int64]Participant  `json:"participants"`
	CreatedAt      time.Time              `json:"created_at"`
	ExpiresAt      time.Time              `json:"expires_at"`
	Closed         bool                   `json:"closed"`
}

// VoteCounts tallies poll votes per option index
func (s *Session) VoteCounts() []int {
	counts := make([]int, len(s.Options))
	for _, choice := range s.Votes {
		if choice >= 0 && choice < len(counts) {
			counts[choice]++
		}
	}
	return counts
}

// Store holds every running session keyed by its join code. Each entry
// carries its own deadline; a janitor goroutine evicts expired entries so
// abandoned sessions cannot accumulate.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789" // no 0/O, 1/I/L
	janitorTick  = time.Minute
)

func NewStore(ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// Run sweeps expired sessions until ctx is cancelled
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(janitorTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := s.evictExpired(); evicted > 0 {
				s.logger.Info("evicted expired live sessions", zap.Int("count", evicted))
			}
		}
	}
}

func (s *Store) evictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for code, sess := range s.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(s.sessions, code)
			evicted++
		}
	}
	return evicted
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf), nil
}

// Create registers a new session and returns its join code
func (s *Store) Create(hostID, orgID, mapID int64, kind Kind, title string, options []string, payload map[string]interface{}) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var code string
	for {
		c, err := generateCode()
		if err != nil {
			return nil, err
		}
		if _, taken := s.sessions[c]; !taken {
			code = c
			break
		}
	}

	now := s.now()
	sess := &Session{
		Code:           code,
		Kind:           kind,
		HostID:         hostID,
		OrganizationID: orgID,
		MapID:          mapID,
		Title:          title,
		Options:        options,
		Votes:          make(map[int64]int),
		Payload:        payload,
		Participants:   make(map[int64]Participant),
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}
	sess.Participants[hostID] = Participant{UserID: hostID, JoinedAt: now}
	s.sessions[code] = sess

	return snapshot(sess), nil
}

// get returns the live entry if it exists and has not expired. Caller holds
// at least a read lock.
func (s *Store) get(code string) (*Session, error) {
	sess, ok := s.sessions[code]
	if !ok || !sess.ExpiresAt.After(s.now()) {
		return nil, xerrors.ErrNotFound
	}
	return sess, nil
}

// Join adds a participant and extends the session deadline
func (s *Store) Join(code string, userID int64, displayName string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(code)
	if err != nil {
		return nil, err
	}
	if sess.Closed {
		return nil, xerrors.ErrConflict
	}

	now := s.now()
	sess.Participants[userID] = Participant{UserID: userID, DisplayName: displayName, JoinedAt: now}
	sess.ExpiresAt = now.Add(s.ttl)

	return snapshot(sess), nil
}

// Leave removes a participant
func (s *Store) Leave(code string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(code)
	if err != nil {
		return err
	}

	delete(sess.Participants, userID)
	return nil
}

// Vote records a poll vote; a repeat vote by the same user overwrites
func (s *Store) Vote(code string, userID int64, choice int) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(code)
	if err != nil {
		return nil, err
	}
	if sess.Closed {
		return nil, xerrors.ErrConflict
	}
	if sess.Kind != KindPoll {
		return nil, xerrors.ErrInvalidInput
	}
	if _, joined := sess.Participants[userID]; !joined {
		return nil, xerrors.ErrForbidden
	}
	if choice < 0 || choice >= len(sess.Options) {
		return nil, xerrors.ErrInvalidInput
	}

	sess.Votes[userID] = choice
	sess.ExpiresAt = s.now().Add(s.ttl)

	return snapshot(sess), nil
}

// UpdatePayload replaces the kind-specific payload (host only)
func (s *Store) UpdatePayload(code string, userID int64, payload map[string]interface{}) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(code)
	if err != nil {
		return nil, err
	}
	if sess.Closed {
		return nil, xerrors.ErrConflict
	}
	if sess.HostID != userID {
		return nil, xerrors.ErrForbidden
	}

	sess.Payload = payload
	sess.ExpiresAt = s.now().Add(s.ttl)

	return snapshot(sess), nil
}

// Snapshot returns a copy of the current session state
func (s *Store) Snapshot(code string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.get(code)
	if err != nil {
		return nil, err
	}
	return snapshot(sess), nil
}

// Close marks the session closed and shortens its deadline so the janitor
// reclaims it soon. Only the host may close.
func (s *Store) Close(code string, userID int64) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(code)
	if err != nil {
		return nil, err
	}
	if sess.HostID != userID {
		return nil, xerrors.ErrForbidden
	}

	sess.Closed = true
	sess.ExpiresAt = s.now().Add(janitorTick)

	return snapshot(sess), nil
}

// ParticipantIDs returns the user IDs currently joined, for broadcast fan-out
func (s *Store) ParticipantIDs(code string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.get(code)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(sess.Participants))
	for id := range sess.Participants {
		ids = append(ids, id)
	}
	return ids, nil
}

// Count returns the number of live (unexpired) sessions
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	count := 0
	for _, sess := range s.sessions {
		if sess.ExpiresAt.After(now) {
			count++
		}
	}
	return count
}

func snapshot(sess *Session) *Session {
	cp := *sess

	cp.Participants = make(map[int64]Participant, len(sess.Participants))
	for id, p := range sess.Participants {
		cp.Participants[id] = p
	}

	if sess.Votes != nil {
		cp.Votes = make(map[int64]int, len(sess.Votes))
		for id, v := range sess.Votes {
			cp.Votes[id] = v
		}
	}

	if sess.Options != nil {
		cp.Options = append([]string(nil), sess.Options...)
	}

	if sess.Payload != nil {
		cp.Payload = make(map[string]interface{}, len(sess.Payload))
		for k, v := range sess.Payload {
			cp.Payload[k] = v
		}
	}

	return &cp
}
