package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"filepanel/internal/models"
	"filepanel/internal/store"
)

// Per-user index keys look like "user:<userId>:<token>" and map to the
// token, so one user's sessions enumerate with a prefix scan instead of a
// full sweep. Tokens are JWTs (base64url + '.') and never contain ':'.
const userSessionPrefix = "user:"

// SessionService is the session registry: it owns the session records in
// the sessions keyspace and their per-user index. A session's primary key
// and its index key are created and destroyed together, always.
type SessionService struct {
	ks *store.Keyspace
}

func NewSessionService(st *store.Store) *SessionService {
	return &SessionService{ks: st.Keyspace(store.SessionsKeyspace)}
}

// Create writes a session keyed by its token plus the per-user index entry.
func (s *SessionService) Create(userID, token string, lifetime time.Duration) (*models.Session, error) {
	now := time.Now().UTC()
	session := &models.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
	}

	if err := s.putSession(session); err != nil {
		return nil, err
	}
	if err := s.ks.Put(userIndexKey(userID, token), []byte(token)); err != nil {
		return nil, err
	}
	return session, nil
}

// FindByToken returns the session, or nil when absent or undecodable.
func (s *SessionService) FindByToken(token string) (*models.Session, error) {
	raw, err := s.ks.Get(token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, nil
	}
	return &session, nil
}

// IsValid reports whether token names a live session. An expired session
// is deleted on the spot (both keys); this lazy delete is the only expiry
// mechanism on the read path.
func (s *SessionService) IsValid(token string) (bool, error) {
	session, err := s.FindByToken(token)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}
	if session.IsBlacklisted {
		return false, nil
	}
	if session.Expired(time.Now().UTC()) {
		if _, err := s.Delete(token); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Blacklist marks the session permanently invalid. Idempotent; returns
// false when the session is absent.
func (s *SessionService) Blacklist(token string) (bool, error) {
	session, err := s.FindByToken(token)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}

	session.IsBlacklisted = true
	if err := s.putSession(session); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the session record and its per-user index entry in the
// same call. Returns false when the session is absent.
func (s *SessionService) Delete(token string) (bool, error) {
	session, err := s.FindByToken(token)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}

	if err := s.ks.Delete(token); err != nil {
		return false, err
	}
	if err := s.ks.Delete(userIndexKey(session.UserID, token)); err != nil {
		return false, err
	}
	return true, nil
}

// ListForUser resolves every session belonging to userID via the per-user
// index. Dangling index entries resolve to nothing and are skipped.
func (s *SessionService) ListForUser(userID string) ([]*models.Session, error) {
	entries, err := s.ks.Scan(userSessionPrefix + userID + ":")
	if err != nil {
		return nil, err
	}

	sessions := make([]*models.Session, 0, len(entries))
	for _, e := range entries {
		session, err := s.FindByToken(string(e.Value))
		if err != nil {
			return nil, err
		}
		if session != nil {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

// BlacklistAll invalidates every session of one user ("log out everywhere").
func (s *SessionService) BlacklistAll(userID string) error {
	sessions, err := s.ListForUser(userID)
	if err != nil {
		return err
	}
	for _, session := range sessions {
		if _, err := s.Blacklist(session.Token); err != nil {
			return err
		}
	}
	return nil
}

// SweepExpired scans the whole keyspace, skips index entries by key shape,
// and deletes every session past its expiry. Returns how many it removed.
func (s *SessionService) SweepExpired() (int, error) {
	entries, err := s.ks.Scan("")
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	removed := 0
	for _, e := range entries {
		if strings.Contains(e.Key, ":") {
			continue
		}
		var session models.Session
		if err := json.Unmarshal(e.Value, &session); err != nil {
			continue
		}
		if session.Expired(now) {
			ok, err := s.Delete(session.Token)
			if err != nil {
				return removed, err
			}
			if ok {
				removed++
			}
		}
	}
	return removed, nil
}

// RunSweeper deletes expired sessions on a fixed interval until ctx is
// cancelled. Owned by the process supervisor, not by any request.
func (s *SessionService) RunSweeper(ctx context.Context, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.SweepExpired()
			if err != nil {
				log.Error("session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Info("swept expired sessions", "removed", removed)
			}
		}
	}
}

func (s *SessionService) putSession(session *models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.ks.Put(session.Token, raw)
}

func userIndexKey(userID, token string) string {
	return userSessionPrefix + userID + ":" + token
}
