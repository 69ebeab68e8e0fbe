package session

import (
	"errors"
	"maps"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/RafaelSullivam/editor-sub001/internal/ir"
)

// ErrNotJoined is returned when a cursor is set for a user who has not
// joined the session.
var ErrNotJoined = errors.New("user has not joined")

// Cursor is where a user is working: the selected element and an insertion
// position. Both are optional.
type Cursor struct {
	ElementID string
	Position  ir.Pos
	UpdatedAt int64
}

// Join adds userID to the session's presence. Joining twice keeps the
// existing cursor.
func (s *Session) Join(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.presence[userID]; ok {
		return
	}
	s.presence[userID] = Cursor{UpdatedAt: s.now.Now()}
	s.logger.Debug("user joined", "user", userID)
}

// Leave removes userID's presence. Their undo stack survives a rejoin.
func (s *Session) Leave(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.presence, userID)
	s.logger.Debug("user left", "user", userID)
}

// SetCursor moves userID's cursor.
func (s *Session) SetCursor(userID, elementID string, pos ir.Pos) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.presence[userID]; !ok {
		return ErrNotJoined
	}
	s.presence[userID] = Cursor{ElementID: elementID, Position: pos, UpdatedAt: s.now.Now()}
	return nil
}

// Presence returns a copy of every joined user's cursor.
func (s *Session) Presence() map[string]Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.presence)
}

// ActiveUsers returns the joined user IDs.
func (s *Session) ActiveUsers() mapset.Set[string] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mapset.NewSetFromMapKeys(s.presence)
}

// dropStaleCursors clears selections of elements the last flush removed.
func (s *Session) dropStaleCursors() {
	ids := s.doc.IDSet()
	for user, c := range s.presence {
		if c.ElementID != "" && !ids.Contains(c.ElementID) {
			c.ElementID = ""
			s.presence[user] = c
		}
	}
}
