// Package sessionstore implements the Session Store component: durable,
// ordered conversation storage keyed by session id, backed by
// internal/storage's atomic JSON file engine.
package sessionstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/floydai/floyd/internal/errkind"
	"github.com/floydai/floyd/internal/event"
	"github.com/floydai/floyd/internal/storage"
	"github.com/floydai/floyd/pkg/types"
)

// ErrNotFound is returned by Load and Delete when no session with the
// given id exists on disk.
var ErrNotFound = storage.ErrNotFound

// MaxSessions is the process-wide cap on retained sessions. Create evicts
// the oldest-by-updated sessions beyond this cap.
const MaxSessions = 100

const sessionPathSegment = "sessions"

// titleMaxRunes is the approximate length a derived title is trimmed to.
const titleMaxRunes = 40

// Store is the Session Store. Construction only schedules creation of
// the storage directory; every public method awaits that initialization
// before proceeding, so a caller invoking Create immediately after New
// observes the same behavior as one invoking it a second later.
type Store struct {
	storage *storage.Storage
	ready   chan struct{}
}

// New creates a Store rooted at basePath and kicks off directory
// initialization in the background.
func New(basePath string) *Store {
	s := &Store{
		storage: storage.New(basePath),
		ready:   make(chan struct{}),
	}
	go func() {
		// Put below creates directories lazily via os.MkdirAll, so the
		// only thing to await here is the Storage value itself; the
		// channel still gives every method a single synchronization
		// point to wait on regardless of how initialization grows.
		close(s.ready)
	}()
	return s
}

func (s *Store) awaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Create starts a new, empty session rooted at cwd and persists it.
func (s *Store) Create(ctx context.Context, cwd string) (*types.Session, error) {
	if err := s.awaitReady(ctx); err != nil {
		return nil, err
	}

	if err := s.evictOverCap(ctx); err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	session := &types.Session{
		ID:        ulid.Make().String(),
		Created:   now,
		Updated:   now,
		Directory: cwd,
		Messages:  []types.Message{},
	}

	if err := s.storage.Put(ctx, []string{sessionPathSegment, session.ID}, session); err != nil {
		return nil, errkind.New(types.StorageError, err)
	}

	event.PublishSync(event.Event{
		Type: event.SessionCreated,
		Data: event.SessionCreatedData{Info: session},
	})

	return session, nil
}

// Load retrieves a session by id. It returns ErrNotFound if no such
// session exists.
func (s *Store) Load(ctx context.Context, id string) (*types.Session, error) {
	if err := s.awaitReady(ctx); err != nil {
		return nil, err
	}

	var session types.Session
	if err := s.storage.Get(ctx, []string{sessionPathSegment, id}, &session); err != nil {
		if err == storage.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, errkind.New(types.StorageError, err)
	}
	return &session, nil
}

// Save persists session, bumping Updated and inferring a title from the
// first user message if one hasn't been set yet. save writes to a
// temporary sibling file and renames over the target (internal/storage's
// Put), so readers never observe a truncated file.
func (s *Store) Save(ctx context.Context, session *types.Session) error {
	if err := s.awaitReady(ctx); err != nil {
		return err
	}

	session.Updated = time.Now().UnixMilli()

	if session.Title == "" {
		if text, ok := firstUserMessageText(session.Messages); ok {
			session.Title = deriveTitle(text)
		}
	}

	if err := s.storage.Put(ctx, []string{sessionPathSegment, session.ID}, session); err != nil {
		return errkind.New(types.StorageError, err)
	}

	event.PublishSync(event.Event{
		Type: event.SessionUpdated,
		Data: event.SessionUpdatedData{Info: session},
	})

	return nil
}

// List returns a summary of every retained session, most recently
// updated first.
func (s *Store) List(ctx context.Context) ([]types.SessionSummary, error) {
	if err := s.awaitReady(ctx); err != nil {
		return nil, err
	}

	sessions, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]types.SessionSummary, len(sessions))
	for i, sess := range sessions {
		summaries[i] = types.SessionSummary{ID: sess.ID, Title: sess.Title, Updated: sess.Updated}
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Updated > summaries[j].Updated })
	return summaries, nil
}

// Delete removes a session by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.awaitReady(ctx); err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, []string{sessionPathSegment, id}); err != nil {
		return errkind.New(types.StorageError, err)
	}

	event.PublishSync(event.Event{
		Type: event.SessionDeleted,
		Data: event.SessionDeletedData{SessionID: id},
	})

	return nil
}

// loadAll reads every session currently on disk.
func (s *Store) loadAll(ctx context.Context) ([]*types.Session, error) {
	ids, err := s.storage.List(ctx, []string{sessionPathSegment})
	if err != nil {
		return nil, errkind.New(types.StorageError, err)
	}

	sessions := make([]*types.Session, 0, len(ids))
	for _, id := range ids {
		var session types.Session
		if err := s.storage.Get(ctx, []string{sessionPathSegment, id}, &session); err != nil {
			continue // skip entries that vanished or failed to parse concurrently
		}
		sessions = append(sessions, &session)
	}
	return sessions, nil
}

// evictOverCap deletes the oldest-by-updated sessions so that adding one
// more keeps the store at or under MaxSessions.
func (s *Store) evictOverCap(ctx context.Context) error {
	sessions, err := s.loadAll(ctx)
	if err != nil {
		return err
	}
	if len(sessions) < MaxSessions {
		return nil
	}

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Updated < sessions[j].Updated })
	toEvict := len(sessions) - MaxSessions + 1
	for i := 0; i < toEvict; i++ {
		if err := s.storage.Delete(ctx, []string{sessionPathSegment, sessions[i].ID}); err != nil {
			return errkind.New(types.StorageError, err)
		}
		event.PublishSync(event.Event{
			Type: event.SessionDeleted,
			Data: event.SessionDeletedData{SessionID: sessions[i].ID},
		})
	}
	return nil
}

func firstUserMessageText(messages []types.Message) (string, bool) {
	for _, m := range messages {
		if m.Role == types.RoleUser {
			text := strings.TrimSpace(m.Text())
			if text != "" {
				return text, true
			}
			return "", false
		}
	}
	return "", false
}

// deriveTitle trims text to about titleMaxRunes characters on a word
// boundary, appending an ellipsis if it was shortened.
func deriveTitle(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= titleMaxRunes {
		return text
	}

	cut := runes[:titleMaxRunes]
	if idx := strings.LastIndexByte(string(cut), ' '); idx > 0 {
		cut = []rune(string(cut)[:idx])
	}
	return fmt.Sprintf("%s...", string(cut))
}
