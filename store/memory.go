package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/toolgate/core"
)

// MemoryStore is a volatile Store and Catalog keeping everything in process
// local maps. It is safe for concurrent access and best suited for tests or
// ephemeral demo servers. Returned values are copies; callers cannot mutate
// internal state through them.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64

	sessions map[int64]*Session
	messages map[int64][]core.Message

	repos       map[int64]*Repo
	labels      map[int64]*Label
	labelByName map[string]int64
	assets      map[int64]*Asset
	events      map[int64]*memEvent
}

type memEvent struct {
	Event
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[int64]*Session),
		messages:    make(map[int64][]core.Message),
		repos:       make(map[int64]*Repo),
		labels:      make(map[int64]*Label),
		labelByName: make(map[string]int64),
		assets:      make(map[int64]*Asset),
		events:      make(map[int64]*memEvent),
	}
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Catalog = (*MemoryStore)(nil)
)

// allocIDLocked returns the next identifier; caller must hold the write lock.
func (s *MemoryStore) allocIDLocked() int64 {
	s.nextID++
	return s.nextID
}

func now() time.Time { return time.Now().UTC() }

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}

	v := *id

	return &v
}

// ----- sessions -----

// CreateSession implements Store.
func (s *MemoryStore) CreateSession(_ context.Context, repoID *int64, title string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if repoID != nil {
		if _, ok := s.repos[*repoID]; !ok {
			return nil, ErrNotFound
		}
	}

	sess := &Session{ID: s.allocIDLocked(), RepoID: copyID(repoID), Title: title, CreatedAt: now()}
	s.sessions[sess.ID] = sess

	out := *sess

	return &out, nil
}

// GetSession implements Store.
func (s *MemoryStore) GetSession(_ context.Context, id int64) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}

	out := *sess
	out.RepoID = copyID(sess.RepoID)

	return &out, nil
}

// ListSessions implements Store. Newest sessions come first.
func (s *MemoryStore) ListSessions(_ context.Context, filter SessionFilter) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.sessions))

	for _, sess := range s.sessions {
		if filter.GlobalOnly && sess.RepoID != nil {
			continue
		}

		if filter.RepoID != nil && (sess.RepoID == nil || *sess.RepoID != *filter.RepoID) {
			continue
		}

		cp := *sess
		cp.RepoID = copyID(sess.RepoID)
		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	return out, nil
}

// RenameSession implements Store.
func (s *MemoryStore) RenameSession(_ context.Context, id int64, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}

	sess.Title = title

	return nil
}

// DeleteSession implements Store.
func (s *MemoryStore) DeleteSession(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}

	delete(s.sessions, id)
	delete(s.messages, id)

	return nil
}

// AppendMessage implements Store.
func (s *MemoryStore) AppendMessage(_ context.Context, sessionID int64, role core.Role, parts []core.Part) (*core.Message, error) {
	if err := ValidateMessage(role, parts); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}

	msg := core.Message{
		ID:        s.allocIDLocked(),
		SessionID: sessionID,
		Role:      role,
		Parts:     append([]core.Part(nil), parts...),
		CreatedAt: now(),
	}
	s.messages[sessionID] = append(s.messages[sessionID], msg)

	return &msg, nil
}

// ListMessages implements Store.
func (s *MemoryStore) ListMessages(_ context.Context, sessionID int64) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}

	src := s.messages[sessionID]
	out := make([]core.Message, len(src))

	for i, m := range src {
		m.Parts = append([]core.Part(nil), m.Parts...)
		out[i] = m
	}

	return out, nil
}

// SessionScope implements Store.
func (s *MemoryStore) SessionScope(ctx context.Context, sessionID int64) (*int64, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return sess.RepoID, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// ----- catalog -----

// CreateRepo implements Catalog.
func (s *MemoryStore) CreateRepo(_ context.Context, name string) (*Repo, error) {
	if name == "" {
		return nil, &core.InvalidArgumentsError{Reason: "name is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := &Repo{ID: s.allocIDLocked(), Name: name, CreatedAt: now()}
	s.repos[r.ID] = r

	out := *r

	return &out, nil
}

// GetRepo implements Catalog.
func (s *MemoryStore) GetRepo(_ context.Context, id int64) (*Repo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.repos[id]
	if !ok {
		return nil, ErrNotFound
	}

	out := *r

	return &out, nil
}

// ListRepos implements Catalog. Newest repositories come first.
func (s *MemoryStore) ListRepos(_ context.Context) ([]Repo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Repo, 0, len(s.repos))
	for _, r := range s.repos {
		out = append(out, *r)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	return out, nil
}

// EnsureLabel implements Catalog.
func (s *MemoryStore) EnsureLabel(_ context.Context, name string) (*Label, error) {
	if name == "" {
		return nil, &core.InvalidArgumentsError{Reason: "label name is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.ensureLabelLocked(name)

	return &l, nil
}

func (s *MemoryStore) ensureLabelLocked(name string) Label {
	if id, ok := s.labelByName[name]; ok {
		return *s.labels[id]
	}

	l := &Label{ID: s.allocIDLocked(), Name: name}
	s.labels[l.ID] = l
	s.labelByName[name] = l.ID

	return *l
}

// ListLabels implements Catalog, sorted by name.
func (s *MemoryStore) ListLabels(_ context.Context) ([]Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Label, 0, len(s.labels))
	for _, l := range s.labels {
		out = append(out, *l)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

// CreateAsset implements Catalog.
func (s *MemoryStore) CreateAsset(_ context.Context, in NewAsset) (*Asset, error) {
	if err := ValidateNewAsset(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if in.RepoID != nil {
		if _, ok := s.repos[*in.RepoID]; !ok {
			return nil, ErrNotFound
		}
	}

	ts := now()
	a := &Asset{
		ID:        s.allocIDLocked(),
		RepoID:    copyID(in.RepoID),
		Kind:      in.Kind,
		Name:      in.Name,
		MimeType:  in.MimeType,
		Content:   in.Content,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	s.assets[a.ID] = a

	out := *a

	return &out, nil
}

// GetAsset implements Catalog.
func (s *MemoryStore) GetAsset(_ context.Context, id int64) (*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return nil, ErrNotFound
	}

	out := *a
	out.RepoID = copyID(a.RepoID)

	return &out, nil
}

// ListAssets implements Catalog. Newest assets come first.
func (s *MemoryStore) ListAssets(_ context.Context, filter AssetFilter) ([]Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Asset, 0, len(s.assets))

	for _, a := range s.assets {
		if filter.GlobalOnly && a.RepoID != nil {
			continue
		}

		if filter.RepoID != nil && (a.RepoID == nil || *a.RepoID != *filter.RepoID) {
			continue
		}

		cp := *a
		cp.RepoID = copyID(a.RepoID)
		cp.Content = ""
		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	return out, nil
}

// AppendEvent implements Catalog.
func (s *MemoryStore) AppendEvent(_ context.Context, in NewEvent) (*Event, error) {
	if err := ValidateNewEvent(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.repos[in.RepoID]; !ok {
		return nil, ErrNotFound
	}

	for _, id := range in.AssetIDs {
		if _, ok := s.assets[id]; !ok {
			return nil, ErrNotFound
		}
	}

	ev := &memEvent{Event: Event{
		ID:        s.allocIDLocked(),
		RepoID:    in.RepoID,
		Direction: in.Direction,
		Summary:   in.Summary,
		CreatedAt: now(),
		LabelIDs:  []int64{},
		AssetIDs:  append([]int64{}, in.AssetIDs...),
		OutLinks:  []int64{},
		InLinks:   []int64{},
	}}

	for _, name := range in.LabelNames {
		if name == "" {
			continue
		}

		id := s.ensureLabelLocked(name).ID
		if !containsID(ev.LabelIDs, id) {
			ev.LabelIDs = append(ev.LabelIDs, id)
		}
	}

	s.events[ev.ID] = ev

	out := s.copyEventLocked(ev)

	return &out, nil
}

func (s *MemoryStore) copyEventLocked(ev *memEvent) Event {
	out := ev.Event
	out.LabelIDs = append([]int64{}, ev.LabelIDs...)
	out.AssetIDs = append([]int64{}, ev.AssetIDs...)
	out.OutLinks = append([]int64{}, ev.OutLinks...)
	out.InLinks = append([]int64{}, ev.InLinks...)

	return out
}

// GetEvent implements Catalog.
func (s *MemoryStore) GetEvent(_ context.Context, id int64) (*EventDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}

	detail := &EventDetail{
		Event:  s.copyEventLocked(ev),
		Labels: []Label{},
		Assets: []AssetSummary{},
	}

	for _, lid := range ev.LabelIDs {
		if l, ok := s.labels[lid]; ok {
			detail.Labels = append(detail.Labels, *l)
		}
	}

	for _, aid := range ev.AssetIDs {
		if a, ok := s.assets[aid]; ok {
			detail.Assets = append(detail.Assets, AssetSummary{ID: a.ID, Name: a.Name, MimeType: a.MimeType})
		}
	}

	return detail, nil
}

// ListEvents implements Catalog. Newest events come first.
func (s *MemoryStore) ListEvents(_ context.Context, repoID int64) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Event{}

	for _, ev := range s.events {
		if ev.RepoID == repoID {
			out = append(out, s.copyEventLocked(ev))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	return out, nil
}

// LinkEvents implements Catalog. Linking twice is a no-op.
func (s *MemoryStore) LinkEvents(_ context.Context, outEventID, inEventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.events[outEventID]
	if !ok {
		return ErrNotFound
	}

	to, ok := s.events[inEventID]
	if !ok {
		return ErrNotFound
	}

	if containsID(from.OutLinks, inEventID) {
		return nil
	}

	from.OutLinks = append(from.OutLinks, inEventID)
	to.InLinks = append(to.InLinks, outEventID)

	return nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}

	return false
}
