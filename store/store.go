// Package store defines the durable record store used by the engine (sessions
// and their append-only message logs) and the domain catalog exposed to the
// model through local tools (repositories, assets, events, labels).
//
// Implementations live in this package (in-memory) and in the sqlite and
// postgres subpackages. All implementations guarantee read-your-writes
// ordering within a process: ListMessages returns messages in append order.
package store

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/hupe1980/toolgate/core"
)

// ErrNotFound is returned when a session or catalog entity does not exist.
var ErrNotFound = errors.New("not found")

// Session is a single conversation with its own message log.
type Session struct {
	ID        int64     `json:"id"`
	RepoID    *int64    `json:"repoId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionFilter narrows ListSessions. The zero value lists every session.
type SessionFilter struct {
	RepoID     *int64 // only sessions owned by this repository
	GlobalOnly bool   // only sessions without a repository
}

// Store persists sessions and messages.
type Store interface {
	CreateSession(ctx context.Context, repoID *int64, title string) (*Session, error)
	GetSession(ctx context.Context, id int64) (*Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	RenameSession(ctx context.Context, id int64, title string) error
	// DeleteSession removes the session and all of its messages.
	DeleteSession(ctx context.Context, id int64) error

	// AppendMessage appends an immutable message. Parts must be non-empty.
	AppendMessage(ctx context.Context, sessionID int64, role core.Role, parts []core.Part) (*core.Message, error)
	// ListMessages returns the session log in append order.
	ListMessages(ctx context.Context, sessionID int64) ([]core.Message, error)
	// SessionScope returns the owning repository of the session, if any.
	SessionScope(ctx context.Context, sessionID int64) (*int64, error)

	Close() error
}

// Repo is a project that scopes sessions, events and assets.
type Repo struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Label tags events. Names are unique.
type Label struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AssetKind classifies an asset.
type AssetKind string

const (
	AssetReference AssetKind = "reference"
	AssetWork      AssetKind = "work"
)

// Valid reports whether k is a known kind.
func (k AssetKind) Valid() bool { return k == AssetReference || k == AssetWork }

// Asset is a stored document. Content holds text for textual MIME types and
// base64 for everything else.
type Asset struct {
	ID        int64     `json:"id"`
	RepoID    *int64    `json:"repoId"`
	Kind      AssetKind `json:"kind"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mimeType"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsText reports whether the asset content is stored as plain text.
func (a Asset) IsText() bool { return IsTextMIME(a.MimeType) }

// IsTextMIME reports whether content of this type is stored verbatim.
func IsTextMIME(mimeType string) bool {
	return len(mimeType) >= 5 && mimeType[:5] == "text/" || mimeType == "application/json"
}

// EncodeContent prepares raw bytes for Asset.Content according to the MIME type.
func EncodeContent(mimeType string, data []byte) string {
	if IsTextMIME(mimeType) {
		return string(data)
	}

	return base64.StdEncoding.EncodeToString(data)
}

// NewAsset is the input for CreateAsset.
type NewAsset struct {
	RepoID   *int64
	Kind     AssetKind
	Name     string
	MimeType string
	Content  string
}

// AssetFilter narrows ListAssets. The zero value lists every asset.
type AssetFilter struct {
	RepoID     *int64
	GlobalOnly bool
}

// AssetSummary is the content-free view of an asset.
type AssetSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

// Direction says whether an event was received or sent.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool { return d == DirectionIn || d == DirectionOut }

// Event is an entry on a repository timeline.
type Event struct {
	ID        int64     `json:"id"`
	RepoID    int64     `json:"repoId"`
	Direction Direction `json:"direction"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"createdAt"`
	LabelIDs  []int64   `json:"labelIds"`
	AssetIDs  []int64   `json:"assetIds"`
	OutLinks  []int64   `json:"outLinks"` // events this one links to
	InLinks   []int64   `json:"inLinks"`  // events linking to this one
}

// EventDetail is an event with resolved labels and assets.
type EventDetail struct {
	Event
	Labels []Label        `json:"labels"`
	Assets []AssetSummary `json:"assets"`
}

// NewEvent is the input for AppendEvent. Unknown label names are created.
type NewEvent struct {
	RepoID     int64
	Direction  Direction
	Summary    string
	LabelNames []string
	AssetIDs   []int64
}

// Catalog is the domain data reachable by local tools.
type Catalog interface {
	CreateRepo(ctx context.Context, name string) (*Repo, error)
	GetRepo(ctx context.Context, id int64) (*Repo, error)
	ListRepos(ctx context.Context) ([]Repo, error)

	EnsureLabel(ctx context.Context, name string) (*Label, error)
	ListLabels(ctx context.Context) ([]Label, error)

	CreateAsset(ctx context.Context, in NewAsset) (*Asset, error)
	GetAsset(ctx context.Context, id int64) (*Asset, error)
	// ListAssets returns assets without their content.
	ListAssets(ctx context.Context, filter AssetFilter) ([]Asset, error)

	AppendEvent(ctx context.Context, in NewEvent) (*Event, error)
	GetEvent(ctx context.Context, id int64) (*EventDetail, error)
	ListEvents(ctx context.Context, repoID int64) ([]Event, error)
	LinkEvents(ctx context.Context, outEventID, inEventID int64) error
}

// ValidateMessage checks the invariants shared by every AppendMessage.
func ValidateMessage(role core.Role, parts []core.Part) error {
	if !role.Valid() {
		return &core.InvalidArgumentsError{Reason: "unknown role " + string(role)}
	}

	if len(parts) == 0 {
		return &core.InvalidArgumentsError{Reason: "message has no parts"}
	}

	return nil
}

// ValidateNewEvent checks AppendEvent input.
func ValidateNewEvent(in NewEvent) error {
	if !in.Direction.Valid() {
		return &core.InvalidArgumentsError{Tool: "event_append", Reason: "direction must be 'in' or 'out'"}
	}

	if in.Summary == "" {
		return &core.InvalidArgumentsError{Tool: "event_append", Reason: "summary is required"}
	}

	return nil
}

// ValidateNewAsset checks CreateAsset input.
func ValidateNewAsset(in NewAsset) error {
	if !in.Kind.Valid() {
		return &core.InvalidArgumentsError{Reason: "kind must be 'reference' or 'work'"}
	}

	if in.Name == "" || in.MimeType == "" {
		return &core.InvalidArgumentsError{Reason: "name and mimeType are required"}
	}

	return nil
}
