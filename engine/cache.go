package engine

import (
	"sync"
	"time"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/model"
)

// conversationCache holds one live conversation per session for the
// lifetime of the process. Entries are read and written only while the
// session lock is held; the mutex guards the map itself.
type conversationCache struct {
	mu    sync.Mutex
	convs map[int64]model.Conversation
}

func newConversationCache() *conversationCache {
	return &conversationCache{convs: make(map[int64]model.Conversation)}
}

func (c *conversationCache) get(sessionID int64) (model.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.convs[sessionID]

	return conv, ok
}

func (c *conversationCache) put(sessionID int64, conv model.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.convs[sessionID] = conv
}

func (c *conversationCache) drop(sessionID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.convs, sessionID)
}

func (c *conversationCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.convs)
}

// PendingBatch is the set of calls issued by the model that await approval.
type PendingBatch struct {
	SessionID int64
	Calls     []core.FunctionCall
	IssuedAt  time.Time
}

// pendingBatches holds at most one batch per session.
type pendingBatches struct {
	mu      sync.Mutex
	batches map[int64]*PendingBatch
}

func newPendingBatches() *pendingBatches {
	return &pendingBatches{batches: make(map[int64]*PendingBatch)}
}

// record stores b, replacing any earlier batch of the same session.
func (p *pendingBatches) record(b *PendingBatch) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.batches[b.SessionID] = b
}

func (p *pendingBatches) peek(sessionID int64) (*PendingBatch, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.batches[sessionID]

	return b, ok
}

// take removes and returns the batch of a session.
func (p *pendingBatches) take(sessionID int64) (*PendingBatch, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.batches[sessionID]
	delete(p.batches, sessionID)

	return b, ok
}

func (p *pendingBatches) clear(sessionID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.batches, sessionID)
}

func (p *pendingBatches) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.batches)
}
