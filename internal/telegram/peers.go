package telegram

import (
	"sync"

	"github.com/gotd/td/tg"
)

// channelIDOffset is subtracted from channel ids to produce the marked
// "-100..." identifiers used by Telegram clients and the Bot API.
const channelIDOffset int64 = 1_000_000_000_000

// MarkedID converts a peer to a single signed identifier: users are positive,
// basic groups are negated and channels/supergroups carry the -100 prefix.
func MarkedID(p tg.PeerClass) int64 {
	switch p := p.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerChannel:
		return -(channelIDOffset + p.ChannelID)
	default:
		return 0
	}
}

// PeerCache remembers input peers (ids with access hashes) for every entity
// that appears in an update, so numeric chat ids can be used for sends.
type PeerCache struct {
	mu    sync.RWMutex
	peers map[int64]tg.InputPeerClass
}

// NewPeerCache creates an empty cache.
func NewPeerCache() *PeerCache {
	return &PeerCache{peers: make(map[int64]tg.InputPeerClass)}
}

// Learn records all users, chats and channels carried by an update.
func (c *PeerCache) Learn(e tg.Entities) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, u := range e.Users {
		c.peers[id] = u.AsInputPeer()
	}
	for id, ch := range e.Chats {
		c.peers[-id] = ch.AsInputPeer()
	}
	for id, ch := range e.Channels {
		c.peers[-(channelIDOffset + id)] = ch.AsInputPeer()
	}
}

// LearnUser records a single user, typically the account itself.
func (c *PeerCache) LearnUser(u *tg.User) {
	if u == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers[u.ID] = u.AsInputPeer()
}

// Lookup returns the input peer for a marked id.
func (c *PeerCache) Lookup(markedID int64) (tg.InputPeerClass, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.peers[markedID]
	return p, ok
}

// Len returns the number of known peers.
func (c *PeerCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.peers)
}
