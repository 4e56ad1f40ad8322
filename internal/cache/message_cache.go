package cache

import (
	"sync"

	"github.com/customeros/mailsync/internal/enum"
)

// MessageCache is the in-memory flag/visibility overlay shown to readers
// ahead of the durable local-store write. An overlay entry is cleared
// exactly once the authoritative write has been applied; until then reads
// must prefer the overlay value.
type MessageCache struct {
	mu       sync.RWMutex
	accounts map[string]*accountCache
}

type accountCache struct {
	flags  map[string]map[enum.Flag]bool
	hidden map[string]bool
}

func NewMessageCache() *MessageCache {
	return &MessageCache{
		accounts: make(map[string]*accountCache),
	}
}

func (c *MessageCache) account(accountID string) *accountCache {
	ac, ok := c.accounts[accountID]
	if !ok {
		ac = &accountCache{
			flags:  make(map[string]map[enum.Flag]bool),
			hidden: make(map[string]bool),
		}
		c.accounts[accountID] = ac
	}
	return ac
}

// SetFlagForMessages records an overlay flag value for each message.
func (c *MessageCache) SetFlagForMessages(accountID string, messageIDs []string, flag enum.Flag, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ac := c.account(accountID)
	for _, id := range messageIDs {
		overrides, ok := ac.flags[id]
		if !ok {
			overrides = make(map[enum.Flag]bool)
			ac.flags[id] = overrides
		}
		overrides[flag] = value
	}
}

// RemoveFlagForMessages clears the overlay entry after the durable write.
func (c *MessageCache) RemoveFlagForMessages(accountID string, messageIDs []string, flag enum.Flag) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ac, ok := c.accounts[accountID]
	if !ok {
		return
	}
	for _, id := range messageIDs {
		if overrides, ok := ac.flags[id]; ok {
			delete(overrides, flag)
			if len(overrides) == 0 {
				delete(ac.flags, id)
			}
		}
	}
}

// GetFlagForMessage returns the overlay value and whether one is present.
func (c *MessageCache) GetFlagForMessage(accountID, messageID string, flag enum.Flag) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ac, ok := c.accounts[accountID]
	if !ok {
		return false, false
	}
	overrides, ok := ac.flags[messageID]
	if !ok {
		return false, false
	}
	value, ok := overrides[flag]
	return value, ok
}

// HideMessages suppresses messages from readers while a delete or move is
// in flight.
func (c *MessageCache) HideMessages(accountID string, messageIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ac := c.account(accountID)
	for _, id := range messageIDs {
		ac.hidden[id] = true
	}
}

func (c *MessageCache) UnhideMessages(accountID string, messageIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ac, ok := c.accounts[accountID]
	if !ok {
		return
	}
	for _, id := range messageIDs {
		delete(ac.hidden, id)
	}
}

func (c *MessageCache) IsMessageHidden(accountID, messageID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ac, ok := c.accounts[accountID]
	if !ok {
		return false
	}
	return ac.hidden[messageID]
}

// RemoveAccount drops all overlay state for an account.
func (c *MessageCache) RemoveAccount(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.accounts, accountID)
}
