// Package session holds the single unwrapped DEK in memory between vault
// operations. The key lives behind one mutex together with its inactivity
// timer, so a timer-driven lock can never race a concurrent GetKey that is
// about to slide the expiry.
package session

import (
	"sync"
	"time"

	"github.com/ssh-box/sshbox/internal/common"
)

// DefaultWindow is the inactivity window after which the cached key is
// discarded. Deliberately short: the cached key is the single point of
// compromise if process memory is inspected.
const DefaultWindow = 30 * time.Second

// Cache is the lock state machine. It is either Locked (no key) or
// Unlocked (key, lockAt). Every use of the key through GetKey slides
// lockAt forward by the configured window.
//
// A Cache must be created with NewCache. One instance is owned by whatever
// embeds the vault (a server process, a CLI invocation); it is not a
// process-wide global.
type Cache struct {
	mu      sync.Mutex
	key     []byte
	lockAt  time.Time
	timer   *time.Timer
	window  time.Duration
	subs    map[int]func()
	nextSub int
}

// NewCache returns a locked cache with the given inactivity window.
// A non-positive window selects DefaultWindow.
func NewCache(window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Cache{
		window: window,
		subs:   make(map[int]func()),
	}
}

// SetKey transitions to Unlocked with a copy of key and (re)starts the
// inactivity timer. The caller keeps ownership of its own slice.
func (c *Cache) SetKey(key []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	common.WipeByteArray(c.key)
	c.key = make([]byte, len(key))
	copy(c.key, key)

	c.resetTimerLocked()
}

// GetKey returns a copy of the cached key and slides the expiry, or nil if
// the cache is locked or the window has already elapsed. The caller must
// wipe the returned copy once the encrypt/decrypt call is done.
func (c *Cache) GetKey() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key == nil {
		return nil
	}
	if !time.Now().Before(c.lockAt) {
		// window elapsed but the timer has not fired yet
		c.lockLocked()
		return nil
	}

	c.resetTimerLocked()

	out := make([]byte, len(c.key))
	copy(out, c.key)
	return out
}

// Lock discards the key material immediately. Idempotent; returns whether
// a transition from Unlocked actually happened.
func (c *Cache) Lock() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lockLocked()
}

// Status reports whether the cache is currently unlocked and, if so, the
// absolute time at which it will lock. It never slides the timer.
func (c *Cache) Status() (unlocked bool, lockAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key == nil || !time.Now().Before(c.lockAt) {
		return false, c.lockAt
	}
	return true, c.lockAt
}

// OnLock registers fn to run once per Unlocked-to-Locked transition,
// whether explicit or timer-driven. Callbacks run on their own goroutine.
// The returned function unsubscribes.
func (c *Cache) OnLock(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Close locks the cache and stops the timer. Meant for process shutdown.
func (c *Cache) Close() {
	c.Lock()
}

// resetTimerLocked restarts the inactivity countdown. Caller holds mu.
func (c *Cache) resetTimerLocked() {
	c.lockAt = time.Now().Add(c.window)
	if c.timer == nil {
		c.timer = time.AfterFunc(c.window, c.timerFired)
		return
	}
	c.timer.Stop()
	c.timer.Reset(c.window)
}

func (c *Cache) timerFired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// a GetKey may have slid the expiry after this fire was scheduled
	if c.key == nil || time.Now().Before(c.lockAt) {
		return
	}
	c.lockLocked()
}

// lockLocked performs the transition to Locked. Caller holds mu.
// Locked-to-Locked is a no-op and notifies nobody.
func (c *Cache) lockLocked() bool {
	if c.key == nil {
		return false
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	if now := time.Now(); c.lockAt.After(now) {
		c.lockAt = now
	}

	common.WipeByteArray(c.key)
	c.key = nil

	for _, fn := range c.subs {
		go fn()
	}
	return true
}
