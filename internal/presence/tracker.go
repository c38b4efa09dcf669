// Package presence tracks which collaborators are active on a board.
//
// The Tracker keeps an in-memory map of users, updated by the event
// reconciler whenever a push event names an actor: user_joined and
// user_left frames, and the actor fields of task changes. A background
// reaper marks users idle after a threshold and evicts users who left
// long ago, so a long-lived session does not grow without bound.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ActivityKind is what a user did to be recorded.
type ActivityKind string

const (
	ActivityJoined  ActivityKind = "joined"
	ActivityLeft    ActivityKind = "left"
	ActivityCreated ActivityKind = "created"
	ActivityUpdated ActivityKind = "updated"
	ActivityDeleted ActivityKind = "deleted"
)

// Entry represents a single user's presence on the board.
type Entry struct {
	UserID       string       `json:"user_id"`
	Name         string       `json:"name,omitempty"`
	LastSeen     time.Time    `json:"last_seen"`
	FirstSeen    time.Time    `json:"first_seen"`
	LastActivity ActivityKind `json:"last_activity"`
	LastTaskID   string       `json:"last_task_id,omitempty"`
	IdleSecs     float64      `json:"idle_secs"`
	EventCount   int64        `json:"event_count"`
	Online       bool         `json:"online"`
	Idle         bool         `json:"idle,omitempty"` // true if the reaper marked the user idle
	LeftAt       time.Time    `json:"left_at,omitempty"`
}

// Activity is the data the tracker needs from a push event.
type Activity struct {
	UserID string
	Name   string
	Kind   ActivityKind
	TaskID string
}

// ReaperConfig configures the background idle reaper.
type ReaperConfig struct {
	// IdleThreshold is how long a user must be silent before being marked idle.
	// Default: 10 minutes.
	IdleThreshold time.Duration

	// EvictAfter is how long after leaving (or going idle) before a user is
	// removed from the map.
	// Default: 30 minutes.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper scans.
	// Default: 60 seconds.
	SweepInterval time.Duration

	// OnIdle is called for each user newly marked idle, outside the lock.
	OnIdle func(userID, name string)
}

// Transition reports a user arriving on or leaving the board.
type Transition struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Online bool   `json:"online"`
}

// transitionBuffer is the channel depth for each transition subscriber.
const transitionBuffer = 32

// Tracker maintains an in-memory roster of board users.
type Tracker struct {
	mu      sync.RWMutex
	users   map[string]*userState
	subs    map[chan Transition]struct{}
	started time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type userState struct {
	name         string
	firstSeen    time.Time
	lastSeen     time.Time
	lastActivity ActivityKind
	lastTaskID   string
	eventCount   int64
	online       bool
	idle         bool
	idleAt       time.Time
	leftAt       time.Time
}

// New creates a new presence tracker.
func New() *Tracker {
	return &Tracker{
		users:   make(map[string]*userState),
		subs:    make(map[chan Transition]struct{}),
		started: time.Now(),
	}
}

// Record updates the presence state for the user named by a.
func (t *Tracker) Record(a Activity) {
	if a.UserID == "" {
		return
	}

	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.users[a.UserID]
	if !ok {
		state = &userState{firstSeen: now}
		t.users[a.UserID] = state
	}
	wasOnline := state.online

	if state.idle {
		slog.Debug("presence: user active again", "user", a.UserID)
		state.idle = false
		state.idleAt = time.Time{}
	}

	state.lastSeen = now
	state.lastActivity = a.Kind
	state.eventCount++
	if a.Name != "" {
		state.name = a.Name
	}
	if a.TaskID != "" {
		state.lastTaskID = a.TaskID
	}

	if a.Kind == ActivityLeft {
		state.online = false
		state.leftAt = now
	} else {
		state.online = true
		state.leftAt = time.Time{}
	}

	if state.online != wasOnline {
		tr := Transition{UserID: a.UserID, Name: state.name, Online: state.online}
		for ch := range t.subs {
			select {
			case ch <- tr:
			default:
				// Slow subscriber; the roster still has the current state.
			}
		}
	}
}

// Subscribe returns a channel of arrivals and departures. A user seen for
// the first time through a task change counts as an arrival. Call cancel to
// unsubscribe and close the channel.
func (t *Tracker) Subscribe() (<-chan Transition, func()) {
	ch := make(chan Transition, transitionBuffer)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, ch)
			t.mu.Unlock()
			close(ch)
		})
	}
}

// Online reports whether userID is currently on the board.
func (t *Tracker) Online(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.users[userID]
	return ok && state.online
}

// Roster returns a snapshot of all tracked users, sorted by most recently active.
// staleThreshold controls how long since last event before a user is excluded.
// Pass 0 to include everyone ever seen.
func (t *Tracker) Roster(staleThreshold time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := time.Now()
	entries := make([]Entry, 0, len(t.users))

	for id, state := range t.users {
		idle := now.Sub(state.lastSeen)
		if staleThreshold > 0 && idle > staleThreshold {
			continue
		}

		firstSeen := state.firstSeen
		if firstSeen.IsZero() {
			firstSeen = t.started
		}

		entries = append(entries, Entry{
			UserID:       id,
			Name:         state.name,
			LastSeen:     state.lastSeen,
			FirstSeen:    firstSeen,
			LastActivity: state.lastActivity,
			LastTaskID:   state.lastTaskID,
			IdleSecs:     idle.Seconds(),
			EventCount:   state.eventCount,
			Online:       state.online,
			Idle:         state.idle,
			LeftAt:       state.leftAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})

	return entries
}

// StartReaper launches a background goroutine that periodically marks
// silent users idle. Call Stop() to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = 10 * time.Minute
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = 30 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Debug("presence: reaper started",
		"idle_threshold", cfg.IdleThreshold,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := time.Now()

	type idleUser struct {
		id   string
		name string
	}
	var newlyIdle []idleUser

	t.mu.Lock()
	for id, state := range t.users {
		if !state.online {
			if !state.leftAt.IsZero() && now.Sub(state.leftAt) > cfg.EvictAfter {
				delete(t.users, id)
			}
			continue
		}
		if state.idle {
			if !state.idleAt.IsZero() && now.Sub(state.idleAt) > cfg.EvictAfter {
				delete(t.users, id)
			}
			continue
		}
		if now.Sub(state.lastSeen) > cfg.IdleThreshold {
			state.idle = true
			state.idleAt = now
			newlyIdle = append(newlyIdle, idleUser{id: id, name: state.name})
		}
	}
	t.mu.Unlock()

	for _, u := range newlyIdle {
		slog.Debug("presence: user marked idle",
			"user", u.id,
			"threshold", cfg.IdleThreshold)
		if cfg.OnIdle != nil {
			cfg.OnIdle(u.id, u.name)
		}
	}
}
