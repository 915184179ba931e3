// Package bans keeps the addresses refused at connect time. Entries live in
// memory only and expire on their own.
package bans

import (
	"net"
	"sort"
	"sync"
	"time"
)

type Ban struct {
	Host      string    `json:"host"`
	Reason    string    `json:"reason"`
	BannedAt  time.Time `json:"bannedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (b *Ban) expired(now time.Time) bool {
	return !now.Before(b.ExpiresAt)
}

type Manager struct {
	mu    sync.RWMutex
	bans  map[string]*Ban
	clock func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		bans:  make(map[string]*Ban),
		clock: time.Now,
	}
}

// Host strips the port from a transport address. Addresses without a port
// are returned unchanged.
func Host(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// Add refuses addr's host for duration. A non-positive duration is a no-op.
// Banning a host again replaces the earlier entry.
func (m *Manager) Add(addr, reason string, duration time.Duration) *Ban {
	if duration <= 0 {
		return nil
	}

	now := m.clock()
	ban := &Ban{
		Host:      Host(addr),
		Reason:    reason,
		BannedAt:  now,
		ExpiresAt: now.Add(duration),
	}

	m.mu.Lock()
	m.bans[ban.Host] = ban
	m.mu.Unlock()

	return ban
}

func (m *Manager) IsBanned(addr string) (bool, *Ban) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ban, exists := m.bans[Host(addr)]
	if !exists || ban.expired(m.clock()) {
		return false, nil
	}

	return true, ban
}

func (m *Manager) Remove(addr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	host := Host(addr)
	if _, ok := m.bans[host]; !ok {
		return false
	}
	delete(m.bans, host)
	return true
}

// GetAll returns the live bans, soonest to expire first.
func (m *Manager) GetAll() []Ban {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.clock()
	bans := make([]Ban, 0, len(m.bans))
	for _, ban := range m.bans {
		if ban.expired(now) {
			continue
		}
		bans = append(bans, *ban)
	}

	sort.Slice(bans, func(i, j int) bool {
		return bans[i].ExpiresAt.Before(bans[j].ExpiresAt)
	})
	return bans
}

// Cleanup drops expired entries and reports how many were removed.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	removed := 0
	for host, ban := range m.bans {
		if ban.expired(now) {
			delete(m.bans, host)
			removed++
		}
	}
	return removed
}
