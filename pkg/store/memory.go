package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryUsers is an in-memory UserStore, used in tests and as a stand-in
// until the platform's user service client is wired in.
type MemoryUsers struct {
	mu    sync.RWMutex
	users map[string]UserSnapshot
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]UserSnapshot)}
}

func (m *MemoryUsers) Put(u UserSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *MemoryUsers) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

func (m *MemoryUsers) GetUser(ctx context.Context, id string) (UserSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return UserSnapshot{}, ErrNotFound
	}
	return u, nil
}

// MemoryContent is an in-memory ContentStore.
type MemoryContent struct {
	mu    sync.RWMutex
	posts map[string]PostInfo
	// subs maps "userID|creatorID" to active payment-completed subs.
	subs map[string]bool
}

func NewMemoryContent() *MemoryContent {
	return &MemoryContent{posts: make(map[string]PostInfo), subs: make(map[string]bool)}
}

func (m *MemoryContent) PutPost(p PostInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[p.ID] = p
}

func (m *MemoryContent) SetSubscription(userID, creatorID string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[userID+"|"+creatorID] = active
}

func (m *MemoryContent) GetPost(ctx context.Context, postID string) (PostInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[postID]
	if !ok {
		return PostInfo{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryContent) HasActiveSubscription(ctx context.Context, userID, creatorID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subs[userID+"|"+creatorID], nil
}

// MemoryNotifications is an in-memory NotificationStore.
type MemoryNotifications struct {
	mu    sync.RWMutex
	byUsr map[string][]NotificationRecord
}

func NewMemoryNotifications() *MemoryNotifications {
	return &MemoryNotifications{byUsr: make(map[string][]NotificationRecord)}
}

func (m *MemoryNotifications) Save(ctx context.Context, n NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUsr[n.UserID] = append(m.byUsr[n.UserID], n)
	return nil
}

func (m *MemoryNotifications) Unread(ctx context.Context, userID string, limit int) ([]NotificationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []NotificationRecord
	for _, n := range m.byUsr[userID] {
		if !n.IsRead {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryNotifications) UnreadCount(ctx context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, n := range m.byUsr[userID] {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *MemoryNotifications) MarkRead(ctx context.Context, userID, notifID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.byUsr[userID] {
		if n.ID == notifID {
			m.byUsr[userID][i].IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryNotifications) ClearAll(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUsr, userID)
	return nil
}
