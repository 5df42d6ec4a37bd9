package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/DarthNec/Fonana-sub001/pkg/logger"
)

// Pebble is a pebble-backed NotificationStore.
//
// Key layout:
//
//	notif:<userID>:<reverse-ts padded>-<seq>  -> NotificationRecord JSON
//	notifid:<userID>:<notifID>                -> primary key bytes
//
// The timestamp component is reversed (MaxInt64 - unixnano) so a forward
// scan over a user's prefix yields newest-first without sorting.
type Pebble struct {
	db *pebble.DB

	// seq disambiguates records created within the same nanosecond.
	seq uint64
}

// OpenPebble opens (or creates) the notification store at path.
func OpenPebble(path string) (*Pebble, error) {
	logger.Info("opening_notification_store", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("notification_store_open_failed", "path", path, "error", err)
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &Pebble{db: db}, nil
}

// Close closes the underlying pebble DB.
func (p *Pebble) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	logger.Info("notification_store_closed")
	return err
}

func (p *Pebble) primaryKey(userID string, at time.Time) string {
	rev := uint64(math.MaxInt64) - uint64(at.UnixNano())
	s := atomic.AddUint64(&p.seq, 1)
	return fmt.Sprintf("notif:%s:%020d-%06d", userID, rev, s)
}

func idKey(userID, notifID string) string {
	return "notifid:" + userID + ":" + notifID
}

func userBounds(userID string) (lower, upper []byte) {
	prefix := "notif:" + userID + ":"
	return []byte(prefix), []byte(prefix + "\xff")
}

// Save persists one notification.
func (p *Pebble) Save(ctx context.Context, n NotificationRecord) error {
	if n.ID == "" || n.UserID == "" {
		return fmt.Errorf("notification requires id and userId")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	key := p.primaryKey(n.UserID, n.CreatedAt)
	batch := p.db.NewBatch()
	defer batch.Close()
	if err := batch.Set([]byte(key), data, nil); err != nil {
		return err
	}
	if err := batch.Set([]byte(idKey(n.UserID, n.ID)), []byte(key), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// Unread returns up to limit unread notifications, most recent first.
func (p *Pebble) Unread(ctx context.Context, userID string, limit int) ([]NotificationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	lower, upper := userBounds(userID)
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []NotificationRecord
	for iter.First(); iter.Valid() && len(out) < limit; iter.Next() {
		var n NotificationRecord
		if err := json.Unmarshal(iter.Value(), &n); err != nil {
			logger.Warn("skipping_corrupt_notification", "key", string(iter.Key()), "error", err)
			continue
		}
		if n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, iter.Error()
}

// UnreadCount counts a user's unread notifications.
func (p *Pebble) UnreadCount(ctx context.Context, userID string) (int, error) {
	lower, upper := userBounds(userID)
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	count := 0
	for iter.First(); iter.Valid(); iter.Next() {
		var n NotificationRecord
		if err := json.Unmarshal(iter.Value(), &n); err != nil {
			continue
		}
		if !n.IsRead {
			count++
		}
	}
	return count, iter.Error()
}

// MarkRead flips one notification to read. Unknown ids return
// ErrNotFound.
func (p *Pebble) MarkRead(ctx context.Context, userID, notifID string) error {
	keyBytes, closer, err := p.db.Get([]byte(idKey(userID, notifID)))
	if err != nil {
		if err == pebble.ErrNotFound {
			return ErrNotFound
		}
		return err
	}
	key := append([]byte(nil), keyBytes...)
	closer.Close()

	val, closer, err := p.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return ErrNotFound
		}
		return err
	}
	var n NotificationRecord
	uerr := json.Unmarshal(val, &n)
	closer.Close()
	if uerr != nil {
		return fmt.Errorf("corrupt notification %s: %w", notifID, uerr)
	}
	if n.IsRead {
		return nil
	}
	n.IsRead = true
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.db.Set(key, data, pebble.Sync)
}

// ClearAll deletes every notification of a user.
func (p *Pebble) ClearAll(ctx context.Context, userID string) error {
	lower, upper := userBounds(userID)
	batch := p.db.NewBatch()
	defer batch.Close()
	if err := batch.DeleteRange(lower, upper, nil); err != nil {
		return err
	}
	idLower := []byte("notifid:" + userID + ":")
	idUpper := []byte("notifid:" + userID + ":\xff")
	if err := batch.DeleteRange(idLower, idUpper, nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// PurgeRead deletes read notifications created before cutoff, at most
// batchSize per call. It returns the number of records removed; the
// retention runner calls this repeatedly until it reports zero.
func (p *Pebble) PurgeRead(ctx context.Context, cutoff time.Time, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("notif:"),
		UpperBound: []byte("notif:\xff"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	batch := p.db.NewBatch()
	defer batch.Close()
	removed := 0
	for iter.First(); iter.Valid() && removed < batchSize; iter.Next() {
		if ctx.Err() != nil {
			break
		}
		var n NotificationRecord
		if err := json.Unmarshal(iter.Value(), &n); err != nil {
			continue
		}
		if !n.IsRead || !n.CreatedAt.Before(cutoff) {
			continue
		}
		if err := batch.Delete(append([]byte(nil), iter.Key()...), nil); err != nil {
			return removed, err
		}
		if err := batch.Delete([]byte(idKey(n.UserID, n.ID)), nil); err != nil {
			return removed, err
		}
		removed++
	}
	if err := iter.Error(); err != nil {
		return removed, err
	}
	if removed == 0 {
		return 0, nil
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return removed, ctx.Err()
}
