package dsm

import (
	"context"
	"errors"
	"fmt"
)

// reconcileKind makes the platform messages for one user+kind match the
// desired pages. Stored references are tried first; a reference whose message
// vanished falls back to a content search on the page marker before a new
// message is created. Surplus references from a shrunken task list are
// deleted so no stale page is left dangling. The returned slices always have
// exactly one entry per page.
//
// Any error aborts the whole kind: the caller retries the kind from scratch,
// re-deriving full desired state, rather than resuming partial progress.
func (m *Manager) reconcileKind(ctx context.Context, session *Session, userID, kind string, pages []Page, ids, hashes []string) ([]string, []string, error) {
	channel := session.Channel()
	newIDs := make([]string, len(pages))
	newHashes := make([]string, len(pages))

	for i, page := range pages {
		marker := PageMarker(session, userID, kind, i)
		msg := Message{Title: page.Title, Lines: page.Lines, Footer: marker, Marker: marker}
		h := hashMessage(msg)

		if i < len(ids) && ids[i] != "" {
			if i < len(hashes) && hashes[i] == h {
				// Unchanged page, keep the existing message untouched.
				newIDs[i], newHashes[i] = ids[i], h
				continue
			}
			err := m.msgr.Edit(ctx, channel, ids[i], msg)
			if err == nil {
				newIDs[i], newHashes[i] = ids[i], h
				continue
			}
			if !errors.Is(err, ErrNotFound) {
				return nil, nil, fmt.Errorf("error editing %s page %d: %w", kind, i+1, err)
			}
		}

		// No usable stored reference: find the page by its content marker.
		found, err := m.msgr.Search(ctx, channel, marker)
		if err == nil {
			if err := m.msgr.Edit(ctx, channel, found, msg); err == nil {
				newIDs[i], newHashes[i] = found, h
				continue
			} else if !errors.Is(err, ErrNotFound) {
				return nil, nil, fmt.Errorf("error editing found %s page %d: %w", kind, i+1, err)
			}
		} else if !errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("error searching for %s page %d: %w", kind, i+1, err)
		}

		id, err := m.msgr.Send(ctx, channel, msg)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating %s page %d: %w", kind, i+1, err)
		}
		newIDs[i], newHashes[i] = id, h
	}

	for j := len(pages); j < len(ids); j++ {
		if ids[j] == "" {
			continue
		}
		if err := m.msgr.Delete(ctx, channel, ids[j]); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("error deleting surplus %s page %d: %w", kind, j+1, err)
		}
	}

	return newIDs, newHashes, nil
}

// Collect refreshes one user's summary messages for the session: aggregate
// the user's tasks over the session window, paginate each kind, reconcile
// both kinds against the platform, then persist the full reference set in a
// single write. A failed kind keeps its previous references so the next pass
// retries that kind whole; the session is never finalized by this path.
func (m *Manager) Collect(ctx context.Context, session *Session, userID string) error {
	if !session.Active() {
		return fmt.Errorf("%w: session %s is already finalized", ErrNotFound, session.Date)
	}

	tasks, err := m.UserTasks(ctx, session.GuildID, userID)
	if err != nil {
		return fmt.Errorf("error loading tasks for user %s: %w", userID, err)
	}
	agg := Aggregate(tasks, session.Window())

	refs, err := m.loadRefs(ctx, session, userID)
	if err != nil {
		return err
	}

	var failures []error

	completedPages := Paginate(kindTitle(KindCompleted), formatTaskLines(agg.Completed), m.limits)
	ids, hashes, err := m.reconcileKind(ctx, session, userID, KindCompleted, completedPages, refs.CompletedMessageIDs, refs.CompletedHashes)
	if err != nil {
		failures = append(failures, err)
	} else {
		refs.CompletedMessageIDs, refs.CompletedHashes = ids, hashes
	}

	pendingPages := Paginate(kindTitle(KindPending), formatTaskLines(agg.Pending), m.limits)
	ids, hashes, err = m.reconcileKind(ctx, session, userID, KindPending, pendingPages, refs.PendingMessageIDs, refs.PendingHashes)
	if err != nil {
		failures = append(failures, err)
	} else {
		refs.PendingMessageIDs, refs.PendingHashes = ids, hashes
	}

	refs.LastUpdated = m.now()
	if err := m.store.Put(ctx, session.GuildID, colRefs, refDocID(session.Date, userID), refs); err != nil {
		failures = append(failures, fmt.Errorf("error saving message references: %w", err))
	}

	if len(failures) > 0 {
		return fmt.Errorf("partial reconciliation for user %s: %w", userID, errors.Join(failures...))
	}
	return nil
}

func (m *Manager) loadRefs(ctx context.Context, session *Session, userID string) (*MessageRefSet, error) {
	refs := &MessageRefSet{}
	err := m.store.Get(ctx, session.GuildID, colRefs, refDocID(session.Date, userID), refs)
	if err != nil && !isStoreNotFound(err) {
		return nil, fmt.Errorf("error loading message references: %w", err)
	}
	return refs, nil
}

func refDocID(date, userID string) string {
	return date + ":" + userID
}
