package core

import (
	"context"
	"sort"
	"sync"

	"pharmacore/pkg/domain"
)

// MaxNotifications caps the stored notification list; the oldest entries are dropped.
const MaxNotifications = 100

// Overrides replaces template defaults when the fields are set.
type Overrides struct {
	Priority domain.Priority
	Title    string
	Message  string
	Actions  []domain.NotificationAction
	Metadata map[string]string
}

// Subscriber receives the full notification list, newest first, after every change.
type Subscriber func([]domain.Notification)

// NotificationFilter narrows GetNotifications.
type NotificationFilter struct {
	UnreadOnly      bool
	Category        domain.NotificationCategory
	IncludeArchived bool
}

// NotificationEngine owns the notification list and its subscribers.
type NotificationEngine struct {
	*env

	mu      sync.Mutex
	list    []domain.Notification
	subs    map[int]Subscriber
	nextSub int
}

func newNotificationEngine(ctx context.Context, e *env) (*NotificationEngine, error) {
	list, err := loadList[domain.Notification](ctx, e.store, KeyNotifications)
	if err != nil {
		return nil, err
	}
	if len(list) > MaxNotifications {
		list = list[:MaxNotifications]
	}
	return &NotificationEngine{env: e, list: list, subs: make(map[int]Subscriber)}, nil
}

// Build renders a typed notice without storing it.
func (n *NotificationEngine) Build(notice Notice, overrides *Overrides) domain.Notification {
	return n.finish(notice.template().render(notice.Fields()), overrides)
}

// BuildFromTemplate renders the named template without storing it.
func (n *NotificationEngine) BuildFromTemplate(key string, data map[string]any, overrides *Overrides) (domain.Notification, error) {
	tpl, err := lookupTemplate(key)
	if err != nil {
		return domain.Notification{}, err
	}
	return n.finish(tpl.render(data), overrides), nil
}

// Notify renders and stores a typed notice.
func (n *NotificationEngine) Notify(ctx context.Context, notice Notice, overrides *Overrides) (domain.Notification, error) {
	return n.Add(ctx, n.Build(notice, overrides))
}

// CreateFromTemplate renders and stores the named template. It fails with
// ErrTemplateNotFound for an unknown key.
func (n *NotificationEngine) CreateFromTemplate(ctx context.Context, key string, data map[string]any, overrides *Overrides) (domain.Notification, error) {
	note, err := n.BuildFromTemplate(key, data, overrides)
	if err != nil {
		return domain.Notification{}, err
	}
	return n.Add(ctx, note)
}

// Add prepends a notification, trims the list and notifies subscribers.
func (n *NotificationEngine) Add(ctx context.Context, note domain.Notification) (_ domain.Notification, err error) {
	defer n.observe(ctx, "add_notification", n.now(), &err)
	if note.ID == "" {
		note.ID = n.newID()
	}
	if note.Timestamp.IsZero() {
		note.Timestamp = n.now()
	}
	n.mu.Lock()
	list := make([]domain.Notification, 0, min(len(n.list)+1, MaxNotifications))
	list = append(list, note)
	list = append(list, n.list...)
	if len(list) > MaxNotifications {
		list = list[:MaxNotifications]
	}
	n.list = list
	err = saveList(ctx, n.store, KeyNotifications, n.list)
	snapshot, subs := n.snapshotLocked()
	n.mu.Unlock()
	publish(subs, snapshot)
	if err != nil {
		return note, err
	}
	n.logger.Debug("notification added", "id", note.ID, "title", note.Title)
	return note, nil
}

// Subscribe registers fn and returns a function that removes it.
func (n *NotificationEngine) Subscribe(fn Subscriber) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// GetNotifications returns notifications newest first. Archived entries are
// hidden unless the filter asks for them.
func (n *NotificationEngine) GetNotifications(filter NotificationFilter) []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.Notification, 0, len(n.list))
	for _, note := range n.list {
		if note.IsArchived && !filter.IncludeArchived {
			continue
		}
		if filter.UnreadOnly && note.IsRead {
			continue
		}
		if filter.Category != "" && note.Category != filter.Category {
			continue
		}
		out = append(out, note)
	}
	return out
}

// UnreadCount counts unread, unarchived notifications.
func (n *NotificationEngine) UnreadCount() int {
	return len(n.GetNotifications(NotificationFilter{UnreadOnly: true}))
}

// MarkAsRead flags one notification as read.
func (n *NotificationEngine) MarkAsRead(ctx context.Context, id string) (bool, error) {
	return n.mutateOne(ctx, "mark_notification_read", id, func(note *domain.Notification) { note.IsRead = true })
}

// Archive hides one notification from the default view.
func (n *NotificationEngine) Archive(ctx context.Context, id string) (bool, error) {
	return n.mutateOne(ctx, "archive_notification", id, func(note *domain.Notification) { note.IsArchived = true })
}

// Delete removes one notification.
func (n *NotificationEngine) Delete(ctx context.Context, id string) (ok bool, err error) {
	defer n.observe(ctx, "delete_notification", n.now(), &err)
	n.mu.Lock()
	idx := n.indexLocked(id)
	if idx < 0 {
		n.mu.Unlock()
		return false, nil
	}
	n.list = append(n.list[:idx:idx], n.list[idx+1:]...)
	err = saveList(ctx, n.store, KeyNotifications, n.list)
	snapshot, subs := n.snapshotLocked()
	n.mu.Unlock()
	publish(subs, snapshot)
	return err == nil, err
}

// MarkAllAsRead flags every notification as read and returns how many changed.
func (n *NotificationEngine) MarkAllAsRead(ctx context.Context) (changed int, err error) {
	defer n.observe(ctx, "mark_all_notifications_read", n.now(), &err)
	n.mu.Lock()
	for i := range n.list {
		if !n.list[i].IsRead {
			n.list[i].IsRead = true
			changed++
		}
	}
	err = saveList(ctx, n.store, KeyNotifications, n.list)
	snapshot, subs := n.snapshotLocked()
	n.mu.Unlock()
	publish(subs, snapshot)
	return changed, err
}

// ClearAll removes every notification.
func (n *NotificationEngine) ClearAll(ctx context.Context) (err error) {
	defer n.observe(ctx, "clear_notifications", n.now(), &err)
	n.mu.Lock()
	n.list = nil
	err = saveList(ctx, n.store, KeyNotifications, n.list)
	snapshot, subs := n.snapshotLocked()
	n.mu.Unlock()
	publish(subs, snapshot)
	return err
}

func (n *NotificationEngine) mutateOne(ctx context.Context, op, id string, fn func(*domain.Notification)) (ok bool, err error) {
	defer n.observe(ctx, op, n.now(), &err)
	n.mu.Lock()
	idx := n.indexLocked(id)
	if idx < 0 {
		n.mu.Unlock()
		return false, nil
	}
	fn(&n.list[idx])
	err = saveList(ctx, n.store, KeyNotifications, n.list)
	snapshot, subs := n.snapshotLocked()
	n.mu.Unlock()
	publish(subs, snapshot)
	return err == nil, err
}

func (n *NotificationEngine) indexLocked(id string) int {
	for i := range n.list {
		if n.list[i].ID == id {
			return i
		}
	}
	return -1
}

// snapshotLocked copies the list and subscriber set so callbacks run without the lock.
func (n *NotificationEngine) snapshotLocked() ([]domain.Notification, []Subscriber) {
	snapshot := append([]domain.Notification(nil), n.list...)
	subs := make([]int, 0, len(n.subs))
	for id := range n.subs {
		subs = append(subs, id)
	}
	sort.Ints(subs)
	out := make([]Subscriber, len(subs))
	for i, id := range subs {
		out[i] = n.subs[id]
	}
	return snapshot, out
}

func publish(subs []Subscriber, snapshot []domain.Notification) {
	for _, fn := range subs {
		fn(snapshot)
	}
}

func (n *NotificationEngine) finish(note domain.Notification, o *Overrides) domain.Notification {
	if o != nil {
		if o.Priority != "" {
			note.Priority = o.Priority
		}
		if o.Title != "" {
			note.Title = o.Title
		}
		if o.Message != "" {
			note.Message = o.Message
		}
		if o.Actions != nil {
			note.Actions = append([]domain.NotificationAction(nil), o.Actions...)
		}
		if o.Metadata != nil {
			note.Metadata = make(map[string]string, len(o.Metadata))
			for k, v := range o.Metadata {
				note.Metadata[k] = v
			}
		}
	}
	note.ID = n.newID()
	note.Timestamp = n.now()
	return note
}

// emit stores a notice on behalf of another engine. Failures are logged, not returned.
func (n *NotificationEngine) emit(ctx context.Context, notice Notice, overrides *Overrides) {
	if _, err := n.Notify(ctx, notice, overrides); err != nil {
		n.logger.Warn("notification emission failed", "template", notice.TemplateKey(), "error", err)
	}
}
