package service

import (
	"sort"
	"sync"
	"time"

	"shopchat/apps/chat-service/model"
)

// presenceEntry 单个管理员的在线记录
// refs是活跃会话订阅计数：同一管理员多开标签页/多个会话时，
// 只有最后一个订阅结束才真正下线
type presenceEntry struct {
	admin     *model.Admin
	refs      int
	changedAt time.Time
}

// PresenceTracker 进程级在线状态登记表
// 所有变更都经过内部互斥锁，读取返回快照
type PresenceTracker struct {
	mu        sync.Mutex
	online    map[int64]*presenceEntry
	broadcast func(model.PresenceEvent)
	now       func() time.Time
}

// NewPresenceTracker 创建在线状态登记表
// broadcast在持锁期间被调用，增量推送顺序与登记表变更顺序严格一致；
// 回调内不得再调用登记表方法
func NewPresenceTracker(broadcast func(model.PresenceEvent)) *PresenceTracker {
	if broadcast == nil {
		broadcast = func(model.PresenceEvent) {}
	}
	return &PresenceTracker{
		online:    make(map[int64]*presenceEntry),
		broadcast: broadcast,
		now:       time.Now,
	}
}

// MarkOnline 管理员的一个会话订阅开始
// 重复上线不改变状态，但仍推送一次增量让订阅者保持同步
func (t *PresenceTracker) MarkOnline(admin *model.Admin) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.online[admin.ID]
	if ok {
		entry.refs++
	} else {
		t.online[admin.ID] = &presenceEntry{admin: admin, refs: 1, changedAt: t.now()}
	}

	// 持锁广播，两个并发变更的增量不会以颠倒的顺序到达订阅者
	t.broadcast(model.PresenceEvent{
		Type:      model.EventPresence,
		AdminID:   admin.ID,
		AdminName: admin.Name,
		Status:    model.PresenceStatusOnline,
	})
}

// MarkOffline 管理员的一个会话订阅结束
// 还有存活订阅时推送的增量仍是online；从未上线过的管理员直接忽略
func (t *PresenceTracker) MarkOffline(admin *model.Admin) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.online[admin.ID]
	if !ok {
		return
	}

	entry.refs--
	status := model.PresenceStatusOnline
	if entry.refs <= 0 {
		delete(t.online, admin.ID)
		status = model.PresenceStatusOffline
	}

	t.broadcast(model.PresenceEvent{
		Type:      model.EventPresence,
		AdminID:   admin.ID,
		AdminName: admin.Name,
		Status:    status,
	})
}

// snapshotLocked 构建在线快照，按ID排序保证稳定输出，调用方持锁
func (t *PresenceTracker) snapshotLocked() []model.PresenceEntry {
	entries := make([]model.PresenceEntry, 0, len(t.online))
	for _, entry := range t.online {
		entries = append(entries, model.PresenceEntry{
			AdminID:   entry.admin.ID,
			AdminName: entry.admin.Name,
			Status:    model.PresenceStatusOnline,
			ChangedAt: entry.changedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AdminID < entries[j].AdminID
	})
	return entries
}

// ListOnline 当前在线管理员快照
func (t *PresenceTracker) ListOnline() []model.PresenceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// SubscribeSnapshot 持锁完成订阅注册与基线快照推送
// register先执行订阅注册，随后逐条deliver当前在线快照，
// 期间不会有增量插入，新订阅者收到的第一批事件必然是完整基线
func (t *PresenceTracker) SubscribeSnapshot(register func(), deliver func(model.PresenceEvent)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	register()
	for _, entry := range t.snapshotLocked() {
		deliver(model.PresenceEvent{
			Type:      model.EventPresence,
			AdminID:   entry.AdminID,
			AdminName: entry.AdminName,
			Status:    entry.Status,
		})
	}
}

// IsOnline 管理员当前是否在线
func (t *PresenceTracker) IsOnline(adminID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.online[adminID]
	return ok
}
