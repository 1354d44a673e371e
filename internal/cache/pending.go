package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meshychat/meshy/internal/domain"
)

const (
	pendingKeyPrefix = "meshy:pending:"
	pendingTTL       = 24 * time.Hour
)

// PendingTasks maps a bus task id to the context it was dispatched with. The
// in-memory map is authoritative; when a Redis client is provided each entry
// is mirrored there so attachment association survives a process restart.
type PendingTasks struct {
	mu    sync.RWMutex
	tasks map[string]domain.PendingTask
	rdb   *redis.Client
}

// NewPendingTasks creates the task map. rdb may be nil to run memory-only.
func NewPendingTasks(rdb *redis.Client) *PendingTasks {
	return &PendingTasks{
		tasks: make(map[string]domain.PendingTask),
		rdb:   rdb,
	}
}

func (p *PendingTasks) Put(ctx context.Context, taskID string, task domain.PendingTask) {
	p.mu.Lock()
	p.tasks[taskID] = task
	p.mu.Unlock()

	if p.rdb == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		slog.Error("pending: marshal task", "task_id", taskID, "error", err)
		return
	}
	if err := p.rdb.Set(ctx, pendingKeyPrefix+taskID, data, pendingTTL).Err(); err != nil {
		slog.Warn("pending: redis mirror failed", "task_id", taskID, "error", err)
	}
}

// Get resolves the task context, falling back to the Redis mirror when the
// in-memory map misses (fresh process, task dispatched by a predecessor).
func (p *PendingTasks) Get(ctx context.Context, taskID string) (domain.PendingTask, bool) {
	p.mu.RLock()
	task, ok := p.tasks[taskID]
	p.mu.RUnlock()
	if ok {
		return task, true
	}

	if p.rdb == nil {
		return domain.PendingTask{}, false
	}

	data, err := p.rdb.Get(ctx, pendingKeyPrefix+taskID).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("pending: redis lookup failed", "task_id", taskID, "error", err)
		}
		return domain.PendingTask{}, false
	}
	if err := json.Unmarshal(data, &task); err != nil {
		slog.Error("pending: unmarshal task", "task_id", taskID, "error", err)
		return domain.PendingTask{}, false
	}

	p.mu.Lock()
	p.tasks[taskID] = task
	p.mu.Unlock()
	return task, true
}

func (p *PendingTasks) Delete(ctx context.Context, taskID string) {
	p.mu.Lock()
	delete(p.tasks, taskID)
	p.mu.Unlock()

	if p.rdb != nil {
		if err := p.rdb.Del(ctx, pendingKeyPrefix+taskID).Err(); err != nil {
			slog.Warn("pending: redis delete failed", "task_id", taskID, "error", err)
		}
	}
}

func (p *PendingTasks) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tasks)
}
