package cache

import "sync"

const DefaultProcessedTaskSetSize = 1000

// ProcessedTaskSet is a bounded FIFO set of (taskId, targetLanguage) pairs
// used to deduplicate worker completion deliveries.
type ProcessedTaskSet struct {
	mu       sync.Mutex
	capacity int
	order    []string
	seen     map[string]struct{}
}

func NewProcessedTaskSet(capacity int) *ProcessedTaskSet {
	if capacity <= 0 {
		capacity = DefaultProcessedTaskSetSize
	}
	return &ProcessedTaskSet{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		seen:     make(map[string]struct{}, capacity),
	}
}

// TaskKey builds the dedup key for a per-language completion.
func TaskKey(taskID, targetLanguage string) string {
	return taskID + ":" + targetLanguage
}

// Seen reports whether the key was already recorded, recording it if not.
// When the set is full the eldest entry is dropped first.
func (s *ProcessedTaskSet) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return true
	}

	if len(s.order) >= s.capacity {
		eldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, eldest)
	}

	s.order = append(s.order, key)
	s.seen[key] = struct{}{}
	return false
}

func (s *ProcessedTaskSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
