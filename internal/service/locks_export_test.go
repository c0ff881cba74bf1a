package service

// size reports how many products currently have a lock entry.
func (l *ProductLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
