package memory

// StoredLen reports how many turns are held for userID, including any not
// yet visible through History.
func (m *Memory) StoredLen(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[userID]; ok {
		return len(e.turns)
	}
	return 0
}
