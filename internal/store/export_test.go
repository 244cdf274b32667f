package store

import "sync"

// LockQuestionForTest holds a question's entry lock until the returned func is called.
func (m *Memory) LockQuestionForTest(id string) func() {
	e, ok := m.question(id)
	if !ok {
		panic("no question " + id)
	}
	e.mu.Lock()
	var once sync.Once
	return func() { once.Do(e.mu.Unlock) }
}
