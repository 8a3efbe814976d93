package store

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
)

// Memory keeps documents in process. It is what the engine runs on when no
// Redis URL is configured, and what the tests run on.
type Memory struct {
	mu   sync.Mutex
	docs map[string]map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]json.RawMessage)}
}

func (m *Memory) Get(ctx context.Context, doc, path string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.docs[doc][path]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), v...), true, nil
}

func (m *Memory) Set(ctx context.Context, doc, path string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields(doc)[path] = append(json.RawMessage(nil), value...)
	return nil
}

func (m *Memory) SetIfAbsent(ctx context.Context, doc, path string, value json.RawMessage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields := m.fields(doc)
	if _, ok := fields[path]; ok {
		return false, nil
	}
	fields[path] = append(json.RawMessage(nil), value...)
	return true, nil
}

func (m *Memory) Increment(ctx context.Context, doc, path string, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields := m.fields(doc)
	var cur float64
	if raw, ok := fields[path]; ok {
		if err := json.Unmarshal(raw, &cur); err != nil {
			return 0, ErrNotNumber
		}
	}
	cur += delta
	fields[path] = json.RawMessage(strconv.FormatFloat(cur, 'f', -1, 64))
	return cur, nil
}

func (m *Memory) Append(ctx context.Context, doc, path string, value json.RawMessage) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields := m.fields(doc)
	var arr []json.RawMessage
	if raw, ok := fields[path]; ok {
		if err := json.Unmarshal(raw, &arr); err != nil {
			return 0, ErrNotArray
		}
	}
	arr = append(arr, value)
	raw, err := json.Marshal(arr)
	if err != nil {
		return 0, err
	}
	fields[path] = raw
	return len(arr), nil
}

func (m *Memory) Delete(ctx context.Context, doc, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if path == "" {
		delete(m.docs, doc)
		return nil
	}
	for field := range m.docs[doc] {
		if under(field, path) {
			delete(m.docs[doc], field)
		}
	}
	return nil
}

func (m *Memory) Exists(ctx context.Context, doc, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, ok := m.docs[doc]
	if !ok {
		return false, nil
	}
	if path == "" {
		return len(fields) > 0, nil
	}
	_, ok = fields[path]
	return ok, nil
}

func (m *Memory) Len(ctx context.Context, doc, path string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[doc][path]
	if !ok {
		return 0, nil
	}
	return arrayLen(raw)
}

func (m *Memory) fields(doc string) map[string]json.RawMessage {
	fields, ok := m.docs[doc]
	if !ok {
		fields = make(map[string]json.RawMessage)
		m.docs[doc] = fields
	}
	return fields
}
