package tilecache

// NoopStore never keeps anything. Concurrent requests for one key are
// still collapsed by the Session.
type NoopStore struct{}

func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

func (c *NoopStore) Get(key Key) (Entry, bool) {
	return Entry{}, false
}

func (c *NoopStore) Set(key Key, entry Entry) {
}

func (c *NoopStore) Has(key Key) bool {
	return false
}

func (c *NoopStore) Len() int {
	return 0
}

func (c *NoopStore) Clear() {
}
