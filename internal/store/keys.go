package store

import "sync"

// keyPool provides reusable byte slices for building database keys on the
// read paths. Lookups happen on every journal append and API request, so
// the buffers are worth recycling.
//
// Pooled keys are only safe for reads: Badger retains the key slice of a
// Set or Delete until the transaction commits, so write paths allocate.
var keyPool = sync.Pool{
	New: func() any {
		// 256 bytes covers prefix + "idx:" + index name + a NanoID.
		return make([]byte, 0, 256)
	},
}

// buildKey constructs a database key from prefix and suffix using a pooled
// buffer. Callers must call releaseKey when done with the key.
func buildKey(prefix, suffix string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, suffix...)
	return buf
}

// buildIndexKey constructs an index key from prefix, index name, and value
// using a pooled buffer. Callers must call releaseKey when done.
func buildIndexKey(prefix, indexName, value string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, "idx:"...)
	buf = append(buf, indexName...)
	buf = append(buf, ':')
	buf = append(buf, value...)
	return buf
}

// releaseKey returns a key buffer to the pool for reuse.
// After calling this, the key slice must not be used.
func releaseKey(key []byte) {
	// Don't keep oversized buffers in the pool
	if cap(key) <= 512 {
		keyPool.Put(key[:0])
	}
}
