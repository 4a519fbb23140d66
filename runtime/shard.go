package runtime

import "github.com/cespare/xxhash/v2"

const shardCount = 32

// shardFor spreads keys over a fixed number of lock domains so that
// unrelated identities or message ids never contend on the same mutex.
func shardFor(key string) uint64 {
	return xxhash.Sum64String(key) % shardCount
}
