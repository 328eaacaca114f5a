// Package cache holds the resolved-answer cache: an owner-name-keyed map of
// RRsets, protected by a single mutex, with TTL tracked separately from the
// dedup identity of each record (spec §4.G).
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/nslookup-labs/resolverd/internal/wire"

	"github.com/nslookup-labs/resolverd/internal/metrics"
)

// entry pairs a cached RR with its absolute expiry, computed once at
// insertion from the RR's TTL.
type entry struct {
	rr        wire.ResourceRecord
	expiresAt time.Time
}

// Cache maps an owner name to the set of records held for it, independent
// of type — GetRecordsByType filters by type on read. A single mutex protects
// the whole map; this is deliberate per spec §4.G rather than the sharded
// design some DNS caches use, since the dataset this resolver holds at once
// is small enough that lock contention is not the bottleneck the shards
// would be solving for.
type Cache struct {
	mu   sync.Mutex
	sets map[string]map[string]entry // owner name -> fingerprint -> entry

	now func() time.Time

	remote Remote

	// MergeMinTTL switches the duplicate-merge policy from newest-TTL-wins
	// (the default, matching the testable property spec §8 asserts) to
	// minimum-TTL-wins, the more conservative option spec §9 invites: a
	// shrinking TTL observed from one upstream can't be masked by a
	// larger one from another. Off by default.
	MergeMinTTL bool
}

// New returns an empty Cache. An optional Remote backend can be attached
// with SetRemote for distributed invalidation; a nil Remote means purely
// local, in-process caching.
func New() *Cache {
	return &Cache{
		sets: make(map[string]map[string]entry),
		now:  time.Now,
	}
}

// SetRemote attaches a distributed L2 cache. Remote is consulted only as a
// best-effort hint; the local map remains the authority for what this
// process believes right now.
func (c *Cache) SetRemote(r Remote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remote = r
}

// InsertRecord stores rr under its owner name. A record already present
// that is Equal (same name/type/class/data, TTL ignored) is replaced by
// this call — the newer TTL wins, per the testable property in spec §8 —
// unless MergeMinTTL is set, in which case the entry expiring first is kept.
// Expired TTL=0 negative-cache markers are accepted as-is; callers decide
// expiry semantics for those separately.
func (c *Cache) InsertRecord(rr wire.ResourceRecord) {
	c.InsertRecords([]wire.ResourceRecord{rr})
}

// InsertRecords stores multiple RRs, typically an entire RRset returned by
// one upstream answer.
func (c *Cache) InsertRecords(rrs []wire.ResourceRecord) {
	if len(rrs) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, rr := range rrs {
		owner := rr.Name.String()
		bucket, ok := c.sets[owner]
		if !ok {
			bucket = make(map[string]entry)
			c.sets[owner] = bucket
		}

		key := fingerprintKey(rr)
		next := entry{rr: rr, expiresAt: now.Add(time.Duration(rr.TTL) * time.Second)}

		if c.MergeMinTTL {
			if existing, ok := bucket[key]; ok && existing.expiresAt.Before(next.expiresAt) {
				next = existing
			}
		}
		bucket[key] = next
	}
}

// fingerprintKey identifies an RR by everything Equal compares: name, type,
// class, data — never TTL. Two RRs that are Equal collapse to one bucket
// entry, matching the set semantics spec §8 tests against.
func fingerprintKey(rr wire.ResourceRecord) string {
	// ResourceRecord doesn't export its fingerprint, so route through
	// CacheKey plus the serialized rdata: two RRs with identical CacheKey
	// but different rdata (e.g. two distinct A records for one name) must
	// remain distinct entries, which this achieves by reusing Write's
	// deterministic byte output as a discriminator.
	buf := wire.GetBuffer()
	defer wire.PutBuffer(buf)
	_ = rr.Data.Write(buf)
	k := rr.CacheKey()
	return k.Name + "|" + k.Type.String() + "|" + strconv.Itoa(int(k.Class)) + "|" + string(buf.Buf[:buf.Position()])
}

// GetRecordSet returns every unexpired record held for name, of any type.
func (c *Cache) GetRecordSet(name string) []wire.ResourceRecord {
	c.mu.Lock()
	bucket, ok := c.sets[wire.NewName(name).String()]
	if !ok {
		c.mu.Unlock()
		metrics.CacheOperations.WithLabelValues("local", "miss").Inc()
		return nil
	}
	now := c.now()
	out := make([]wire.ResourceRecord, 0, len(bucket))
	for _, e := range bucket {
		if e.expiresAt.After(now) {
			out = append(out, e.rr)
		}
	}
	c.mu.Unlock()

	if len(out) == 0 {
		metrics.CacheOperations.WithLabelValues("local", "miss").Inc()
	} else {
		metrics.CacheOperations.WithLabelValues("local", "hit").Inc()
	}
	return out
}

// GetRecordsByType returns unexpired records for name restricted to t.
func (c *Cache) GetRecordsByType(name string, t wire.RecordType) []wire.ResourceRecord {
	all := c.GetRecordSet(name)
	out := all[:0:0]
	for _, rr := range all {
		if rr.Type == t {
			out = append(out, rr)
		}
	}
	return out
}

// Sweep removes every expired entry and returns how many were dropped. It
// is meant to be called periodically from a background goroutine (see
// StartJanitor); callers needing an immediate eviction can invoke it
// directly, e.g. from tests.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dropped := 0
	for owner, bucket := range c.sets {
		for key, e := range bucket {
			if !e.expiresAt.After(now) {
				delete(bucket, key)
				dropped++
			}
		}
		if len(bucket) == 0 {
			delete(c.sets, owner)
		}
	}
	return dropped
}

// StartJanitor runs Sweep every interval in a background goroutine until
// the returned stop function is called. A zero interval disables the
// janitor and returns a no-op stop function.
func (c *Cache) StartJanitor(interval time.Duration) (stop func()) {
	if interval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

// WarmFromRemote consults the attached Remote for name's RRset and, on a
// hit, decodes and inserts it locally. This does I/O, so unlike every
// other Cache method it is never called while holding c.mu — callers use
// it as a cold-start shortcut before falling back to an upstream query,
// keeping the lock-protected read/write paths free of I/O per spec §4.G.
func (c *Cache) WarmFromRemote(ctx context.Context, name string) {
	c.mu.Lock()
	remote := c.remote
	c.mu.Unlock()
	if remote == nil {
		return
	}

	data, found := remote.Get(ctx, wire.NewName(name).String())
	if !found {
		metrics.CacheOperations.WithLabelValues("remote", "miss").Inc()
		return
	}
	rrs, err := decodeRRs(data)
	if err != nil {
		metrics.CacheOperations.WithLabelValues("remote", "miss").Inc()
		return
	}
	metrics.CacheOperations.WithLabelValues("remote", "hit").Inc()
	c.InsertRecords(rrs)
}

// PublishToRemote pushes name's RRset to the attached Remote and
// announces an invalidation so peers notice. Best-effort: errors are
// swallowed, matching the "additive, never a source of truth" contract
// a distributed L2 cache has here.
func (c *Cache) PublishToRemote(ctx context.Context, name string, rrs []wire.ResourceRecord) {
	c.mu.Lock()
	remote := c.remote
	c.mu.Unlock()
	if remote == nil || len(rrs) == 0 {
		return
	}

	data, err := encodeRRs(rrs)
	if err != nil {
		return
	}
	key := wire.NewName(name).String()
	remote.Set(ctx, key, data, minTTL(rrs))
	_ = remote.Invalidate(ctx, key)
}

func minTTL(rrs []wire.ResourceRecord) time.Duration {
	min := rrs[0].TTL
	for _, rr := range rrs[1:] {
		if rr.TTL < min {
			min = rr.TTL
		}
	}
	return time.Duration(min) * time.Second
}

// encodeRRs serializes a record set as a count prefix followed by each
// RR's normal wire framing, reusing ResourceRecord.Write/Read so the
// Remote payload format never drifts from the wire codec.
func encodeRRs(rrs []wire.ResourceRecord) ([]byte, error) {
	buf := wire.GetBuffer()
	defer wire.PutBuffer(buf)

	if err := buf.WriteU16(uint16(len(rrs))); err != nil {
		return nil, err
	}
	for _, rr := range rrs {
		if err := rr.Write(buf); err != nil {
			return nil, err
		}
	}
	out := make([]byte, buf.Position())
	copy(out, buf.Buf[:buf.Position()])
	return out, nil
}

func decodeRRs(data []byte) ([]wire.ResourceRecord, error) {
	buf := wire.GetBuffer()
	defer wire.PutBuffer(buf)
	buf.Load(data)

	count, err := buf.ReadU16()
	if err != nil {
		return nil, err
	}
	out := make([]wire.ResourceRecord, 0, count)
	for i := 0; i < int(count); i++ {
		var rr wire.ResourceRecord
		if err := rr.Read(buf); err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, nil
}

// Len reports the total number of live entries across all owners, mainly
// for tests and metrics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, bucket := range c.sets {
		n += len(bucket)
	}
	return n
}
