// Package resolver implements iterative DNS resolution: starting from the
// root hints, follow delegations until an authoritative answer (or a
// definitive negative) is found.
package resolver

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/nslookup-labs/resolverd/internal/cache"
	"github.com/nslookup-labs/resolverd/internal/metrics"
	"github.com/nslookup-labs/resolverd/internal/wire"
)

const (
	// DefaultTimeout bounds one top-level Resolve call end to end.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxDepth bounds CNAME chains and NS sub-resolutions.
	DefaultMaxDepth = 16
)

type ctxKey int

const requestIDKey ctxKey = 0

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Resolver runs the iterative resolution algorithm against a shared
// record cache.
type Resolver struct {
	Cache    *cache.Cache
	Exchange Exchanger
	Logger   *slog.Logger

	// Timeout bounds one top-level Resolve call; MaxDepth bounds CNAME
	// chains and NS sub-resolutions. Zero values fall back to the
	// package defaults.
	Timeout  time.Duration
	MaxDepth int
}

func (r *Resolver) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}

func (r *Resolver) maxDepth() int {
	if r.MaxDepth > 0 {
		return r.MaxDepth
	}
	return DefaultMaxDepth
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Resolver) exchanger() Exchanger {
	if r.Exchange != nil {
		return r.Exchange
	}
	return UDPExchanger{}
}

// Resolve answers q, an iterative top-level lookup bounded by Timeout. The
// returned error, when non-nil, is one of the sentinels in errors.go and
// classifies into an RCODE via RCode(err).
func (r *Resolver) Resolve(ctx context.Context, q wire.Question) ([]wire.ResourceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()
	ctx = withRequestID(ctx, uuid.NewString())

	start := time.Now()
	rrs, err := r.resolve(ctx, q, 0)
	metrics.ResolveDuration.WithLabelValues(q.Type.String()).Observe(time.Since(start).Seconds())
	return rrs, err
}

// resolve implements spec §4.I's loop. depth counts nested sub-resolutions
// (CNAME chases and NS-glue lookups) so cycles terminate.
func (r *Resolver) resolve(ctx context.Context, q wire.Question, depth int) ([]wire.ResourceRecord, error) {
	if depth > r.maxDepth() {
		return nil, ErrServerFailure
	}

	if len(r.Cache.GetRecordsByType(q.Name.String(), q.Type)) == 0 {
		r.Cache.WarmFromRemote(ctx, q.Name.String())
	}

	queue := r.primeQueue(q.Name)
	query := buildQuery(q)

	for {
		if err := ctx.Err(); err != nil {
			return nil, ErrServerFailure
		}

		host, ok := queue.Pop()
		if !ok {
			return nil, ErrServerFailure
		}

		if !host.Resolved() {
			if depth+1 > r.maxDepth() {
				continue
			}
			subQ, err := wire.NewQuestion(host.Name(), wire.TypeA, wire.ClassIN)
			if err != nil {
				continue
			}
			rrs, err := r.resolve(ctx, subQ, depth+1)
			if err != nil || len(rrs) == 0 {
				continue
			}
			ip := firstA(rrs)
			if ip == nil {
				continue
			}
			lvl := wire.NewName(host.Name()).MatchingLabelCount(q.Name)
			resolved, _ := NewHost(host.Name(), ip)
			queue.Insert(resolved, lvl)
			continue
		}

		hopCtx, cancel := context.WithTimeout(ctx, hopTimeout)
		resp, err := r.exchanger().Exchange(hopCtx, net.JoinHostPort(host.IP().String(), "53"), query)
		cancel()
		if err != nil {
			metrics.HopsTotal.WithLabelValues("error").Inc()
			r.logger().Warn("upstream exchange failed", "request_id", requestIDFrom(ctx), "ns", host.IP(), "qname", q.Name.String(), "error", err)
			continue
		}
		if !matchesQuery(query, resp) {
			metrics.HopsTotal.WithLabelValues("mismatch").Inc()
			continue
		}
		metrics.HopsTotal.WithLabelValues("ok").Inc()
		r.logger().Info("recursive lookup", "request_id", requestIDFrom(ctx), "ns", host.IP(), "qname", q.Name.String(), "qtype", q.Type.String())

		if len(resp.Answers) > 0 {
			return r.handleAnswers(ctx, q, resp, depth)
		}

		if delegated := r.handleDelegation(ctx, resp, q.Name, queue); delegated {
			continue
		}

		if soa, ok := negativeSOA(resp); ok {
			r.Cache.InsertRecord(soa)
			r.Cache.PublishToRemote(ctx, soa.Name.String(), []wire.ResourceRecord{soa})
			return []wire.ResourceRecord{soa}, ErrNameError
		}

		return nil, ErrServerFailure
	}
}

// handleAnswers implements spec §4.I step 3d.
func (r *Resolver) handleAnswers(ctx context.Context, q wire.Question, resp *wire.Message, depth int) ([]wire.ResourceRecord, error) {
	var matched []wire.ResourceRecord
	for _, rr := range resp.Answers {
		if rr.Type == q.Type && rr.Name.Equal(q.Name) {
			matched = append(matched, rr)
		}
	}
	if len(matched) > 0 {
		r.Cache.InsertRecords(matched)
		r.Cache.PublishToRemote(ctx, q.Name.String(), matched)
		return matched, nil
	}

	for _, rr := range resp.Answers {
		if rr.Type != wire.TypeCNAME {
			continue
		}
		r.Cache.InsertRecord(rr)
		target := rr.Data.CNAME
		subQ, err := wire.NewQuestion(target, q.Type, q.Class)
		if err != nil {
			return nil, ErrFormatError
		}
		rest, err := r.resolve(ctx, subQ, depth+1)
		if err != nil {
			return nil, err
		}
		return append([]wire.ResourceRecord{rr}, rest...), nil
	}

	return nil, ErrFormatError
}

// handleDelegation implements spec §4.I step 3e: every NS RR in the
// authority section becomes a queue candidate, Resolved if glue is
// present in the additional section, Unresolved otherwise. Every learned
// NS (and its glue) is cached by owner name.
func (r *Resolver) handleDelegation(ctx context.Context, resp *wire.Message, qname wire.Name, queue *NSQueue) bool {
	delegated := false
	for _, auth := range resp.Authorities {
		if auth.Type != wire.TypeNS {
			continue
		}
		delegated = true
		r.Cache.InsertRecord(auth)
		r.Cache.PublishToRemote(ctx, auth.Name.String(), []wire.ResourceRecord{auth})

		nsName := auth.Data.NS
		lvl := auth.Name.MatchingLabelCount(qname)

		if glue := findGlue(resp.Additionals, nsName); glue != nil {
			glueRRs := glueRecords(resp.Additionals, nsName)
			r.Cache.InsertRecords(glueRRs)
			r.Cache.PublishToRemote(ctx, nsName, glueRRs)
			host, ok := NewHost(nsName, glue)
			if ok {
				queue.Insert(host, lvl)
			}
		} else {
			queue.Insert(HostFromName(nsName), lvl)
		}
	}
	return delegated
}

// primeQueue implements spec §4.I step 2: seed with the roots, then walk
// progressively longer cached suffixes of the question name, promoting
// any NS already known for that suffix (Resolved if its address is also
// cached).
func (r *Resolver) primeQueue(name wire.Name) *NSQueue {
	queue := SeededNSQueue()

	for _, suffix := range name.Subdomains() {
		suffixName := wire.NewName(suffix)
		lvl := suffixName.MatchingLabelCount(name)

		for _, ns := range r.Cache.GetRecordsByType(suffix, wire.TypeNS) {
			nsName := ns.Data.NS
			if glueRRs := r.Cache.GetRecordsByType(nsName, wire.TypeA); len(glueRRs) > 0 {
				host, ok := NewHost(nsName, glueRRs[0].Data.A)
				if ok {
					queue.Insert(host, lvl)
					continue
				}
			}
			queue.Insert(HostFromName(nsName), lvl)
		}
	}

	return queue
}

func firstA(rrs []wire.ResourceRecord) net.IP {
	for _, rr := range rrs {
		if rr.Type == wire.TypeA {
			return rr.Data.A
		}
	}
	return nil
}

func findGlue(additionals []wire.ResourceRecord, name string) net.IP {
	want := wire.NewName(name)
	for _, rr := range additionals {
		if (rr.Type == wire.TypeA || rr.Type == wire.TypeAAAA) && rr.Name.Equal(want) {
			if rr.Type == wire.TypeA {
				return rr.Data.A
			}
			return rr.Data.AAAA
		}
	}
	return nil
}

func glueRecords(additionals []wire.ResourceRecord, name string) []wire.ResourceRecord {
	want := wire.NewName(name)
	var out []wire.ResourceRecord
	for _, rr := range additionals {
		if (rr.Type == wire.TypeA || rr.Type == wire.TypeAAAA) && rr.Name.Equal(want) {
			out = append(out, rr)
		}
	}
	return out
}

func negativeSOA(resp *wire.Message) (wire.ResourceRecord, bool) {
	for _, rr := range resp.Authorities {
		if rr.Type == wire.TypeSOA {
			return rr, true
		}
	}
	return wire.ResourceRecord{}, false
}
