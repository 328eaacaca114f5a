package resolver

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/nslookup-labs/resolverd/internal/cache"
	"github.com/nslookup-labs/resolverd/internal/wire"
)

func mustQuestion(t *testing.T, name string, qtype wire.RecordType) wire.Question {
	t.Helper()
	q, err := wire.NewQuestion(name, qtype, wire.ClassIN)
	if err != nil {
		t.Fatalf("NewQuestion(%q) failed: %v", name, err)
	}
	return q
}

func aAnswer(name string, ip string, ttl uint32) wire.ResourceRecord {
	return wire.ResourceRecord{
		Name: wire.NewName(name), Type: wire.TypeA, Class: wire.ClassIN, TTL: ttl,
		Data: wire.RecordData{Type: wire.TypeA, A: net.ParseIP(ip)},
	}
}

func nsAuthority(zone, ns string) wire.ResourceRecord {
	return wire.ResourceRecord{
		Name: wire.NewName(zone), Type: wire.TypeNS, Class: wire.ClassIN, TTL: 3600,
		Data: wire.RecordData{Type: wire.TypeNS, NS: ns},
	}
}

func soaAuthority(zone string) wire.ResourceRecord {
	return wire.ResourceRecord{
		Name: wire.NewName(zone), Type: wire.TypeSOA, Class: wire.ClassIN, TTL: 3600,
		Data: wire.RecordData{Type: wire.TypeSOA, SOA: wire.SOAData{
			MName: "ns." + zone, RName: "hostmaster." + zone,
			Serial: 1, Refresh: 1, Retry: 1, Expire: 1, Minimum: 60,
		}},
	}
}

func newTestResolver(exchange ExchangerFunc) *Resolver {
	return &Resolver{Cache: cache.New(), Exchange: exchange}
}

// TestResolveDirectAnswer simulates every root server immediately
// answering the query, the simplest possible success path.
func TestResolveDirectAnswer(t *testing.T) {
	r := newTestResolver(func(ctx context.Context, addr string, query *wire.Message) (*wire.Message, error) {
		resp := wire.NewMessage()
		resp.Header.ID = query.Header.ID
		resp.AddQuestion(query.Questions[0])
		resp.AddAnswer(aAnswer("example.com.", "93.184.216.34", 300))
		return resp, nil
	})

	q := mustQuestion(t, "example.com.", wire.TypeA)
	rrs, err := r.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(rrs) != 1 || !rrs[0].Data.A.Equal(net.ParseIP("93.184.216.34")) {
		t.Fatalf("unexpected answer: %+v", rrs)
	}
}

// TestResolveFollowsDelegationWithGlue simulates root delegating to a TLD
// server (with glue) which then answers directly.
func TestResolveFollowsDelegationWithGlue(t *testing.T) {
	const tldIP = "1.1.1.1"

	r := newTestResolver(func(ctx context.Context, addr string, query *wire.Message) (*wire.Message, error) {
		resp := wire.NewMessage()
		resp.Header.ID = query.Header.ID
		resp.AddQuestion(query.Questions[0])

		if addr == net.JoinHostPort(tldIP, "53") {
			resp.AddAnswer(aAnswer("example.com.", "93.184.216.34", 300))
			return resp, nil
		}

		// Any root hint: delegate to the "com." TLD server with glue.
		resp.AddAuthority(nsAuthority("com.", "a.gtld-servers.net."))
		resp.AddAdditional(aAnswer("a.gtld-servers.net.", tldIP, 3600))
		return resp, nil
	})

	q := mustQuestion(t, "example.com.", wire.TypeA)
	rrs, err := r.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(rrs) != 1 || !rrs[0].Data.A.Equal(net.ParseIP("93.184.216.34")) {
		t.Fatalf("unexpected answer: %+v", rrs)
	}

	if got := r.Cache.GetRecordsByType("com.", wire.TypeNS); len(got) != 1 {
		t.Errorf("expected the delegation NS to be cached, got %d", len(got))
	}
}

// TestResolveFollowsDelegationWithoutGlue forces a recursive sub-resolution
// of the nameserver's own name before the delegation can be followed.
func TestResolveFollowsDelegationWithoutGlue(t *testing.T) {
	const nsHostIP = "2.2.2.2"

	r := newTestResolver(func(ctx context.Context, addr string, query *wire.Message) (*wire.Message, error) {
		resp := wire.NewMessage()
		resp.Header.ID = query.Header.ID
		resp.AddQuestion(query.Questions[0])
		qname := query.Questions[0].Name.String()

		switch {
		case qname == "ns.example.net." && query.Questions[0].Type == wire.TypeA:
			resp.AddAnswer(aAnswer("ns.example.net.", nsHostIP, 3600))
			return resp, nil
		case addr == net.JoinHostPort(nsHostIP, "53"):
			resp.AddAnswer(aAnswer("example.net.", "93.184.216.35", 300))
			return resp, nil
		default:
			// Root hint: delegate with no glue at all.
			resp.AddAuthority(nsAuthority("example.net.", "ns.example.net."))
			return resp, nil
		}
	})

	q := mustQuestion(t, "example.net.", wire.TypeA)
	rrs, err := r.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(rrs) != 1 || !rrs[0].Data.A.Equal(net.ParseIP("93.184.216.35")) {
		t.Fatalf("unexpected answer: %+v", rrs)
	}
}

// TestResolveCNAMEChase confirms a CNAME answer restarts resolution with
// the target name, per spec §4.I step 3d.
func TestResolveCNAMEChase(t *testing.T) {
	r := newTestResolver(func(ctx context.Context, addr string, query *wire.Message) (*wire.Message, error) {
		resp := wire.NewMessage()
		resp.Header.ID = query.Header.ID
		resp.AddQuestion(query.Questions[0])
		qname := query.Questions[0].Name.String()

		if qname == "www.example.com." {
			resp.AddAnswer(wire.ResourceRecord{
				Name: wire.NewName("www.example.com."), Type: wire.TypeCNAME, Class: wire.ClassIN, TTL: 300,
				Data: wire.RecordData{Type: wire.TypeCNAME, CNAME: "example.com."},
			})
			return resp, nil
		}
		resp.AddAnswer(aAnswer("example.com.", "93.184.216.34", 300))
		return resp, nil
	})

	q := mustQuestion(t, "www.example.com.", wire.TypeA)
	rrs, err := r.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(rrs) != 2 {
		t.Fatalf("expected CNAME + A, got %+v", rrs)
	}
	if rrs[0].Type != wire.TypeCNAME || rrs[1].Type != wire.TypeA {
		t.Errorf("unexpected record order: %+v", rrs)
	}
}

// TestResolveNXDOMAIN confirms a bare SOA authority with no answers and no
// NS produces the negative-answer contract: ErrNameError plus the SOA.
func TestResolveNXDOMAIN(t *testing.T) {
	r := newTestResolver(func(ctx context.Context, addr string, query *wire.Message) (*wire.Message, error) {
		resp := wire.NewMessage()
		resp.Header.ID = query.Header.ID
		resp.AddQuestion(query.Questions[0])
		resp.AddAuthority(soaAuthority("example.invalid."))
		return resp, nil
	})

	q := mustQuestion(t, "nope.example.invalid.", wire.TypeA)
	rrs, err := r.Resolve(context.Background(), q)
	if !errors.Is(err, ErrNameError) {
		t.Fatalf("expected ErrNameError, got %v", err)
	}
	if len(rrs) != 1 || rrs[0].Type != wire.TypeSOA {
		t.Fatalf("expected a single SOA record, got %+v", rrs)
	}
	if RCode(err) != wire.RcodeNXDomain {
		t.Errorf("expected RCODE %d, got %d", wire.RcodeNXDomain, RCode(err))
	}
}

// TestResolveDeadEndFails confirms a response with no answer, no
// delegation and no SOA is a ServerFailure per spec §4.I step 3g.
func TestResolveDeadEndFails(t *testing.T) {
	r := newTestResolver(func(ctx context.Context, addr string, query *wire.Message) (*wire.Message, error) {
		resp := wire.NewMessage()
		resp.Header.ID = query.Header.ID
		resp.AddQuestion(query.Questions[0])
		return resp, nil
	})

	q := mustQuestion(t, "example.com.", wire.TypeA)
	_, err := r.Resolve(context.Background(), q)
	if !errors.Is(err, ErrServerFailure) {
		t.Fatalf("expected ErrServerFailure, got %v", err)
	}
}

// TestResolveRetriesNextHostOnExchangeError confirms a failing nameserver
// doesn't abort resolution while other roots remain.
func TestResolveRetriesNextHostOnExchangeError(t *testing.T) {
	var attempts int
	r := newTestResolver(func(ctx context.Context, addr string, query *wire.Message) (*wire.Message, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("simulated timeout")
		}
		resp := wire.NewMessage()
		resp.Header.ID = query.Header.ID
		resp.AddQuestion(query.Questions[0])
		resp.AddAnswer(aAnswer("example.com.", "93.184.216.34", 300))
		return resp, nil
	})

	q := mustQuestion(t, "example.com.", wire.TypeA)
	rrs, err := r.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(rrs) != 1 {
		t.Fatalf("unexpected answer: %+v", rrs)
	}
}

func TestResolvePrimesFromCache(t *testing.T) {
	c := cache.New()
	c.InsertRecord(nsAuthority("com.", "a.gtld-servers.net."))
	c.InsertRecord(aAnswer("a.gtld-servers.net.", "1.1.1.1", 3600))

	var dialedRoot bool
	r := &Resolver{Cache: c, Exchange: ExchangerFunc(func(ctx context.Context, addr string, query *wire.Message) (*wire.Message, error) {
		resp := wire.NewMessage()
		resp.Header.ID = query.Header.ID
		resp.AddQuestion(query.Questions[0])
		if addr == net.JoinHostPort("1.1.1.1", "53") {
			resp.AddAnswer(aAnswer("example.com.", "93.184.216.34", 300))
			return resp, nil
		}
		dialedRoot = true
		resp.AddAuthority(nsAuthority("com.", "a.gtld-servers.net."))
		resp.AddAdditional(aAnswer("a.gtld-servers.net.", "1.1.1.1", 3600))
		return resp, nil
	})}

	q := mustQuestion(t, "example.com.", wire.TypeA)
	rrs, err := r.Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(rrs) != 1 {
		t.Fatalf("unexpected answer: %+v", rrs)
	}
	if dialedRoot {
		t.Error("expected the cached, deeper-level TLD nameserver to be tried before any root hint")
	}
}
