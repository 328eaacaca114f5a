package resolver

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/nslookup-labs/resolverd/internal/wire"
)

// Exchanger sends one query message to addr ("ip:port") and returns the
// parsed response. It is the seam tests substitute with a mock, mirroring
// the teacher's injectable queryFn.
type Exchanger interface {
	Exchange(ctx context.Context, addr string, query *wire.Message) (*wire.Message, error)
}

// ExchangerFunc adapts a plain function to the Exchanger interface.
type ExchangerFunc func(ctx context.Context, addr string, query *wire.Message) (*wire.Message, error)

func (f ExchangerFunc) Exchange(ctx context.Context, addr string, query *wire.Message) (*wire.Message, error) {
	return f(ctx, addr, query)
}

// UDPExchanger is the real exchange implementation: one UDP socket per
// call, bound to an ephemeral local port, per spec §4.I step 1.
type UDPExchanger struct{}

func (UDPExchanger) Exchange(ctx context.Context, addr string, query *wire.Message) (*wire.Message, error) {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	data, err := query.Bytes()
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("write to %s: %w", addr, err)
	}

	buf := make([]byte, wire.EDNSBufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read from %s: %w", addr, err)
	}

	return wire.ParseMessage(buf[:n])
}

// newTransactionID draws a cryptographically random 16-bit query ID, so a
// guessed or replayed ID can't be trivially spoofed into a match.
func newTransactionID() uint16 {
	var id uint16
	_ = binary.Read(rand.Reader, binary.BigEndian, &id)
	return id
}

// buildQuery constructs an iterative (RD=0) query carrying exactly one
// question, per spec §4.I step 1.
func buildQuery(q wire.Question) *wire.Message {
	m := wire.NewMessage()
	m.Header.ID = newTransactionID()
	m.AddQuestion(q)
	return m
}

// matchesQuery reports whether resp answers query: same transaction ID
// and an echoed question section, per spec §4.I step 3c.
func matchesQuery(query, resp *wire.Message) bool {
	if resp.Header.ID != query.Header.ID {
		return false
	}
	if len(resp.Questions) != len(query.Questions) {
		return false
	}
	for i, q := range query.Questions {
		rq := resp.Questions[i]
		if !rq.Name.Equal(q.Name) || rq.Type != q.Type || rq.Class != q.Class {
			return false
		}
	}
	return true
}

const hopTimeout = 2 * time.Second
