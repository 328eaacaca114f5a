// Package dispatcher binds the single UDP socket this resolver listens on
// and hands each datagram to a bounded pool of worker goroutines, per
// spec §4.J — deliberately not the teacher's SO_REUSEPORT multi-listener,
// multi-protocol fan-out (see DESIGN.md).
package dispatcher

import (
	"context"
	"log/slog"
	"net"
	"runtime"

	"github.com/nslookup-labs/resolverd/internal/metrics"
	"github.com/nslookup-labs/resolverd/internal/resolver"
	"github.com/nslookup-labs/resolverd/internal/wire"
)

type datagram struct {
	data []byte
	addr net.Addr
}

// Dispatcher owns the listening socket and the worker pool that answers
// queries arriving on it.
type Dispatcher struct {
	Resolver *resolver.Resolver
	Logger   *slog.Logger

	// Workers bounds the worker pool; zero falls back to
	// runtime.NumCPU()*8, grounded on the teacher's WorkerCount knob.
	Workers int

	queue chan datagram
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Dispatcher) workers() int {
	if d.Workers > 0 {
		return d.Workers
	}
	return runtime.NumCPU() * 8
}

// Run binds a single UDP socket at addr and serves until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context, addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	d.queue = make(chan datagram, 4096)
	for i := 0; i < d.workers(); i++ {
		go d.worker(ctx, conn)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	d.logger().Info("dispatcher listening", "addr", addr, "workers", d.workers())

	buf := make([]byte, wire.EDNSBufferSize)
	for {
		n, clientAddr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case d.queue <- datagram{data: data, addr: clientAddr}:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// The pool is saturated; drop rather than block the accept
			// loop, per spec §4.J's "must remain responsive" requirement.
			d.logger().Warn("dispatch queue full, dropping datagram", "from", clientAddr)
		}
	}
}

func (d *Dispatcher) worker(ctx context.Context, conn net.PacketConn) {
	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	for {
		select {
		case <-ctx.Done():
			return
		case dg, ok := <-d.queue:
			if !ok {
				return
			}
			d.handle(ctx, conn, dg)
		}
	}
}

// handle processes one datagram end to end, recovering from any panic so
// a single malformed packet or resolver bug can never take the daemon
// down — an addition beyond the teacher, required by spec §7.
func (d *Dispatcher) handle(ctx context.Context, conn net.PacketConn, dg datagram) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.Inc()
			d.logger().Error("recovered panic handling datagram", "from", dg.addr, "panic", r)
		}
	}()

	resp := d.answer(ctx, dg.data)
	if resp == nil {
		return
	}
	if _, err := conn.WriteTo(resp, dg.addr); err != nil {
		d.logger().Warn("failed to send response", "to", dg.addr, "error", err)
	}
}

// answer implements spec §4.J's per-datagram logic: parse, validate,
// resolve, build a response. Returns nil when the inbound datagram was
// too malformed to even echo an ID back (never happens for a
// well-formed 12-byte-or-more header, but Parse can fail earlier).
func (d *Dispatcher) answer(ctx context.Context, data []byte) []byte {
	req, err := wire.ParseMessage(data)
	if err != nil {
		d.logger().Warn("failed to parse inbound datagram", "error", err)
		var hdr wire.Header
		buf := wire.GetBuffer()
		defer wire.PutBuffer(buf)
		buf.Load(data)
		if hdr.Read(buf) != nil || hdr.Flags.QR() {
			return nil
		}
		formErr := wire.NewMessage()
		formErr.Header.ID = hdr.ID
		formErr.Header.Flags = hdr.Flags
		formErr.Header.SetResponseFlags()
		formErr.Header.Flags = formErr.Header.Flags.WithRcode(wire.RcodeFormErr)
		out, _ := formErr.Bytes()
		return out
	}

	resp := wire.NewMessage()
	resp.Header.ID = req.Header.ID
	resp.Header.Flags = req.Header.Flags
	resp.Header.SetResponseFlags()

	if req.Header.Flags.QR() {
		return nil // a response was sent to us; not ours to answer.
	}
	if req.Header.Flags.Opcode() != 0 || req.Header.QDCount != 1 || len(req.Questions) != 1 {
		resp.Header.Flags = resp.Header.Flags.WithRcode(wire.RcodeNotImp)
		metrics.QueriesTotal.WithLabelValues("unknown", "4").Inc()
		data, _ := resp.Bytes()
		return data
	}

	question := req.Questions[0]
	resp.AddQuestion(question)

	rrs, resolveErr := d.Resolver.Resolve(ctx, question)
	rcode := resolver.RCode(resolveErr)
	resp.Header.Flags = resp.Header.Flags.WithRcode(rcode)

	switch rcode {
	case wire.RcodeNXDomain:
		for _, rr := range rrs {
			resp.AddAuthority(rr)
		}
	case wire.RcodeNoError:
		for _, rr := range rrs {
			resp.AddAnswer(rr)
		}
	}

	metrics.QueriesTotal.WithLabelValues(question.Type.String(), rcodeLabel(rcode)).Inc()

	out, err := resp.Bytes()
	if err != nil {
		d.logger().Error("failed to serialize response", "error", err)
		return nil
	}
	return out
}

func rcodeLabel(rcode uint8) string {
	switch rcode {
	case wire.RcodeNoError:
		return "0"
	case wire.RcodeFormErr:
		return "1"
	case wire.RcodeServFail:
		return "2"
	case wire.RcodeNXDomain:
		return "3"
	case wire.RcodeNotImp:
		return "4"
	case wire.RcodeRefused:
		return "5"
	default:
		return "unknown"
	}
}
