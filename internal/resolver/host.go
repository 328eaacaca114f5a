package resolver

import "net"

// Host is a nameserver candidate: a name, an address, or both — the shape
// a delegation response leaves us with before and after following glue.
// A zero Host is never constructed directly; use NewHost or one of the
// From* helpers.
type Host struct {
	name string // dotted, lowercased; "" means unknown
	ip   net.IP
}

// NewHost builds a Host from whichever parts are known. At least one of
// name or ip must be set, mirroring the invariant that a Host must
// describe something we can eventually act on.
func NewHost(name string, ip net.IP) (Host, bool) {
	if name == "" && ip == nil {
		return Host{}, false
	}
	return Host{name: name, ip: ip}, true
}

// HostFromName builds an unresolved Host carrying only a name.
func HostFromName(name string) Host { return Host{name: name} }

// HostFromIP builds a resolved Host carrying only an address.
func HostFromIP(ip net.IP) Host { return Host{ip: ip} }

// Name reports the host's name, or "" if it was never known (e.g. a bare
// root hint IP).
func (h Host) Name() string { return h.name }

// Resolved reports whether h carries an address ready to dial.
func (h Host) Resolved() bool { return h.ip != nil }

// IP returns h's address, or nil if unresolved.
func (h Host) IP() net.IP { return h.ip }

// WithIP returns a copy of h with ip attached, used when a name-only Host
// gets resolved through a sub-query or glue record.
func (h Host) WithIP(ip net.IP) Host {
	h.ip = ip
	return h
}
