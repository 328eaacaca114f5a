package wire

import (
	"errors"
	"fmt"
	"net"
)

// RecordType is the wire integer identifying a resource record's shape.
type RecordType uint16

const (
	TypeA     RecordType = 1
	TypeNS    RecordType = 2
	TypeCNAME RecordType = 5
	TypeSOA   RecordType = 6
	TypePTR   RecordType = 12
	TypeMX    RecordType = 15
	TypeTXT   RecordType = 16
	TypeAAAA  RecordType = 28
	TypeOPT   RecordType = 41
)

func (t RecordType) String() string {
	switch t {
	case TypeA:
		return "A"
	case TypeNS:
		return "NS"
	case TypeCNAME:
		return "CNAME"
	case TypeSOA:
		return "SOA"
	case TypePTR:
		return "PTR"
	case TypeMX:
		return "MX"
	case TypeTXT:
		return "TXT"
	case TypeAAAA:
		return "AAAA"
	case TypeOPT:
		return "OPT"
	default:
		return fmt.Sprintf("TYPE%d", uint16(t))
	}
}

// ErrFormat wraps every malformed-wire-data condition the codec can
// observe, so callers can classify without string matching.
var ErrFormat = errors.New("wire: format error")

func formatErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrFormat}, args...)...)
}

// SOAData is the Start-of-Authority payload.
type SOAData struct {
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

// MXData is the Mail Exchange payload.
type MXData struct {
	Preference uint16
	Exchange   string
}

// RecordData is the tagged union of record payloads. Exactly one of the
// typed fields is meaningful, selected by Type; unknown wire types land in
// Other, preserving their raw bytes verbatim.
type RecordData struct {
	Type RecordType

	A     net.IP // 4 bytes, TypeA
	AAAA  net.IP // 16 bytes, TypeAAAA
	NS    string // TypeNS
	CNAME string // TypeCNAME
	PTR   string // TypePTR
	SOA   SOAData
	MX    MXData
	TXT   []string // one or more character-strings

	Other []byte // raw rdata for any type not listed above, OPT included
}

// ReadRecordData parses length bytes of rdata starting at the cursor for
// the given type, using buf for name decompression where needed. The
// cursor is advanced by exactly length regardless of what the inner parser
// consumed, per spec §4.E.
func ReadRecordData(buf *Buffer, t RecordType, length int) (RecordData, error) {
	start := buf.Position()
	d := RecordData{Type: t}

	switch t {
	case TypeA:
		if length != 4 {
			return d, formatErrorf("A rdata length %d != 4", length)
		}
		raw, err := buf.ReadRange(buf.Position(), 4)
		if err != nil {
			return d, err
		}
		d.A = net.IP(raw)
		buf.Step(4)

	case TypeAAAA:
		if length != 16 {
			return d, formatErrorf("AAAA rdata length %d != 16", length)
		}
		raw, err := buf.ReadRange(buf.Position(), 16)
		if err != nil {
			return d, err
		}
		d.AAAA = net.IP(raw)
		buf.Step(16)

	case TypeNS:
		name, err := buf.ReadName()
		if err != nil {
			return d, err
		}
		d.NS = name

	case TypeCNAME:
		name, err := buf.ReadName()
		if err != nil {
			return d, err
		}
		d.CNAME = name

	case TypePTR:
		name, err := buf.ReadName()
		if err != nil {
			return d, err
		}
		d.PTR = name

	case TypeMX:
		pref, err := buf.ReadU16()
		if err != nil {
			return d, err
		}
		exch, err := buf.ReadName()
		if err != nil {
			return d, err
		}
		d.MX = MXData{Preference: pref, Exchange: exch}

	case TypeTXT:
		end := start + length
		for buf.Position() < end {
			strLen, err := buf.Read()
			if err != nil {
				return d, err
			}
			raw, err := buf.ReadRange(buf.Position(), int(strLen))
			if err != nil {
				return d, err
			}
			buf.Step(int(strLen))
			d.TXT = append(d.TXT, string(raw))
		}

	case TypeSOA:
		mname, err := buf.ReadName()
		if err != nil {
			return d, err
		}
		rname, err := buf.ReadName()
		if err != nil {
			return d, err
		}
		serial, err := buf.ReadU32()
		if err != nil {
			return d, err
		}
		refresh, err := buf.ReadU32()
		if err != nil {
			return d, err
		}
		retry, err := buf.ReadU32()
		if err != nil {
			return d, err
		}
		expire, err := buf.ReadU32()
		if err != nil {
			return d, err
		}
		minimum, err := buf.ReadU32()
		if err != nil {
			return d, err
		}
		d.SOA = SOAData{mname, rname, serial, refresh, retry, expire, minimum}

	default:
		raw, err := buf.ReadRange(buf.Position(), length)
		if err != nil {
			return d, err
		}
		buf.Step(length)
		d.Other = raw
	}

	consumed := buf.Position() - start
	if consumed != length {
		// The inner parser didn't consume exactly rdlen bytes (a
		// compressed name inside rdata can do this legitimately via
		// ReadName's cursor restore, so only a compressed-name type
		// can land here with consumed < length through pointer reuse).
		// Re-seek to the declared boundary regardless: the framing's
		// rdlen is authoritative, never the inner parser's opinion.
		buf.Seek(start + length)
	}

	return d, nil
}

// Write serializes the rdata body (not including the rdlen prefix, which
// the caller backpatches once the body length is known).
func (d RecordData) Write(buf *Buffer) error {
	switch d.Type {
	case TypeA:
		ip4 := d.A.To4()
		if ip4 == nil {
			return formatErrorf("A record missing IPv4 address")
		}
		return buf.WriteBytes(ip4)

	case TypeAAAA:
		ip16 := d.AAAA.To16()
		if ip16 == nil {
			return formatErrorf("AAAA record missing IPv6 address")
		}
		return buf.WriteBytes(ip16)

	case TypeNS:
		return buf.WriteName(d.NS)

	case TypeCNAME:
		return buf.WriteName(d.CNAME)

	case TypePTR:
		return buf.WriteName(d.PTR)

	case TypeMX:
		if err := buf.WriteU16(d.MX.Preference); err != nil {
			return err
		}
		return buf.WriteName(d.MX.Exchange)

	case TypeTXT:
		strs := d.TXT
		if len(strs) == 0 {
			strs = []string{""}
		}
		for _, s := range strs {
			if len(s) > 255 {
				return formatErrorf("TXT character-string exceeds 255 octets")
			}
			if err := buf.Write(byte(len(s))); err != nil {
				return err
			}
			if err := buf.WriteBytes([]byte(s)); err != nil {
				return err
			}
		}
		return nil

	case TypeSOA:
		if err := buf.WriteName(d.SOA.MName); err != nil {
			return err
		}
		if err := buf.WriteName(d.SOA.RName); err != nil {
			return err
		}
		if err := buf.WriteU32(d.SOA.Serial); err != nil {
			return err
		}
		if err := buf.WriteU32(d.SOA.Refresh); err != nil {
			return err
		}
		if err := buf.WriteU32(d.SOA.Retry); err != nil {
			return err
		}
		if err := buf.WriteU32(d.SOA.Expire); err != nil {
			return err
		}
		return buf.WriteU32(d.SOA.Minimum)

	default:
		return buf.WriteBytes(d.Other)
	}
}
