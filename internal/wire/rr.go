package wire

import (
	"bytes"
	"encoding/binary"
)

// ResourceRecord wraps (name, type, class, ttl, data). Equality and hashing
// for cache purposes deliberately ignore TTL — see CacheKey/dataFingerprint.
type ResourceRecord struct {
	Name  Name
	Type  RecordType
	Class uint16
	TTL   uint32
	Data  RecordData
}

// Read parses the RR framing: name | type:u16 | class:u16 | ttl:u32 |
// rdlen:u16 | rdata[rdlen]. The cursor advances by exactly rdlen after the
// inner rdata parser runs, per spec §4.E.
func (rr *ResourceRecord) Read(buf *Buffer) error {
	name, err := buf.ReadName()
	if err != nil {
		return err
	}
	t, err := buf.ReadU16()
	if err != nil {
		return err
	}
	class, err := buf.ReadU16()
	if err != nil {
		return err
	}
	ttl, err := buf.ReadU32()
	if err != nil {
		return err
	}
	rdlen, err := buf.ReadU16()
	if err != nil {
		return err
	}

	data, err := ReadRecordData(buf, RecordType(t), int(rdlen))
	if err != nil {
		return err
	}

	rr.Name = NewName(name)
	rr.Type = RecordType(t)
	rr.Class = class
	rr.TTL = ttl
	rr.Data = data
	return nil
}

// Write serializes the RR. rdlen is always computed from the produced
// rdata bytes, never read from the struct, per spec §4.E.
func (rr ResourceRecord) Write(buf *Buffer) error {
	if err := buf.WriteName(rr.Name.String()); err != nil {
		return err
	}
	if err := buf.WriteU16(uint16(rr.Type)); err != nil {
		return err
	}
	if err := buf.WriteU16(rr.Class); err != nil {
		return err
	}
	if err := buf.WriteU32(rr.TTL); err != nil {
		return err
	}

	lenPos := buf.Position()
	if err := buf.WriteU16(0); err != nil {
		return err
	}
	bodyStart := buf.Position()
	if err := rr.Data.Write(buf); err != nil {
		return err
	}
	bodyEnd := buf.Position()

	buf.Seek(lenPos)
	if err := buf.WriteU16(uint16(bodyEnd - bodyStart)); err != nil {
		return err
	}
	buf.Seek(bodyEnd)
	return nil
}

// CacheKey identifies an RRset: every RR maps to exactly one key, though
// many RRs may share one (spec §3).
type CacheKey struct {
	Class uint16
	Type  RecordType
	Name  string // Name.String(), already lowercased
}

func (rr ResourceRecord) CacheKey() CacheKey {
	return CacheKey{Class: rr.Class, Type: rr.Type, Name: rr.Name.String()}
}

// dataFingerprint is a deterministic encoding of an RR's (name, type,
// class, data) — everything except TTL — used as the cache's dedup key, so
// that two RRs differing only in TTL compare equal per spec §3/§8.
func (rr ResourceRecord) dataFingerprint() string {
	var buf bytes.Buffer
	buf.WriteString(rr.Name.String())
	buf.WriteByte(0)
	_ = binary.Write(&buf, binary.BigEndian, uint16(rr.Type))
	_ = binary.Write(&buf, binary.BigEndian, rr.Class)

	d := rr.Data
	switch d.Type {
	case TypeA:
		buf.Write(d.A.To4())
	case TypeAAAA:
		buf.Write(d.AAAA.To16())
	case TypeNS:
		buf.WriteString(d.NS)
	case TypeCNAME:
		buf.WriteString(d.CNAME)
	case TypePTR:
		buf.WriteString(d.PTR)
	case TypeMX:
		_ = binary.Write(&buf, binary.BigEndian, d.MX.Preference)
		buf.WriteString(d.MX.Exchange)
	case TypeTXT:
		for _, s := range d.TXT {
			buf.WriteString(s)
			buf.WriteByte(0)
		}
	case TypeSOA:
		buf.WriteString(d.SOA.MName)
		buf.WriteString(d.SOA.RName)
		_ = binary.Write(&buf, binary.BigEndian, d.SOA.Serial)
		_ = binary.Write(&buf, binary.BigEndian, d.SOA.Refresh)
		_ = binary.Write(&buf, binary.BigEndian, d.SOA.Retry)
		_ = binary.Write(&buf, binary.BigEndian, d.SOA.Expire)
		_ = binary.Write(&buf, binary.BigEndian, d.SOA.Minimum)
	default:
		buf.Write(d.Other)
	}
	return buf.String()
}

// Equal reports whether two RRs are cache-equivalent: same name, type,
// class and data, ignoring TTL.
func (rr ResourceRecord) Equal(other ResourceRecord) bool {
	return rr.dataFingerprint() == other.dataFingerprint()
}
