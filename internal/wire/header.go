package wire

// Flags packs the 16 bits following the DNS header's ID field: QR, Opcode,
// AA, TC, RD, RA, Z, AD, CD, RCODE. Stored as a single uint16 with bit
// accessors so unused/reserved bits round-trip unchanged through
// parse/serialize.
type Flags uint16

const (
	flagQR = 1 << 15
	flagTC = 1 << 9
	flagAA = 1 << 10
	flagRD = 1 << 8
	flagRA = 1 << 7
	flagZ  = 1 << 6
	flagAD = 1 << 5
	flagCD = 1 << 4
)

func (f Flags) QR() bool { return f&flagQR != 0 }
func (f Flags) AA() bool { return f&flagAA != 0 }
func (f Flags) TC() bool { return f&flagTC != 0 }
func (f Flags) RD() bool { return f&flagRD != 0 }
func (f Flags) RA() bool { return f&flagRA != 0 }
func (f Flags) Z() bool  { return f&flagZ != 0 }
func (f Flags) AD() bool { return f&flagAD != 0 }
func (f Flags) CD() bool { return f&flagCD != 0 }

// Opcode is bits 11-14.
func (f Flags) Opcode() uint8 { return uint8((f >> 11) & 0x0F) }

// Rcode is the low 4 bits.
func (f Flags) Rcode() uint8 { return uint8(f & 0x0F) }

func (f Flags) setBit(mask Flags, v bool) Flags {
	if v {
		return f | mask
	}
	return f &^ mask
}

func (f Flags) WithQR(v bool) Flags { return f.setBit(flagQR, v) }
func (f Flags) WithAA(v bool) Flags { return f.setBit(flagAA, v) }
func (f Flags) WithTC(v bool) Flags { return f.setBit(flagTC, v) }
func (f Flags) WithRD(v bool) Flags { return f.setBit(flagRD, v) }
func (f Flags) WithRA(v bool) Flags { return f.setBit(flagRA, v) }

func (f Flags) WithOpcode(op uint8) Flags {
	return (f &^ 0x7800) | Flags(op&0x0F)<<11
}

func (f Flags) WithRcode(rc uint8) Flags {
	return (f &^ 0x000F) | Flags(rc&0x0F)
}

// RCODE values this design produces (spec §7).
const (
	RcodeNoError  uint8 = 0
	RcodeFormErr  uint8 = 1
	RcodeServFail uint8 = 2
	RcodeNXDomain uint8 = 3
	RcodeNotImp   uint8 = 4
	RcodeRefused  uint8 = 5
)

// Header is the fixed 12-byte DNS message header.
type Header struct {
	ID      uint16
	Flags   Flags
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// SetResponseFlags sets QR=1, AA=0, RA=1 and preserves everything else
// (Z, AD, CD, Opcode, RD) as received — the contract spec §4.B requires of
// a response header derived from a request header.
func (h *Header) SetResponseFlags() {
	h.Flags = h.Flags.WithQR(true).WithAA(false).WithRA(true)
}

// Read parses the 12-byte header from buf.
func (h *Header) Read(buf *Buffer) error {
	var err error
	if h.ID, err = buf.ReadU16(); err != nil {
		return err
	}
	flags, err := buf.ReadU16()
	if err != nil {
		return err
	}
	h.Flags = Flags(flags)
	if h.QDCount, err = buf.ReadU16(); err != nil {
		return err
	}
	if h.ANCount, err = buf.ReadU16(); err != nil {
		return err
	}
	if h.NSCount, err = buf.ReadU16(); err != nil {
		return err
	}
	if h.ARCount, err = buf.ReadU16(); err != nil {
		return err
	}
	return nil
}

// Write serializes the header; always exactly 12 bytes.
func (h *Header) Write(buf *Buffer) error {
	if err := buf.WriteU16(h.ID); err != nil {
		return err
	}
	if err := buf.WriteU16(uint16(h.Flags)); err != nil {
		return err
	}
	if err := buf.WriteU16(h.QDCount); err != nil {
		return err
	}
	if err := buf.WriteU16(h.ANCount); err != nil {
		return err
	}
	if err := buf.WriteU16(h.NSCount); err != nil {
		return err
	}
	return buf.WriteU16(h.ARCount)
}
