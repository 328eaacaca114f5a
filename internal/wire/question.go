package wire

// ClassIN is the only class this design practically sees; Class is
// preserved verbatim rather than hardcoded wherever it's carried on the
// wire.
const ClassIN uint16 = 1

// Question is a single (name, type, class) triple.
type Question struct {
	Name  Name
	Type  RecordType
	Class uint16
}

// NewQuestion constructs a Question, rejecting names longer than the
// RFC 1035 §3.1 limit at construction per spec §4.C.
func NewQuestion(name string, t RecordType, class uint16) (Question, error) {
	n := NewName(name)
	if n.Len() > MaxNameOctets {
		return Question{}, formatErrorf("name %q exceeds %d octets", name, MaxNameOctets)
	}
	return Question{Name: n, Type: t, Class: class}, nil
}

// Read parses a question: name, type (u16 BE), class (u16 BE).
func (q *Question) Read(buf *Buffer) error {
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
	q.Name = NewName(name)
	q.Type = RecordType(t)
	q.Class = class
	return nil
}

// Write serializes name, type, class in that order.
func (q Question) Write(buf *Buffer) error {
	if err := buf.WriteName(q.Name.String()); err != nil {
		return err
	}
	if err := buf.WriteU16(uint16(q.Type)); err != nil {
		return err
	}
	return buf.WriteU16(q.Class)
}
