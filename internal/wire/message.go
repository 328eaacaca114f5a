package wire

// Message is a full DNS packet: header plus the four sections.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []ResourceRecord
	Authorities []ResourceRecord
	Additionals []ResourceRecord
}

// NewMessage returns an empty message with a zeroed header.
func NewMessage() *Message {
	return &Message{}
}

// AddQuestion appends q and keeps QDCount in sync with len(Questions). Read
// trusts the header counters; Write recomputes them from the slices.
func (m *Message) AddQuestion(q Question) {
	m.Questions = append(m.Questions, q)
	m.Header.QDCount = uint16(len(m.Questions))
}

func (m *Message) AddAnswer(rr ResourceRecord) {
	m.Answers = append(m.Answers, rr)
	m.Header.ANCount = uint16(len(m.Answers))
}

func (m *Message) AddAuthority(rr ResourceRecord) {
	m.Authorities = append(m.Authorities, rr)
	m.Header.NSCount = uint16(len(m.Authorities))
}

func (m *Message) AddAdditional(rr ResourceRecord) {
	m.Additionals = append(m.Additionals, rr)
	m.Header.ARCount = uint16(len(m.Additionals))
}

// Read parses the header then exactly qd/an/ns/ar records from each
// section, in order.
func (m *Message) Read(buf *Buffer) error {
	if err := m.Header.Read(buf); err != nil {
		return err
	}

	m.Questions = make([]Question, 0, m.Header.QDCount)
	for i := 0; i < int(m.Header.QDCount); i++ {
		var q Question
		if err := q.Read(buf); err != nil {
			return err
		}
		m.Questions = append(m.Questions, q)
	}

	var err error
	if m.Answers, err = readRRs(buf, int(m.Header.ANCount)); err != nil {
		return err
	}
	if m.Authorities, err = readRRs(buf, int(m.Header.NSCount)); err != nil {
		return err
	}
	if m.Additionals, err = readRRs(buf, int(m.Header.ARCount)); err != nil {
		return err
	}
	return nil
}

func readRRs(buf *Buffer, count int) ([]ResourceRecord, error) {
	out := make([]ResourceRecord, 0, count)
	for i := 0; i < count; i++ {
		var rr ResourceRecord
		if err := rr.Read(buf); err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, nil
}

// Write serializes the whole message: header, then each section in order.
// Section counters are recomputed from the slice lengths immediately
// before writing, so Add* helpers and direct slice mutation both work.
func (m *Message) Write(buf *Buffer) error {
	m.Header.QDCount = uint16(len(m.Questions))
	m.Header.ANCount = uint16(len(m.Answers))
	m.Header.NSCount = uint16(len(m.Authorities))
	m.Header.ARCount = uint16(len(m.Additionals))

	if err := m.Header.Write(buf); err != nil {
		return err
	}
	for _, q := range m.Questions {
		if err := q.Write(buf); err != nil {
			return err
		}
	}
	for _, rr := range m.Answers {
		if err := rr.Write(buf); err != nil {
			return err
		}
	}
	for _, rr := range m.Authorities {
		if err := rr.Write(buf); err != nil {
			return err
		}
	}
	for _, rr := range m.Additionals {
		if err := rr.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// ParseMessage is a convenience wrapper for parsing a received datagram.
func ParseMessage(data []byte) (*Message, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)
	buf.Load(data)

	m := NewMessage()
	if err := m.Read(buf); err != nil {
		return nil, err
	}
	return m, nil
}

// Bytes serializes m into a freshly allocated slice.
func (m *Message) Bytes() ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if err := m.Write(buf); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Position())
	copy(out, buf.Buf[:buf.Position()])
	return out, nil
}
