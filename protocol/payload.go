package protocol

// StringPayload is a UTF-8 text payload that remembers the bytes it was built
// from, so logging a decoded message never loses what was on the wire.
type StringPayload struct {
	text string
	raw  []byte
}

func stringPayload(s string) StringPayload {
	return StringPayload{text: s, raw: []byte(s)}
}

func stringPayloadFromBytes(b []byte) StringPayload {
	raw := make([]byte, len(b))
	copy(raw, b)

	return StringPayload{text: string(raw), raw: raw}
}

// Text returns the decoded payload.
func (p StringPayload) Text() string {
	return p.text
}

// Bytes returns the payload as it appears on the wire.
func (p StringPayload) Bytes() []byte {
	return p.raw
}

func (p StringPayload) Payload() []byte {
	return p.raw
}

// emptyPayload is embedded by messages where the code is the whole message.
type emptyPayload struct{}

func (emptyPayload) Payload() []byte {
	return nil
}
