package protocol

import "fmt"

type Code uint8

const (
	CodeRequestPing     Code = 0x01
	CodeRequestPause    Code = 0x02
	CodeRequestResume   Code = 0x04
	CodeRequestAddEvent Code = 0x06
	CodeRequestRawData  Code = 0x08

	CodeResponseOK             Code = 0x80
	CodeResponseError          Code = 0x81
	CodeResponseInvalidRequest Code = 0x82
	CodeResponseFeedback       Code = 0x83
	CodeResponsePong           Code = 0x88
)

var codeNames = map[Code]string{
	CodeRequestPing:            "PING",
	CodeRequestPause:           "PAUSE",
	CodeRequestResume:          "RESUME",
	CodeRequestAddEvent:        "ADD_EVENT",
	CodeRequestRawData:         "RAW_DATA",
	CodeResponseOK:             "OK",
	CodeResponseError:          "ERROR",
	CodeResponseInvalidRequest: "INVALID_REQUEST",
	CodeResponseFeedback:       "FEEDBACK",
	CodeResponsePong:           "PONG",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return fmt.Sprintf("UNKNOWN(0x%02x)", uint8(c))
}

// IsResponse reports whether c lies in the response half of the code space.
func (c Code) IsResponse() bool {
	return c&0x80 != 0
}
