package protocol

import (
	"errors"
	"fmt"
)

// Message is implemented by every request and response variant.
type Message interface {
	Code() Code
	Payload() []byte
}

// Response is a message sent from the server to a client. The set of
// responses is closed: *OK, *ServerError, *InvalidRequest, *Feedback and *Pong.
type Response interface {
	Message
	response()
}

type OK struct{ emptyPayload }

func (*OK) Code() Code { return CodeResponseOK }

// ServerError reports that the server failed to handle an otherwise valid request.
type ServerError struct{ StringPayload }

func NewServerError(reason string) *ServerError {
	return &ServerError{stringPayload(reason)}
}

func ServerErrorFromBytes(b []byte) *ServerError {
	return &ServerError{stringPayloadFromBytes(b)}
}

func (*ServerError) Code() Code { return CodeResponseError }

// InvalidRequest reports that the server rejected a request for a structural
// or validation reason. The payload carries the reason.
type InvalidRequest struct{ StringPayload }

func NewInvalidRequest(reason string) *InvalidRequest {
	return &InvalidRequest{stringPayload(reason)}
}

func InvalidRequestFromBytes(b []byte) *InvalidRequest {
	return &InvalidRequest{stringPayloadFromBytes(b)}
}

func (*InvalidRequest) Code() Code { return CodeResponseInvalidRequest }

// Feedback carries text the server wants shown to the participant.
type Feedback struct{ StringPayload }

func NewFeedback(text string) *Feedback {
	return &Feedback{stringPayload(text)}
}

func FeedbackFromBytes(b []byte) *Feedback {
	return &Feedback{stringPayloadFromBytes(b)}
}

func (*Feedback) Code() Code { return CodeResponseFeedback }

type Pong struct{ emptyPayload }

func (*Pong) Code() Code { return CodeResponsePong }

func (*OK) response()             {}
func (*ServerError) response()    {}
func (*InvalidRequest) response() {}
func (*Feedback) response()       {}
func (*Pong) response()           {}

var (
	ErrServer         = errors.New("server error")
	ErrRejectedByPeer = errors.New("request rejected as invalid")
)

// DecodeResponse turns a frame into the response variant for its code.
func DecodeResponse(f Frame) (Response, error) {
	switch f.Code {
	case CodeResponseOK:
		if len(f.Payload) != 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedPayload, f.Code)
		}
		return &OK{}, nil

	case CodeResponsePong:
		if len(f.Payload) != 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedPayload, f.Code)
		}
		return &Pong{}, nil

	case CodeResponseError:
		return ServerErrorFromBytes(f.Payload), nil

	case CodeResponseInvalidRequest:
		return InvalidRequestFromBytes(f.Payload), nil

	case CodeResponseFeedback:
		return FeedbackFromBytes(f.Payload), nil

	default:
		return nil, &UnknownCodeError{Code: f.Code}
	}
}

// ErrorOrNil returns an error if the response reports a failure. Otherwise it
// returns nil.
func ErrorOrNil(resp Response) error {
	switch r := resp.(type) {
	case *ServerError:
		return fmt.Errorf("%w: %s", ErrServer, r.Text())
	case *InvalidRequest:
		return fmt.Errorf("%w: %s", ErrRejectedByPeer, r.Text())
	case *OK, *Feedback, *Pong:
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnknownCode, resp)
	}
}
