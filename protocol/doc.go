// Package protocol implements framing and the message variants for TESP, the
// protocol Paco clients use to push experience-sampling events to a collection
// server over a raw TCP connection.
//
// TESP aims to be
//
// - cheap to implement on a phone
// - trivially framed, no delimiters to escape
// - bounded, a corrupt length can never exhaust memory
//
// - `Request`  - A message sent by a client to the server.
// - `Response` - A message sent by the server to a client.
// - `Frame`    - One code-prefixed, length-delimited unit on the wire.
//
// === Framing
//
// Every message, including messages without a payload, is encoded as
//
//   ```
//   +--------+-------------------+---------------------+
//   | code   | length            | payload             |
//   | 1 byte | uint32 big-endian | <length> bytes      |
//   +--------+-------------------+---------------------+
//   ```
//
// TCP has no message boundaries so decoders must cope with frames split over
// many reads, see Decoder.
//
// Lengths above the decoder's cap (DefaultMaxPayloadLen unless configured)
// are rejected with ErrPayloadTooLarge before any payload is buffered.
//
// === Requests
//
//   ```
//   0x01 PING       empty
//   0x02 PAUSE      empty
//   0x04 RESUME     empty
//   0x06 ADD_EVENT  JSON encoded event, see package event
//   0x08 RAW_DATA   opaque bytes
//   ```
//
// === Responses
//
//   ```
//   0x80 OK               empty
//   0x81 ERROR            UTF-8 reason
//   0x82 INVALID_REQUEST  UTF-8 reason, the request was structurally invalid
//   0x83 FEEDBACK         UTF-8 text for the participant
//   0x88 PONG             empty
//   ```
//
// Responses are not tagged with the request that caused them. A client that
// wants to match them up has to keep a single request in flight.
//
package protocol
