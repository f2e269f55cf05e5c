package protocol_test

import (
	"bytes"
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/pacoapp/tesp/protocol"
)

var _ = Describe("Frame", func() {
	Describe("EncodeFrame()", func() {
		It("prefixes the payload with the code and a big-endian length", func() {
			Expect(protocol.EncodeFrame(protocol.CodeResponseInvalidRequest, []byte("bad"))).To(Equal(
				[]byte{0x82, 0x00, 0x00, 0x00, 0x03, 'b', 'a', 'd'}))
		})

		It("writes a zero length for empty messages", func() {
			Expect(protocol.EncodeFrame(protocol.CodeRequestPing, nil)).To(Equal(
				[]byte{0x01, 0x00, 0x00, 0x00, 0x00}))
		})

		It("appends to an existing buffer", func() {
			buf := protocol.AppendFrame([]byte("xx"), protocol.CodeResponseOK, nil)
			Expect(buf).To(Equal([]byte{'x', 'x', 0x80, 0, 0, 0, 0}))
		})
	})

	Describe("ReadFrame()", func() {
		It("round trips arbitrary codes and payloads", func() {
			rng := rand.New(rand.NewSource(42))

			for i := 0; i < 200; i++ {
				code := protocol.Code(rng.Intn(256))
				payload := make([]byte, rng.Intn(2048))
				rng.Read(payload)

				frame, err := protocol.ReadFrame(bytes.NewReader(protocol.EncodeFrame(code, payload)), 0)
				Expect(err).To(Succeed())
				Expect(frame.Code).To(Equal(code))
				Expect(frame.Payload).To(Equal(payload))
			}
		})

		It("reads consecutive frames from one stream", func() {
			var stream bytes.Buffer
			stream.Write(protocol.EncodeFrame(protocol.CodeRequestPing, nil))
			stream.Write(protocol.EncodeFrame(protocol.CodeRequestRawData, []byte("abc")))

			first, err := protocol.ReadFrame(&stream, 0)
			Expect(err).To(Succeed())
			Expect(first.Code).To(Equal(protocol.CodeRequestPing))
			Expect(first.Payload).To(BeEmpty())

			second, err := protocol.ReadFrame(&stream, 0)
			Expect(err).To(Succeed())
			Expect(second.Payload).To(Equal([]byte("abc")))
		})

		It("returns ErrShortFrame when the header is cut off", func() {
			_, err := protocol.ReadFrame(bytes.NewReader([]byte{0x80, 0x00}), 0)
			Expect(err).To(MatchError(protocol.ErrShortFrame))
			Expect(errors.Is(err, protocol.ErrFraming)).To(BeTrue())
		})

		It("returns ErrShortFrame when the payload is cut off", func() {
			data := protocol.EncodeFrame(protocol.CodeResponseError, []byte("boom"))
			_, err := protocol.ReadFrame(bytes.NewReader(data[:len(data)-1]), 0)
			Expect(err).To(MatchError(protocol.ErrShortFrame))
		})

		It("rejects lengths above the cap", func() {
			data := protocol.EncodeFrame(protocol.CodeRequestRawData, make([]byte, 11))
			_, err := protocol.ReadFrame(bytes.NewReader(data), 10)
			Expect(errors.Is(err, protocol.ErrPayloadTooLarge)).To(BeTrue())
			Expect(errors.Is(err, protocol.ErrFraming)).To(BeTrue())
		})
	})
})
