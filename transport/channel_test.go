package transport_test

import (
	"context"
	"errors"
	"net"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/pacoapp/tesp/protocol"
	"github.com/pacoapp/tesp/transport"
)

var _ = Describe("Channel", func() {
	var (
		clientConn net.Conn
		serverConn net.Conn
		channel    *transport.ClientChannel
	)

	BeforeEach(func() {
		clientConn, serverConn = net.Pipe()
		channel = transport.NewClientChannel(clientConn, transport.Options{
			ChunkTimeout: 100 * time.Millisecond,
		})
	})

	AfterEach(func() {
		channel.Close()
		serverConn.Close()
	})

	// serverWrite writes from the far end of the pipe without blocking the test.
	serverWrite := func(chunks ...[]byte) {
		go func() {
			defer GinkgoRecover()

			for _, chunk := range chunks {
				if _, err := serverConn.Write(chunk); err != nil {
					return
				}
			}
		}()
	}

	Describe("Write()", func() {
		It("writes one frame per request, in call order", func() {
			received := make(chan protocol.Frame, 2)
			go func() {
				defer GinkgoRecover()

				for i := 0; i < 2; i++ {
					frame, err := protocol.ReadFrame(serverConn, 0)
					if err != nil {
						return
					}
					received <- frame
				}
			}()

			Expect(channel.Write(context.Background(), &protocol.Ping{})).To(Succeed())
			Expect(channel.Write(context.Background(), protocol.NewRawData([]byte("abc")))).To(Succeed())

			Eventually(received).Should(Receive(Equal(protocol.Frame{Code: protocol.CodeRequestPing, Payload: []byte{}})))
			Eventually(received).Should(Receive(Equal(protocol.Frame{Code: protocol.CodeRequestRawData, Payload: []byte("abc")})))
			Expect(channel.IsBroken()).To(BeFalse())
		})

		It("marks the channel broken when the write fails", func() {
			serverConn.Close()

			err := channel.Write(context.Background(), &protocol.Ping{})
			Expect(errors.Is(err, transport.ErrTransport)).To(BeTrue())
			Expect(channel.IsBroken()).To(BeTrue())

			Expect(channel.Write(context.Background(), &protocol.Ping{})).To(MatchError(transport.ErrBroken))
		})

		It("gives up when the context expires", func() {
			// nobody reads the far end of the pipe, the write can never complete
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			err := channel.Write(ctx, &protocol.Ping{})
			Expect(errors.Is(err, transport.ErrTransport)).To(BeTrue())
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
			Expect(channel.IsBroken()).To(BeTrue())
		})
	})

	Describe("Read()", func() {
		It("decodes a frame that arrives in pieces", func() {
			data := protocol.Encode(protocol.NewInvalidRequest("missing who"))
			serverWrite(data[:2], data[2:6], data[6:])

			resp, err := channel.Read(context.Background())
			Expect(err).To(Succeed())
			Expect(resp).To(Equal(protocol.NewInvalidRequest("missing who")))
		})

		It("returns frames that share a chunk one at a time", func() {
			data := protocol.EncodeFrame(protocol.CodeResponseOK, nil)
			data = protocol.AppendFrame(data, protocol.CodeResponsePong, nil)
			serverWrite(data)

			first, err := channel.Read(context.Background())
			Expect(err).To(Succeed())
			Expect(first).To(BeAssignableToTypeOf(&protocol.OK{}))

			second, err := channel.Read(context.Background())
			Expect(err).To(Succeed())
			Expect(second).To(BeAssignableToTypeOf(&protocol.Pong{}))
		})

		It("times out when a frame stalls after its header", func() {
			serverWrite([]byte{byte(protocol.CodeResponseFeedback), 0, 0, 0, 10})

			start := time.Now()
			_, err := channel.Read(context.Background())

			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, transport.ErrTimeout)).To(BeTrue())
			Expect(errors.Is(err, transport.ErrTransport)).To(BeTrue())

			var timeoutErr *transport.TimeoutError
			Expect(errors.As(err, &timeoutErr)).To(BeTrue())
			Expect(timeoutErr.Buffered).To(Equal(protocol.HeaderLen))

			Expect(time.Since(start)).To(BeNumerically("<", time.Second))
			Expect(channel.IsBroken()).To(BeTrue())
		})

		It("does not apply the chunk timeout between frames", func() {
			go func() {
				defer GinkgoRecover()

				time.Sleep(300 * time.Millisecond)
				serverConn.Write(protocol.EncodeFrame(protocol.CodeResponseOK, nil))
			}()

			resp, err := channel.Read(context.Background())
			Expect(err).To(Succeed())
			Expect(resp).To(BeAssignableToTypeOf(&protocol.OK{}))
		})

		It("stops waiting when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			time.AfterFunc(50*time.Millisecond, cancel)

			_, err := channel.Read(ctx)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(channel.IsBroken()).To(BeTrue())
		})

		It("returns an UnknownCodeError for request codes", func() {
			serverWrite(protocol.EncodeFrame(protocol.CodeRequestPing, nil))

			_, err := channel.Read(context.Background())
			Expect(errors.Is(err, protocol.ErrUnknownCode)).To(BeTrue())
			Expect(channel.IsBroken()).To(BeTrue())
		})

		It("returns a framing error for an oversized length", func() {
			channel = transport.NewClientChannel(clientConn, transport.Options{MaxPayloadLen: 4})
			serverWrite(protocol.EncodeFrame(protocol.CodeResponseFeedback, []byte("too long")))

			_, err := channel.Read(context.Background())
			Expect(errors.Is(err, protocol.ErrPayloadTooLarge)).To(BeTrue())
			Expect(channel.IsBroken()).To(BeTrue())
		})

		It("returns a framing error when the peer hangs up mid-frame", func() {
			go func() {
				defer GinkgoRecover()

				serverConn.Write([]byte{byte(protocol.CodeResponseFeedback), 0, 0})
				serverConn.Close()
			}()

			_, err := channel.Read(context.Background())
			Expect(errors.Is(err, protocol.ErrShortFrame)).To(BeTrue())
			Expect(channel.IsBroken()).To(BeTrue())
		})

		It("returns a transport error when the peer hangs up between frames", func() {
			serverConn.Close()

			_, err := channel.Read(context.Background())
			Expect(errors.Is(err, transport.ErrTransport)).To(BeTrue())
			Expect(errors.Is(err, protocol.ErrFraming)).To(BeFalse())
			Expect(channel.IsBroken()).To(BeTrue())

			_, err = channel.Read(context.Background())
			Expect(err).To(MatchError(transport.ErrBroken))
		})
	})

	Describe("Close()", func() {
		It("can be called more than once", func() {
			Expect(channel.Close()).To(Succeed())
			Expect(channel.Close()).To(Succeed())
			Expect(channel.IsBroken()).To(BeTrue())
		})
	})

	Describe("ServerChannel", func() {
		It("reads requests the client channel wrote", func() {
			server := transport.NewServerChannel(serverConn, transport.Options{})

			go func() {
				defer GinkgoRecover()
				channel.Write(context.Background(), protocol.NewRawData([]byte("hello")))
			}()

			req, err := server.Read(context.Background())
			Expect(err).To(Succeed())
			Expect(req.Code()).To(Equal(protocol.CodeRequestRawData))
			Expect(req.Payload()).To(Equal([]byte("hello")))
		})
	})
})
