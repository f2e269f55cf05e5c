package client_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/pacoapp/tesp/client"
	"github.com/pacoapp/tesp/event"
	"github.com/pacoapp/tesp/internal/tesptest"
	"github.com/pacoapp/tesp/protocol"
	"github.com/pacoapp/tesp/storage"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   []protocol.Request
	failAt int
}

func (f *fakeSender) Send(ctx context.Context, req protocol.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAt > 0 && len(f.sent)+1 == f.failAt {
		f.failAt = 0
		return errors.New("write failed")
	}

	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeSender) Sent() []protocol.Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]protocol.Request(nil), f.sent...)
}

func namedEvent(name string) *event.Event {
	return &event.Event{
		ExperimentName: name,
		Who:            "someone@example.com",
		Responses:      []event.Output{{Name: "q1", Value: "yes"}},
	}
}

var _ = Describe("Uploader", func() {
	var (
		store  *storage.InmemoryStore
		sender *fakeSender
		ctx    context.Context
	)

	BeforeEach(func() {
		store = storage.NewInmemoryStore()
		sender = &fakeSender{}
		ctx = context.Background()
	})

	AfterEach(func() {
		store.Close()
	})

	Describe("Flush()", func() {
		It("sends every pending event as an AddEvent request, oldest first", func() {
			for _, name := range []string{"first", "second", "third"} {
				_, err := store.Add(ctx, namedEvent(name))
				Expect(err).To(Succeed())
			}

			uploader := client.NewUploader(sender, store, client.UploaderOptions{Rate: -1})

			sent, err := uploader.Flush(ctx)
			Expect(err).To(Succeed())
			Expect(sent).To(Equal(3))

			var names []string
			for _, req := range sender.Sent() {
				addEvent, ok := req.(*protocol.AddEvent)
				Expect(ok).To(BeTrue())
				names = append(names, addEvent.Event().ExperimentName)
			}
			Expect(names).To(Equal([]string{"first", "second", "third"}))

			pending, err := store.Pending(ctx)
			Expect(err).To(Succeed())
			Expect(pending).To(BeEmpty())
		})

		It("stops at the first failure and leaves the rest pending", func() {
			for _, name := range []string{"first", "second", "third"} {
				_, err := store.Add(ctx, namedEvent(name))
				Expect(err).To(Succeed())
			}

			sender.failAt = 2
			uploader := client.NewUploader(sender, store, client.UploaderOptions{Rate: -1})

			sent, err := uploader.Flush(ctx)
			Expect(err).To(MatchError(ContainSubstring("write failed")))
			Expect(sent).To(Equal(1))

			pending, err := store.Pending(ctx)
			Expect(err).To(Succeed())
			Expect(pending).To(HaveLen(2))
			Expect(pending[0].Event.ExperimentName).To(Equal("second"))

			// the next flush picks up where the last one stopped
			sent, err = uploader.Flush(ctx)
			Expect(err).To(Succeed())
			Expect(sent).To(Equal(2))
		})

		It("respects the rate limit", func() {
			for i := 0; i < 3; i++ {
				_, err := store.Add(ctx, namedEvent("limited"))
				Expect(err).To(Succeed())
			}

			uploader := client.NewUploader(sender, store, client.UploaderOptions{Rate: 10, Burst: 1})

			start := time.Now()
			sent, err := uploader.Flush(ctx)
			Expect(err).To(Succeed())
			Expect(sent).To(Equal(3))
			// one token up front, two more at 100ms each
			Expect(time.Since(start)).To(BeNumerically(">=", 150*time.Millisecond))
		})
	})

	Describe("Run()", func() {
		It("uploads events as they are added", func() {
			uploader := client.NewUploader(sender, store, client.UploaderOptions{Rate: -1})

			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				uploader.Run(runCtx)
			}()

			_, err := store.Add(ctx, namedEvent("live"))
			Expect(err).To(Succeed())

			Eventually(func() int { return len(sender.Sent()) }).Should(Equal(1))

			cancel()
			Eventually(done).Should(BeClosed())
		})

		It("exits when the store is closed", func() {
			uploader := client.NewUploader(sender, store, client.UploaderOptions{})

			done := make(chan struct{})
			go func() {
				defer close(done)
				uploader.Run(ctx)
			}()

			// give Run a chance to subscribe before closing
			time.Sleep(20 * time.Millisecond)
			store.Close()
			Eventually(done).Should(BeClosed())
		})

		It("delivers events to a TESP server end to end", func() {
			server, err := tesptest.NewServer(tesptest.Silent, nil)
			Expect(err).To(Succeed())
			defer server.Close()

			c := client.New(server.Host(), server.Port())
			defer c.Close()

			_, err = store.Add(ctx, namedEvent("wire"))
			Expect(err).To(Succeed())

			sent, err := client.NewUploader(c, store, client.UploaderOptions{}).Flush(ctx)
			Expect(err).To(Succeed())
			Expect(sent).To(Equal(1))

			var req protocol.Request
			Eventually(server.Requests()).Should(Receive(&req))
			Expect(req.(*protocol.AddEvent).Event().ExperimentName).To(Equal("wire"))
		})
	})
})
