package cmd_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/pacoapp/tesp/cmd"
)

var _ = Describe("url", func() {
	var (
		companion *httptest.Server
		out       *bytes.Buffer
		paths     chan string
	)

	BeforeEach(func() {
		paths = make(chan string, 1)
		companion = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths <- r.Method + " " + r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		}))

		out = &bytes.Buffer{}
		cmd.RootCmd.SetOut(out)
	})

	AfterEach(func() {
		companion.Close()
		cmd.RootCmd.SetArgs(nil)
	})

	run := func(args ...string) error {
		cmd.RootCmd.SetArgs(args)
		return cmd.RootCmd.ExecuteContext(context.Background())
	}

	It("prints the URL for the host", func() {
		Expect(run("url", "10.0.2.2:8080", "/events", "--check=false")).To(Succeed())
		Expect(out.String()).To(Equal("http://10.0.2.2:8080/events (plain)\n"))
	})

	It("requests the URL with --check", func() {
		host := strings.TrimPrefix(companion.URL, "http://")

		Expect(run("url", host, "/events", "--check")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("http://" + host + "/events (plain)"))
		Expect(out.String()).To(ContainSubstring("204 No Content"))
		Expect(paths).To(Receive(Equal("HEAD /events")))
	})

	It("reports an unreachable companion", func() {
		host := strings.TrimPrefix(companion.URL, "http://")
		companion.Close()

		Expect(run("url", host, "/", "--check")).To(MatchError(ContainSubstring("Failed to reach")))
	})
})
