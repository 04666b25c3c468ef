package client_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/respio/client"
	"github.com/luma/respio/conn"
	"github.com/luma/respio/protocol"
)

var _ = Describe("Client", func() {
	var server *testServer

	AfterEach(func() {
		if server != nil {
			server.stop()
			server = nil
		}
	})

	newServer := func(password string) {
		var err error
		server, err = startTestServer(password)
		Expect(err).NotTo(HaveOccurred())
	}

	Describe("against an open server", func() {
		BeforeEach(func() {
			newServer("")
		})

		It("pings", func() {
			c, err := client.New(client.Options{Addr: server.addr()})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			Expect(c.Ping(context.Background())).To(Succeed())
		})

		It("round-trips a value through SET and GET", func() {
			c, err := client.New(client.Options{Addr: server.addr()})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			ctx := context.Background()
			Expect(c.Set(ctx, "greeting", []byte("hello"))).To(Succeed())

			value, err := c.Get(ctx, "greeting")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal([]byte("hello")))
		})

		It("returns ErrNil for a missing key", func() {
			c, err := client.New(client.Options{Addr: server.addr()})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			_, err = c.Get(context.Background(), "no-such-key")
			Expect(err).To(MatchError(client.ErrNil))
		})

		It("echoes binary-safe payloads", func() {
			c, err := client.New(client.Options{Addr: server.addr()})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			out, err := c.Echo(context.Background(), "with\r\nnewlines")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("with\r\nnewlines"))
		})

		It("surfaces server errors as reply data from Do", func() {
			c, err := client.New(client.Options{Addr: server.addr()})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			reply, err := c.Do(context.Background(), protocol.NewCommandStrings("NOPE"))
			Expect(err).NotTo(HaveOccurred())

			serr := new(protocol.ServerError)
			Expect(errors.As(reply.ErrorOrNil(), &serr)).To(BeTrue())
			Expect(serr.Kind).To(Equal("ERR"))
		})

		It("runs pipelined commands in order on one connection", func() {
			c, err := client.New(client.Options{Addr: server.addr(), PoolMax: 1})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			replies, err := c.Pipeline(context.Background(),
				protocol.NewCommandStrings("SET", "a", "1"),
				protocol.NewCommandStrings("SET", "b", "2"),
				protocol.NewCommandStrings("GET", "a"),
				protocol.NewCommandStrings("GET", "b"),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(replies).To(HaveLen(4))
			Expect(replies[0].IsOK()).To(BeTrue())
			Expect(replies[1].IsOK()).To(BeTrue())
			Expect(replies[2].Bulk).To(Equal([]byte("1")))
			Expect(replies[3].Bulk).To(Equal([]byte("2")))
		})

		It("registers the configured client name during the handshake", func() {
			c, err := client.New(client.Options{
				Addr:       server.addr(),
				ClientName: "respio-test",
			})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			Expect(c.Ping(context.Background())).To(Succeed())
			Expect(server.clientNames()).To(ContainElement("respio-test"))
		})

		It("serves concurrent callers from the pool", func() {
			c, err := client.New(client.Options{Addr: server.addr(), PoolMax: 4})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					Expect(c.Ping(context.Background())).To(Succeed())
				}()
			}
			wg.Wait()
			Expect(c.Stats().Leased).To(Equal(0))
		})
	})

	Describe("authentication", func() {
		It("handshakes with a password over RESP2", func() {
			newServer("pw1")
			c, err := client.New(client.Options{
				Addr:     server.addr(),
				Password: "pw1",
			})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			Expect(c.Ping(context.Background())).To(Succeed())
		})

		It("handshakes with a password over RESP3 and survives split replies", func() {
			newServer("pw1")
			server.fragmentReplies = true
			c, err := client.New(client.Options{
				Addr:     server.addr(),
				Protocol: protocol.RESP3,
				Password: "pw1",
			})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			ctx := context.Background()
			Expect(c.Set(ctx, "k", []byte("v"))).To(Succeed())
			value, err := c.Get(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal([]byte("v")))
		})

		It("fails fast on a wrong password", func() {
			newServer("pw1")
			c, err := client.New(client.Options{
				Addr:     server.addr(),
				Password: "wrong",
			})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			err = c.Ping(context.Background())
			Expect(errors.Is(err, conn.ErrHandshake)).To(BeTrue())
		})
	})

	Describe("incremental replies", func() {
		It("reassembles a reply split across reads", func() {
			newServer("")
			server.fragmentReplies = true

			c, err := client.New(client.Options{Addr: server.addr()})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			ctx := context.Background()
			Expect(c.Set(ctx, "k", []byte("v"))).To(Succeed())

			value, err := c.Get(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal([]byte("v")))
		})
	})

	Describe("failures", func() {
		It("cannot reach a stopped server", func() {
			newServer("")
			addr := server.addr()
			server.stop()
			server = nil

			c, err := client.New(client.Options{
				Addr:        addr,
				DialTimeout: 500 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			Expect(c.Ping(context.Background())).NotTo(Succeed())
		})

		It("gives up a blocked call at the context deadline", func() {
			newServer("")
			c, err := client.New(client.Options{Addr: server.addr()})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
			defer cancel()

			_, err = c.Do(ctx, protocol.NewCommandStrings("PING"))
			Expect(err).To(HaveOccurred())
		})

		It("unblocks a cancelled deadline-less call stuck on a silent server", func() {
			newServer("")
			c, err := client.New(client.Options{Addr: server.addr()})
			Expect(err).NotTo(HaveOccurred())
			defer c.Close()

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				_, err := c.Do(ctx, protocol.NewCommandStrings("STALL"))
				done <- err
			}()

			Consistently(done, 50*time.Millisecond).ShouldNot(Receive())
			cancel()
			Eventually(done, time.Second).Should(Receive(MatchError(context.Canceled)))

			// The interrupted connection is destroyed, not recycled.
			Eventually(func() int { return c.Stats().Leased }).Should(Equal(0))
			Expect(c.Stats().Idle).To(Equal(0))
		})
	})
})
