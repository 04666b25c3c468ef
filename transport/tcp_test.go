package transport_test

import (
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/respio/transport"
)

// echoListener accepts one connection and echoes everything back.
func echoListener() (net.Listener, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			if _, err := conn.Write(buf[:n]); err != nil {
				return
			}
		}
	}()
	return ln, nil
}

var _ = Describe("TCPConn", func() {
	var ln net.Listener

	BeforeEach(func() {
		var err error
		ln, err = echoListener()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		ln.Close()
	})

	It("writes and reads bytes verbatim", func() {
		tr, err := transport.Dial(context.Background(), transport.Options{
			Addr: ln.Addr().String(),
		})
		Expect(err).NotTo(HaveOccurred())
		defer tr.Close()

		payload := []byte("*1\r\n$4\r\nPING\r\n")
		n, err := tr.Write(payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(len(payload)))

		buf := make([]byte, 256)
		total := 0
		for total < len(payload) {
			n, err := tr.Read(buf[total:])
			Expect(err).NotTo(HaveOccurred())
			total += n
		}
		Expect(buf[:total]).To(Equal(payload))
	})

	It("reports the peer address", func() {
		tr, err := transport.Dial(context.Background(), transport.Options{
			Addr: ln.Addr().String(),
		})
		Expect(err).NotTo(HaveOccurred())
		defer tr.Close()

		Expect(tr.RemoteAddr()).To(Equal(ln.Addr().String()))
	})

	It("fails to dial a closed port", func() {
		addr := ln.Addr().String()
		ln.Close()

		_, err := transport.Dial(context.Background(), transport.Options{
			Addr:        addr,
			DialTimeout: 500 * time.Millisecond,
		})
		Expect(err).To(HaveOccurred())
	})

	It("interrupts a blocked read at the deadline", func() {
		tr, err := transport.DialTCP(context.Background(), transport.Options{
			Addr: ln.Addr().String(),
		})
		Expect(err).NotTo(HaveOccurred())
		defer tr.Close()

		Expect(tr.SetReadDeadline(time.Now().Add(30 * time.Millisecond))).To(Succeed())

		buf := make([]byte, 16)
		_, err = tr.Read(buf)
		netErr, ok := err.(net.Error)
		Expect(ok).To(BeTrue())
		Expect(netErr.Timeout()).To(BeTrue())
	})
})
