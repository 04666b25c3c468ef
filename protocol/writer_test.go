package protocol_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/respio/protocol"
)

var _ = Describe("Command encoding", func() {
	Describe("EncodeCommand()", func() {
		It("encodes a bare command name", func() {
			cmd := protocol.NewCommandStrings("PING")
			Expect(string(protocol.EncodeCommand(cmd))).To(Equal("*1\r\n$4\r\nPING\r\n"))
		})

		It("encodes every argument as a length-prefixed bulk string", func() {
			cmd := protocol.NewCommandStrings("SET", "key", "value")
			Expect(string(protocol.EncodeCommand(cmd))).To(
				Equal("*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n"))
		})

		It("treats argument bytes as opaque, including embedded CRLF", func() {
			cmd := protocol.NewCommandBytes([]byte("SET"), []byte("k"), []byte("a\r\nb"))
			Expect(string(protocol.EncodeCommand(cmd))).To(
				Equal("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$4\r\na\r\nb\r\n"))
		})

		It("encodes empty arguments with a zero length", func() {
			cmd := protocol.NewCommandStrings("SET", "k", "")
			Expect(string(protocol.EncodeCommand(cmd))).To(
				Equal("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$0\r\n\r\n"))
		})

		It("keeps argument boundaries unambiguous", func() {
			// Two different argument splits of the same concatenated
			// bytes must not encode to the same wire form.
			a := protocol.NewCommandStrings("SET", "ab", "c")
			b := protocol.NewCommandStrings("SET", "a", "bc")
			Expect(protocol.EncodeCommand(a)).NotTo(Equal(protocol.EncodeCommand(b)))
		})
	})

	Describe("EncodePipeline()", func() {
		It("concatenates commands back to back", func() {
			buf := protocol.EncodePipeline(
				protocol.NewCommandStrings("PING"),
				protocol.NewCommandStrings("GET", "k"),
			)
			Expect(string(buf)).To(Equal("*1\r\n$4\r\nPING\r\n*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"))
		})
	})

	Describe("NewCommand()", func() {
		It("coerces numeric arguments to their decimal text", func() {
			cmd, err := protocol.NewCommand("SELECT", 3)
			Expect(err).To(Succeed())
			Expect(string(protocol.EncodeCommand(cmd))).To(
				Equal("*2\r\n$6\r\nSELECT\r\n$1\r\n3\r\n"))
		})

		It("coerces int64 and float64 arguments", func() {
			cmd, err := protocol.NewCommand("EXPIRE", "k", int64(30))
			Expect(err).To(Succeed())
			Expect(cmd.Len()).To(Equal(3))

			cmd, err = protocol.NewCommand("INCRBYFLOAT", "k", 1.5)
			Expect(err).To(Succeed())
			Expect(string(cmd.Args()[2])).To(Equal("1.5"))
		})

		It("rejects arguments with no byte representation", func() {
			_, err := protocol.NewCommand("SET", "k", struct{}{})
			Expect(err).To(MatchError(protocol.ErrInvalidArgType))
		})
	})

	Describe("round trip through the decoder", func() {
		It("preserves argument boundaries for binary arguments", func() {
			// A command is itself a RESP array frame, so a conformant
			// server sees exactly the arguments we encoded.
			cmd := protocol.NewCommandBytes([]byte("SET"), []byte("a\r\nb"), []byte{0, 1, 2})
			reply, n, err := protocol.Decode(protocol.EncodeCommand(cmd), protocol.RESP2)
			Expect(err).To(Succeed())
			Expect(n).To(Equal(len(protocol.EncodeCommand(cmd))))

			Expect(reply.Type).To(Equal(protocol.TypeArray))
			Expect(reply.Elems).To(HaveLen(3))
			Expect(reply.Elems[0].Bulk).To(Equal([]byte("SET")))
			Expect(reply.Elems[1].Bulk).To(Equal([]byte("a\r\nb")))
			Expect(reply.Elems[2].Bulk).To(Equal([]byte{0, 1, 2}))
		})
	})
})
