package protocol_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/respio/protocol"
)

var _ = Describe("Reply", func() {
	Describe("unwrap helpers", func() {
		It("unwraps string-like replies with Text()", func() {
			Expect(decodeOne("+PONG\r\n", protocol.RESP2).Text()).To(Equal("PONG"))
			Expect(decodeOne("$3\r\nfoo\r\n", protocol.RESP2).Text()).To(Equal("foo"))
			Expect(decodeOne("(123\r\n", protocol.RESP3).Text()).To(Equal("123"))

			_, err := decodeOne(":1\r\n", protocol.RESP2).Text()
			Expect(err).To(HaveOccurred())
		})

		It("unwraps integers, including ones sent as bulk text", func() {
			Expect(decodeOne(":42\r\n", protocol.RESP2).Int64()).To(Equal(int64(42)))
			Expect(decodeOne("$2\r\n42\r\n", protocol.RESP2).Int64()).To(Equal(int64(42)))

			_, err := decodeOne("$3\r\nabc\r\n", protocol.RESP2).Int64()
			Expect(err).To(HaveOccurred())
		})

		It("unwraps floats from doubles, integers and bulk text", func() {
			Expect(decodeOne(",2.5\r\n", protocol.RESP3).Float64()).To(Equal(2.5))
			Expect(decodeOne(":2\r\n", protocol.RESP2).Float64()).To(Equal(2.0))
			Expect(decodeOne("$3\r\n1.5\r\n", protocol.RESP2).Float64()).To(Equal(1.5))
		})

		It("unwraps booleans from RESP3 booleans and RESP2 integers", func() {
			Expect(decodeOne("#t\r\n", protocol.RESP3).Boolean()).To(BeTrue())
			Expect(decodeOne(":0\r\n", protocol.RESP2).Boolean()).To(BeFalse())
			Expect(decodeOne(":1\r\n", protocol.RESP2).Boolean()).To(BeTrue())
		})

		It("unwraps a RESP2 flat array with StringMap()", func() {
			m, err := decodeOne("*4\r\n$1\r\na\r\n$1\r\n1\r\n$1\r\nb\r\n$1\r\n2\r\n", protocol.RESP2).StringMap()
			Expect(err).To(Succeed())
			Expect(m).To(Equal(map[string]string{"a": "1", "b": "2"}))
		})

		It("rejects StringMap() on an odd-length array", func() {
			_, err := decodeOne("*1\r\n$1\r\na\r\n", protocol.RESP2).StringMap()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ErrorOrNil()", func() {
		It("returns the server error for error replies only", func() {
			Expect(decodeOne("-ERR boom\r\n", protocol.RESP2).ErrorOrNil()).To(HaveOccurred())
			Expect(decodeOne("+OK\r\n", protocol.RESP2).ErrorOrNil()).To(BeNil())
		})
	})

	Describe("ServerError", func() {
		It("renders kind and message", func() {
			err := protocol.NewServerError("ERR unknown command 'FOO'")
			Expect(err.Kind).To(Equal("ERR"))
			Expect(err.Error()).To(Equal("ERR unknown command 'FOO'"))
		})

		It("leaves the kind empty when the first word is not an error code", func() {
			err := protocol.NewServerError("not a coded error")
			Expect(err.Kind).To(Equal(""))
			Expect(err.Message).To(Equal("not a coded error"))
		})
	})
})
