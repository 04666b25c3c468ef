// Package client ties the layers together into a usable Redis client:
// transport sockets feed conn state machines, which are pooled and
// leased out per call.
//
//	c, err := client.New(client.Options{Addr: "127.0.0.1:6379"})
//	if err != nil {
//		...
//	}
//	defer c.Close()
//
//	if err := c.Set(ctx, "greeting", []byte("hello")); err != nil {
//		...
//	}
//	value, err := c.Get(ctx, "greeting")
//
// Arbitrary commands go through Do and Pipeline; the typed helpers are
// thin wrappers over them.
package client
