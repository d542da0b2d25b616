// Package channel provides generic channel interfaces for decoupled communication.
//
// Delivery is best effort: a sender never blocks and never fails. If the
// receiving side has been detached (its consumer went away) further sends
// are dropped and counted instead of being reported to the producer.
package channel

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	// Receive returns the delivery channel. It is closed once the sender
	// side is closed and every queued item has been received.
	Receive() <-chan T
	// Len returns the number of items waiting to be received.
	Len() int
	// Detach tells the sender that nobody will read anymore.
	Detach()
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	// Close marks the end of the stream. Must be called by the sending goroutine.
	Close()
}
