// Package stream consumes a resumable activity stream over a websocket.
//
// A Receiver runs exactly one background receive loop per connection and hands
// activities to a synchronous consumer through a Queue.
//
// Invariants:
// - The watermark observed through one Receiver never decreases.
// - Activities sent by the receiver's own user are never enqueued.
// - The queue is completed exactly once, always preceded by a connection-dropped item.
// - Errors cross from the loop to the consumer as queue payload and surface from Take.
//
// Usage:
//
//	r, err := stream.Dial(ctx, streamURL, stream.Options{UserID: "user-1"})
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//	activity, err := r.Take(ctx)
package stream
