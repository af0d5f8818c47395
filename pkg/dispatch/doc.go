// Package dispatch implements the hand-off between the HTTP acceptor and the
// file-serving workers.
//
// A Pool owns a bounded LIFO Buffer of pending request handles and N worker
// goroutines. The acceptor calls Enqueue for every inbound request; a free
// worker claims the most recently enqueued handle and serves it to
// completion before claiming the next one.
//
// Lifecycle:
//
//	pool := dispatch.NewPool(dispatch.Config{Size: 7}, handler, nil)
//	pool.Start(ctx)
//	pool.WaitUntilReady()      // no request is dispatched before this returns
//	... acceptor calls pool.Enqueue(req) ...
//	pool.InitiateShutdown()    // later Enqueue calls return false
//	pool.JoinAll()
//	leftovers := pool.Drain()  // requests nobody claimed
//
// The package is generic over the handle type so that it carries no
// dependency on the HTTP layer.
package dispatch
