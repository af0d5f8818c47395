package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/mdus/pkg/protocol/files"
)

type exchangeState int

const (
	statePending exchangeState = iota
	stateReplying
	stateAbandoned
)

// Exchange is the request handle passed from the acceptor to a worker.
//
// It pairs the parsed request with the ResponseWriter of the net/http
// handler goroutine that is parked waiting for the reply. Exactly one party
// gets to answer:
//   - a worker (or the shutdown release) via Respond
//   - nobody, if the client disconnected first and the acceptor abandoned it
//
// Thread safety:
// Respond and abandon may race; mu decides the winner.
type Exchange struct {
	req      *files.Request
	w        http.ResponseWriter
	accepted time.Time

	mu    sync.Mutex
	state exchangeState

	// done is closed once the reply is complete (or was skipped)
	done chan struct{}
}

func newExchange(req *files.Request, w http.ResponseWriter) *Exchange {
	return &Exchange{
		req:      req,
		w:        w,
		accepted: time.Now(),
		done:     make(chan struct{}),
	}
}

// Request returns the parsed request.
func (e *Exchange) Request() *files.Request {
	return e.req
}

// ID returns the exchange identifier used in log lines.
func (e *Exchange) ID() string {
	return e.req.ID
}

// Waited returns how long the exchange has existed.
func (e *Exchange) Waited() time.Duration {
	return time.Since(e.accepted)
}

// Respond runs reply with the exchange's ResponseWriter and then releases
// the waiting acceptor goroutine.
//
// Returns false without calling reply if the client already went away.
// Calling Respond more than once is a programmer error and panics.
func (e *Exchange) Respond(reply func(w http.ResponseWriter)) bool {
	e.mu.Lock()
	switch e.state {
	case stateAbandoned:
		e.mu.Unlock()
		return false
	case stateReplying:
		e.mu.Unlock()
		panic("http: exchange " + e.req.ID + " answered twice")
	}
	e.state = stateReplying
	e.mu.Unlock()

	defer close(e.done)
	reply(e.w)
	return true
}

// abandon marks the exchange as unanswerable because the client left.
//
// Returns false if a reply is already under way; the caller must then wait
// on done before touching the ResponseWriter's lifetime.
func (e *Exchange) abandon() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != statePending {
		return false
	}
	e.state = stateAbandoned
	return true
}
