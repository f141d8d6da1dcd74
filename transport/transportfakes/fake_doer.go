package transportfakes

import (
	"context"
	"sync"

	"github.com/mealkeeper/go-grocery-client/transport"
)

var _ transport.Doer = (*FakeDoer)(nil)

// Call records one request issued through the fake.
type Call struct {
	Method string
	Path   string
	Body   any
}

// FakeDoer scripts responses per incoming request. Handlers run in order; the
// last handler answers all further calls.
type FakeDoer struct {
	lock     sync.Mutex
	handlers []func(ctx context.Context, req *transport.Request) (*transport.Response, error)
	calls    []Call
}

func NewFakeDoer() *FakeDoer {
	return &FakeDoer{}
}

// Handle appends a scripted handler.
func (f *FakeDoer) Handle(h func(ctx context.Context, req *transport.Request) (*transport.Response, error)) *FakeDoer {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.handlers = append(f.handlers, h)
	return f
}

// Respond appends a handler returning a fixed response.
func (f *FakeDoer) Respond(resp *transport.Response, err error) *FakeDoer {
	return f.Handle(func(context.Context, *transport.Request) (*transport.Response, error) {
		return resp, err
	})
}

func (f *FakeDoer) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	f.lock.Lock()
	f.calls = append(f.calls, Call{Method: req.Method, Path: req.Path, Body: req.Body})
	var h func(ctx context.Context, req *transport.Request) (*transport.Response, error)
	switch {
	case len(f.handlers) == 0:
		f.lock.Unlock()
		return &transport.Response{Status: 200}, nil
	case len(f.handlers) == 1:
		h = f.handlers[0]
	default:
		h = f.handlers[0]
		f.handlers = f.handlers[1:]
	}
	f.lock.Unlock()
	return h(ctx, req)
}

// Calls returns a copy of every request seen so far.
func (f *FakeDoer) Calls() []Call {
	f.lock.Lock()
	defer f.lock.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}
