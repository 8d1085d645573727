package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var errUnknownEvent = errors.New("unknown_event")

// rawHandler is the unmarshalling-done form a registered command handler is
// stored in. The returned value becomes the body of the `<event>-ack` frame.
type rawHandler func(ctx context.Context, c *ConnContext, body json.RawMessage) (any, error)

// Router maps envelope event names ("join-room", "submit-vote", ...) to their
// command handlers. Registration happens once at server construction; after
// that the table is only read, one lookup per inbound frame.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
}

func NewRouter() *Router { return &Router{handlers: make(map[string]rawHandler)} }

// Register binds a room command event to a typed handler. Req is decoded from
// the envelope body (a missing body decodes to the zero Req, which suits
// body-less commands like reveal-votes); Res is what gets acked back to the
// issuing connection.
func Register[Req any, Res any](
	r *Router,
	event string,
	h func(ctx context.Context, c *ConnContext, req Req) (Res, error),
) {
	if event == "" {
		panic("ws router: empty event")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[event] = func(ctx context.Context, c *ConnContext, body json.RawMessage) (any, error) {
		var req Req
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, err
			}
		}
		return h(ctx, c, req)
	}
}

// dispatch routes one inbound envelope from a connection's reader loop. An
// event no handler claims yields errUnknownEvent, which the server reports to
// the sender as an error frame instead of dropping the connection.
func (r *Router) dispatch(ctx context.Context, c *ConnContext, env Envelope) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[env.Event]
	r.mu.RUnlock()
	if !ok {
		return nil, errUnknownEvent
	}
	return h(ctx, c, env.Body)
}
