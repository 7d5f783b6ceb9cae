package actorutil

import (
	"github.com/peaksell/peaksell/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
)

// ExtendedRequest resolves where the response to a request should go:
// the explicit ReplyTo ref when the request carries one, the message
// sender otherwise.
type ExtendedRequest interface {
	Respond(ctx actor.Context, resp domain.ActorResponse)
	ReplyTo(ctx actor.Context) *actor.PID
}

func ForRequest(r domain.ActorRequest) ExtendedRequest {
	return forRequest{req: r}
}

type forRequest struct {
	req domain.ActorRequest
}

func (r forRequest) Respond(ctx actor.Context, resp domain.ActorResponse) {
	if ref := r.req.ReplyTo(); ref != nil {
		ctx.Send((*actor.PID)(ref), resp)
		return
	}
	ctx.Respond(resp)
}

func (r forRequest) ReplyTo(ctx actor.Context) *actor.PID {
	if ref := r.req.ReplyTo(); ref != nil {
		return (*actor.PID)(ref)
	}
	return ctx.Sender()
}
