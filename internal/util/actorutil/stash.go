package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

type stashed struct {
	msg    any
	sender *actor.PID
}

// Stash holds messages an actor cannot handle in its current state so
// they can be redelivered after a state change. Redelivery preserves
// the original sender.
type Stash struct {
	queue []stashed
}

func (s *Stash) Stash(ctx actor.Context, msg any) {
	s.queue = append(s.queue, stashed{msg: msg, sender: ctx.Sender()})
}

// UnstashAll redelivers every stashed message in arrival order and
// empties the stash.
func (s *Stash) UnstashAll(ctx actor.Context) {
	for _, e := range s.queue {
		ctx.RequestWithCustomSender(ctx.Self(), e.msg, e.sender)
	}
	s.queue = nil
}

// UnstashOldest redelivers only the oldest stashed message, if any.
func (s *Stash) UnstashOldest(ctx actor.Context) {
	if len(s.queue) == 0 {
		return
	}
	oldest := s.queue[0]
	s.queue = s.queue[1:]
	ctx.RequestWithCustomSender(ctx.Self(), oldest.msg, oldest.sender)
}
