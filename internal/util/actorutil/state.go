package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorState is one named state of a multi-state actor. The scheduler
// actor moves between these as it waits for device and forecast replies.
type ActorState interface {
	Name() string
	Receive(actor.Context)
}

// ActorWithStates wraps actor.Behavior so states are values instead of
// bare receive functions, which keeps per-state data next to its logic.
type ActorWithStates struct {
	Behavior actor.Behavior
}

func (s *ActorWithStates) Become(state ActorState) {
	s.Behavior.Become(state.Receive)
}

func (s *ActorWithStates) BecomeStacked(state ActorState) {
	s.Behavior.BecomeStacked(state.Receive)
}

func (s *ActorWithStates) UnbecomeStacked() {
	s.Behavior.UnbecomeStacked()
}
