package domain

import (
	"fmt"

	"github.com/peaksell/peaksell/internal/config"
)

// SchedulerRequest

type SchedulerRequest interface {
	ActorRequest
	SchedulerCommand() string
}

type SchedulerRequestMixIn struct {
	ActorRequestMixIn
}

func (r SchedulerRequestMixIn) SchedulerCommand() string {
	return fmt.Sprintf("%T", r)
}

// SchedulerResponse

type SchedulerResponse interface {
	ActorResponse
	SchedulerResponse() string
}

type SchedulerResponseMixIn struct {
	ActorResponseMixIn
}

func (r SchedulerResponseMixIn) SchedulerResponse() string {
	return fmt.Sprintf("%T", r)
}

// Scheduler commands

// SchedulerRunRequest starts or pauses the reconciliation loop.
type SchedulerRunRequest struct {
	SchedulerRequestMixIn
	Enable bool
}

type SchedulerRunResponse struct {
	SchedulerResponseMixIn
	Changed bool
}

// SchedulerTickRequest forces an immediate reconciliation pass.
type SchedulerTickRequest struct {
	SchedulerRequestMixIn
}

type SchedulerTickResponse struct {
	SchedulerResponseMixIn
}

// ConfigUpdatedCommand is broadcast after the settings store accepts a
// change, so running actors pick the new values up without a restart.
type ConfigUpdatedCommand struct {
	Config config.Config
}

// ensure interface compliance
var _ SchedulerRequest = (*SchedulerRunRequest)(nil)
