package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/peaksell/peaksell/internal/core/domain"
	"github.com/peaksell/peaksell/internal/util/actorutil"
	"github.com/peaksell/peaksell/pkg/deyecloud"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

// deyeCallTimeout bounds every cloud API round trip. The cloud is much
// slower than a LAN device, token renewal included.
const deyeCallTimeout = 30 * time.Second

type DeyeActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	gateway  deyecloud.Gateway
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewDeyeActor(gateway deyecloud.Gateway, logger *zap.Logger) *DeyeActor {
	act := &DeyeActor{
		gateway:  gateway,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger("deye", logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *DeyeActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *DeyeActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("deye@starting started")
		// probe verifies credentials and the device serial before any
		// request is served. A failure restarts the actor under the
		// supervisor's backoff.
		callCtx, cancel := context.WithTimeout(context.Background(), deyeCallTimeout)
		defer cancel()
		info, err := state.gateway.Probe(callCtx)
		if err != nil {
			panic(err)
		}
		state.logger.Info("deye@starting device probe ok", zap.String("deviceSN", info.DeviceSN),
			zap.String("deviceName", info.DeviceName))
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("deye@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *DeyeActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("deye@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DEYE,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetDeviceStateRequest:
		state.logger.Debug("deye@default: GetDeviceStateRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getDeviceState),
			mapTaskResult[domain.GetDeviceStateResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetDeviceStateResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(deyeCallTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	case domain.SetWorkModeRequest:
		state.logger.Debug("deye@default: SetWorkModeRequest", zap.String("mode", string(msg.Mode)))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		mode := msg.Mode
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.SetWorkModeResponse, error) {
			return state.setWorkMode(mode)
		}),
			mapTaskResult[domain.SetWorkModeResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SetWorkModeResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(deyeCallTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	case domain.SetTOUPlanRequest:
		state.logger.Debug("deye@default: SetTOUPlanRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		plan := msg.Plan
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.SetTOUPlanResponse, error) {
			return state.setTOUPlan(plan)
		}),
			mapTaskResult[domain.SetTOUPlanResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SetTOUPlanResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(deyeCallTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	case domain.GetTOUSettingsRequest:
		state.logger.Debug("deye@default: GetTOUSettingsRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getTOUSettings),
			mapTaskResult[domain.GetTOUSettingsResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetTOUSettingsResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(deyeCallTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	case domain.ProbeDeviceRequest:
		state.logger.Debug("deye@default: ProbeDeviceRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.probeDevice),
			mapTaskResult[domain.ProbeDeviceResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ProbeDeviceResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(deyeCallTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	default:
		state.logger.Debug("deye@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// WaitingCloud serializes cloud calls: requests arriving while one is
// in flight are stashed until the result comes back.
func (state *DeyeActor) WaitingCloud(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("deye@waitingCloud backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("deye@waitingCloud stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *DeyeActor) getDeviceState() (*domain.GetDeviceStateResponse, error) {
	callCtx, cancel := context.WithTimeout(context.Background(), deyeCallTimeout)
	defer cancel()

	battery, err := a.gateway.GetBatteryInfo(callCtx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	mode, err := a.gateway.GetWorkMode(callCtx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetDeviceStateResponse{
		State: &domain.DeviceState{
			Battery:   *battery,
			Mode:      mode,
			FetchedAt: time.Now(),
		},
	}, nil
}

func (a *DeyeActor) setWorkMode(mode deyecloud.WorkMode) (*domain.SetWorkModeResponse, error) {
	callCtx, cancel := context.WithTimeout(context.Background(), deyeCallTimeout)
	defer cancel()

	if err := a.gateway.SetWorkMode(callCtx, mode); err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.SetWorkModeResponse{}, nil
}

func (a *DeyeActor) setTOUPlan(plan deyecloud.TOUPlan) (*domain.SetTOUPlanResponse, error) {
	callCtx, cancel := context.WithTimeout(context.Background(), deyeCallTimeout)
	defer cancel()

	if err := a.gateway.SetTOUPlan(callCtx, plan); err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.SetTOUPlanResponse{}, nil
}

func (a *DeyeActor) getTOUSettings() (*domain.GetTOUSettingsResponse, error) {
	callCtx, cancel := context.WithTimeout(context.Background(), deyeCallTimeout)
	defer cancel()

	settings, err := a.gateway.GetTOUSettings(callCtx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetTOUSettingsResponse{Settings: settings}, nil
}

func (a *DeyeActor) probeDevice() (*domain.ProbeDeviceResponse, error) {
	callCtx, cancel := context.WithTimeout(context.Background(), deyeCallTimeout)
	defer cancel()

	info, err := a.gateway.Probe(callCtx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.ProbeDeviceResponse{Info: info}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
