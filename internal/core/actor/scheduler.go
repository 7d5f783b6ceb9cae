package actor

import (
	"fmt"
	"time"

	"github.com/peaksell/peaksell/internal/config"
	"github.com/peaksell/peaksell/internal/core/domain"
	"github.com/peaksell/peaksell/internal/core/events"
	"github.com/peaksell/peaksell/internal/core/port"
	. "github.com/peaksell/peaksell/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	deviceRequestTimeout   = 35 * time.Second
	forecastRequestTimeout = 25 * time.Second
	applyRequestTimeout    = 35 * time.Second
)

// SchedulerActor runs the reconciliation loop: on every tick it reads
// the device state, asks for the forecast, computes the desired state
// and applies whatever differs. Only this actor writes to the device,
// so two ticks can never race each other.
type SchedulerActor struct {
	ActorWithStates
	scheduler     *scheduler.TimerScheduler
	stash         *Stash
	deyeActor     *actor.PID
	forecastActor *actor.PID
	config        config.Config
	decision      port.DecisionLogic
	eventStream   *eventstream.EventStream
	logger        *zap.Logger

	enabled bool
	// lastApplied is the last desired state fully written to the device.
	// Nil until the first successful apply, which forces one.
	lastApplied *domain.DesiredState
	status      domain.SchedulerStatus
	location    *time.Location
	cancelTick  scheduler.CancelFunc
}

type schedulerTick struct {
}

func NewSchedulerActor(config config.Config, deyeActor, forecastActor *actor.PID, decision port.DecisionLogic,
	eventStream *eventstream.EventStream, logger *zap.Logger) *SchedulerActor {
	act := &SchedulerActor{
		config:        config,
		deyeActor:     deyeActor,
		forecastActor: forecastActor,
		decision:      decision,
		eventStream:   eventStream,
		stash:         &Stash{},
		logger:        ActorLogger(domain.ACTOR_ID_SCHEDULER, logger),
		enabled:       config.Schedule.Enabled,
		location:      scheduleLocation(config.Schedule.Timezone),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.status.Enabled = act.enabled
	act.status.Reason = "not evaluated yet"
	act.Become(SchedStartingState{
		actor: act,
	})
	return act
}

func (state *SchedulerActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

func scheduleLocation(tz string) *time.Location {
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}

func (state *SchedulerActor) tickInterval() time.Duration {
	seconds := state.config.Schedule.IntervalSeconds
	if seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}

func (state *SchedulerActor) rescheduleTicks(ctx actor.Context) {
	if state.cancelTick != nil {
		state.cancelTick()
		state.cancelTick = nil
	}
	if state.enabled {
		state.cancelTick = state.scheduler.SendRepeatedly(0, state.tickInterval(), ctx.Self(), schedulerTick{})
	}
}

func (state *SchedulerActor) publishStatus() {
	for _, ev := range events.SchedulerStatusToUpdateEvents(state.status) {
		state.eventStream.Publish(ev)
	}
}

// Starting state

type SchedStartingState struct {
	ActorState
	actor *SchedulerActor
}

func (state SchedStartingState) Name() string {
	return "starting"
}

func (state SchedStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("scheduler@starting started")
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.rescheduleTicks(ctx)
		state.actor.Become(SchedIdleState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("scheduler@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Idle state

type SchedIdleState struct {
	ActorState
	actor *SchedulerActor
}

func (state SchedIdleState) Name() string {
	return "idle"
}

func (state SchedIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("scheduler@idle: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SCHEDULER,
			Healthy: true,
			State:   state.Name(),
		})
	case schedulerTick:
		if !state.actor.enabled {
			return
		}
		state.actor.logger.Debug("scheduler@idle: tick")
		state.actor.startTick(ctx, nil)
	case domain.SchedulerTickRequest:
		state.actor.logger.Debug("scheduler@idle: SchedulerTickRequest")
		state.actor.startTick(ctx, ForRequest(msg).ReplyTo(ctx))
	case domain.SchedulerRunRequest:
		state.actor.logger.Sugar().Infof("scheduler@idle: run %t", msg.Enable)
		changed := state.actor.enabled != msg.Enable
		state.actor.enabled = msg.Enable
		state.actor.status.Enabled = msg.Enable
		if changed {
			state.actor.rescheduleTicks(ctx)
			state.actor.publishStatus()
		}
		ForRequest(msg).Respond(ctx, domain.SchedulerRunResponse{Changed: changed})
	case domain.GetSchedulerStatusRequest:
		state.actor.logger.Debug("scheduler@idle: GetSchedulerStatusRequest")
		ForRequest(msg).Respond(ctx, domain.GetSchedulerStatusResponse{Status: state.actor.status})
	case domain.ConfigUpdatedCommand:
		state.actor.logger.Info("scheduler@idle: config updated")
		state.actor.applyConfig(ctx, msg.Config)
	case *actor.Stopping:
		if state.actor.cancelTick != nil {
			state.actor.cancelTick()
		}
	default:
		state.actor.logger.Debug("scheduler@idle: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *SchedulerActor) applyConfig(ctx actor.Context, cfg config.Config) {
	state.config = cfg
	state.enabled = cfg.Schedule.Enabled
	state.status.Enabled = state.enabled
	state.location = scheduleLocation(cfg.Schedule.Timezone)
	// a config change invalidates whatever was applied before
	state.lastApplied = nil
	state.rescheduleTicks(ctx)
}

func (state *SchedulerActor) startTick(ctx actor.Context, replyTo *actor.PID) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.deyeActor, domain.GetDeviceStateRequest{}, deviceRequestTimeout),
		func(err error) any {
			return domain.GetDeviceStateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	state.BecomeStacked(SchedAwaitDeviceState{
		actor:   state,
		replyTo: replyTo,
	})
}

// Await device state

type SchedAwaitDeviceState struct {
	ActorState
	actor   *SchedulerActor
	replyTo *actor.PID
}

func (state SchedAwaitDeviceState) Name() string {
	return "awaitDevice"
}

func (state SchedAwaitDeviceState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDeviceStateResponse:
		if msg.HasResponseError() || msg.State == nil {
			err := msg.GetResponseError()
			if err == nil {
				err = fmt.Errorf("device state unavailable")
			}
			// no SoC reading means no decision this tick
			state.actor.logger.Error("scheduler@awaitDevice: device state error", zap.Error(err))
			state.actor.UnbecomeStacked()
			state.actor.finishTick(ctx, nil, nil, err, state.replyTo)
			return
		}
		state.actor.logger.Debug("scheduler@awaitDevice: device state",
			zap.Float64("soc", msg.State.Battery.StateOfCharge), zap.String("mode", string(msg.State.Mode)))
		device := *msg.State
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.forecastActor, domain.GetForecastRequest{}, forecastRequestTimeout),
			func(err error) any {
				return domain.GetForecastResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
		state.actor.UnbecomeStacked()
		state.actor.BecomeStacked(SchedAwaitForecastState{
			actor:   state.actor,
			device:  device,
			replyTo: state.replyTo,
		})
	default:
		state.actor.logger.Debug("scheduler@awaitDevice: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Await forecast state

type SchedAwaitForecastState struct {
	ActorState
	actor   *SchedulerActor
	device  domain.DeviceState
	replyTo *actor.PID
}

func (state SchedAwaitForecastState) Name() string {
	return "awaitForecast"
}

func (state SchedAwaitForecastState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetForecastResponse:
		// a forecast error never blocks the tick, the decision logic
		// fails open on a nil summary
		if msg.HasResponseError() {
			state.actor.logger.Warn("scheduler@awaitForecast: forecast error", zap.Error(msg.GetResponseError()))
		}
		if msg.Summary != nil {
			state.actor.status.TomorrowYieldKWh = msg.Summary.TomorrowYieldKWh
		}
		now := time.Now().In(state.actor.location)
		decision := state.actor.decision.Decide(now, state.device, msg.Summary, state.actor.config)
		state.actor.logger.Info("scheduler tick decision",
			zap.Bool("discharge", decision.DischargeActive),
			zap.Bool("inWindow", decision.InWindow),
			zap.String("mode", string(decision.Desired.Mode)),
			zap.String("reason", decision.Reason))

		needMode := state.device.Mode != decision.Desired.Mode
		needPlan := state.actor.lastApplied == nil || !state.actor.lastApplied.Plan.Equal(decision.Desired.Plan)

		state.actor.UnbecomeStacked()
		if !needMode && !needPlan {
			state.actor.finishTick(ctx, &decision, &state.device, nil, state.replyTo)
			return
		}
		applying := SchedApplyingState{
			actor:    state.actor,
			decision: decision,
			device:   state.device,
			replyTo:  state.replyTo,
			needMode: needMode,
			needPlan: needPlan,
		}
		state.actor.BecomeStacked(applying.OnEnterAction(ctx))
	default:
		state.actor.logger.Debug("scheduler@awaitForecast: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Applying state writes the work mode first, the TOU plan second. The
// order matters: a plan for the wrong mode is harmless, a discharge
// mode without its plan is not.

type SchedApplyingState struct {
	ActorState
	actor    *SchedulerActor
	decision domain.Decision
	device   domain.DeviceState
	replyTo  *actor.PID
	needMode bool
	needPlan bool
}

func (state SchedApplyingState) Name() string {
	return "applying"
}

func (state SchedApplyingState) OnEnterAction(ctx actor.Context) SchedApplyingState {
	if state.needMode {
		state.actor.logger.Sugar().Infof("scheduler@applying: set work mode %s", state.decision.Desired.Mode)
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.deyeActor,
			domain.SetWorkModeRequest{Mode: state.decision.Desired.Mode}, applyRequestTimeout),
			func(err error) any {
				return domain.SetWorkModeResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
	} else {
		state.sendPlan(ctx)
	}
	return state
}

func (state SchedApplyingState) sendPlan(ctx actor.Context) {
	state.actor.logger.Sugar().Infof("scheduler@applying: set TOU plan, window SoC %d", state.decision.Desired.WindowSoC)
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.deyeActor,
		domain.SetTOUPlanRequest{Plan: state.decision.Desired.Plan}, applyRequestTimeout),
		func(err error) any {
			return domain.SetTOUPlanResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
}

func (state SchedApplyingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.SetWorkModeResponse:
		if msg.HasResponseError() {
			state.actor.logger.Error("scheduler@applying: set work mode error", zap.Error(msg.GetResponseError()))
			state.actor.UnbecomeStacked()
			state.actor.finishTick(ctx, &state.decision, &state.device, msg.GetResponseError(), state.replyTo)
			return
		}
		state.device.Mode = state.decision.Desired.Mode
		if state.needPlan {
			state.sendPlan(ctx)
		} else {
			desired := state.decision.Desired
			state.actor.lastApplied = &desired
			state.actor.UnbecomeStacked()
			state.actor.finishTick(ctx, &state.decision, &state.device, nil, state.replyTo)
		}
	case domain.SetTOUPlanResponse:
		if msg.HasResponseError() {
			state.actor.logger.Error("scheduler@applying: set TOU plan error", zap.Error(msg.GetResponseError()))
			state.actor.UnbecomeStacked()
			state.actor.finishTick(ctx, &state.decision, &state.device, msg.GetResponseError(), state.replyTo)
			return
		}
		desired := state.decision.Desired
		state.actor.lastApplied = &desired
		state.actor.UnbecomeStacked()
		state.actor.finishTick(ctx, &state.decision, &state.device, nil, state.replyTo)
	default:
		state.actor.logger.Debug("scheduler@applying: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// finishTick records the tick outcome, publishes the status sensors and
// returns to the idle state. A failed tick keeps lastApplied untouched
// so the next one retries the write.
func (state *SchedulerActor) finishTick(ctx actor.Context, decision *domain.Decision, device *domain.DeviceState,
	err error, replyTo *actor.PID) {
	state.status.Enabled = state.enabled
	state.status.LastTickAt = time.Now()
	state.status.Applied = state.lastApplied
	if device != nil {
		deviceCopy := *device
		state.status.Device = &deviceCopy
	}
	if decision != nil {
		desired := decision.Desired
		state.status.Desired = &desired
		state.status.InWindow = decision.InWindow
		state.status.DischargeActive = decision.DischargeActive && err == nil
		state.status.WeatherSkip = decision.WeatherSkip
		state.status.Degraded = decision.Degraded
		state.status.FreeEnergyActive = decision.FreeEnergyActive
		state.status.Reason = decision.Reason
	}
	if err != nil {
		state.status.LastError = err.Error()
	} else {
		state.status.LastError = ""
	}
	state.publishStatus()

	if replyTo != nil {
		ctx.Send(replyTo, domain.SchedulerTickResponse{
			SchedulerResponseMixIn: domain.SchedulerResponseMixIn{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			},
		})
	}
	state.stash.UnstashAll(ctx)
}
