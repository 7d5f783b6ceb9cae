package actor

import (
	"fmt"
	"time"

	adactor "github.com/peaksell/peaksell/internal/adapter/actor"
	"github.com/peaksell/peaksell/internal/config"
	"github.com/peaksell/peaksell/internal/core/domain"
	"github.com/peaksell/peaksell/internal/core/service"
	. "github.com/peaksell/peaksell/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type DeyeActorProvider func() *adactor.DeyeActor

type ForecastActorProvider func() *adactor.ForecastActor

type MQTTActorProvider func() *adactor.MQTTActor

// MasterActor owns every child: the cloud gateway, the forecast cache,
// the scheduler loop and the MQTT bridge. It routes requests from the
// HTTP server to the right child and fans sensor updates out to MQTT.
type MasterActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	eventStreamSub     *eventstream.Subscription
	deyeActor          *actor.PID
	forecastActor      *actor.PID
	schedulerActor     *actor.PID
	mqttActor          *actor.PID
	deyeProvider       DeyeActorProvider
	forecastProvider   ForecastActorProvider
	mqttProvider       MQTTActorProvider
	logger             *zap.Logger
}

type healthCheckResult struct {
	healthy        map[string]bool
	checksExpected int
	checksReceived int
	respondTo      *actor.PID
}

type sensorUpdate struct {
	event domain.SensorUpdateEvent
}

func NewMasterActor(config config.Config, deyeProvider DeyeActorProvider, forecastProvider ForecastActorProvider,
	mqttProvider MQTTActorProvider, logger *zap.Logger) *MasterActor {
	act := &MasterActor{
		config:           config,
		behavior:         actor.NewBehavior(),
		stash:            &Stash{},
		logger:           ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:      &eventstream.EventStream{},
		deyeProvider:     deyeProvider,
		forecastProvider: forecastProvider,
		mqttProvider:     mqttProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset(state.childIds())

		deyeActorPID, err := state.startDeyeActor(ctx)
		if err != nil {
			panic(err)
		}
		state.deyeActor = deyeActorPID

		forecastActorPID, err := state.startForecastActor(ctx)
		if err != nil {
			panic(err)
		}
		state.forecastActor = forecastActorPID

		if state.config.MQTT.Enabled {
			mqttActorPID, err := state.startMQTTActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mqttActor = mqttActorPID

			// children publish sensor updates on the event stream, the
			// MQTT actor turns them into messages
			state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
				if ev, ok := value.(domain.SensorUpdateEvent); ok {
					ctx.Send(ctx.Self(), sensorUpdate{event: ev})
				}
			})
		}

		schedulerActorPID, err := state.startSchedulerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.schedulerActor = schedulerActorPID

		if state.config.MQTT.Enabled && state.config.MQTT.HADiscoveryEnable {
			if _, err := state.startHADiscoveryActor(ctx); err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset(state.childIds())
		state.currentHealthCheck.respondTo = ctx.Sender()
		for id, pid := range state.children() {
			childId := id
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      childId,
					Healthy: false,
				}
			})
		}
		ctx.SetReceiveTimeout(1 * time.Second)
		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// commands arriving over MQTT are routed to the scheduler
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err == nil && cmd != nil {
				switch pcmd := cmd.(type) {
				case domain.SchedulerRequest:
					ctx.Send(state.schedulerActor, pcmd)
				}
			}
		}
	case sensorUpdate:
		if state.mqttActor != nil {
			ctx.Send(state.mqttActor, domain.PublishSensorUpdateRequest{Event: msg.event})
		}
	case domain.ConfigUpdatedCommand:
		state.logger.Info("master@default config updated")
		state.config = msg.Config
		ctx.Send(state.schedulerActor, msg)
		ctx.Send(state.forecastActor, msg)
	case domain.GetSchedulerStatusRequest, domain.SchedulerRunRequest, domain.SchedulerTickRequest:
		ctx.Forward(state.schedulerActor)
	case domain.GetForecastRequest, domain.RefreshForecastRequest, domain.SearchCitiesRequest:
		ctx.Forward(state.forecastActor)
	case domain.GetDeviceStateRequest, domain.SetWorkModeRequest, domain.SetTOUPlanRequest,
		domain.GetTOUSettingsRequest, domain.ProbeDeviceRequest:
		ctx.Forward(state.deyeActor)
	case *actor.Stopping:
		if state.eventStreamSub != nil {
			state.eventStream.Unsubscribe(state.eventStreamSub)
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// a child that does not answer counts as unhealthy
		ctx.SetReceiveTimeout(0)
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			state.currentHealthCheck.healthy[msg.Id] = true
		}
		if state.currentHealthCheck.allReceived() {
			ctx.SetReceiveTimeout(0)
			state.currentHealthCheck.respond(ctx)
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) childIds() []string {
	ids := []string{domain.ACTOR_ID_DEYE, domain.ACTOR_ID_FORECAST, domain.ACTOR_ID_SCHEDULER}
	if state.config.MQTT.Enabled {
		ids = append(ids, domain.ACTOR_ID_MQTT)
	}
	return ids
}

func (state *MasterActor) children() map[string]*actor.PID {
	children := map[string]*actor.PID{
		domain.ACTOR_ID_DEYE:      state.deyeActor,
		domain.ACTOR_ID_FORECAST:  state.forecastActor,
		domain.ACTOR_ID_SCHEDULER: state.schedulerActor,
	}
	if state.mqttActor != nil {
		children[domain.ACTOR_ID_MQTT] = state.mqttActor
	}
	return children
}

func (state *MasterActor) startDeyeActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	deyeProps := actor.PropsFromProducer(func() actor.Actor {
		return state.deyeProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(deyeProps, domain.ACTOR_ID_DEYE)
}

func (state *MasterActor) startForecastActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	forecastProps := actor.PropsFromProducer(func() actor.Actor {
		return state.forecastProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(forecastProps, domain.ACTOR_ID_FORECAST)
}

func (state *MasterActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
}

func (state *MasterActor) startSchedulerActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		state.logger.Sugar().Errorf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	schedulerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewSchedulerActor(state.config, state.deyeActor, state.forecastActor,
			&service.DefaultDecisionLogic{Logger: state.logger}, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(schedulerProps, domain.ACTOR_ID_SCHEDULER)
}

func (state *MasterActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		state.logger.Sugar().Errorf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.deyeActor, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
}

func (state *healthCheckResult) reset(expected []string) {
	state.healthy = make(map[string]bool, len(expected))
	for _, id := range expected {
		state.healthy[id] = false
	}
	state.checksExpected = len(expected)
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= state.checksExpected
}

func (state *healthCheckResult) allHealthy() bool {
	for _, ok := range state.healthy {
		if !ok {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
