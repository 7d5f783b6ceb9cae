package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/peaksell/peaksell/internal/config"
	"github.com/peaksell/peaksell/internal/core/domain"
	"github.com/peaksell/peaksell/internal/mqtt"
	"github.com/peaksell/peaksell/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTActor owns the broker connection. It publishes sensor updates and
// discovery payloads, and forwards parsed command topics to its parent.
type MQTTActor struct {
	config   *config.Config
	behavior actor.Behavior
	stash    *actorutil.Stash
	client   *mqtt.MQTTClient
	logger   *zap.Logger
}

// ParsedCommand wraps a command received over MQTT so the master can
// route it.
type ParsedCommand struct {
	Command *mqtt.ParsedMQTTCommand
}

type mqttConnected struct{}

type mqttSubscribed struct{}

type mqttConnectionLost struct {
	Error error
}

// publishDone closes one in-flight publish. respond builds the reply
// for replyTo when a reply is expected.
type publishDone struct {
	replyTo *actor.PID
	respond func(err error) any
	err     error
}

func NewMQTTActor(config *config.Config, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			ctx.Send(ctx.Self(), mqttConnectionLost{Error: err})
		})

		state.client.Connect(func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), mqttConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), mqttConnected{})
			}
		}, 10*time.Second)

	case mqttConnected:
		state.logger.Debug("mqtt@starting connected")

		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		state.client.SubscribeToCommandTopic(func(c pahomqtt.Client, m pahomqtt.Message) {
			cmd, err := state.client.ParseMQTTCommand(m)
			if err == nil && cmd != nil {
				ctx.Send(ctx.Self(), ParsedCommand{Command: cmd})
			}
		}, func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), mqttConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), mqttSubscribed{})
			}
		}, 1*time.Second)
	case mqttSubscribed:
		state.logger.Debug("mqtt@starting subscribed")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case mqttConnectionLost:
		// let the supervisor decide whether to reconnect
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case ParsedCommand:
		// commands are routed by the master, not handled here
		state.logger.Debug("mqtt@default parsedCommand", zap.Any("command", msg.Command))
		ctx.Send(ctx.Parent(), msg)
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@default PublishMessageRequest", zap.Any("message", msg))
		state.startPublish(ctx, msg.Topic, msg.Payload, msg.Retain, actorutil.ForRequest(msg).ReplyTo(ctx),
			func(err error) any {
				return domain.PublishMessageResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
				}
			})
	case domain.PublishSensorUpdateRequest:
		state.logger.Debug("mqtt@default PublishSensorUpdateRequest", zap.String("type", fmt.Sprintf("%T", msg.Event)))
		state.publishSensorValue(ctx, msg.Event, msg.Retain)
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishHADiscovery")
		if err := state.publishDiscovery(msg.Sensors, msg.Switches); err != nil {
			state.logger.Error("mqtt@default PublishHADiscovery error", zap.Error(err))
		}
	case mqttConnectionLost:
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default ignore", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// AwaitPublishReceive holds the actor while one publish is in flight.
// Anything else that arrives is stashed and redelivered afterwards.
func (state *MQTTActor) AwaitPublishReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishDone:
		if msg.err != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.err))
		}
		if msg.replyTo != nil && msg.respond != nil {
			ctx.Send(msg.replyTo, msg.respond(msg.err))
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) startPublish(ctx actor.Context, topic, payload string, retain bool,
	replyTo *actor.PID, respond func(err error) any) {
	state.logger.Sugar().Debugf("mqtt@publish: %s => %s", topic, payload)
	state.client.Publish(topic, payload, 1, retain, func(err error) {
		ctx.Send(ctx.Self(), publishDone{replyTo: replyTo, respond: respond, err: err})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.AwaitPublishReceive)
}

func (state *MQTTActor) publishSensorValue(ctx actor.Context, event domain.SensorUpdateEvent, retain bool) {
	topic, payload, sticky := state.sensorEventMessage(event)
	if topic == "" {
		return
	}
	state.logger.Sugar().Debugf("mqtt@publish: sensor publish %s => %s", topic, payload)
	state.client.Publish(topic, payload, 1, sticky || retain, func(err error) {
		ctx.Send(ctx.Self(), publishDone{err: err})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.AwaitPublishReceive)
}

// sensorEventMessage maps a sensor update event to its state topic and
// payload. Switch states are retained so HA restores them on restart.
func (state *MQTTActor) sensorEventMessage(event domain.SensorUpdateEvent) (topic, payload string, retain bool) {
	switch msg := event.(type) {
	case domain.FloatSensorUpdateEvent:
		return state.client.SensorStateTopic(msg.Id),
			fmt.Sprintf(fmt.Sprintf("%%.%df", msg.Decimals), msg.Value), false
	case domain.BinarySensorUpdateEvent:
		return state.client.BinarySensorStateTopic(msg.Id), boolPayload(msg.Value), false
	case domain.SwitchSensorUpdateEvent:
		return state.client.SwitchStateTopic(msg.Id), boolPayload(msg.Value), true
	case domain.TextSensorUpdateEvent:
		return state.client.SensorStateTopic(msg.Id), msg.Value, false
	case domain.BridgeStateUpdateEvent:
		payload := mqtt.MQTT_PAYLOAD_OFFLINE
		if msg.Value {
			payload = mqtt.MQTT_PAYLOAD_ONLINE
		}
		return state.client.BridgeStateTopic(), payload, false
	default:
		return "", "", false
	}
}

func (state *MQTTActor) publishDiscovery(sensors []domain.GenericSensor, switches []domain.GenericSwitch) error {
	for i := range sensors {
		msg := mqtt.GenericSensorToHADiscoveryMessage(state.client, sensors[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := mqtt.HADiscoverySensorTopic(state.client, sensors[i])
		state.client.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	for i := range switches {
		msg := mqtt.GenericSwitchToHADiscoveryMessage(state.client, switches[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := mqtt.HADiscoverySwitchTopic(state.client, switches[i])
		state.client.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	return nil
}

func (state *MQTTActor) stop() {
	state.logger.Debug("mqtt: disconnect")
	if state.client == nil {
		return
	}
	state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
	state.client.Disconnect(500 * time.Millisecond)
}

func boolPayload(value bool) string {
	if value {
		return mqtt.MQTT_PAYLOAD_ON
	}
	return mqtt.MQTT_PAYLOAD_OFF
}

// NewTestMQTTActor builds an MQTT actor that acknowledges every request
// without a broker. Used by tests and when MQTT is disabled.
func NewTestMQTTActor(config *config.Config, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.NoopReceive)
	return act
}

func (state *MQTTActor) NoopReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.PublishSensorUpdateRequest:
		if msg.ReplyToRef != nil {
			ctx.Respond(domain.PublishSensorUpdateResponse{})
		}
	case domain.PublishMessageRequest:
		if msg.ReplyToRef != nil {
			ctx.Respond(domain.PublishMessageResponse{})
		}
	}
}
