package domain

import "fmt"

// SensorUpdateEvent is published on the event stream whenever a sensor
// value changes. The MQTT actor turns them into state topic publishes.
type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

type SensorUpdateEventMixIn struct {
	Id string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type SwitchSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

// BridgeStateUpdateEvent drives the bridge availability topic.
type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}
