package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	. "github.com/peaksell/peaksell/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE     = "bridge"
	SENSOR_ID_BATTERY_SOC      = "battery_soc"
	SENSOR_ID_BATTERY_POWER    = "battery_power"
	SENSOR_ID_WORK_MODE        = "work_mode"
	SENSOR_ID_DISCHARGE_ACTIVE = "discharge_active"
	SENSOR_ID_WEATHER_SKIP     = "weather_skip"
	SENSOR_ID_TOMORROW_YIELD   = "tomorrow_yield"
	SENSOR_ID_DECISION_REASON  = "decision_reason"
	SENSOR_ID_LAST_ERROR       = "last_error"
	SWITCH_ID_SCHEDULER_ENABLE = "scheduler_enable"
	STATE_CLASS_MEASUREMENT    = "measurement"
	DEVICE_CLASS_BATTERY       = "battery"
	DEVICE_CLASS_ENERGY        = "energy"
	DEVICE_CLASS_POWER         = "power"
	DEVICE_CLASS_CONNECTIVITY  = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC    = "diagnostic"
	SENSOR_TYPE_SENSOR         = "sensor"
	SENSOR_TYPE_BINARY         = "binary_sensor"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("peaksell_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "Peaksell",
		Model:        "Peaksell",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Peaksell %s", md5HashShort(baseTopic)),
	}
}

func InverterDevice(deviceSN, deviceName string) Device {
	return Device{
		Id:           fmt.Sprintf("deye_inverter_%s", md5HashShort(deviceSN)),
		Manufacturer: "Deye",
		Model:        deviceName,
		Name:         fmt.Sprintf("Deye %s", deviceSN),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Connection state
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func SchedulerSensors(inverterDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Battery SoC
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_BATTERY_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_BATTERY_SOC),
	})

	// Battery power
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_BATTERY_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_BATTERY_POWER),
	})

	// Work mode
	sensors = append(sensors, GenericSensor{
		Device:     inverterDevice,
		Id:         SENSOR_ID_WORK_MODE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Work mode",
		Icon:       "mdi:transmission-tower-export",
		UniqueId:   uniqueId(inverterDevice.Id, SENSOR_ID_WORK_MODE),
	})

	// Forced discharge active
	sensors = append(sensors, GenericSensor{
		Device:     inverterDevice,
		Id:         SENSOR_ID_DISCHARGE_ACTIVE,
		SensorType: SENSOR_TYPE_BINARY,
		Name:       "Forced discharge active",
		Icon:       "mdi:battery-arrow-up",
		UniqueId:   uniqueId(inverterDevice.Id, SENSOR_ID_DISCHARGE_ACTIVE),
	})

	// Weather skip
	sensors = append(sensors, GenericSensor{
		Device:     inverterDevice,
		Id:         SENSOR_ID_WEATHER_SKIP,
		SensorType: SENSOR_TYPE_BINARY,
		Name:       "Weather skip",
		Icon:       "mdi:weather-cloudy-alert",
		UniqueId:   uniqueId(inverterDevice.Id, SENSOR_ID_WEATHER_SKIP),
	})

	// Tomorrow estimated yield
	sensors = append(sensors, GenericSensor{
		Device:            inverterDevice,
		Id:                SENSOR_ID_TOMORROW_YIELD,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Tomorrow estimated yield",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "kWh",
		Icon:              "mdi:solar-power-variant",
		UniqueId:          uniqueId(inverterDevice.Id, SENSOR_ID_TOMORROW_YIELD),
	})

	// Decision reason
	sensors = append(sensors, GenericSensor{
		Device:         inverterDevice,
		Id:             SENSOR_ID_DECISION_REASON,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Decision reason",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(inverterDevice.Id, SENSOR_ID_DECISION_REASON),
	})

	// Last error
	sensors = append(sensors, GenericSensor{
		Device:         inverterDevice,
		Id:             SENSOR_ID_LAST_ERROR,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Last error",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(inverterDevice.Id, SENSOR_ID_LAST_ERROR),
	})

	return sensors
}

func SchedulerSwitches(inverterDevice Device) []GenericSwitch {

	var switches []GenericSwitch

	// Scheduler enable
	switches = append(switches, GenericSwitch{
		Device:   inverterDevice,
		Id:       SWITCH_ID_SCHEDULER_ENABLE,
		Name:     "Scheduler",
		UniqueId: uniqueId(inverterDevice.Id, SWITCH_ID_SCHEDULER_ENABLE),
		Icon:     "mdi:calendar-clock",
	})

	return switches
}

// SchedulerStatusToUpdateEvents maps one scheduler status snapshot to
// the sensor updates published over MQTT.
func SchedulerStatusToUpdateEvents(status SchedulerStatus) []any {
	var events []any

	if status.Device != nil {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_SOC,
			},
			Value:    status.Device.Battery.StateOfCharge,
			Decimals: 1,
		})
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_POWER,
			},
			Value:    status.Device.Battery.PowerWatt,
			Decimals: 0,
		})
		events = append(events, TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_WORK_MODE,
			},
			Value: string(status.Device.Mode),
		})
	}

	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_DISCHARGE_ACTIVE,
		},
		Value: status.DischargeActive,
	})
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_WEATHER_SKIP,
		},
		Value: status.WeatherSkip,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_TOMORROW_YIELD,
		},
		Value:    status.TomorrowYieldKWh,
		Decimals: 1,
	})
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_DECISION_REASON,
		},
		Value: status.Reason,
	})
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_LAST_ERROR,
		},
		Value: status.LastError,
	})
	events = append(events, SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_SCHEDULER_ENABLE,
		},
		Value: status.Enabled,
	})

	return events
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}
