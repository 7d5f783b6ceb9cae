package deyecloud

import (
	"fmt"
	"sort"
)

// WorkMode is the inverter system work mode as exposed by the Deye Cloud API.
type WorkMode string

const (
	WorkModeSellingFirst   WorkMode = "SELLING_FIRST"
	WorkModeZeroExportToCT WorkMode = "ZERO_EXPORT_TO_CT"
)

func (m WorkMode) Valid() bool {
	return m == WorkModeSellingFirst || m == WorkModeZeroExportToCT
}

func ParseWorkMode(s string) (WorkMode, error) {
	m := WorkMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown work mode %q", s)
	}
	return m, nil
}

// BatteryInfo is the battery-related subset of the latest device data.
type BatteryInfo struct {
	StateOfCharge float64
	// PowerWatt is positive while discharging, negative while charging.
	PowerWatt float64
	// RatedPowerWatt is the inverter rated power, 0 when not reported.
	RatedPowerWatt float64
}

// TOUPeriod is one time-of-use slot on the inverter. The device expects
// exactly six of them, ordered by time of day.
type TOUPeriod struct {
	Time             string `json:"time"`
	SoC              int    `json:"soc"`
	PowerWatt        int    `json:"power"`
	EnableGridCharge bool   `json:"enableGridCharge"`
	EnableGeneration bool   `json:"enableGeneration"`
}

// TOUPlan is a full six-period TOU schedule.
type TOUPlan struct {
	Periods [touPeriodCount]TOUPeriod
}

const touPeriodCount = 6

func (p TOUPlan) Equal(other TOUPlan) bool {
	return p == other
}

// sortPeriods orders periods by their HH:MM time string. Lexicographic
// order matches chronological order for zero-padded HH:MM.
func sortPeriods(periods []TOUPeriod) {
	sort.SliceStable(periods, func(i, j int) bool {
		return periods[i].Time < periods[j].Time
	})
}

// TOUSettings is the TOU configuration reported by the device.
type TOUSettings struct {
	Action  string      `json:"action"`
	Periods []TOUPeriod `json:"periods"`
}

// DeviceInfo identifies a device found during a connection test.
type DeviceInfo struct {
	DeviceSN   string `json:"device_sn"`
	DeviceName string `json:"device_name"`
}
