package service

import (
	"fmt"
	"time"

	"github.com/peaksell/peaksell/internal/config"
	"github.com/peaksell/peaksell/internal/core/domain"
	"github.com/peaksell/peaksell/internal/core/port"
	"github.com/peaksell/peaksell/pkg/deyecloud"

	"go.uber.org/zap"
)

type DefaultDecisionLogic struct {
	Logger *zap.Logger
}

// Decide evaluates the discharge conditions for now and resolves them
// to a full desired device state. Forced discharge requires all three:
// inside the discharge window, SoC strictly above the cutoff, and an
// acceptable (or unavailable) forecast for tomorrow.
func (l *DefaultDecisionLogic) Decide(now time.Time, device domain.DeviceState, forecast *domain.ForecastSummary, cfg config.Config) domain.Decision {

	windowStart, err := deyecloud.ParseClock(cfg.Schedule.StartTime)
	if err != nil {
		return l.safeDecision(cfg, fmt.Sprintf("invalid window start: %s", err))
	}
	windowEnd, err := deyecloud.ParseClock(cfg.Schedule.EndTime)
	if err != nil {
		return l.safeDecision(cfg, fmt.Sprintf("invalid window end: %s", err))
	}

	nowMinute := now.Hour()*60 + now.Minute()
	inWindow := deyecloud.ClockInWindow(nowMinute, windowStart, windowEnd)

	// the cutoff is exclusive: a battery sitting exactly at the cutoff
	// has nothing left to sell
	socOK := device.Battery.StateOfCharge > float64(cfg.Schedule.CutoffSoC)

	weatherOK, degraded, weatherReason := l.checkWeather(forecast, cfg.Weather)

	freeEnergyActive := false
	if cfg.FreeEnergy.Enabled {
		freeStart, err1 := deyecloud.ParseClock(cfg.FreeEnergy.StartTime)
		freeEnd, err2 := deyecloud.ParseClock(cfg.FreeEnergy.EndTime)
		if err1 == nil && err2 == nil {
			freeEnergyActive = deyecloud.ClockInWindow(nowMinute, freeStart, freeEnd)
		}
	}

	discharge := inWindow && socOK && weatherOK

	var reason string
	switch {
	case discharge:
		reason = "forced discharge active"
	case !inWindow:
		reason = "outside discharge window"
	case !socOK:
		reason = fmt.Sprintf("battery at %.1f%%, at or below cutoff %d%%", device.Battery.StateOfCharge, cfg.Schedule.CutoffSoC)
	default:
		reason = weatherReason
	}

	mode := deyecloud.WorkModeZeroExportToCT
	windowSoC := cfg.Schedule.ReserveSoC
	if discharge {
		mode = deyecloud.WorkModeSellingFirst
		windowSoC = cfg.Schedule.CutoffSoC
	}

	plan, err := deyecloud.BuildPlan(deyecloud.PlanSpec{
		WindowStart:          cfg.Schedule.StartTime,
		WindowEnd:            cfg.Schedule.EndTime,
		WindowSoC:            windowSoC,
		ReserveSoC:           cfg.Schedule.ReserveSoC,
		PowerWatt:            cfg.Schedule.DischargePowerWatt,
		FreeEnergyEnabled:    cfg.FreeEnergy.Enabled,
		FreeEnergyStart:      cfg.FreeEnergy.StartTime,
		FreeEnergyEnd:        cfg.FreeEnergy.EndTime,
		FreeEnergySoC:        cfg.FreeEnergy.TargetSoC,
		FreeEnergyGridCharge: cfg.FreeEnergy.EnableGridCharge,
	})
	if err != nil {
		return l.safeDecision(cfg, fmt.Sprintf("cannot build TOU plan: %s", err))
	}

	return domain.Decision{
		Desired: domain.DesiredState{
			Mode:      mode,
			WindowSoC: windowSoC,
			Plan:      plan,
		},
		DischargeActive:  discharge,
		InWindow:         inWindow,
		WeatherSkip:      inWindow && socOK && !weatherOK,
		Degraded:         degraded,
		FreeEnergyActive: freeEnergyActive,
		Reason:           reason,
	}
}

// checkWeather decides whether tomorrow's forecast permits discharging
// tonight. A missing or degraded forecast never blocks discharge.
func (l *DefaultDecisionLogic) checkWeather(forecast *domain.ForecastSummary, cfg config.WeatherConfig) (ok bool, degraded bool, reason string) {
	if !cfg.Enabled {
		return true, false, ""
	}
	if forecast == nil || forecast.Degraded || len(forecast.Days) < 2 {
		if l.Logger != nil {
			l.Logger.Warn("no usable forecast, weather check fails open")
		}
		return true, true, ""
	}
	if cfg.MinSolarThresholdKWh > 0 {
		if forecast.TomorrowYieldKWh >= cfg.MinSolarThresholdKWh {
			return true, false, ""
		}
		return false, false, fmt.Sprintf("tomorrow yield %.1f kWh below threshold %.1f kWh",
			forecast.TomorrowYieldKWh, cfg.MinSolarThresholdKWh)
	}
	if forecast.TomorrowBad {
		tomorrow, _ := forecast.Tomorrow()
		return false, false, fmt.Sprintf("bad weather tomorrow: %s", tomorrow.Condition)
	}
	return true, false, ""
}

// safeDecision falls back to normal mode with the reserve plan when the
// inputs cannot be evaluated.
func (l *DefaultDecisionLogic) safeDecision(cfg config.Config, reason string) domain.Decision {
	plan, err := deyecloud.BuildPlan(deyecloud.PlanSpec{
		WindowStart: cfg.Schedule.StartTime,
		WindowEnd:   cfg.Schedule.EndTime,
		WindowSoC:   cfg.Schedule.ReserveSoC,
		ReserveSoC:  cfg.Schedule.ReserveSoC,
		PowerWatt:   cfg.Schedule.DischargePowerWatt,
	})
	if err != nil && l.Logger != nil {
		l.Logger.Error("cannot build fallback TOU plan", zap.Error(err))
	}
	return domain.Decision{
		Desired: domain.DesiredState{
			Mode:      deyecloud.WorkModeZeroExportToCT,
			WindowSoC: cfg.Schedule.ReserveSoC,
			Plan:      plan,
		},
		Reason: reason,
	}
}

// ensure interface compliance
var _ port.DecisionLogic = (*DefaultDecisionLogic)(nil)
