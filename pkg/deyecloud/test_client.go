package deyecloud

import (
	"context"
	"sync"
)

// TestGateway is an in-memory Gateway for actor and server tests. It
// records issued commands and can be primed with failures.
type TestGateway struct {
	mu sync.Mutex

	SoC            float64
	PowerWatt      float64
	RatedPowerWatt float64
	Mode           WorkMode
	Plan           TOUPlan

	// Err, when set, is returned by every call.
	Err error

	SetWorkModeCalls int
	SetTOUPlanCalls  int
}

func NewTestGateway() *TestGateway {
	return &TestGateway{
		SoC:            60,
		PowerWatt:      -500,
		RatedPowerWatt: 10000,
		Mode:           WorkModeZeroExportToCT,
	}
}

func (g *TestGateway) GetBatteryInfo(ctx context.Context) (*BatteryInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	return &BatteryInfo{
		StateOfCharge:  g.SoC,
		PowerWatt:      g.PowerWatt,
		RatedPowerWatt: g.RatedPowerWatt,
	}, nil
}

func (g *TestGateway) GetWorkMode(ctx context.Context) (WorkMode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return "", g.Err
	}
	return g.Mode, nil
}

func (g *TestGateway) SetWorkMode(ctx context.Context, mode WorkMode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return g.Err
	}
	g.Mode = mode
	g.SetWorkModeCalls++
	return nil
}

func (g *TestGateway) GetTOUSettings(ctx context.Context) (*TOUSettings, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	return &TOUSettings{Action: "enable", Periods: g.Plan.Periods[:]}, nil
}

func (g *TestGateway) SetTOUPlan(ctx context.Context, plan TOUPlan) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return g.Err
	}
	g.Plan = plan
	g.SetTOUPlanCalls++
	return nil
}

func (g *TestGateway) Probe(ctx context.Context) (*DeviceInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	return &DeviceInfo{DeviceSN: "TEST0001", DeviceName: "Test Inverter"}, nil
}

// Fail primes the gateway to return err on every call until cleared.
func (g *TestGateway) Fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Err = err
}

// ensure interface compliance
var _ Gateway = (*TestGateway)(nil)
