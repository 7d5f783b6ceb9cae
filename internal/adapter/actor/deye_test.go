package actor

import (
	"testing"
	"time"

	"github.com/peaksell/peaksell/internal/core/domain"
	"github.com/peaksell/peaksell/internal/util/actorutil"
	"github.com/peaksell/peaksell/pkg/deyecloud"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestGetDeviceStateDeyeActor(t *testing.T) {

	assert := assert.New(t)

	gateway := deyecloud.NewTestGateway()
	gateway.SoC = 72.5
	gateway.Mode = deyecloud.WorkModeSellingFirst

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewDeyeActor(gateway, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.GetDeviceStateRequest{}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetDeviceStateResponse)

	assert.False(resp.HasResponseError())
	assert.NotNil(resp.State)
	assert.Equal(72.5, resp.State.Battery.StateOfCharge, "battery SoC")
	assert.Equal(deyecloud.WorkModeSellingFirst, resp.State.Mode, "work mode")
	assert.False(resp.State.FetchedAt.IsZero(), "fetched at")

	context.Stop(pid)

	as.Shutdown()
}

func TestSetWorkModeDeyeActor(t *testing.T) {

	assert := assert.New(t)

	gateway := deyecloud.NewTestGateway()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewDeyeActor(gateway, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.SetWorkModeRequest{Mode: deyecloud.WorkModeSellingFirst}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.SetWorkModeResponse)

	assert.False(resp.HasResponseError())
	assert.Equal(deyecloud.WorkModeSellingFirst, gateway.Mode, "gateway mode")
	assert.Equal(1, gateway.SetWorkModeCalls, "set work mode calls")

	context.Stop(pid)

	as.Shutdown()
}

func TestGetTOUSettingsDeyeActor(t *testing.T) {

	assert := assert.New(t)

	gateway := deyecloud.NewTestGateway()
	plan, err := deyecloud.BuildPlan(deyecloud.PlanSpec{
		WindowStart: "17:30",
		WindowEnd:   "19:30",
		WindowSoC:   50,
		ReserveSoC:  20,
		PowerWatt:   10000,
	})
	if err != nil {
		t.Error(err)
		return
	}
	gateway.Plan = plan

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewDeyeActor(gateway, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.GetTOUSettingsRequest{}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetTOUSettingsResponse)

	assert.False(resp.HasResponseError())
	assert.NotNil(resp.Settings)
	assert.Equal("enable", resp.Settings.Action, "tou action")
	assert.Len(resp.Settings.Periods, 6, "tou periods")
	assert.Equal("17:30", resp.Settings.Periods[3].Time, "window start period")

	context.Stop(pid)

	as.Shutdown()
}

func TestSetTOUPlanDeyeActor(t *testing.T) {

	assert := assert.New(t)

	gateway := deyecloud.NewTestGateway()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewDeyeActor(gateway, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	plan, err := deyecloud.BuildPlan(deyecloud.PlanSpec{
		WindowStart: "17:30",
		WindowEnd:   "19:30",
		WindowSoC:   50,
		ReserveSoC:  20,
		PowerWatt:   10000,
	})
	if err != nil {
		t.Error(err)
		return
	}

	msg := domain.SetTOUPlanRequest{Plan: plan}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.SetTOUPlanResponse)

	assert.False(resp.HasResponseError())
	assert.True(gateway.Plan.Equal(plan), "applied plan")
	assert.Equal(1, gateway.SetTOUPlanCalls, "set TOU plan calls")

	context.Stop(pid)

	as.Shutdown()
}
