package actor

import (
	"errors"
	"fmt"
	"testing"
	"time"

	adactor "github.com/peaksell/peaksell/internal/adapter/actor"
	"github.com/peaksell/peaksell/internal/core/domain"
	"github.com/peaksell/peaksell/internal/core/service"
	"github.com/peaksell/peaksell/internal/util"
	"github.com/peaksell/peaksell/internal/util/actorutil"
	"github.com/peaksell/peaksell/pkg/deyecloud"
	"github.com/peaksell/peaksell/pkg/openmeteo"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func clockString(t time.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

type schedulerFixture struct {
	as        *actor.ActorSystem
	context   *actor.RootContext
	gateway   *deyecloud.TestGateway
	source    *openmeteo.TestSource
	scheduler *actor.PID
}

func newSchedulerFixture(t *testing.T, windowStart, windowEnd string) *schedulerFixture {
	t.Helper()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	// ticks are driven manually from the tests
	cfg.Schedule.Enabled = false
	cfg.Schedule.StartTime = windowStart
	cfg.Schedule.EndTime = windowEnd

	gateway := deyecloud.NewTestGateway()
	source := openmeteo.NewTestSource(nil)

	deyeProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewDeyeActor(gateway, logger)
	})
	deyePID := context.Spawn(deyeProps)

	forecastProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewForecastActor(source, cfg.Weather, logger)
	})
	forecastPID := context.Spawn(forecastProps)

	schedulerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewSchedulerActor(cfg, deyePID, forecastPID,
			&service.DefaultDecisionLogic{Logger: logger}, &eventstream.EventStream{}, logger)
	})
	schedulerPID := context.Spawn(schedulerProps)

	time.Sleep(500 * time.Millisecond)

	return &schedulerFixture{
		as:        as,
		context:   context,
		gateway:   gateway,
		source:    source,
		scheduler: schedulerPID,
	}
}

func (f *schedulerFixture) tick(t *testing.T) domain.SchedulerTickResponse {
	t.Helper()
	result, err := f.context.RequestFuture(f.scheduler, domain.SchedulerTickRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	return result.(domain.SchedulerTickResponse)
}

func (f *schedulerFixture) status(t *testing.T) domain.SchedulerStatus {
	t.Helper()
	result, err := f.context.RequestFuture(f.scheduler, domain.GetSchedulerStatusRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	return result.(domain.GetSchedulerStatusResponse).Status
}

func TestSchedulerTickAppliesDischarge(t *testing.T) {

	assert := assert.New(t)

	now := time.Now()
	f := newSchedulerFixture(t, clockString(now.Add(-1*time.Hour)), clockString(now.Add(1*time.Hour)))
	defer f.as.Shutdown()

	// SoC 60 > cutoff 50, inside window, weather disabled
	resp := f.tick(t)
	assert.False(resp.HasResponseError())

	assert.Equal(deyecloud.WorkModeSellingFirst, f.gateway.Mode, "work mode after apply")
	assert.Equal(1, f.gateway.SetWorkModeCalls, "set work mode calls")
	assert.Equal(1, f.gateway.SetTOUPlanCalls, "set TOU plan calls")

	status := f.status(t)
	assert.True(status.DischargeActive, "discharge active")
	assert.True(status.InWindow, "in window")
	assert.Empty(status.LastError, "last error")
	assert.NotNil(status.Applied, "applied state")

	// a second tick with nothing changed must not touch the device
	resp = f.tick(t)
	assert.False(resp.HasResponseError())
	assert.Equal(1, f.gateway.SetWorkModeCalls, "set work mode calls after idempotent tick")
	assert.Equal(1, f.gateway.SetTOUPlanCalls, "set TOU plan calls after idempotent tick")
}

func TestSchedulerTickOutsideWindow(t *testing.T) {

	assert := assert.New(t)

	now := time.Now()
	f := newSchedulerFixture(t, clockString(now.Add(2*time.Hour)), clockString(now.Add(3*time.Hour)))
	defer f.as.Shutdown()

	resp := f.tick(t)
	assert.False(resp.HasResponseError())

	// the device already runs the normal mode, only the plan is written
	assert.Equal(deyecloud.WorkModeZeroExportToCT, f.gateway.Mode, "work mode")
	assert.Equal(0, f.gateway.SetWorkModeCalls, "set work mode calls")
	assert.Equal(1, f.gateway.SetTOUPlanCalls, "set TOU plan calls")

	status := f.status(t)
	assert.False(status.DischargeActive, "discharge active")
	assert.False(status.InWindow, "in window")
}

func TestSchedulerTickRevertsAfterWindow(t *testing.T) {

	assert := assert.New(t)

	now := time.Now()
	f := newSchedulerFixture(t, clockString(now.Add(-1*time.Hour)), clockString(now.Add(1*time.Hour)))
	defer f.as.Shutdown()

	// the device was left discharging by an earlier run
	f.gateway.Mode = deyecloud.WorkModeSellingFirst
	f.gateway.SoC = 48

	resp := f.tick(t)
	assert.False(resp.HasResponseError())

	// SoC at or below the cutoff ends the discharge
	assert.Equal(deyecloud.WorkModeZeroExportToCT, f.gateway.Mode, "work mode reverted")
	assert.Equal(1, f.gateway.SetWorkModeCalls, "set work mode calls")

	status := f.status(t)
	assert.False(status.DischargeActive, "discharge active")
	assert.True(status.InWindow, "in window")
}

func TestSchedulerTickDeviceError(t *testing.T) {

	assert := assert.New(t)

	now := time.Now()
	f := newSchedulerFixture(t, clockString(now.Add(-1*time.Hour)), clockString(now.Add(1*time.Hour)))
	defer f.as.Shutdown()

	f.gateway.Fail(errors.New("cloud unreachable"))

	resp := f.tick(t)
	assert.True(resp.HasResponseError(), "tick error")

	status := f.status(t)
	assert.NotEmpty(status.LastError, "last error")
	assert.Nil(status.Applied, "nothing applied")

	// recovery: next tick applies in full
	f.gateway.Fail(nil)
	resp = f.tick(t)
	assert.False(resp.HasResponseError())
	assert.Equal(deyecloud.WorkModeSellingFirst, f.gateway.Mode, "work mode after recovery")

	status = f.status(t)
	assert.Empty(status.LastError, "last error cleared")
	assert.NotNil(status.Applied, "applied state")
}

func TestSchedulerRunRequest(t *testing.T) {

	assert := assert.New(t)

	now := time.Now()
	f := newSchedulerFixture(t, clockString(now.Add(-1*time.Hour)), clockString(now.Add(1*time.Hour)))
	defer f.as.Shutdown()

	result, err := f.context.RequestFuture(f.scheduler, domain.SchedulerRunRequest{Enable: true}, 5*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	resp := result.(domain.SchedulerRunResponse)
	assert.True(resp.Changed, "enable changed")

	status := f.status(t)
	assert.True(status.Enabled, "enabled")

	result, err = f.context.RequestFuture(f.scheduler, domain.SchedulerRunRequest{Enable: true}, 5*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	resp = result.(domain.SchedulerRunResponse)
	assert.False(resp.Changed, "enable unchanged")
}
