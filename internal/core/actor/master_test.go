package actor

import (
	"errors"
	"testing"
	"time"

	adactor "github.com/peaksell/peaksell/internal/adapter/actor"
	"github.com/peaksell/peaksell/internal/core/domain"
	"github.com/peaksell/peaksell/internal/util"
	"github.com/peaksell/peaksell/internal/util/actorutil"
	"github.com/peaksell/peaksell/pkg/deyecloud"
	"github.com/peaksell/peaksell/pkg/openmeteo"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func healthCheck(context *actor.RootContext, pid *actor.PID) (domain.ActorHealthResponse, error) {
	result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	if err != nil {
		return domain.ActorHealthResponse{}, err
	}
	resp, ok := result.(domain.ActorHealthResponse)
	if !ok {
		return domain.ActorHealthResponse{}, errors.New("unexpected response type")
	}
	return resp, nil
}

func TestMasterAppliesConfigUpdate(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.Schedule.Enabled = false

	gateway := deyecloud.NewTestGateway()
	source := openmeteo.NewTestSource(nil)

	var master *MasterActor
	masterProps := actor.PropsFromProducer(func() actor.Actor {
		master = NewMasterActor(cfg,
			func() *adactor.DeyeActor { return adactor.NewDeyeActor(gateway, logger) },
			func() *adactor.ForecastActor { return adactor.NewForecastActor(source, cfg.Weather, logger) },
			func() *adactor.MQTTActor { return adactor.NewTestMQTTActor(&cfg, logger) },
			logger)
		return master
	})
	masterPID := context.Spawn(masterProps)

	time.Sleep(1 * time.Second)

	updated := cfg
	updated.Schedule.Enabled = true
	context.Send(masterPID, domain.ConfigUpdatedCommand{Config: updated})

	// the status request is queued behind the update, so once it answers
	// both the master snapshot and the scheduler carry the new flag
	result, err := context.RequestFuture(masterPID, domain.GetSchedulerStatusRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	statusResp, ok := result.(domain.GetSchedulerStatusResponse)
	assert.True(ok)
	assert.True(statusResp.Status.Enabled, "scheduler picked up the new flag")
	assert.True(master.config.Schedule.Enabled, "master snapshot used for respawns is current")

	context.Stop(masterPID)

	time.Sleep(500 * time.Millisecond)

	as.Shutdown()
}

func TestMasterActor(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.Schedule.Enabled = false

	gateway := deyecloud.NewTestGateway()
	source := openmeteo.NewTestSource(nil)

	masterProps := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterActor(cfg,
			func() *adactor.DeyeActor { return adactor.NewDeyeActor(gateway, logger) },
			func() *adactor.ForecastActor { return adactor.NewForecastActor(source, cfg.Weather, logger) },
			func() *adactor.MQTTActor { return adactor.NewTestMQTTActor(&cfg, logger) },
			logger)
	})
	masterPID := context.Spawn(masterProps)

	time.Sleep(1 * time.Second)

	hcr, err := healthCheck(context, masterPID)
	if err != nil {
		t.Error(err)
		return
	}
	assert.True(hcr.Healthy, "master should be healthy")

	// requests are forwarded to the right child
	result, err := context.RequestFuture(masterPID, domain.GetSchedulerStatusRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	statusResp, ok := result.(domain.GetSchedulerStatusResponse)
	assert.True(ok)
	assert.False(statusResp.Status.Enabled, "scheduler starts paused")

	result, err = context.RequestFuture(masterPID, domain.GetDeviceStateRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	stateResp, ok := result.(domain.GetDeviceStateResponse)
	assert.True(ok)
	assert.NotNil(stateResp.State)

	// a forced tick through the master runs a full reconciliation
	result, err = context.RequestFuture(masterPID, domain.SchedulerTickRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	tickResp, ok := result.(domain.SchedulerTickResponse)
	assert.True(ok)
	assert.False(tickResp.HasResponseError())
	assert.Equal(1, gateway.SetTOUPlanCalls, "plan applied on first tick")

	context.Stop(masterPID)

	time.Sleep(500 * time.Millisecond)

	as.Shutdown()
}
