package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/peaksell/peaksell/internal/config"
	"github.com/peaksell/peaksell/internal/core/domain"
	"github.com/peaksell/peaksell/internal/core/service"
	"github.com/peaksell/peaksell/internal/util/actorutil"
	"github.com/peaksell/peaksell/pkg/openmeteo"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	forecastCallTimeout = 20 * time.Second
	forecastDays        = 8
)

// ForecastActor caches the analysed weather forecast. Consumers always
// get an answer: fresh cache, stale cache, or a degraded summary when
// nothing was ever fetched.
type ForecastActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	source   openmeteo.Source
	cfg      config.WeatherConfig
	cached   *domain.ForecastSummary
	logger   *zap.Logger
}

type forecastFetched struct {
	summary domain.ForecastSummary
	err     error
	replyTo *actor.PID
	refresh bool
}

func NewForecastActor(source openmeteo.Source, cfg config.WeatherConfig, logger *zap.Logger) *ForecastActor {
	act := &ForecastActor{
		source:   source,
		cfg:      cfg,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger("forecast", logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *ForecastActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ForecastActor) cacheTTL() time.Duration {
	minutes := state.cfg.RefreshIntervalMinutes
	if minutes == 0 {
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute
}

func (state *ForecastActor) cacheFresh(maxAge time.Duration) bool {
	if state.cached == nil {
		return false
	}
	ttl := state.cacheTTL()
	if maxAge > 0 && maxAge < ttl {
		ttl = maxAge
	}
	return time.Since(state.cached.FetchedAt) < ttl
}

func (state *ForecastActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("forecast@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_FORECAST,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetForecastRequest:
		state.logger.Debug("forecast@default: GetForecastRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		if !state.cfg.Enabled {
			ctx.Send(sender, domain.GetForecastResponse{Summary: nil})
			return
		}
		if state.cacheFresh(msg.MaxAge) {
			ctx.Send(sender, domain.GetForecastResponse{Summary: state.cached})
			return
		}
		state.startFetch(ctx, sender, false)
	case domain.RefreshForecastRequest:
		state.logger.Debug("forecast@default: RefreshForecastRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		if !state.cfg.Enabled {
			if sender != nil {
				ctx.Send(sender, domain.RefreshForecastResponse{})
			}
			return
		}
		state.startFetch(ctx, sender, true)
	case domain.SearchCitiesRequest:
		state.logger.Debug("forecast@default: SearchCitiesRequest", zap.String("query", msg.Query))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		query := msg.Query
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.SearchCitiesResponse, error) {
			return state.searchCities(query)
		}),
			mapTaskResult[domain.SearchCitiesResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SearchCitiesResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(forecastCallTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingFetch)
	case backgroundTaskResult:
		// late result after a state change, deliver anyway
		ctx.Send(msg.replyTo, msg.message)
	case domain.ConfigUpdatedCommand:
		state.logger.Debug("forecast@default: ConfigUpdatedCommand")
		if msg.Config.Weather != state.cfg {
			state.cfg = msg.Config.Weather
			// coordinates or thresholds may have changed
			state.cached = nil
		}
	default:
		state.logger.Debug("forecast@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ForecastActor) startFetch(ctx actor.Context, replyTo *actor.PID, refresh bool) {
	cfg := state.cfg
	actorutil.NewBackgroundTask(ctx, func() (*forecastFetched, error) {
		callCtx, cancel := context.WithTimeout(context.Background(), forecastCallTimeout)
		defer cancel()

		days, err := state.source.DailyForecast(callCtx, cfg.Latitude, cfg.Longitude, cfg.Timezone, forecastDays)
		if err != nil {
			return &forecastFetched{err: err, replyTo: replyTo, refresh: refresh}, nil
		}
		return &forecastFetched{
			summary: service.AnalyseForecast(days, cfg, time.Now()),
			replyTo: replyTo,
			refresh: refresh,
		}, nil
	}).Recover(func(err error) forecastFetched {
		return forecastFetched{err: err, replyTo: replyTo, refresh: refresh}
	}).WithTimeout(forecastCallTimeout + time.Second).PipeTo(ctx.Self())
	state.behavior.BecomeStacked(state.WaitingFetch)
}

func (state *ForecastActor) WaitingFetch(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case forecastFetched:
		if msg.err != nil {
			state.logger.Warn("forecast fetch failed", zap.Error(msg.err))
			// keep serving the stale cache, or degrade
			if state.cached == nil {
				degraded := service.DegradedForecast(time.Now())
				state.cached = &degraded
			}
		} else {
			summary := msg.summary
			state.cached = &summary
			state.logger.Info("forecast refreshed",
				zap.Float64("tomorrowYieldKWh", summary.TomorrowYieldKWh),
				zap.Bool("tomorrowBad", summary.TomorrowBad))
		}
		if msg.replyTo != nil {
			if msg.refresh {
				ctx.Send(msg.replyTo, domain.RefreshForecastResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: msg.err},
				})
			} else {
				ctx.Send(msg.replyTo, domain.GetForecastResponse{Summary: state.cached})
			}
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case backgroundTaskResult:
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("forecast@waitingFetch stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *ForecastActor) searchCities(query string) (*domain.SearchCitiesResponse, error) {
	callCtx, cancel := context.WithTimeout(context.Background(), forecastCallTimeout)
	defer cancel()

	cities, err := a.source.SearchCities(callCtx, query, 10)
	if err != nil {
		a.logger.Error("city search failed", zap.Error(err))
		return nil, err
	}
	return &domain.SearchCitiesResponse{Cities: cities}, nil
}
