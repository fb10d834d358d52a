//go:build wireinject
// +build wireinject

package main

//go:generate go run -mod=mod github.com/google/wire/cmd/wire

import (
	"github.com/booking/scheduler/internal/api"
	"github.com/booking/scheduler/internal/biz/booking"
	"github.com/booking/scheduler/internal/biz/notification"
	"github.com/booking/scheduler/internal/biz/poweroff"
	"github.com/booking/scheduler/internal/infra/persistence/bookingrepo"
	"github.com/booking/scheduler/internal/infra/persistence/notificationrepo"
	"github.com/booking/scheduler/internal/infra/persistence/poweroffrepo"
	"github.com/booking/scheduler/internal/infra/persistence/roomrepo"
	"github.com/booking/scheduler/internal/infra/persistence/taskrepo"
	"github.com/booking/scheduler/internal/infra/persistence/userrepo"
	"github.com/booking/scheduler/internal/notify"
	"github.com/booking/scheduler/internal/orm"
	"github.com/booking/scheduler/internal/relay"
	"github.com/booking/scheduler/internal/scheduler"
	"github.com/booking/scheduler/pkg/config"
	"github.com/google/wire"
	"go.uber.org/zap"
)

func InitilizeApp(logger *zap.Logger, cfg *config.Config, storage *orm.Storage) (*App, error) {
	wire.Build(
		NewApp,

		ProvideRedisClient,
		ProvideDB,

		wire.Bind(new(poweroff.RelayController), new(*relay.Client)),
		wire.Bind(new(scheduler.GatewayProbe), new(*relay.GatewayClient)),

		// other
		scheduler.Provider,
		relay.Provider,
		notify.Provider,

		// http api providers
		api.Provider,

		// biz providers
		booking.Provider,
		notification.Provider,
		poweroff.Provider,

		// infra providers
		taskrepo.Provider,
		bookingrepo.Provider,
		roomrepo.Provider,
		userrepo.Provider,
		notificationrepo.Provider,
		poweroffrepo.Provider,
	)
	return nil, nil
}
