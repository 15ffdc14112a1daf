// Package platform assembles the booking engine's services for the binaries.
package platform

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tourlink-backend/internal/bookings"
	"github.com/angelmondragon/tourlink-backend/internal/commission"
	"github.com/angelmondragon/tourlink-backend/internal/hierarchy"
	"github.com/angelmondragon/tourlink-backend/internal/inventory"
	"github.com/angelmondragon/tourlink-backend/internal/referral"
	"github.com/angelmondragon/tourlink-backend/internal/tours"
	"github.com/angelmondragon/tourlink-backend/pkg/config"
	"github.com/angelmondragon/tourlink-backend/pkg/db"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
	"github.com/angelmondragon/tourlink-backend/pkg/metrics"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox"
)

// Services is the wired service graph. Every service shares one outbox
// emitter and one metrics set.
type Services struct {
	Metrics     *metrics.EngineMetrics
	Outbox      *outbox.Service
	Referrals   referral.Directory
	Hierarchy   hierarchy.Service
	Catalog     tours.Service
	Ledger      inventory.Ledger
	Commissions commission.Engine
	Bookings    bookings.Service
}

// NewServices wires repositories and services over a single database client.
// reg may be nil, in which case metrics are not exported.
func NewServices(cfg *config.Config, client *db.Client, reg prometheus.Registerer, logg *logger.Logger) (*Services, error) {
	if cfg == nil || client == nil || logg == nil {
		return nil, fmt.Errorf("config, database client and logger are required")
	}
	conn := client.DB()

	m := metrics.NewEngineMetrics(reg)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	referrals, err := referral.NewDirectory(referral.NewRepository(conn), cfg.Referral, logg)
	if err != nil {
		return nil, fmt.Errorf("referral directory: %w", err)
	}

	resellers := hierarchy.NewRepository(conn)
	tree, err := hierarchy.NewService(client, resellers, referrals, emitter, cfg.Hierarchy, logg)
	if err != nil {
		return nil, fmt.Errorf("hierarchy service: %w", err)
	}

	catalogRepo := tours.NewRepository(conn)
	catalog, err := tours.NewService(catalogRepo, enums.Currency(strings.ToUpper(cfg.Commission.DefaultCurrency)))
	if err != nil {
		return nil, fmt.Errorf("catalog service: %w", err)
	}

	ledger, err := inventory.NewLedger(client, inventory.NewRepository(conn), catalogRepo, emitter, m, logg)
	if err != nil {
		return nil, fmt.Errorf("inventory ledger: %w", err)
	}

	engine, err := commission.NewEngine(commission.NewRepository(conn), tree, m, logg)
	if err != nil {
		return nil, fmt.Errorf("commission engine: %w", err)
	}

	bookingSvc, err := bookings.NewService(bookings.Dependencies{
		Tx:          client,
		Repo:        bookings.NewRepository(conn),
		Resellers:   resellers,
		Catalog:     catalogRepo,
		Ledger:      ledger,
		Commissions: engine,
		Outbox:      emitter,
		Metrics:     m,
		Logger:      logg,
	}, cfg.Booking)
	if err != nil {
		return nil, fmt.Errorf("booking service: %w", err)
	}

	return &Services{
		Metrics:     m,
		Outbox:      emitter,
		Referrals:   referrals,
		Hierarchy:   tree,
		Catalog:     catalog,
		Ledger:      ledger,
		Commissions: engine,
		Bookings:    bookingSvc,
	}, nil
}
