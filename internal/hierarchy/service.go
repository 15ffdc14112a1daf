package hierarchy

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/internal/referral"
	"github.com/angelmondragon/tourlink-backend/pkg/config"
	"github.com/angelmondragon/tourlink-backend/pkg/db"
	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourlink-backend/pkg/errors"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox/payloads"
)

const defaultMaxWalkHops = 100

var hundred = decimal.NewFromInt(100)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service maintains the sponsor tree.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.ResellerNode, error)
	Attach(ctx context.Context, tx *gorm.DB, nodeID uuid.UUID, sponsorID *uuid.UUID) (*models.ResellerNode, error)
	UplineChain(ctx context.Context, tx *gorm.DB, nodeID uuid.UUID, maxDepth int) ([]models.ResellerNode, error)
	RecomputeDownlineCount(ctx context.Context, tx *gorm.DB, nodeID uuid.UUID) (int, error)
	SetStatus(ctx context.Context, nodeID uuid.UUID, status enums.ResellerStatus) (*models.ResellerNode, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ResellerNode, error)
	DirectDownline(ctx context.Context, id uuid.UUID) ([]models.ResellerNode, error)
}

// RegisterInput is what the registration flow hands over once the reseller
// profile exists. Empty optional fields fall back to generated values and
// configured default rates.
type RegisterInput struct {
	ResellerID           uuid.UUID
	SponsorReferralCode  string
	ReferralCode         string
	OwnCommissionRate    *decimal.Decimal
	UplineCommissionRate *decimal.Decimal
}

type service struct {
	tx         txRunner
	repo       Repository
	referrals  referral.Directory
	outbox     outbox.Emitter
	logg       *logger.Logger
	maxHops    int
	ownRate    decimal.Decimal
	uplineRate decimal.Decimal
}

// NewService wires the hierarchy service.
func NewService(
	tx txRunner,
	repo Repository,
	referrals referral.Directory,
	emitter outbox.Emitter,
	cfg config.HierarchyConfig,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("hierarchy repository required")
	}
	if referrals == nil {
		return nil, fmt.Errorf("referral directory required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	ownRate, err := parseRate(cfg.DefaultOwnCommissionRate, "10.00")
	if err != nil {
		return nil, fmt.Errorf("default own commission rate: %w", err)
	}
	uplineRate, err := parseRate(cfg.DefaultUplineCommissionRate, "3.00")
	if err != nil {
		return nil, fmt.Errorf("default upline commission rate: %w", err)
	}
	maxHops := cfg.MaxWalkHops
	if maxHops <= 0 {
		maxHops = defaultMaxWalkHops
	}
	return &service{
		tx:         tx,
		repo:       repo,
		referrals:  referrals,
		outbox:     emitter,
		logg:       logg,
		maxHops:    maxHops,
		ownRate:    ownRate,
		uplineRate: uplineRate,
	}, nil
}

func parseRate(value, fallback string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		value = fallback
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, err
	}
	if !validRate(rate) {
		return decimal.Zero, fmt.Errorf("rate %s outside 0..100", rate)
	}
	return rate, nil
}

func validRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThanOrEqual(hundred)
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.ResellerNode, error) {
	ownRate := s.ownRate
	if input.OwnCommissionRate != nil {
		ownRate = *input.OwnCommissionRate
	}
	uplineRate := s.uplineRate
	if input.UplineCommissionRate != nil {
		uplineRate = *input.UplineCommissionRate
	}
	if !validRate(ownRate) || !validRate(uplineRate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission rates must be between 0 and 100")
	}

	var result *models.ResellerNode
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		code := strings.TrimSpace(input.ReferralCode)
		if code != "" {
			if err := s.referrals.ReserveCustomCode(ctx, tx, code); err != nil {
				return err
			}
		} else {
			generated, err := s.referrals.GenerateCode(ctx, tx)
			if err != nil {
				return err
			}
			code = generated
		}

		var sponsor *models.ResellerNode
		if sponsorCode := strings.TrimSpace(input.SponsorReferralCode); sponsorCode != "" {
			found, err := s.referrals.ValidateCode(ctx, tx, sponsorCode)
			if err != nil {
				return err
			}
			sponsor = found
		}

		node := &models.ResellerNode{
			ID:                   input.ResellerID,
			ReferralCode:         code,
			OwnCommissionRate:    ownRate.Round(2),
			UplineCommissionRate: uplineRate.Round(2),
			Status:               enums.ResellerStatusPending,
		}
		if err := repo.Create(ctx, node); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "reseller already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reseller node")
		}

		if sponsor != nil {
			if _, err := s.Attach(ctx, tx, node.ID, &sponsor.ID); err != nil {
				return err
			}
		}

		if err := s.referrals.Bind(ctx, tx, code, node.ID); err != nil {
			return err
		}

		created, err := repo.FindByID(ctx, node.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload reseller node")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventResellerRegistered,
			AggregateType: enums.AggregateReseller,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{ResellerID: &created.ID, Source: "hierarchy"},
			Data: payloads.ResellerRegisteredEvent{
				ResellerID:   created.ID,
				SponsorID:    created.SponsorID,
				GroupRootID:  created.GroupRootID,
				ReferralCode: created.ReferralCode,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit reseller registered")
		}

		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithResellerID(ctx, result.ID.String()), "reseller registered")
	return result, nil
}

// Attach links nodeID under sponsorID. A nil sponsor leaves the node as its
// own group root. When a former root with descendants is attached, the whole
// subtree follows it into the sponsor's group.
func (s *service) Attach(ctx context.Context, tx *gorm.DB, nodeID uuid.UUID, sponsorID *uuid.UUID) (*models.ResellerNode, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "attach requires a transaction")
	}
	repo := s.repo.WithTx(tx)

	node, err := repo.FindByIDForUpdate(ctx, nodeID)
	if err != nil {
		return nil, nodeError(err, "load reseller node")
	}
	if sponsorID == nil {
		return node, nil
	}
	if node.SponsorID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "sponsor link already set")
	}
	if *sponsorID == nodeID {
		return nil, s.cycleError(ctx, nodeID, "reseller cannot sponsor itself")
	}

	sponsor, err := repo.FindByIDForUpdate(ctx, *sponsorID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sponsor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sponsor")
	}

	descendant, err := s.reaches(ctx, repo, sponsor, nodeID)
	if err != nil {
		return nil, err
	}
	if descendant {
		return nil, s.cycleError(ctx, nodeID, "sponsor is a descendant of the reseller")
	}

	affected, err := repo.SetSponsor(ctx, nodeID, sponsor.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set sponsor")
	}
	if affected != 1 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "sponsor link already set")
	}

	groupRoot := sponsor.GroupRootID
	if groupRoot == uuid.Nil {
		groupRoot = sponsor.ID
	}
	if _, err := repo.RepointGroupRoot(ctx, nodeID, groupRoot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "repoint group root")
	}

	if _, err := s.RecomputeDownlineCount(ctx, tx, sponsor.ID); err != nil {
		return nil, err
	}

	attached, err := repo.FindByID(ctx, nodeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload reseller node")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"reseller_id":   nodeID.String(),
		"sponsor_id":    sponsor.ID.String(),
		"group_root_id": attached.GroupRootID.String(),
	})
	s.logg.Info(logCtx, "reseller attached to sponsor")
	return attached, nil
}

// reaches walks sponsor pointers upward from start and reports whether
// target is on the path.
func (s *service) reaches(ctx context.Context, repo Repository, start *models.ResellerNode, target uuid.UUID) (bool, error) {
	current := start
	seen := map[uuid.UUID]struct{}{}
	for hops := 0; ; hops++ {
		if current.ID == target {
			return true, nil
		}
		if _, dup := seen[current.ID]; dup {
			return false, s.cycleError(ctx, current.ID, "sponsor chain loops")
		}
		seen[current.ID] = struct{}{}
		if current.SponsorID == nil {
			return false, nil
		}
		if hops >= s.maxHops {
			return false, s.depthError(ctx, start.ID)
		}
		next, err := repo.FindByID(ctx, *current.SponsorID)
		if err != nil {
			if db.IsNotFound(err) {
				return false, nil
			}
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "walk sponsor chain")
		}
		current = next
	}
}

// UplineChain returns up to maxDepth sponsors of nodeID, nearest first.
func (s *service) UplineChain(ctx context.Context, tx *gorm.DB, nodeID uuid.UUID, maxDepth int) ([]models.ResellerNode, error) {
	if maxDepth < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max depth must not be negative")
	}
	repo := s.repo.WithTx(tx)
	node, err := repo.FindByID(ctx, nodeID)
	if err != nil {
		return nil, nodeError(err, "load reseller node")
	}

	chain := make([]models.ResellerNode, 0, min(maxDepth, 8))
	seen := map[uuid.UUID]struct{}{node.ID: {}}
	current := node
	for hops := 0; len(chain) < maxDepth && current.SponsorID != nil; hops++ {
		if hops >= s.maxHops {
			return nil, s.depthError(ctx, nodeID)
		}
		sponsorID := *current.SponsorID
		if _, dup := seen[sponsorID]; dup {
			return nil, s.cycleError(ctx, nodeID, "sponsor chain loops")
		}
		sponsor, err := repo.FindByID(ctx, sponsorID)
		if err != nil {
			if db.IsNotFound(err) {
				s.logg.Warn(s.logg.WithField(ctx, "sponsor_id", sponsorID.String()), "sponsor missing, upline chain truncated")
				break
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "walk upline chain")
		}
		seen[sponsorID] = struct{}{}
		chain = append(chain, *sponsor)
		current = sponsor
	}
	return chain, nil
}

func (s *service) RecomputeDownlineCount(ctx context.Context, tx *gorm.DB, nodeID uuid.UUID) (int, error) {
	repo := s.repo.WithTx(tx)
	count, err := repo.CountDirectDownline(ctx, nodeID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count direct downline")
	}
	if err := repo.UpdateDownlineCount(ctx, nodeID, int(count)); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store direct downline count")
	}
	return int(count), nil
}

func (s *service) SetStatus(ctx context.Context, nodeID uuid.UUID, status enums.ResellerStatus) (*models.ResellerNode, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown reseller status")
	}

	var result *models.ResellerNode
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		node, err := repo.FindByIDForUpdate(ctx, nodeID)
		if err != nil {
			return nodeError(err, "load reseller node")
		}
		if !node.Status.CanTransitionTo(status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move reseller from %s to %s", node.Status, status))
		}
		affected, err := repo.UpdateStatus(ctx, nodeID, node.Status, status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reseller status")
		}
		if affected != 1 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reseller status changed concurrently")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventResellerStatusChanged,
			AggregateType: enums.AggregateReseller,
			AggregateID:   nodeID,
			Actor:         &outbox.ActorRef{Source: "hierarchy"},
			Data: payloads.ResellerStatusChangedEvent{
				ResellerID: nodeID,
				From:       node.Status,
				To:         status,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit reseller status changed")
		}

		node.Status = status
		result = node
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.ResellerNode, error) {
	node, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nodeError(err, "load reseller node")
	}
	return node, nil
}

func (s *service) DirectDownline(ctx context.Context, id uuid.UUID) ([]models.ResellerNode, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	nodes, err := s.repo.ListDirectDownline(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list direct downline")
	}
	return nodes, nil
}

func (s *service) cycleError(ctx context.Context, nodeID uuid.UUID, msg string) error {
	err := pkgerrors.New(pkgerrors.CodeCycle, msg).WithDetails(map[string]any{"reseller_id": nodeID})
	s.logg.Error(s.logg.WithResellerID(ctx, nodeID.String()), "hierarchy cycle rejected", err)
	return err
}

func (s *service) depthError(ctx context.Context, nodeID uuid.UUID) error {
	err := pkgerrors.New(pkgerrors.CodeDepthExceeded, "sponsor chain exceeds hop limit").
		WithDetails(map[string]any{"reseller_id": nodeID, "max_hops": s.maxHops})
	s.logg.Error(s.logg.WithResellerID(ctx, nodeID.String()), "hierarchy walk exceeded hop limit", err)
	return err
}

func nodeError(err error, msg string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "reseller not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
