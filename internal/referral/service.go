package referral

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/pkg/config"
	"github.com/angelmondragon/tourlink-backend/pkg/db"
	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourlink-backend/pkg/errors"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
)

// Directory issues, reserves and resolves referral codes. Every operation
// runs on tx when one is given so it can share the caller's transaction.
type Directory interface {
	GenerateCode(ctx context.Context, tx *gorm.DB) (string, error)
	ReserveCustomCode(ctx context.Context, tx *gorm.DB, code string) error
	ValidateCode(ctx context.Context, tx *gorm.DB, code string) (*models.ResellerNode, error)
	Bind(ctx context.Context, tx *gorm.DB, code string, resellerID uuid.UUID) error
}

type service struct {
	repo        Repository
	logg        *logger.Logger
	generate    Generator
	codeLength  int
	retryBudget int
}

// Option customises the directory.
type Option func(*service)

// WithGenerator replaces the random code source.
func WithGenerator(gen Generator) Option {
	return func(s *service) {
		if gen != nil {
			s.generate = gen
		}
	}
}

// NewDirectory wires the referral directory.
func NewDirectory(repo Repository, cfg config.ReferralConfig, logg *logger.Logger, opts ...Option) (Directory, error) {
	if repo == nil {
		return nil, fmt.Errorf("referral repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	s := &service{
		repo:        repo,
		logg:        logg,
		generate:    RandomCode,
		codeLength:  cfg.CodeLength,
		retryBudget: cfg.RetryBudget,
	}
	if s.codeLength == 0 {
		s.codeLength = MinCodeLength
	}
	if s.retryBudget <= 0 {
		s.retryBudget = 20
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *service) GenerateCode(ctx context.Context, tx *gorm.DB) (string, error) {
	repo := s.repo.WithTx(tx)
	for attempt := 1; attempt <= s.retryBudget; attempt++ {
		code, err := s.generate(s.codeLength)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate referral code")
		}
		claimed, err := repo.Insert(ctx, &models.ReferralCode{Code: code})
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert referral code")
		}
		if claimed {
			return code, nil
		}
		s.logg.Debug(s.logg.WithField(ctx, "attempt", attempt), "referral code collision")
	}

	err := pkgerrors.New(pkgerrors.CodeExhausted, "no free referral code within retry budget").
		WithDetails(map[string]any{"attempts": s.retryBudget})
	s.logg.Error(ctx, "referral code space exhausted", err)
	return "", err
}

func (s *service) ReserveCustomCode(ctx context.Context, tx *gorm.DB, code string) error {
	code = strings.TrimSpace(code)
	if !ValidFormat(code) {
		return pkgerrors.New(pkgerrors.CodeValidation, "referral code must be 8-20 letters or digits")
	}
	claimed, err := s.repo.WithTx(tx).Insert(ctx, &models.ReferralCode{Code: code, Custom: true})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "referral code already taken")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve referral code")
	}
	if !claimed {
		return pkgerrors.New(pkgerrors.CodeConflict, "referral code already taken")
	}
	return nil
}

func (s *service) ValidateCode(ctx context.Context, tx *gorm.DB, code string) (*models.ResellerNode, error) {
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referral code required")
	}
	node, err := s.repo.WithTx(tx).FindReseller(ctx, code)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "referral code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup referral code")
	}
	return node, nil
}

func (s *service) Bind(ctx context.Context, tx *gorm.DB, code string, resellerID uuid.UUID) error {
	if resellerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reseller id required")
	}
	repo := s.repo.WithTx(tx)
	affected, err := repo.Bind(ctx, code, resellerID)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "reseller already owns a referral code")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind referral code")
	}
	if affected == 1 {
		return nil
	}

	row, err := repo.Find(ctx, code)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "referral code not reserved")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load referral code")
	}
	if row.ResellerID != nil && *row.ResellerID == resellerID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "referral code bound to another reseller")
}
