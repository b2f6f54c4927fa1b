package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/account-server-go/internal/codegen"
	"github.com/openclaw/account-server-go/internal/config"
	apperrors "github.com/openclaw/account-server-go/internal/errors"
	"github.com/openclaw/account-server-go/internal/model"
	"github.com/openclaw/account-server-go/internal/repository"
	"github.com/openclaw/account-server-go/internal/timepolicy"
	"github.com/openclaw/account-server-go/internal/util"
)

type ActivationService struct {
	db        Transactor
	codeRepo  repository.ActivationCodeRepository
	generator codegen.Generator
	grace     time.Duration
	now       func() time.Time
}

func NewActivationService(
	db Transactor,
	codeRepo repository.ActivationCodeRepository,
	generator codegen.Generator,
	grace time.Duration,
	opts ...Option,
) *ActivationService {
	o := buildOptions(opts)
	return &ActivationService{
		db:        db,
		codeRepo:  codeRepo,
		generator: generator,
		grace:     grace,
		now:       o.now,
	}
}

// IssueBatch creates count unused codes of kind in one transaction.
func (s *ActivationService) IssueBatch(ctx context.Context, kind model.CodeKind, count int) ([]model.ActivationCode, error) {
	if err := validateBatch(kind, count); err != nil {
		return nil, err
	}
	if count > config.MaxBatchSize {
		return nil, apperrors.ValidationError(fmt.Sprintf("count must not exceed %d", config.MaxBatchSize))
	}

	now := s.now()
	issued := make([]model.ActivationCode, 0, count)

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		codes := s.codeRepo.WithTx(tx)
		for len(issued) < count {
			code, err := s.createUnique(ctx, codes, kind, now)
			if err != nil {
				return err
			}
			issued = append(issued, *code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("kind", kind.String()).
		Int("count", len(issued)).
		Msg("activation codes issued")

	return issued, nil
}

func (s *ActivationService) createUnique(
	ctx context.Context,
	codes repository.ActivationCodeRepository,
	kind model.CodeKind,
	now time.Time,
) (*model.ActivationCode, error) {
	for attempt := 1; attempt <= config.CodeGenerationMaxAttempts; attempt++ {
		candidate, err := s.generator.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate activation code: %w", err)
		}

		code, err := codes.Create(ctx, model.CreateActivationCodeParams{
			Code: candidate,
			Kind: kind,
			Now:  now,
		})
		if err != nil {
			return nil, fmt.Errorf("create activation code: %w", err)
		}
		if code != nil {
			return code, nil
		}

		log.Warn().Int("attempt", attempt).Msg("activation code collision, regenerating")
	}

	return nil, apperrors.Internal("Failed to generate a unique activation code")
}

// Distribute hands out exactly count unused codes of kind, oldest first, or
// fails without changing any code.
func (s *ActivationService) Distribute(ctx context.Context, kind model.CodeKind, count int) ([]model.ActivationCode, error) {
	if err := validateBatch(kind, count); err != nil {
		return nil, err
	}

	var claimed []model.ActivationCode
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		codes, err := s.codeRepo.WithTx(tx).ClaimUnused(ctx, model.DistributeCodesParams{
			Kind:  kind,
			Count: count,
			Now:   s.now(),
		})
		if err != nil {
			return fmt.Errorf("claim activation codes: %w", err)
		}
		if len(codes) < count {
			return apperrors.InsufficientResource("activation codes", count, len(codes))
		}
		claimed = codes
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("kind", kind.String()).
		Int("count", len(claimed)).
		Int64("firstId", claimed[0].ID).
		Int64("lastId", claimed[len(claimed)-1].ID).
		Msg("activation codes distributed")

	return claimed, nil
}

// Activate redeems a distributed code and fixes its expiry.
func (s *ActivationService) Activate(ctx context.Context, code string) (*model.ActivationCode, error) {
	activated, err := s.activate(ctx, s.codeRepo, code)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("code", util.MaskCode(code)).
		Str("kind", activated.Kind.String()).
		Time("expireAt", *activated.ExpireAt).
		Msg("activation code activated")

	return activated, nil
}

// activate runs against codes so a caller can bind it to its transaction.
func (s *ActivationService) activate(ctx context.Context, codes repository.ActivationCodeRepository, code string) (*model.ActivationCode, error) {
	current, err := s.find(ctx, codes, code)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(current.Status, model.CodeStatusActivated) {
		return nil, apperrors.InvalidStateTransition(string(current.Status), string(model.CodeStatusActivated))
	}

	now := s.now()
	activated, err := codes.Activate(ctx, model.ActivateCodeParams{
		Code:        code,
		From:        current.Status,
		ActivatedAt: now,
		ExpireAt:    timepolicy.Expiry(current.Kind, now, s.grace),
	})
	if err != nil {
		return nil, fmt.Errorf("activate code: %w", err)
	}
	if activated == nil {
		// Another caller moved the code first.
		latest, err := s.find(ctx, codes, code)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.InvalidStateTransition(string(latest.Status), string(model.CodeStatusActivated))
	}

	return activated, nil
}

// Invalidate revokes an unused or distributed code. Invalidating an invalid
// code returns it unchanged; changed reports whether this call moved it.
func (s *ActivationService) Invalidate(ctx context.Context, code string) (*model.ActivationCode, bool, error) {
	current, err := s.find(ctx, s.codeRepo, code)
	if err != nil {
		return nil, false, err
	}
	if current.Status == model.CodeStatusInvalid {
		return current, false, nil
	}
	if !model.CanTransition(current.Status, model.CodeStatusInvalid) {
		return nil, false, apperrors.InvalidStateTransition(string(current.Status), string(model.CodeStatusInvalid))
	}

	invalidated, err := s.codeRepo.Invalidate(ctx, model.InvalidateCodeParams{
		Code: code,
		From: current.Status,
		Now:  s.now(),
	})
	if err != nil {
		return nil, false, fmt.Errorf("invalidate code: %w", err)
	}
	if invalidated == nil {
		// Lost a race; another caller may have invalidated it first.
		latest, err := s.find(ctx, s.codeRepo, code)
		if err != nil {
			return nil, false, err
		}
		if latest.Status == model.CodeStatusInvalid {
			return latest, false, nil
		}
		return nil, false, apperrors.InvalidStateTransition(string(latest.Status), string(model.CodeStatusInvalid))
	}

	log.Info().
		Str("code", util.MaskCode(code)).
		Str("from", string(current.Status)).
		Msg("activation code invalidated")

	return invalidated, true, nil
}

// IsExpired is false for codes that never reached activated.
func (s *ActivationService) IsExpired(code *model.ActivationCode) bool {
	return code.IsExpired(s.now())
}

func (s *ActivationService) Get(ctx context.Context, code string) (*model.ActivationCode, error) {
	return s.find(ctx, s.codeRepo, code)
}

// Stats counts codes of kind per status.
func (s *ActivationService) Stats(ctx context.Context, kind model.CodeKind) (map[model.CodeStatus]int, error) {
	if !kind.Valid() {
		return nil, apperrors.ValidationError("unknown code kind")
	}
	return s.codeRepo.CountByStatus(ctx, kind)
}

func (s *ActivationService) find(ctx context.Context, codes repository.ActivationCodeRepository, code string) (*model.ActivationCode, error) {
	if code == "" {
		return nil, apperrors.MissingRequired("code")
	}
	found, err := codes.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("find activation code: %w", err)
	}
	if found == nil {
		return nil, apperrors.NotFound("Activation code")
	}
	return found, nil
}

func validateBatch(kind model.CodeKind, count int) error {
	if !kind.Valid() {
		return apperrors.ValidationError("unknown code kind")
	}
	if count <= 0 {
		return apperrors.ValidationError("count must be positive")
	}
	return nil
}
