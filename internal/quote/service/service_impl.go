package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotedesk/internal/actorcontext"
	"github.com/smallbiznis/quotedesk/internal/clock"
	"github.com/smallbiznis/quotedesk/internal/notification"
	"github.com/smallbiznis/quotedesk/internal/quote/domain"
	versiondomain "github.com/smallbiznis/quotedesk/internal/quoteversion/domain"
	versionrepository "github.com/smallbiznis/quotedesk/internal/quoteversion/repository"
	"github.com/smallbiznis/quotedesk/internal/sequence"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Allocator   sequence.Allocator
	VersionRepo versionrepository.Repository
	Gate        domain.ValidationGate
	Notifier    *notification.Dispatcher
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	allocator   sequence.Allocator
	versionRepo versionrepository.Repository
	gate        domain.ValidationGate
	notifier    *notification.Dispatcher
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("quote.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		allocator:   p.Allocator,
		versionRepo: p.VersionRepo,
		gate:        p.Gate,
		notifier:    p.Notifier,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateQuoteRequest) (domain.Quote, error) {
	orgID, ok := actorcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Quote{}, domain.ErrInvalidOrganization
	}
	userID, ok := actorcontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.Quote{}, domain.ErrInvalidActor
	}

	if !req.ContractType.Valid() {
		return domain.Quote{}, domain.ErrInvalidContractType
	}
	customer := strings.TrimSpace(req.CustomerName)
	country := strings.ToUpper(strings.TrimSpace(req.CustomerCountry))
	if customer == "" || country == "" {
		return domain.Quote{}, domain.ErrInvalidCustomer
	}

	now := s.clock.Now()
	var created domain.Quote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.allocator.NextQuoteNumber(ctx, tx, orgID)
		if err != nil {
			return err
		}

		quoteID := s.genID.Generate()
		version := &versiondomain.QuoteVersion{
			ID:        s.genID.Generate(),
			QuoteID:   quoteID,
			AuthorID:  userID,
			Revision:  1,
			Name:      fmt.Sprintf("EQ-%d/1", number),
			Currency:  strings.ToUpper(strings.TrimSpace(req.Currency)),
			Payloads:  datatypes.JSONMap{},
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.versionRepo.Insert(ctx, tx, version); err != nil {
			return err
		}

		created = domain.Quote{
			ID:              quoteID,
			OrgID:           orgID,
			OwnerID:         userID,
			QuoteNumber:     number,
			ContractType:    req.ContractType,
			CustomerName:    customer,
			CustomerCountry: country,
			ActiveVersionID: version.ID,
			Alive:           true,
			Active:          true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return domain.Quote{}, err
	}

	s.notify(ctx, "quote.created", created.ID, userID)
	return created, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Quote, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	return *quote, nil
}

func (s *Service) GetState(ctx context.Context, id snowflake.ID) (domain.QuoteState, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return domain.QuoteState{}, err
	}

	state := domain.QuoteState{
		Status:          "drafted",
		Alive:           quote.Alive,
		Active:          quote.Active,
		ActiveVersionID: quote.ActiveVersionID,
	}
	if quote.Submitted() {
		state.Status = "submitted"
	}

	version, err := s.versionRepo.FindActive(ctx, s.db, quote.ID)
	if err != nil {
		return domain.QuoteState{}, err
	}
	if version != nil {
		state.Stage = version.CompletedStage
	}
	return state, nil
}

// Submit runs the validation gate and marks the quote submitted. Submitting
// an already-submitted quote is a no-op success, so retried requests never
// duplicate anything.
func (s *Service) Submit(ctx context.Context, id snowflake.ID) (domain.Quote, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if quote.Submitted() {
		return *quote, nil
	}
	if !quote.Alive {
		return domain.Quote{}, domain.ErrQuoteDead
	}

	result, err := s.gate.Validate(ctx, quote)
	if err != nil {
		return domain.Quote{}, err
	}
	if !result.IsPassed {
		return domain.Quote{}, &domain.SubmissionError{Messages: result.Messages}
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Model(&domain.Quote{}).
		Where("id = ? AND submitted_at IS NULL", quote.ID).
		Updates(map[string]any{"submitted_at": now, "updated_at": now}).Error
	if err != nil {
		return domain.Quote{}, err
	}
	quote.SubmittedAt = &now

	actor, _ := actorcontext.UserIDFromContext(ctx)
	s.notify(ctx, "quote.submitted", quote.ID, actor)
	return *quote, nil
}

// Unravel returns a submitted quote to drafted so it can be edited again.
func (s *Service) Unravel(ctx context.Context, id snowflake.ID) (domain.Quote, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if !quote.Alive {
		return domain.Quote{}, domain.ErrQuoteDead
	}
	if !quote.Submitted() {
		return *quote, nil
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Model(&domain.Quote{}).
		Where("id = ?", quote.ID).
		Updates(map[string]any{"submitted_at": nil, "updated_at": now}).Error
	if err != nil {
		return domain.Quote{}, err
	}
	quote.SubmittedAt = nil

	actor, _ := actorcontext.UserIDFromContext(ctx)
	s.notify(ctx, "quote.unraveled", quote.ID, actor)
	return *quote, nil
}

func (s *Service) SetAliveness(ctx context.Context, id snowflake.ID, alive bool) (domain.Quote, error) {
	return s.setFlag(ctx, id, "alive", alive)
}

func (s *Service) SetActiveness(ctx context.Context, id snowflake.ID, active bool) (domain.Quote, error) {
	return s.setFlag(ctx, id, "active", active)
}

// Replicate creates a brand-new drafted quote whose first version is a copy
// of the source quote's active version.
func (s *Service) Replicate(ctx context.Context, id snowflake.ID) (domain.Quote, error) {
	orgID, _ := actorcontext.OrgIDFromContext(ctx)
	userID, ok := actorcontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.Quote{}, domain.ErrInvalidActor
	}

	source, err := s.load(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	sourceVersion, err := s.versionRepo.FindActive(ctx, s.db, source.ID)
	if err != nil {
		return domain.Quote{}, err
	}
	if sourceVersion == nil {
		return domain.Quote{}, versiondomain.ErrVersionNotFound
	}

	now := s.clock.Now()
	var created domain.Quote
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.allocator.NextQuoteNumber(ctx, tx, orgID)
		if err != nil {
			return err
		}

		quoteID := s.genID.Generate()
		clone := sourceVersion.CloneEditable(s.genID.Generate(), userID, 1, fmt.Sprintf("EQ-%d/1", number), now)
		clone.QuoteID = quoteID
		clone.IsActive = true
		if err := s.versionRepo.Insert(ctx, tx, clone); err != nil {
			return err
		}
		if err := s.versionRepo.CopyTree(ctx, tx, sourceVersion.ID, clone.ID, s.genID); err != nil {
			return err
		}

		created = domain.Quote{
			ID:              quoteID,
			OrgID:           source.OrgID,
			OwnerID:         userID,
			QuoteNumber:     number,
			ContractType:    source.ContractType,
			CustomerName:    source.CustomerName,
			CustomerCountry: source.CustomerCountry,
			ActiveVersionID: clone.ID,
			Alive:           true,
			Active:          true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return domain.Quote{}, err
	}

	s.notify(ctx, "quote.replicated", created.ID, userID)
	return created, nil
}

// Delete removes the quote and everything its versions own. Other quotes
// replicated from it keep their independent copies.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	quote, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	versions, err := s.versionRepo.List(ctx, s.db, quote.ID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, version := range versions {
			if err := s.versionRepo.DeleteTree(ctx, tx, version.ID); err != nil {
				return err
			}
			if err := s.versionRepo.SoftDelete(ctx, tx, version.ID); err != nil {
				return err
			}
		}
		return tx.Where("id = ?", quote.ID).Delete(&domain.Quote{}).Error
	})
}

func (s *Service) setFlag(ctx context.Context, id snowflake.ID, column string, value bool) (domain.Quote, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Model(&domain.Quote{}).
		Where("id = ?", quote.ID).
		Updates(map[string]any{column: value, "updated_at": now}).Error
	if err != nil {
		return domain.Quote{}, err
	}

	switch column {
	case "alive":
		quote.Alive = value
	case "active":
		quote.Active = value
	}

	actor, _ := actorcontext.UserIDFromContext(ctx)
	s.notify(ctx, "quote.status_changed", quote.ID, actor)
	return *quote, nil
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (*domain.Quote, error) {
	orgID, ok := actorcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	var quote domain.Quote
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&quote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrQuoteNotFound
		}
		return nil, err
	}
	return &quote, nil
}

func (s *Service) notify(ctx context.Context, eventType string, quoteID, actorID snowflake.ID) {
	s.notifier.Dispatch(ctx, notification.Event{
		Type:       eventType,
		QuoteID:    quoteID,
		ActorID:    actorID,
		OccurredAt: s.clock.Now(),
	})
}
