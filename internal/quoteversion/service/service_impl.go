package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotedesk/internal/actorcontext"
	"github.com/smallbiznis/quotedesk/internal/clock"
	quotedomain "github.com/smallbiznis/quotedesk/internal/quote/domain"
	"github.com/smallbiznis/quotedesk/internal/quoteversion/domain"
	"github.com/smallbiznis/quotedesk/internal/quoteversion/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  repository.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  repository.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("quoteversion.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// ResolveModelForActingUser returns the version the acting user may edit.
// When the active version belongs to another author, the user gets a fresh
// branch of it instead; the previous author's work stays untouched.
func (s *Service) ResolveModelForActingUser(ctx context.Context, quoteID snowflake.ID) (domain.QuoteVersion, error) {
	userID, ok := actorcontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.QuoteVersion{}, quotedomain.ErrInvalidActor
	}

	quote, err := s.loadQuote(ctx, quoteID)
	if err != nil {
		return domain.QuoteVersion{}, err
	}
	if quote.Submitted() {
		return domain.QuoteVersion{}, quotedomain.ErrQuoteSubmitted
	}

	active, err := s.repo.FindActive(ctx, s.db, quote.ID)
	if err != nil {
		return domain.QuoteVersion{}, err
	}
	if active == nil {
		return domain.QuoteVersion{}, domain.ErrVersionNotFound
	}
	if active.AuthorID == userID {
		return *active, nil
	}

	s.log.Info("branching version for divergent author",
		zap.String("quote_id", quote.ID.String()),
		zap.String("active_author", active.AuthorID.String()),
		zap.String("acting_user", userID.String()),
	)
	return s.branch(ctx, quote, active, userID)
}

// PerformQuoteVersioning branches from the active version unconditionally,
// used by explicit "save as variant" flows.
func (s *Service) PerformQuoteVersioning(ctx context.Context, quoteID snowflake.ID) (domain.QuoteVersion, error) {
	userID, ok := actorcontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.QuoteVersion{}, quotedomain.ErrInvalidActor
	}

	quote, err := s.loadQuote(ctx, quoteID)
	if err != nil {
		return domain.QuoteVersion{}, err
	}
	if quote.Submitted() {
		return domain.QuoteVersion{}, quotedomain.ErrQuoteSubmitted
	}

	active, err := s.repo.FindActive(ctx, s.db, quote.ID)
	if err != nil {
		return domain.QuoteVersion{}, err
	}
	if active == nil {
		return domain.QuoteVersion{}, domain.ErrVersionNotFound
	}
	return s.branch(ctx, quote, active, userID)
}

// PerformQuoteVersioningFromVersion branches from an arbitrary version of the
// quote, active or not.
func (s *Service) PerformQuoteVersioningFromVersion(ctx context.Context, quoteID, versionID snowflake.ID) (domain.QuoteVersion, error) {
	userID, ok := actorcontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.QuoteVersion{}, quotedomain.ErrInvalidActor
	}

	quote, err := s.loadQuote(ctx, quoteID)
	if err != nil {
		return domain.QuoteVersion{}, err
	}
	if quote.Submitted() {
		return domain.QuoteVersion{}, quotedomain.ErrQuoteSubmitted
	}

	source, err := s.repo.FindByID(ctx, s.db, quote.ID, versionID)
	if err != nil {
		return domain.QuoteVersion{}, err
	}
	if source == nil {
		return domain.QuoteVersion{}, domain.ErrVersionNotFound
	}
	return s.branch(ctx, quote, source, userID)
}

func (s *Service) SwitchActiveVersion(ctx context.Context, quoteID, versionID snowflake.ID) error {
	quote, err := s.loadQuote(ctx, quoteID)
	if err != nil {
		return err
	}
	if quote.Submitted() {
		return quotedomain.ErrQuoteSubmitted
	}

	version, err := s.repo.FindByID(ctx, s.db, quote.ID, versionID)
	if err != nil {
		return err
	}
	if version == nil {
		return domain.ErrVersionNotFound
	}
	if version.IsActive {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.SetActive(ctx, tx, quote.ID, version.ID); err != nil {
			return err
		}
		return tx.Model(&quotedomain.Quote{}).
			Where("id = ?", quote.ID).
			Update("active_version_id", version.ID).Error
	})
}

func (s *Service) DeleteVersion(ctx context.Context, quoteID, versionID snowflake.ID) error {
	quote, err := s.loadQuote(ctx, quoteID)
	if err != nil {
		return err
	}

	version, err := s.repo.FindByID(ctx, s.db, quote.ID, versionID)
	if err != nil {
		return err
	}
	if version == nil {
		return domain.ErrVersionNotFound
	}
	if version.IsActive {
		return domain.ErrActiveVersionDelete
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeleteTree(ctx, tx, version.ID); err != nil {
			return err
		}
		return s.repo.SoftDelete(ctx, tx, version.ID)
	})
}

func (s *Service) ListVersions(ctx context.Context, quoteID snowflake.ID) ([]domain.VersionSelection, error) {
	quote, err := s.loadQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	versions, err := s.repo.List(ctx, s.db, quote.ID)
	if err != nil {
		return nil, err
	}

	selections := make([]domain.VersionSelection, 0, len(versions))
	for _, version := range versions {
		selections = append(selections, domain.VersionSelection{
			ID:       version.ID,
			Name:     version.Name,
			Revision: version.Revision,
			IsUsing:  version.IsActive,
			AuthorID: version.AuthorID,
		})
	}
	return selections, nil
}

// branch copies source into a new active version attributed to author. The
// whole copy runs in one transaction so a failed branch leaves no trace.
func (s *Service) branch(ctx context.Context, quote *quotedomain.Quote, source *domain.QuoteVersion, author snowflake.ID) (domain.QuoteVersion, error) {
	var created domain.QuoteVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		revision, err := s.repo.MaxRevision(ctx, tx, quote.ID)
		if err != nil {
			return err
		}
		revision++

		name := fmt.Sprintf("EQ-%d/%d", quote.QuoteNumber, revision)
		clone := source.CloneEditable(s.genID.Generate(), author, revision, name, s.clock.Now())
		if err := s.repo.Insert(ctx, tx, clone); err != nil {
			return err
		}
		if err := s.repo.CopyTree(ctx, tx, source.ID, clone.ID, s.genID); err != nil {
			return err
		}
		if err := s.repo.SetActive(ctx, tx, quote.ID, clone.ID); err != nil {
			return err
		}
		if err := tx.Model(&quotedomain.Quote{}).
			Where("id = ?", quote.ID).
			Update("active_version_id", clone.ID).Error; err != nil {
			return err
		}

		clone.IsActive = true
		created = *clone
		return nil
	})
	if err != nil {
		return domain.QuoteVersion{}, err
	}
	return created, nil
}

func (s *Service) loadQuote(ctx context.Context, quoteID snowflake.ID) (*quotedomain.Quote, error) {
	orgID, ok := actorcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, quotedomain.ErrInvalidOrganization
	}

	var quote quotedomain.Quote
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, quoteID).
		First(&quote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, quotedomain.ErrQuoteNotFound
		}
		return nil, err
	}
	return &quote, nil
}
