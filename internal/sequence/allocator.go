package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// quoteNumberSeed keeps quote numbers out of the low range so they read like
// document numbers.
const quoteNumberSeed = 100000

const (
	lockTTL      = 5 * time.Second
	lockAttempts = 10
	lockBackoff  = 50 * time.Millisecond
)

var ErrLockContended = errors.New("sequence_lock_contended")

// QuoteCounter is the per-organization numbering row.
type QuoteCounter struct {
	OrgID snowflake.ID `gorm:"primaryKey"`
	Value int64        `gorm:"not null"`
}

// Allocator hands out strictly increasing, gap-tolerant quote numbers.
// Allocation must run inside the caller's transaction so a failed quote
// create never burns a number silently into a half-written quote.
type Allocator interface {
	NextQuoteNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (int64, error)
}

type allocator struct {
	log    *zap.Logger
	locker *Locker
}

func NewAllocator(log *zap.Logger, locker *Locker) Allocator {
	return &allocator{
		log:    log.Named("sequence.allocator"),
		locker: locker,
	}
}

func (a *allocator) NextQuoteNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (int64, error) {
	if a.locker != nil {
		key := fmt.Sprintf("quotedesk:quote_number:%d", orgID)
		token, err := a.acquire(ctx, key)
		if err != nil {
			return 0, err
		}
		defer func() {
			if err := a.locker.Release(ctx, key, token); err != nil {
				a.log.Warn("sequence lock release failed", zap.Error(err))
			}
		}()
	}
	return a.increment(ctx, tx, orgID)
}

func (a *allocator) acquire(ctx context.Context, key string) (string, error) {
	for attempt := 0; attempt < lockAttempts; attempt++ {
		token, ok, err := a.locker.TryLock(ctx, key, lockTTL)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
	return "", ErrLockContended
}

func (a *allocator) increment(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (int64, error) {
	stmt := tx.WithContext(ctx)
	// sqlite has no row locks; single-writer semantics cover it there.
	if tx.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var counter QuoteCounter
	err := stmt.Where("org_id = ?", orgID).First(&counter).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		counter = QuoteCounter{OrgID: orgID, Value: quoteNumberSeed + 1}
		if err := tx.WithContext(ctx).Create(&counter).Error; err != nil {
			return 0, err
		}
		return counter.Value, nil
	case err != nil:
		return 0, err
	}

	counter.Value++
	if err := tx.WithContext(ctx).Save(&counter).Error; err != nil {
		return 0, err
	}
	return counter.Value, nil
}
