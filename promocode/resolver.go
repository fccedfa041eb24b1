package promocode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boxoffice/entity"
	"boxoffice/pricing"
)

type Repository interface {
	PromoCode(ctx context.Context, eventID, code string) (entity.PromoCode, error)
	// PromoCodeUsage counts the live reservations using the code. It holds the
	// code until the surrounding transaction ends.
	PromoCodeUsage(ctx context.Context, promoCodeID int64) (int, error)
}

type Resolution struct {
	PromoCode entity.PromoCode
	// UnlockedCategories lists the restricted categories an ACCESS code opens.
	UnlockedCategories []int64
}

func (r Resolution) Unlocks(categoryID int64) bool {
	for _, id := range r.UnlockedCategories {
		if id == categoryID {
			return true
		}
	}
	return false
}

// DiscountFor returns the discount applying to an item of the given category,
// or nil when the code does not discount it.
func (r Resolution) DiscountFor(categoryID int64) *pricing.Discount {
	p := r.PromoCode
	if p.CodeType == entity.PromoCodeAccess || p.DiscountType == entity.DiscountNone || p.DiscountType == "" {
		return nil
	}
	if !p.AppliesTo(categoryID) {
		return nil
	}

	d := pricing.DiscountOf(p)
	return &d
}

// ReservationDiscount is the discount applied to items not bound to a category,
// which only codes without category scoping grant.
func (r Resolution) ReservationDiscount() *pricing.Discount {
	if len(r.PromoCode.Categories) > 0 {
		return nil
	}
	return r.DiscountFor(0)
}

type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) Resolver {
	return Resolver{
		repo: repo,
	}
}

// Resolve looks up a code for rule-driven callers; any code type is accepted.
func (r Resolver) Resolve(ctx context.Context, code, eventID string, now time.Time) (Resolution, error) {
	p, err := r.lookup(ctx, code, eventID)
	if err != nil {
		return Resolution{}, err
	}

	return r.validate(ctx, p, now)
}

// ResolveForUser looks up a code typed by a buyer. DYNAMIC codes are only ever
// attached by rules and are refused here.
func (r Resolver) ResolveForUser(ctx context.Context, code, eventID string, now time.Time) (Resolution, error) {
	p, err := r.lookup(ctx, code, eventID)
	if err != nil {
		return Resolution{}, err
	}

	if p.CodeType == entity.PromoCodeDynamic {
		return Resolution{}, fmt.Errorf("code %s: %w", code, entity.ErrPromoCodeNotApplicable)
	}

	return r.validate(ctx, p, now)
}

func (r Resolver) lookup(ctx context.Context, code, eventID string) (entity.PromoCode, error) {
	p, err := r.repo.PromoCode(ctx, eventID, code)
	if errors.Is(err, entity.ErrNotFound) {
		return entity.PromoCode{}, fmt.Errorf("code %s: %w", code, entity.ErrPromoCodeNotFound)
	}
	if err != nil {
		return entity.PromoCode{}, fmt.Errorf("getting promo code: %w", err)
	}

	return p, nil
}

func (r Resolver) validate(ctx context.Context, p entity.PromoCode, now time.Time) (Resolution, error) {
	if !now.After(p.ValidFrom) {
		return Resolution{}, fmt.Errorf("code %s: %w", p.Code, entity.ErrPromoCodeNotYetValid)
	}
	if !now.Before(p.ValidTo) {
		return Resolution{}, fmt.Errorf("code %s: %w", p.Code, entity.ErrPromoCodeExpired)
	}

	if p.MaxUsage > 0 {
		used, err := r.repo.PromoCodeUsage(ctx, p.ID)
		if err != nil {
			return Resolution{}, fmt.Errorf("counting promo code usage: %w", err)
		}
		if used >= p.MaxUsage {
			return Resolution{}, fmt.Errorf("code %s: %w", p.Code, entity.ErrPromoCodeExhausted)
		}
	}

	res := Resolution{PromoCode: p}
	if p.CodeType == entity.PromoCodeAccess {
		res.UnlockedCategories = p.Categories
	}

	return res, nil
}
