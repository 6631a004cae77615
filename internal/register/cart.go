package register

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/maison-pos/internal/cart"
	"github.com/angelmondragon/maison-pos/internal/catalog"
)

// AddLine scans a variant into the cart. The price and stock ceiling are
// snapshotted from a fresh product read.
func (r *Register) AddLine(ctx context.Context, ref catalog.ProductRef, qty int) (View, error) {
	if err := r.activity(ctx); err != nil {
		return View{}, err
	}
	ctx = r.ctx(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireEditableLocked(); err != nil {
		return View{}, err
	}
	product, err := r.products.ReadProduct(ctx, ref)
	if err != nil {
		return View{}, err
	}
	if _, err := r.ledger.Add(cart.SnapshotFromProduct(product, r.now()), qty); err != nil {
		return View{}, err
	}
	if err := r.revalidateDiscountLocked(ctx); err != nil {
		return View{}, err
	}
	return r.viewLocked(ctx)
}

// AdjustLine moves a line quantity by delta within its stock ceiling.
func (r *Register) AdjustLine(ctx context.Context, productID uuid.UUID, variantKey string, delta int) (View, error) {
	if err := r.activity(ctx); err != nil {
		return View{}, err
	}
	ctx = r.ctx(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireEditableLocked(); err != nil {
		return View{}, err
	}
	if _, err := r.ledger.Adjust(productID, variantKey, delta); err != nil {
		return View{}, err
	}
	if err := r.revalidateDiscountLocked(ctx); err != nil {
		return View{}, err
	}
	return r.viewLocked(ctx)
}

// RemoveLine deletes a line.
func (r *Register) RemoveLine(ctx context.Context, productID uuid.UUID, variantKey string) (View, error) {
	if err := r.activity(ctx); err != nil {
		return View{}, err
	}
	ctx = r.ctx(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireEditableLocked(); err != nil {
		return View{}, err
	}
	if err := r.ledger.Remove(productID, variantKey); err != nil {
		return View{}, err
	}
	if err := r.revalidateDiscountLocked(ctx); err != nil {
		return View{}, err
	}
	return r.viewLocked(ctx)
}

// Discard empties the cart and drops any applied discount.
func (r *Register) Discard(ctx context.Context) (View, error) {
	if err := r.activity(ctx); err != nil {
		return View{}, err
	}
	ctx = r.ctx(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireEditableLocked(); err != nil {
		return View{}, err
	}
	r.resetCheckoutLocked()
	return r.viewLocked(ctx)
}
