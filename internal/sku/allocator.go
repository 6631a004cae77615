package sku

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/maison-pos/pkg/db/models"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
	"github.com/angelmondragon/maison-pos/pkg/metrics"
)

const (
	brandPrefix   = "MA"
	fallbackCode  = "XXX"
	counterDigits = 5
)

// Fallback reasons reported on degraded results.
const (
	ReasonNoCategory      = "category_missing"
	ReasonCategoryUnknown = "category_not_found"
	ReasonCategoryInvalid = "category_invalid"
)

// CategoryReader loads a category with its parent populated.
type CategoryReader interface {
	FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
}

// Result is an allocated SKU. Degraded results carry a timestamp suffix
// instead of a sequence value and are not guaranteed unique.
type Result struct {
	SKU      string
	Prefix   string
	Value    int64
	Degraded bool
	Reason   string
}

// Allocator issues category-prefixed SKUs.
type Allocator struct {
	categories CategoryReader
	seq        Sequence
	metrics    *metrics.RegisterMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewAllocator wires the category store and counter sequence.
func NewAllocator(categories CategoryReader, seq Sequence, m *metrics.RegisterMetrics, logg *logger.Logger) (*Allocator, error) {
	if categories == nil {
		return nil, fmt.Errorf("category reader required")
	}
	if seq == nil {
		return nil, fmt.Errorf("sequence required")
	}
	return &Allocator{
		categories: categories,
		seq:        seq,
		metrics:    m,
		logg:       logg,
		now:        time.Now,
	}, nil
}

// Generate resolves the category chain to a prefix and draws the next value for it.
// An unresolvable category yields a degraded MA-XXX-<millis> id rather than an error.
func (a *Allocator) Generate(ctx context.Context, categoryID *uuid.UUID) (Result, error) {
	if categoryID == nil || *categoryID == uuid.Nil {
		return a.degraded(ctx, categoryID, ReasonNoCategory, nil), nil
	}

	category, err := a.categories.FindCategory(ctx, *categoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return a.degraded(ctx, categoryID, ReasonCategoryUnknown, err), nil
		}
		a.metrics.IncSKUAllocation(a.seq.Backend(), "error")
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}

	prefix, err := Prefix(category)
	if err != nil {
		return a.degraded(ctx, categoryID, ReasonCategoryInvalid, err), nil
	}

	value, err := a.seq.Next(ctx, prefix)
	if err != nil {
		a.metrics.IncSKUAllocation(a.seq.Backend(), "error")
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate sku sequence")
	}

	a.metrics.IncSKUAllocation(a.seq.Backend(), "ok")
	return Result{
		SKU:    Format(prefix, value),
		Prefix: prefix,
		Value:  value,
	}, nil
}

func (a *Allocator) degraded(ctx context.Context, categoryID *uuid.UUID, reason string, cause error) Result {
	sku := fmt.Sprintf("%s-%s-%d", brandPrefix, fallbackCode, a.now().UnixMilli())
	a.metrics.IncSKUAllocation(a.seq.Backend(), "fallback")
	if a.logg != nil {
		fields := map[string]any{
			"sku":    sku,
			"reason": reason,
		}
		if categoryID != nil {
			fields["category_id"] = categoryID.String()
		}
		if cause != nil {
			fields["cause"] = cause.Error()
		}
		a.logg.Warn(a.logg.WithFields(ctx, fields), "sku allocation degraded to fallback id")
	}
	return Result{
		SKU:      sku,
		Prefix:   brandPrefix + "-" + fallbackCode,
		Degraded: true,
		Reason:   reason,
	}
}

// Prefix builds MA[-parentCode]-code for a category.
func Prefix(category *models.Category) (string, error) {
	if category == nil {
		return "", errors.New("category is nil")
	}
	code := normalizeCode(category.Code)
	if code == "" {
		return "", errors.New("category code is empty")
	}
	parts := []string{brandPrefix}
	if category.ParentID != nil {
		if category.Parent == nil {
			return "", errors.New("category parent not loaded")
		}
		parent := normalizeCode(category.Parent.Code)
		if parent == "" {
			return "", errors.New("parent category code is empty")
		}
		parts = append(parts, parent)
	}
	parts = append(parts, code)
	return strings.Join(parts, "-"), nil
}

// Format joins a prefix and a zero-padded counter value.
func Format(prefix string, value int64) string {
	return fmt.Sprintf("%s-%0*d", prefix, counterDigits, value)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Backend names the counter store, used as a metrics label.
func (a *Allocator) Backend() string {
	return a.seq.Backend()
}
