package discounts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/maison-pos/pkg/db/dbtest"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, seed ...*models.Discount) (*service, *Repository) {
	t.Helper()
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	for _, d := range seed {
		_, err := repo.Create(context.Background(), d)
		require.NoError(t, err)
	}
	svc, err := NewService(repo, client, nil)
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return fixedNow }
	return impl, repo
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(v int) *int { return &v }

func TestValidatePercentage(t *testing.T) {
	svc, _ := newService(t, &models.Discount{Code: "SAVE10", Type: enums.DiscountTypePercentage, Value: dec("10"), IsActive: true})

	applied, err := svc.Validate(context.Background(), " save10 ", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", applied.Code)
	assert.Equal(t, "10.00", applied.Amount.StringFixed(2))
}

func TestValidateFixedCapsAtSubtotal(t *testing.T) {
	svc, _ := newService(t, &models.Discount{Code: "BIG150", Type: enums.DiscountTypeFixed, Value: dec("150"), IsActive: true})

	applied, err := svc.Validate(context.Background(), "BIG150", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", applied.Amount.StringFixed(2))

	smaller, err := svc.Validate(context.Background(), "BIG150", dec("40"))
	require.NoError(t, err)
	assert.Equal(t, "40.00", smaller.Amount.StringFixed(2))
}

func TestValidateRejections(t *testing.T) {
	past := fixedNow.Add(-time.Hour)
	svc, _ := newService(t,
		&models.Discount{Code: "OFF", Type: enums.DiscountTypeFixed, Value: dec("5"), IsActive: false},
		&models.Discount{Code: "OLD", Type: enums.DiscountTypeFixed, Value: dec("5"), IsActive: true, ExpiresAt: &past},
		&models.Discount{Code: "USED", Type: enums.DiscountTypeFixed, Value: dec("5"), IsActive: true, MaxUses: intPtr(3), UsageCount: 3},
		&models.Discount{Code: "MIN50", Type: enums.DiscountTypePercentage, Value: dec("10"), IsActive: true, MinimumSpend: decimal.NewNullDecimal(dec("50"))},
	)

	cases := []struct {
		code string
		want Reason
	}{
		{code: "NOPE", want: ReasonUnknown},
		{code: "", want: ReasonUnknown},
		{code: "OFF", want: ReasonInactive},
		{code: "OLD", want: ReasonExpired},
		{code: "USED", want: ReasonExhausted},
		{code: "MIN50", want: ReasonBelowMinimum},
	}
	for _, tc := range cases {
		t.Run(string(tc.want)+"_"+tc.code, func(t *testing.T) {
			_, err := svc.Validate(context.Background(), tc.code, dec("20"))
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
			reason, ok := RejectionReason(err)
			require.True(t, ok)
			assert.Equal(t, tc.want, reason)
		})
	}
}

func TestIncrementUsageIsIdempotentPerOrder(t *testing.T) {
	svc, repo := newService(t, &models.Discount{Code: "SAVE10", Type: enums.DiscountTypePercentage, Value: dec("10"), IsActive: true})
	ctx := context.Background()
	orderID := uuid.New()

	require.NoError(t, svc.IncrementUsage(ctx, "save10", orderID))
	require.NoError(t, svc.IncrementUsage(ctx, "SAVE10", orderID))
	require.NoError(t, svc.IncrementUsage(ctx, "SAVE10", uuid.New()))

	discount, err := repo.FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 2, discount.UsageCount)

	count, err := repo.CountRedemptions(ctx, discount.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestIncrementUsageUnknownCode(t *testing.T) {
	svc, _ := newService(t)
	err := svc.IncrementUsage(context.Background(), "GHOST", uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAmountNeverExceedsSubtotal(t *testing.T) {
	assert.True(t, Amount(enums.DiscountTypePercentage, dec("250"), dec("80")).Equal(dec("80")))
	assert.True(t, Amount(enums.DiscountTypeFixed, dec("5"), dec("0")).IsZero())
	assert.Equal(t, "3.33", Amount(enums.DiscountTypePercentage, dec("10"), dec("33.33")).StringFixed(2))
}
