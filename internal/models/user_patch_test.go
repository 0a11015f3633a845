package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserPatch_Apply(t *testing.T) {
	trialEnd := int64(1_700_000_000)
	base := func() *User {
		return &User{
			ID:          "uid_1",
			Email:       "ada@example.com",
			DisplayName: "Ada",
			CustomerID:  "cus_1",
			Plan:        PlanFree,
			Invoices: map[string]InvoiceRecord{
				"in_old": {Status: "paid", Currency: "usd", AmountPaid: 900},
			},
		}
	}

	t.Run("sets plan and subscription", func(t *testing.T) {
		u := base()
		te := trialEnd
		sub := &Subscription{SubscriptionID: "sub_1", PriceID: "price_pro", Status: "trialing", TrialEnd: &te}
		UserPatch{Plan: PlanPtr(PlanPro), Subscription: sub}.Apply(u)

		assert.Equal(t, PlanPro, u.Plan)
		if assert.NotNil(t, u.Subscription) {
			assert.Equal(t, "sub_1", u.Subscription.SubscriptionID)
			assert.Equal(t, trialEnd, *u.Subscription.TrialEnd)
		}

		// the stored subscription does not alias the patch
		te = 1
		assert.Equal(t, trialEnd, *u.Subscription.TrialEnd)
		assert.Equal(t, "ada@example.com", u.Email)
		assert.Equal(t, "cus_1", u.CustomerID)
	})

	t.Run("clear wins over replacement", func(t *testing.T) {
		u := base()
		u.Subscription = &Subscription{SubscriptionID: "sub_1"}
		UserPatch{ClearSubscription: true, Subscription: &Subscription{SubscriptionID: "sub_2"}}.Apply(u)
		assert.Nil(t, u.Subscription)
	})

	t.Run("upserts invoices by id", func(t *testing.T) {
		u := base()
		UserPatch{Invoices: map[string]InvoiceRecord{"in_new": {Status: "paid", AmountPaid: 1900}}}.Apply(u)

		assert.Len(t, u.Invoices, 2)
		assert.Equal(t, int64(900), u.Invoices["in_old"].AmountPaid)
		assert.Equal(t, int64(1900), u.Invoices["in_new"].AmountPaid)
		assert.Equal(t, PlanFree, u.Plan)
	})

	t.Run("nil user", func(t *testing.T) {
		assert.NotPanics(t, func() { UserPatch{Plan: PlanPtr(PlanPro)}.Apply(nil) })
	})
}

func TestUserPatch_IsEmpty(t *testing.T) {
	assert.True(t, UserPatch{}.IsEmpty())
	assert.True(t, UserPatch{Invoices: map[string]InvoiceRecord{}}.IsEmpty())
	assert.False(t, UserPatch{ClearSubscription: true}.IsEmpty())
	assert.False(t, UserPatch{Plan: PlanPtr(PlanFree)}.IsEmpty())
}
