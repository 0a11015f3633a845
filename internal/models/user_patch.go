package models

// UserPatch is a partial update of the billing-owned fields of a user.
// A nil field means "leave as is". Store drivers translate a patch into
// field-level writes so that nothing outside these keys is touched.
type UserPatch struct {
	Plan              *Plan
	Subscription      *Subscription
	ClearSubscription bool
	// Invoices are upserted by invoice ID; existing entries with other IDs are kept.
	Invoices map[string]InvoiceRecord
}

// IsEmpty reports whether the patch would change nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Plan == nil && p.Subscription == nil && !p.ClearSubscription && len(p.Invoices) == 0
}

// Apply overlays the patch onto u in place.
func (p UserPatch) Apply(u *User) {
	if u == nil {
		return
	}
	if p.Plan != nil {
		u.Plan = *p.Plan
	}
	if p.ClearSubscription {
		u.Subscription = nil
	} else if p.Subscription != nil {
		sub := *p.Subscription
		if p.Subscription.TrialEnd != nil {
			te := *p.Subscription.TrialEnd
			sub.TrialEnd = &te
		}
		u.Subscription = &sub
	}
	if len(p.Invoices) > 0 {
		if u.Invoices == nil {
			u.Invoices = make(map[string]InvoiceRecord, len(p.Invoices))
		}
		for id, rec := range p.Invoices {
			u.Invoices[id] = rec
		}
	}
}

// PlanPtr is a small helper for building patches.
func PlanPtr(p Plan) *Plan {
	return &p
}
