package subscription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/auth"
)

// -- Mock repositories --

type mockPlanRepo struct {
	mu    sync.Mutex
	plans map[uuid.UUID]*Plan
}

func newMockPlanRepo() *mockPlanRepo {
	return &mockPlanRepo{plans: make(map[uuid.UUID]*Plan)}
}

func (m *mockPlanRepo) Create(_ context.Context, p *Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.plans[p.ID] = p
	return nil
}

func (m *mockPlanRepo) GetByID(_ context.Context, id uuid.UUID) (*Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPlanRepo) Update(_ context.Context, p *Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[p.ID]; !ok {
		return ErrNotFound
	}
	m.plans[p.ID] = p
	return nil
}

func (m *mockPlanRepo) List(_ context.Context, limit, offset int) ([]*Plan, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Plan
	for _, p := range m.plans {
		out = append(out, p)
	}
	return out, len(out), nil
}

type mockRepo struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*Subscription
}

func newMockRepo() *mockRepo {
	return &mockRepo{subs: make(map[uuid.UUID]*Subscription)}
}

func (m *mockRepo) Create(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = time.Now()
	m.subs[s.ID] = s
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[s.ID]; !ok {
		return ErrNotFound
	}
	m.subs[s.ID] = s
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Subscription, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Subscription
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Subscription, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Subscription
	for _, s := range m.subs {
		if s.PatientID == patientID {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

// -- Mock Directory and Notifier --

type mockDirectory struct {
	identities map[uuid.UUID]*auth.Identity
}

func (d *mockDirectory) Resolve(_ context.Context, id uuid.UUID) (*auth.Identity, error) {
	ident, ok := d.identities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ident, nil
}

type started struct {
	email string
	plan  string
}

type mockNotifier struct {
	mu     sync.Mutex
	starts []started
}

func (n *mockNotifier) SendSubscriptionStarted(_ context.Context, email, _, plan string, _ time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.starts = append(n.starts, started{email: email, plan: plan})
}

// -- Fixtures --

func newTestService() (*Service, *mockRepo, *mockNotifier, uuid.UUID, uuid.UUID) {
	plans := newMockPlanRepo()
	subs := newMockRepo()
	notify := &mockNotifier{}
	patientID := uuid.New()
	dir := &mockDirectory{identities: map[uuid.UUID]*auth.Identity{
		patientID: {ID: patientID, Email: "alice@example.com", Name: "Alice", Role: "patient"},
	}}
	svc := NewService(plans, subs, dir, notify)

	plan := &Plan{Name: "basic care", PriceCents: 1999, BillingPeriodDays: 30}
	_ = svc.CreatePlan(context.Background(), plan)
	return svc, subs, notify, patientID, plan.ID
}

// -- Tests --

func TestCreatePlan(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	p := &Plan{Name: "premium care", PriceCents: 4999, BillingPeriodDays: 90}
	if err := svc.CreatePlan(context.Background(), p); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if !p.Active || p.Currency != "USD" {
		t.Errorf("plan = %+v", p)
	}
}

func TestCreatePlan_Validation(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	cases := []struct {
		name string
		plan Plan
	}{
		{"missing name", Plan{BillingPeriodDays: 30}},
		{"negative price", Plan{Name: "x", PriceCents: -1, BillingPeriodDays: 30}},
		{"zero period", Plan{Name: "x", PriceCents: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.plan
			if err := svc.CreatePlan(context.Background(), &p); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSubscribe(t *testing.T) {
	svc, _, notify, patientID, planID := newTestService()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	sub, err := svc.Subscribe(context.Background(), patientID, planID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if sub.Status != StatusActive {
		t.Errorf("status = %q", sub.Status)
	}
	want := base.AddDate(0, 0, 30)
	if !sub.NextBillingAt.Equal(want) {
		t.Errorf("next_billing_at = %s, want %s", sub.NextBillingAt, want)
	}
	if len(notify.starts) != 1 || notify.starts[0].plan != "basic care" {
		t.Errorf("notifications = %v", notify.starts)
	}
}

func TestSubscribe_DuplicateActive(t *testing.T) {
	svc, _, _, patientID, planID := newTestService()

	if _, err := svc.Subscribe(context.Background(), patientID, planID); err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	if _, err := svc.Subscribe(context.Background(), patientID, planID); err == nil {
		t.Error("duplicate active subscription should fail")
	}
}

func TestSubscribe_AfterCancel(t *testing.T) {
	svc, _, _, patientID, planID := newTestService()

	sub, _ := svc.Subscribe(context.Background(), patientID, planID)
	if _, err := svc.Cancel(context.Background(), sub.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := svc.Subscribe(context.Background(), patientID, planID); err != nil {
		t.Errorf("resubscribe after cancel: %v", err)
	}
}

func TestSubscribe_InactivePlan(t *testing.T) {
	svc, _, _, patientID, planID := newTestService()

	plan, _ := svc.GetPlan(context.Background(), planID)
	plan.Active = false
	if err := svc.UpdatePlan(context.Background(), plan); err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}
	if _, err := svc.Subscribe(context.Background(), patientID, planID); err == nil {
		t.Error("subscribing to an inactive plan should fail")
	}
}

func TestSubscribe_UnknownPatientOrPlan(t *testing.T) {
	svc, _, _, patientID, planID := newTestService()

	if _, err := svc.Subscribe(context.Background(), uuid.New(), planID); err == nil {
		t.Error("unknown patient should fail")
	}
	if _, err := svc.Subscribe(context.Background(), patientID, uuid.New()); err == nil {
		t.Error("unknown plan should fail")
	}
}

func TestCancel_Idempotent(t *testing.T) {
	svc, repo, _, patientID, planID := newTestService()
	sub, _ := svc.Subscribe(context.Background(), patientID, planID)

	first, err := svc.Cancel(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if first.Status != StatusCancelled || first.CancelledAt == nil {
		t.Errorf("subscription = %+v", first)
	}
	again, err := svc.Cancel(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
	if !again.CancelledAt.Equal(*first.CancelledAt) {
		t.Error("second cancel moved the cancellation time")
	}
	stored, _ := repo.GetByID(context.Background(), sub.ID)
	if stored.Status != StatusCancelled {
		t.Errorf("stored status = %q", stored.Status)
	}
}

func TestRenew(t *testing.T) {
	svc, _, _, patientID, planID := newTestService()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	sub, _ := svc.Subscribe(context.Background(), patientID, planID)
	firstBilling := sub.NextBillingAt

	// Not due yet, renew is a no-op.
	same, err := svc.Renew(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if !same.NextBillingAt.Equal(firstBilling) {
		t.Error("renew before due date moved the billing date")
	}

	// Jump past the billing date.
	svc.now = func() time.Time { return base.AddDate(0, 0, 31) }
	renewed, err := svc.Renew(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	want := firstBilling.AddDate(0, 0, 30)
	if !renewed.NextBillingAt.Equal(want) {
		t.Errorf("next_billing_at = %s, want %s", renewed.NextBillingAt, want)
	}
}

func TestRenew_PastDueReactivates(t *testing.T) {
	svc, _, _, patientID, planID := newTestService()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	sub, _ := svc.Subscribe(context.Background(), patientID, planID)
	svc.now = func() time.Time { return base.AddDate(0, 0, 31) }

	if _, err := svc.MarkPastDue(context.Background(), sub.ID); err != nil {
		t.Fatalf("MarkPastDue: %v", err)
	}
	renewed, err := svc.Renew(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if renewed.Status != StatusActive {
		t.Errorf("status = %q, want active", renewed.Status)
	}
}

func TestRenew_Cancelled(t *testing.T) {
	svc, _, _, patientID, planID := newTestService()
	sub, _ := svc.Subscribe(context.Background(), patientID, planID)
	_, _ = svc.Cancel(context.Background(), sub.ID)

	if _, err := svc.Renew(context.Background(), sub.ID); err == nil {
		t.Error("renewing a cancelled subscription should fail")
	}
}

func TestMarkPastDue_NotDue(t *testing.T) {
	svc, _, _, patientID, planID := newTestService()
	sub, _ := svc.Subscribe(context.Background(), patientID, planID)

	if _, err := svc.MarkPastDue(context.Background(), sub.ID); err == nil {
		t.Error("marking an up-to-date subscription past due should fail")
	}
}

func TestDue(t *testing.T) {
	next := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	sub := &Subscription{Status: StatusActive, NextBillingAt: next}

	if sub.Due(next.Add(-time.Hour)) {
		t.Error("due before billing date")
	}
	if !sub.Due(next) {
		t.Error("not due at billing date")
	}
	sub.Status = StatusCancelled
	if sub.Due(next.Add(time.Hour)) {
		t.Error("cancelled subscription reported due")
	}
}
