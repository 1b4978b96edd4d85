package prescription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/auth"
)

// -- Mock Repository --

type mockRepo struct {
	mu sync.Mutex
	rx map[uuid.UUID]*Prescription
}

func newMockRepo() *mockRepo {
	return &mockRepo{rx: make(map[uuid.UUID]*Prescription)}
}

func (m *mockRepo) Create(_ context.Context, p *Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.rx[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rx[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, p *Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rx[p.ID]; !ok {
		return ErrNotFound
	}
	m.rx[p.ID] = p
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rx, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Prescription, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Prescription
	for _, p := range m.rx {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Prescription
	for _, p := range m.rx {
		if p.PatientID == patientID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Prescription
	for _, p := range m.rx {
		if p.DoctorID == doctorID {
			out = append(out, p)
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

type mockNotifier struct {
	mu     sync.Mutex
	issued []string
}

func (n *mockNotifier) SendPrescriptionIssued(_ context.Context, email, _, _, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.issued = append(n.issued, email)
}

// -- Fixtures --

func newTestService() (*Service, *mockRepo, *mockNotifier, uuid.UUID, uuid.UUID) {
	repo := newMockRepo()
	notify := &mockNotifier{}
	patientID := uuid.New()
	doctorID := uuid.New()
	dir := &mockDirectory{identities: map[uuid.UUID]*auth.Identity{
		patientID: {ID: patientID, Email: "alice@example.com", Name: "Alice", Role: "patient"},
		doctorID:  {ID: doctorID, Email: "chen@example.com", Name: "Dr. Chen", Role: "doctor"},
	}}
	return NewService(repo, dir, notify), repo, notify, patientID, doctorID
}

func validPrescription(patientID, doctorID uuid.UUID) *Prescription {
	return &Prescription{
		PatientID:    patientID,
		DoctorID:     doctorID,
		Medication:   "amoxicillin",
		Dosage:       "500mg",
		Frequency:    "3x daily",
		DurationDays: 7,
	}
}

// -- Tests --

func TestCreate(t *testing.T) {
	svc, _, notify, patientID, doctorID := newTestService()

	p := validPrescription(patientID, doctorID)
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Status != StatusActive {
		t.Errorf("status = %q, want active", p.Status)
	}
	if len(notify.issued) != 1 || notify.issued[0] != "alice@example.com" {
		t.Errorf("notifications = %v", notify.issued)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _, patientID, doctorID := newTestService()

	cases := []struct {
		name string
		mod  func(*Prescription)
	}{
		{"missing patient", func(p *Prescription) { p.PatientID = uuid.Nil }},
		{"missing doctor", func(p *Prescription) { p.DoctorID = uuid.Nil }},
		{"missing medication", func(p *Prescription) { p.Medication = "" }},
		{"missing dosage", func(p *Prescription) { p.Dosage = "" }},
		{"bad status", func(p *Prescription) { p.Status = "paused" }},
		{"unknown patient", func(p *Prescription) { p.PatientID = uuid.New() }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPrescription(patientID, doctorID)
			tc.mod(p)
			if err := svc.Create(context.Background(), p); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestUpdateStatus(t *testing.T) {
	svc, repo, _, patientID, doctorID := newTestService()
	p := validPrescription(patientID, doctorID)
	_ = svc.Create(context.Background(), p)

	if _, err := svc.UpdateStatus(context.Background(), p.ID, StatusCompleted); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	stored, _ := repo.GetByID(context.Background(), p.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("status = %q", stored.Status)
	}

	if _, err := svc.UpdateStatus(context.Background(), p.ID, "paused"); err == nil {
		t.Error("expected error for unknown status")
	}
	if _, err := svc.UpdateStatus(context.Background(), uuid.New(), StatusCancelled); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListByPatientAndDoctor(t *testing.T) {
	svc, _, _, patientID, doctorID := newTestService()
	_ = svc.Create(context.Background(), validPrescription(patientID, doctorID))
	_ = svc.Create(context.Background(), validPrescription(patientID, doctorID))

	_, total, err := svc.ListByPatient(context.Background(), patientID, 20, 0)
	if err != nil || total != 2 {
		t.Errorf("ListByPatient total = %d, err = %v", total, err)
	}
	_, total, err = svc.ListByDoctor(context.Background(), doctorID, 20, 0)
	if err != nil || total != 2 {
		t.Errorf("ListByDoctor total = %d, err = %v", total, err)
	}
	_, total, _ = svc.ListByPatient(context.Background(), uuid.New(), 20, 0)
	if total != 0 {
		t.Errorf("stranger total = %d", total)
	}
}

func TestDelete(t *testing.T) {
	svc, _, _, patientID, doctorID := newTestService()
	p := validPrescription(patientID, doctorID)
	_ = svc.Create(context.Background(), p)

	if err := svc.Delete(context.Background(), p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(context.Background(), p.ID); err != ErrNotFound {
		t.Errorf("double delete err = %v", err)
	}
}
