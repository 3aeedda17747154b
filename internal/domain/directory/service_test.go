package directory

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

type mockPartyRepo struct {
	items map[uuid.UUID]*Party
}

func (m *mockPartyRepo) Create(_ context.Context, p *Party) error {
	p.ID = uuid.New()
	m.items[p.ID] = p
	return nil
}

func (m *mockPartyRepo) FindByID(_ context.Context, id uuid.UUID) (*Party, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, ErrPartyNotFound
	}
	return p, nil
}

func (m *mockPartyRepo) List(_ context.Context, role string, limit, offset int) ([]*Party, int, error) {
	var result []*Party
	for _, p := range m.items {
		if role == "" || p.Role == role {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

func newTestService() *Service {
	return NewService(&mockPartyRepo{items: make(map[uuid.UUID]*Party)})
}

func TestCreateParty(t *testing.T) {
	svc := newTestService()
	p := &Party{Name: "Asha Rao", Role: RolePatient}
	if err := svc.CreateParty(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := svc.GetParty(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Asha Rao" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestCreatePartyValidation(t *testing.T) {
	svc := newTestService()
	if err := svc.CreateParty(context.Background(), &Party{Role: RolePatient}); err == nil {
		t.Error("expected error for missing name")
	}
	if err := svc.CreateParty(context.Background(), &Party{Name: "X", Role: "alien"}); err == nil {
		t.Error("expected error for invalid role")
	}
}

func TestListPartiesByRole(t *testing.T) {
	svc := newTestService()
	for _, p := range []*Party{
		{Name: "Asha Rao", Role: RolePatient},
		{Name: "Dr. Mehta", Role: RoleStaff},
	} {
		if err := svc.CreateParty(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}
	patients, total, err := svc.ListParties(context.Background(), RolePatient, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(patients) != 1 || patients[0].Role != RolePatient {
		t.Errorf("patients = %d/%d", len(patients), total)
	}
	if _, _, err := svc.ListParties(context.Background(), "alien", 10, 0); err == nil {
		t.Error("expected error for invalid role filter")
	}
}
