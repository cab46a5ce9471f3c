package membership

import (
	"errors"
	"testing"
	"time"

	"libcirc/pkg/domain"
	"libcirc/pkg/store"
)

func newService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	svc, err := New(Config{Store: st, PageSize: 25})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return svc, st
}

func TestAddMember(t *testing.T) {
	svc, _ := newService(t)

	member, err := svc.AddMember(MemberInput{Name: " Ada Lovelace ", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("AddMember() error: %v", err)
	}
	if member.ID == "" {
		t.Error("ID should be assigned")
	}
	if member.Name != "Ada Lovelace" {
		t.Errorf("Name = %q, want trimmed %q", member.Name, "Ada Lovelace")
	}
	if !member.Active {
		t.Error("new member should be active")
	}

	if _, err := svc.AddMember(MemberInput{Email: "no-name@example.com"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("missing name: err = %v, want ErrValidation", err)
	}
}

func TestUpdateMember(t *testing.T) {
	svc, _ := newService(t)

	member, err := svc.AddMember(MemberInput{Name: "Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("AddMember() error: %v", err)
	}
	updated, err := svc.UpdateMember(member.ID, MemberInput{Name: "Ada Lovelace", Email: "ada@newmail.com", Phone: "555-0100"})
	if err != nil {
		t.Fatalf("UpdateMember() error: %v", err)
	}
	if updated.Email != "ada@newmail.com" || updated.Phone != "555-0100" {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := svc.UpdateMember("nope", MemberInput{Name: "X"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}
}

func TestSetActive(t *testing.T) {
	svc, _ := newService(t)

	member, err := svc.AddMember(MemberInput{Name: "Ada"})
	if err != nil {
		t.Fatalf("AddMember() error: %v", err)
	}
	deactivated, err := svc.SetActive(member.ID, false)
	if err != nil {
		t.Fatalf("SetActive() error: %v", err)
	}
	if deactivated.Active {
		t.Error("member should be inactive")
	}
	reactivated, err := svc.SetActive(member.ID, true)
	if err != nil {
		t.Fatalf("SetActive() error: %v", err)
	}
	if !reactivated.Active {
		t.Error("member should be active again")
	}
}

func TestDeleteMember(t *testing.T) {
	svc, st := newService(t)

	member, err := svc.AddMember(MemberInput{Name: "Ada"})
	if err != nil {
		t.Fatalf("AddMember() error: %v", err)
	}

	// An open loan blocks deletion; a closed one does not.
	today := domain.DateOf(time.Now())
	err = st.CreateLoan(domain.Loan{
		ID: "l1", BookID: "b1", MemberID: member.ID,
		IssuedOn: today, DueOn: today.AddDate(0, 0, 14), CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateLoan() error: %v", err)
	}
	if err := svc.DeleteMember(member.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("delete with open loan: err = %v, want ErrConflict", err)
	}

	loan, _, _ := st.GetLoan("l1")
	loan.ReturnedOn = &today
	if err := st.UpdateLoan(loan); err != nil {
		t.Fatalf("UpdateLoan() error: %v", err)
	}
	if err := svc.DeleteMember(member.ID); err != nil {
		t.Fatalf("DeleteMember() error: %v", err)
	}
	if _, err := svc.GetMember(member.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetMember() after delete: err = %v, want ErrNotFound", err)
	}
}

func TestSearchMembers(t *testing.T) {
	svc, _ := newService(t)

	for _, in := range []MemberInput{
		{Name: "Ada Lovelace", Email: "ada@example.com"},
		{Name: "Alan Turing", Email: "alan@example.com"},
		{Name: "Grace Hopper", Email: "grace@example.com"},
	} {
		if _, err := svc.AddMember(in); err != nil {
			t.Fatalf("AddMember(%s) error: %v", in.Name, err)
		}
	}

	members, err := svc.SearchMembers("a", 0, 0)
	if err != nil {
		t.Fatalf("SearchMembers() error: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("substring search: got %d, want 3", len(members))
	}
	if members[0].Name != "Ada Lovelace" || members[1].Name != "Alan Turing" {
		t.Errorf("name order = %q, %q", members[0].Name, members[1].Name)
	}

	members, err = svc.SearchMembers("grace@", 0, 0)
	if err != nil {
		t.Fatalf("SearchMembers() error: %v", err)
	}
	if len(members) != 1 || members[0].Name != "Grace Hopper" {
		t.Errorf("email search = %+v, want just Grace Hopper", members)
	}

	page, err := svc.SearchMembers("", 1, 1)
	if err != nil {
		t.Fatalf("SearchMembers() error: %v", err)
	}
	if len(page) != 1 || page[0].Name != "Alan Turing" {
		t.Errorf("page offset=1 limit=1 = %+v, want just Alan Turing", page)
	}
}
