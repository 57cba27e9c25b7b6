package identity

import (
	"testing"

	"github.com/om2108/OneGate/services/visit-service/internal/model"
)

func testDirectory() *Directory {
	users := []model.UserProfile{
		{IDs: []string{"u1", "legacy-u1"}, Identity: model.Identity{Name: "Asha Patel", Email: "asha@example.com"}},
		{IDs: []string{"u2"}, Identity: model.Identity{Name: "", Email: "mail-only@example.com"}},
	}
	properties := []model.Property{
		{ID: "p1", Name: "Sunrise Villa"},
		{ID: "p2", Name: ""},
	}
	return NewDirectory(users, properties)
}

func TestRequester_EmbeddedWinsOverLookup(t *testing.T) {
	d := testDirectory()
	appt := model.Appointment{
		RequesterID: "u1",
		Requester:   &model.Identity{Name: "Embedded Name", Email: "embedded@example.com"},
	}
	got := d.Requester(appt)
	if got.Name != "Embedded Name" || got.Email != "embedded@example.com" {
		t.Fatalf("embedded identity should win, got %+v", got)
	}
}

func TestRequester_SparseEmbeddedGetsPlaceholders(t *testing.T) {
	d := testDirectory()
	appt := model.Appointment{Requester: &model.Identity{}}
	got := d.Requester(appt)
	if got.Name != UnnamedRequester || got.Email != NoEmail {
		t.Fatalf("expected Unnamed/No Email for a sparse record, got %+v", got)
	}
}

func TestRequester_LookupByAnyAlias(t *testing.T) {
	d := testDirectory()
	for _, id := range []string{"u1", "legacy-u1"} {
		got := d.Requester(model.Appointment{RequesterID: id})
		if got.Name != "Asha Patel" {
			t.Fatalf("alias %q did not resolve: %+v", id, got)
		}
	}
}

func TestRequester_LookupFillsMissingFields(t *testing.T) {
	d := testDirectory()
	got := d.Requester(model.Appointment{RequesterID: "u2"})
	if got.Name != UnnamedRequester || got.Email != "mail-only@example.com" {
		t.Fatalf("partial profile not filled: %+v", got)
	}
}

func TestRequester_NoMatchIsUnknown(t *testing.T) {
	d := testDirectory()
	for _, appt := range []model.Appointment{
		{RequesterID: "u9"},
		{},
	} {
		got := d.Requester(appt)
		if got.Name != UnknownUser || got.Email != UnknownEmail {
			t.Fatalf("expected unknown sentinels, got %+v", got)
		}
	}
}

func TestPropertyName(t *testing.T) {
	d := testDirectory()
	if got := d.PropertyName("p1"); got != "Sunrise Villa" {
		t.Fatalf("expected property name, got %q", got)
	}
	if got := d.PropertyName("p2"); got != UnknownProperty {
		t.Fatalf("blank property name must fall back, got %q", got)
	}
	if got := d.PropertyName("missing"); got != UnknownProperty {
		t.Fatalf("missing property must fall back, got %q", got)
	}
}
