package app

import (
	"testing"

	"lydistories/pkg/domain"
)

func TestBootstrapSeedsExactlyOneAdmin(t *testing.T) {
	a, st := newTestApp(t)
	params := BootstrapParams{AdminEmail: "Admin@Example.com", AdminPassword: "Lydistories2026!"}

	if err := a.Bootstrap(params); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	admins, err := st.CountUsersByRole(domain.RoleAdmin)
	if err != nil {
		t.Fatalf("count admins: %v", err)
	}
	if admins != 1 {
		t.Fatalf("admins = %d, want 1", admins)
	}

	// Email is normalized and the seeded credentials work.
	admin, _, err := a.Login("admin@example.com", "Lydistories2026!")
	if err != nil {
		t.Fatalf("login as seeded admin: %v", err)
	}
	if admin.Role != domain.RoleAdmin {
		t.Fatalf("role = %q, want admin", admin.Role)
	}

	// A second startup must not create another admin.
	if err := a.Bootstrap(params); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	admins, _ = st.CountUsersByRole(domain.RoleAdmin)
	if admins != 1 {
		t.Fatalf("admins after rerun = %d, want 1", admins)
	}
}

func TestBootstrapSkipsWhenAdminAlreadyExists(t *testing.T) {
	a, st := newTestApp(t)
	existing := seedUser(t, a, "Olivia", "olivia@example.com")
	existing.Role = domain.RoleAdmin
	if err := st.SaveUser(existing); err != nil {
		t.Fatalf("promote: %v", err)
	}

	err := a.Bootstrap(BootstrapParams{AdminEmail: "admin@example.com", AdminPassword: "Lydistories2026!"})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, ok, _ := st.GetUserByEmail("admin@example.com"); ok {
		t.Fatal("configured admin should not be created when an admin exists")
	}
	admins, _ := st.CountUsersByRole(domain.RoleAdmin)
	if admins != 1 {
		t.Fatalf("admins = %d, want 1", admins)
	}
}

func TestBootstrapRejectsReaderEmailCollision(t *testing.T) {
	a, _ := newTestApp(t)
	seedUser(t, a, "Sam", "sam@example.com")

	err := a.Bootstrap(BootstrapParams{AdminEmail: "sam@example.com", AdminPassword: "Lydistories2026!"})
	if err == nil {
		t.Fatal("expected error when the admin email belongs to a reader account")
	}
}

func TestBootstrapWithoutCredentialsIsNoop(t *testing.T) {
	a, st := newTestApp(t)
	if err := a.Bootstrap(BootstrapParams{}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	admins, _ := st.CountUsersByRole(domain.RoleAdmin)
	if admins != 0 {
		t.Fatalf("admins = %d, want 0", admins)
	}
}

func TestBootstrapSeedsCatalogOnlyWhenEmpty(t *testing.T) {
	a, st := newTestApp(t)
	if err := a.Bootstrap(BootstrapParams{SeedCatalog: true}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	count, err := st.ContentCount()
	if err != nil {
		t.Fatalf("content count: %v", err)
	}
	if count != len(sampleCatalog) {
		t.Fatalf("catalog = %d items, want %d", count, len(sampleCatalog))
	}

	// Rerunning must not duplicate the samples.
	if err := a.Bootstrap(BootstrapParams{SeedCatalog: true}); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	count, _ = st.ContentCount()
	if count != len(sampleCatalog) {
		t.Fatalf("catalog after rerun = %d items, want %d", count, len(sampleCatalog))
	}
}

func TestBootstrapLeavesExistingCatalogAlone(t *testing.T) {
	a, st := newTestApp(t)
	seedContent(t, st, "Existing Item", 1000)

	if err := a.Bootstrap(BootstrapParams{SeedCatalog: true}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	count, _ := st.ContentCount()
	if count != 1 {
		t.Fatalf("catalog = %d items, want the 1 existing item", count)
	}
}
