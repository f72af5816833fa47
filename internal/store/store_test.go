package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/wayfarer-app/wayfarer/internal/models"
)

func sampleRecord(id string) models.SessionRecord {
	return models.SessionRecord{
		SessionID:     id,
		IdentityToken: "tok-" + id,
		ProfileStatus: models.ProfileStatusExists,
		Step:          models.StepVoice,
		Flags:         models.SessionFlags{Initialized: true, LocationAsked: true},
		Location:      &models.Coordinates{Lat: 43.65, Lng: -79.38},
		CreatedAt:     time.Now(),
	}
}

func TestInMemoryStoreSessionRoundTrip(t *testing.T) {
	s := NewInMemoryStore()

	if rec, err := s.GetSession("missing"); err != nil || rec != nil {
		t.Fatalf("expected nil record for missing session, got %v err %v", rec, err)
	}

	rec := sampleRecord("s1")
	if err := s.SaveSession(rec); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	got, err := s.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected session record, got nil")
	}
	if got.Step != models.StepVoice || got.ProfileStatus != models.ProfileStatusExists {
		t.Errorf("record mismatch: %+v", got)
	}
	if !got.Flags.Initialized || !got.Flags.LocationAsked {
		t.Errorf("flags not preserved: %+v", got.Flags)
	}

	all, err := s.ListSessions()
	if err != nil || len(all) != 1 {
		t.Errorf("expected one session, got %d err %v", len(all), err)
	}

	if err := s.DeleteSession("s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if rec, _ := s.GetSession("s1"); rec != nil {
		t.Errorf("expected session deleted, got %+v", rec)
	}
}

func TestInMemoryStoreCachedProfile(t *testing.T) {
	s := NewInMemoryStore()
	p := models.Profile{ID: "u1", Name: "Ana", OnboardingCompleted: false}
	if err := s.SaveCachedProfile("s1", p); err != nil {
		t.Fatalf("SaveCachedProfile failed: %v", err)
	}
	got, err := s.GetCachedProfile("s1")
	if err != nil || got == nil {
		t.Fatalf("GetCachedProfile failed: %v %v", got, err)
	}
	if got.Name != "Ana" {
		t.Errorf("expected name Ana, got %q", got.Name)
	}
	if err := s.DeleteCachedProfile("s1"); err != nil {
		t.Fatalf("DeleteCachedProfile failed: %v", err)
	}
	if got, _ := s.GetCachedProfile("s1"); got != nil {
		t.Errorf("expected cached profile deleted, got %+v", got)
	}
}

func TestSQLiteStorePersistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "wayfarer.db")

	s1, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	rec := sampleRecord("s-sql")
	if err := s1.SaveSession(rec); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := s1.SaveCachedProfile("s-sql", models.Profile{ID: "u1", Name: "Ana"}); err != nil {
		t.Fatalf("SaveCachedProfile failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen and verify state survived the restart.
	s2, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	got, err := s2.GetSession("s-sql")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil || got.Step != models.StepVoice {
		t.Fatalf("session not recovered: %+v", got)
	}
	if got.Location == nil || got.Location.Lat != 43.65 {
		t.Errorf("location not recovered: %+v", got.Location)
	}
	if !got.Flags.Initialized {
		t.Errorf("flags not recovered: %+v", got.Flags)
	}

	profile, err := s2.GetCachedProfile("s-sql")
	if err != nil || profile == nil {
		t.Fatalf("cached profile not recovered: %v %v", profile, err)
	}
	if profile.Name != "Ana" {
		t.Errorf("expected name Ana, got %q", profile.Name)
	}

	// Upsert path: saving again must update, not duplicate.
	got.Step = models.StepComplete
	if err := s2.SaveSession(*got); err != nil {
		t.Fatalf("SaveSession upsert failed: %v", err)
	}
	all, err := s2.ListSessions()
	if err != nil || len(all) != 1 {
		t.Fatalf("expected one session after upsert, got %d err %v", len(all), err)
	}
	if all[0].Step != models.StepComplete {
		t.Errorf("upsert did not update step: %+v", all[0])
	}
}

func TestDetectDSNType(t *testing.T) {
	cases := map[string]string{
		"postgres://user:pw@localhost/db":  "postgres",
		"postgresql://localhost/wayfarer":  "postgres",
		"host=localhost dbname=wayfarer":   "postgres",
		"/var/lib/wayfarer/wayfarer.db":    "sqlite",
		"wayfarer.db":                      "sqlite",
	}
	for dsn, want := range cases {
		if got := DetectDSNType(dsn); got != want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", dsn, got, want)
		}
	}
}
