package locations

import (
	"testing"
	"time"
)

func TestLocationSessionValidFor(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	base := LocationSession{
		ID:                "loc-1",
		TenantID:          "tenant-a",
		RestaurantID:      "rest-1",
		DeviceFingerprint: "fp-a",
		Active:            true,
		ExpiresAt:         now.Add(time.Hour),
	}

	if !base.ValidFor("fp-a", now) {
		t.Fatal("active unexpired session with matching fingerprint should be valid")
	}

	mismatched := base
	if mismatched.ValidFor("fp-b", now) {
		t.Fatal("fingerprint mismatch must invalidate the session")
	}

	inactive := base
	inactive.Active = false
	if inactive.ValidFor("fp-a", now) {
		t.Fatal("deactivated session must be invalid")
	}

	expired := base
	expired.ExpiresAt = now
	if expired.ValidFor("fp-a", now) {
		t.Fatal("expiry must be strictly in the future")
	}
}

func TestLocationSessionValidate(t *testing.T) {
	session := LocationSession{
		ID:                "loc-1",
		TenantID:          "tenant-a",
		RestaurantID:      "rest-1",
		DeviceFingerprint: "fp-a",
		ExpiresAt:         time.Now().Add(SessionTTL),
	}
	if err := session.Validate(); err != nil {
		t.Fatalf("valid session rejected: %v", err)
	}
	session.DeviceFingerprint = ""
	if err := session.Validate(); err == nil {
		t.Fatal("missing fingerprint accepted")
	}
}
