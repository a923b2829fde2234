package identity

import (
	"testing"

	"github.com/ys-23412/sbcontest2/models"
)

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1175 Douglas Street", "1175 douglas st"},
		{"2612 Richmond Rd.", "2612 richmond rd"},
		{"300 West Bay Avenue", "300 w bay ave"},
		{"  9876   Resthaven   Drive ", "9876 resthaven dr"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeAddress(tc.in); got != tc.want {
			t.Fatalf("NormalizeAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFingerprint_StableAcrossFormatting(t *testing.T) {
	a := models.RawRecord{SiteID: "victoria", FolderNo: "REZ00781", Address: "1175 Douglas Street", Type: "Rezoning"}
	b := models.RawRecord{SiteID: "victoria", FolderNo: "rez00781", Address: "1175  DOUGLAS ST.", Type: "REZONING"}

	if Fingerprint(&a) != Fingerprint(&b) {
		t.Fatalf("formatting variants of the same record must collide")
	}
}

func TestFingerprint_DistinguishesRecords(t *testing.T) {
	base := models.RawRecord{SiteID: "victoria", FolderNo: "REZ00781", Address: "1175 Douglas St", Type: "Rezoning"}

	other := base
	other.FolderNo = "REZ00782"
	if Fingerprint(&base) == Fingerprint(&other) {
		t.Fatalf("different folder numbers must not collide")
	}

	other = base
	other.SiteID = "saanich"
	if Fingerprint(&base) == Fingerprint(&other) {
		t.Fatalf("same folder number on another site must not collide")
	}
}
