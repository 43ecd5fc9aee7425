package rules

import (
	"testing"

	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
)

func TestBucketForPrefersStatedPreference(t *testing.T) {
	got := BucketFor(enums.GenderMale, enums.PreferenceFemale, enums.GenderFemale)
	if got != BucketPreferred {
		t.Fatalf("female candidate should land in preferred bucket, got %d", got)
	}
}

func TestBucketForFallsBackToSameGender(t *testing.T) {
	got := BucketFor(enums.GenderMale, enums.PreferenceFemale, enums.GenderMale)
	if got != BucketSameGender {
		t.Fatalf("same-gender candidate should land in second bucket, got %d", got)
	}
}

func TestBucketForAnythingElseIsLast(t *testing.T) {
	got := BucketFor(enums.GenderMale, enums.PreferenceFemale, enums.GenderOther)
	if got != BucketAny {
		t.Fatalf("other candidate should land in last bucket, got %d", got)
	}
}

func TestBucketForAnyPreferenceTreatsAllAsPreferred(t *testing.T) {
	got := BucketFor(enums.GenderFemale, enums.PreferenceAny, enums.GenderMale)
	if got != BucketPreferred {
		t.Fatalf("any-preference should not discriminate, got %d", got)
	}
}

func TestPairKeyIsUnordered(t *testing.T) {
	if PairKey(7, 3) != PairKey(3, 7) {
		t.Fatalf("pair key must not depend on argument order")
	}
	if PairKey(3, 7) != "3:7" {
		t.Fatalf("unexpected pair key: %s", PairKey(3, 7))
	}
}
