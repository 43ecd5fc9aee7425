package rules

import (
	"github.com/MSK-101/Juicy-meets-web-sub002/internal/domain/enums"
)

// PreferenceBucket orders a candidate relative to the requester's stated
// gender preference. Lower buckets win: exact preference match, then same
// gender as the requester, then anyone.
type PreferenceBucket int

const (
	BucketPreferred PreferenceBucket = iota
	BucketSameGender
	BucketAny
)

func BucketFor(requesterGender enums.Gender, preference enums.GenderPreference, candidateGender enums.Gender) PreferenceBucket {
	if preference != enums.PreferenceAny && string(candidateGender) == string(preference) {
		return BucketPreferred
	}
	if preference == enums.PreferenceAny && candidateGender != "" {
		return BucketPreferred
	}
	if candidateGender == requesterGender {
		return BucketSameGender
	}
	return BucketAny
}
