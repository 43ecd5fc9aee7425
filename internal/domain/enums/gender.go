package enums

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type GenderPreference string

const (
	PreferenceMale   GenderPreference = "male"
	PreferenceFemale GenderPreference = "female"
	PreferenceAny    GenderPreference = "any"
)
