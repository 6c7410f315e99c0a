package accounts

// Echo is the user record a backend returns from a commit. Backends often
// echo only some fields, so Fields names the JSON keys the reply carried.
// A nil Fields means the reply carried the whole record.
type Echo struct {
	Account
	Fields map[string]bool
}

// Has reports whether the reply carried the JSON key field.
func (e *Echo) Has(field string) bool {
	return e.Fields == nil || e.Fields[field]
}

// MergeInto overwrites the fields of a that the reply carried and keeps the rest.
func (e *Echo) MergeInto(a *Account) {
	src := e.Account.clone()
	if e.Has("full_name") {
		a.FullName = src.FullName
	}
	if e.Has("email") {
		a.Email = src.Email
	}
	if e.Has("phone_number") {
		a.PhoneNumber = src.PhoneNumber
	}
	if e.Has("country_code") {
		a.CountryCode = src.CountryCode
	}
	if e.Has("reference_code") {
		a.ReferenceCode = src.ReferenceCode
	}
	if e.Has("business_plan") {
		a.BusinessPlan = src.BusinessPlan
	}
	if e.Has("gender") {
		a.Gender = src.Gender
	}
	if e.Has("dob") {
		a.DOB = src.DOB
	}
	if e.Has("verified") {
		a.Verified = src.Verified
	}
	if e.Has("coin") {
		a.Coin = src.Coin
	}
	if e.Has("status") {
		a.Status = src.Status
	}
	if e.Has("pause_start") {
		a.PauseStart = src.PauseStart
	}
	if e.Has("block_date") {
		a.BlockDate = src.BlockDate
	}
	if e.Has("trust") {
		a.Trust = src.Trust
	}
	if e.Has("created_at") {
		a.CreatedAt = src.CreatedAt
	}
}
