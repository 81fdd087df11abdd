package dto

// UpdateConsentRequest carries the optional categories of a granular save.
// Essential cannot be switched off and is ignored if sent.
type UpdateConsentRequest struct {
	Analytics   bool `json:"analytics" form:"analytics"`
	Preferences bool `json:"preferences" form:"preferences"`
}
