package dto

import "github.com/noah-isme/labsite-api/pkg/i18n"

// SetLanguageRequest switches the visitor's display language.
type SetLanguageRequest struct {
	Language string `json:"language" form:"language" validate:"required"`
}

// LanguageResponse reports the active language and selector entries.
type LanguageResponse struct {
	Language string                `json:"language"`
	Options  []i18n.LanguageOption `json:"options"`
}
