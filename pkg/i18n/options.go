package i18n

// LanguageOption describes an entry of the language selector.
type LanguageOption struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Flag   string `json:"flag"`
	Active bool   `json:"active"`
}

var nativeNames = map[string]LanguageOption{
	"es": {Code: "es", Name: "Español", Flag: "es"},
	"en": {Code: "en", Name: "English", Flag: "us"},
	"fr": {Code: "fr", Name: "Français", Flag: "fr"},
	"pt": {Code: "pt", Name: "Português", Flag: "br"},
}

// Options lists the selector entries for the configured languages, marking active.
func (r *Resolver) Options(active string) []LanguageOption {
	options := make([]LanguageOption, 0, len(r.languages))
	for _, code := range r.languages {
		option, ok := nativeNames[code]
		if !ok {
			option = LanguageOption{Code: code, Name: code, Flag: code}
		}
		option.Active = code == active
		options = append(options, option)
	}
	return options
}
