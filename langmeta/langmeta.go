// Package langmeta provides a locale metadata registry (English display
// names and emoji flags) used in translation prompts and CLI output.
//
// Prompts substitute English display names ("Italian", "Brazilian
// Portuguese") rather than raw locale codes; models follow "translate to
// Italian" far more reliably than "translate to it".
package langmeta

import "strings"

// Meta describes locale display metadata.
type Meta struct {
	Name string
	Flag string
}

// Registry contains canonical locale metadata. Locale variants are resolved
// in Resolve() via normalization and base-language fallback.
var Registry = map[string]Meta{
	"ar":    {Name: "Arabic", Flag: "🇸🇦"},
	"bg":    {Name: "Bulgarian", Flag: "🇧🇬"},
	"bn":    {Name: "Bengali", Flag: "🇧🇩"},
	"ca":    {Name: "Catalan", Flag: "🇪🇸"},
	"cs":    {Name: "Czech", Flag: "🇨🇿"},
	"da":    {Name: "Danish", Flag: "🇩🇰"},
	"de":    {Name: "German", Flag: "🇩🇪"},
	"de-AT": {Name: "Austrian German", Flag: "🇦🇹"},
	"de-CH": {Name: "Swiss German", Flag: "🇨🇭"},
	"el":    {Name: "Greek", Flag: "🇬🇷"},
	"en":    {Name: "English", Flag: "🇺🇸"},
	"en-AU": {Name: "Australian English", Flag: "🇦🇺"},
	"en-CA": {Name: "Canadian English", Flag: "🇨🇦"},
	"en-GB": {Name: "British English", Flag: "🇬🇧"},
	"en-US": {Name: "American English", Flag: "🇺🇸"},
	"es":    {Name: "Spanish", Flag: "🇪🇸"},
	"es-AR": {Name: "Argentinian Spanish", Flag: "🇦🇷"},
	"es-MX": {Name: "Mexican Spanish", Flag: "🇲🇽"},
	"et":    {Name: "Estonian", Flag: "🇪🇪"},
	"fa":    {Name: "Persian", Flag: "🇮🇷"},
	"fi":    {Name: "Finnish", Flag: "🇫🇮"},
	"fr":    {Name: "French", Flag: "🇫🇷"},
	"fr-BE": {Name: "Belgian French", Flag: "🇧🇪"},
	"fr-CA": {Name: "Canadian French", Flag: "🇨🇦"},
	"fr-CH": {Name: "Swiss French", Flag: "🇨🇭"},
	"he":    {Name: "Hebrew", Flag: "🇮🇱"},
	"hi":    {Name: "Hindi", Flag: "🇮🇳"},
	"hr":    {Name: "Croatian", Flag: "🇭🇷"},
	"hu":    {Name: "Hungarian", Flag: "🇭🇺"},
	"id":    {Name: "Indonesian", Flag: "🇮🇩"},
	"it":    {Name: "Italian", Flag: "🇮🇹"},
	"ja":    {Name: "Japanese", Flag: "🇯🇵"},
	"ko":    {Name: "Korean", Flag: "🇰🇷"},
	"lt":    {Name: "Lithuanian", Flag: "🇱🇹"},
	"lv":    {Name: "Latvian", Flag: "🇱🇻"},
	"ms":    {Name: "Malay", Flag: "🇲🇾"},
	"nb":    {Name: "Norwegian Bokmål", Flag: "🇳🇴"},
	"nl":    {Name: "Dutch", Flag: "🇳🇱"},
	"nl-BE": {Name: "Flemish", Flag: "🇧🇪"},
	"no":    {Name: "Norwegian", Flag: "🇳🇴"},
	"pl":    {Name: "Polish", Flag: "🇵🇱"},
	"pt":    {Name: "Portuguese", Flag: "🇵🇹"},
	"pt-BR": {Name: "Brazilian Portuguese", Flag: "🇧🇷"},
	"pt-PT": {Name: "European Portuguese", Flag: "🇵🇹"},
	"ro":    {Name: "Romanian", Flag: "🇷🇴"},
	"ru":    {Name: "Russian", Flag: "🇷🇺"},
	"sk":    {Name: "Slovak", Flag: "🇸🇰"},
	"sl":    {Name: "Slovenian", Flag: "🇸🇮"},
	"sr":    {Name: "Serbian", Flag: "🇷🇸"},
	"sv":    {Name: "Swedish", Flag: "🇸🇪"},
	"sw":    {Name: "Swahili", Flag: "🇹🇿"},
	"th":    {Name: "Thai", Flag: "🇹🇭"},
	"tr":    {Name: "Turkish", Flag: "🇹🇷"},
	"uk":    {Name: "Ukrainian", Flag: "🇺🇦"},
	"ur":    {Name: "Urdu", Flag: "🇵🇰"},
	"vi":    {Name: "Vietnamese", Flag: "🇻🇳"},
	"zh":    {Name: "Chinese", Flag: "🇨🇳"},
	"zh-CN": {Name: "Simplified Chinese", Flag: "🇨🇳"},
	"zh-TW": {Name: "Traditional Chinese", Flag: "🇹🇼"},
}

func canonicalize(locale string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Resolve returns best-effort locale metadata, supporting variants like
// pt_BR, pt-BR, and base-language fallback. Unknown locales resolve to
// themselves so prompts never contain an empty language name.
func Resolve(locale string) Meta {
	if m, ok := Registry[locale]; ok {
		return m
	}
	normalized := canonicalize(locale)
	if m, ok := Registry[normalized]; ok {
		return m
	}
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
		if m, ok := Registry[parts[0]]; ok {
			return m
		}
	}
	return Meta{Name: locale}
}

// DisplayName returns the English display name for a locale code.
func DisplayName(locale string) string {
	return Resolve(locale).Name
}
