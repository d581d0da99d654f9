package catalog

import "strings"

// DefaultEmoji is returned when no keyword rule matches.
const DefaultEmoji = "📦"

// KeywordRule maps a group of keyword roots to a display glyph.
type KeywordRule struct {
	Keywords []string `json:"keywords"`
	Emoji    string   `json:"emoji"`
}

// Matches reports whether any keyword is a substring of the normalized name.
func (r KeywordRule) Matches(normalized string) bool {
	for _, kw := range r.Keywords {
		if kw != "" && strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// Order matters: pickles must win over plain cucumbers, and so on.
var rules = []KeywordRule{
	{Keywords: []string{"מלפפון חמוץ", "חמוצים", "במלח", "בחומץ"}, Emoji: "🥒"},
	{Keywords: []string{"מלפפון", "מלפפונים"}, Emoji: "🥒"},
	{Keywords: []string{"עגבני", "עגבניות", "שרי"}, Emoji: "🍅"},
	{Keywords: []string{"חלב", "יוגורט", "קוטג", "גבינ", "מעדן"}, Emoji: "🥛"},
	{Keywords: []string{"ביצ", "ביצים"}, Emoji: "🥚"},
	{Keywords: []string{"לחם", "פיתה", "לחמני", "חלה"}, Emoji: "🍞"},
	{Keywords: []string{"בשר", "סטייק", "צלעות", "בקר", "טחון"}, Emoji: "🥩"},
	{Keywords: []string{"עוף", "שניצל", "כרעיים", "פרגיות"}, Emoji: "🍗"},
	{Keywords: []string{"דג", "טונה", "סלמון"}, Emoji: "🐟"},
	{Keywords: []string{"תפוח", "בננה", "תפוז", "ענבים", "אבטיח", "פירות"}, Emoji: "🍎"},
	{Keywords: []string{"גזר", "בצל", "תפוח אדמה", "חסה", "פלפל", "ירקות"}, Emoji: "🥦"},
	{Keywords: []string{"שוקולד", "ממתק", "חטיף", "במבה", "ביסלי", "וופל"}, Emoji: "🍫"},
	{Keywords: []string{"קולה", "מיץ", "מים", "סודה", "שתייה"}, Emoji: "🥤"},
	{Keywords: []string{"נייר", "טואלט", "מגבונים", "חיתול"}, Emoji: "🧻"},
	{Keywords: []string{"סבון", "שמפו", "מרכך", "דאודורנט", "משחה"}, Emoji: "🧼"},
	{Keywords: []string{"שמן", "זית", "קנולה"}, Emoji: "🧴"},
	{Keywords: []string{"אורז", "פסטה", "קמח", "סוכר", "מלח", "פתיתים"}, Emoji: "🌾"},
	{Keywords: []string{"קפה", "תה", "נס"}, Emoji: "☕"},
}

// Emoji returns the glyph of the first rule whose keywords appear in the
// trimmed, lowercased name, or DefaultEmoji.
func Emoji(name string) string {
	normalized := NormalizeName(name)
	for _, r := range rules {
		if r.Matches(normalized) {
			return r.Emoji
		}
	}
	return DefaultEmoji
}

// NormalizeName is the comparison form of an item name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
