package tabular

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/otl-tools/otltemplate/internal/model"
)

// ChoiceListSheet is the reserved sheet holding the choice lists
const ChoiceListSheet = "Keuzelijsten"

// MaxSheetTitle is the longest sheet title a workbook accepts
const MaxSheetTitle = 31

// namespaces maps short namespace prefixes to their full form
var namespaces = map[string]string{
	"ond":                  "https://wegenenverkeer.data.vlaanderen.be/ns/onderdeel#",
	"onderdeel":            "https://wegenenverkeer.data.vlaanderen.be/ns/onderdeel#",
	"ins":                  "https://wegenenverkeer.data.vlaanderen.be/ns/installatie#",
	"installatie":          "https://wegenenverkeer.data.vlaanderen.be/ns/installatie#",
	"imp":                  "https://wegenenverkeer.data.vlaanderen.be/ns/implementatieelement#",
	"implementatieelement": "https://wegenenverkeer.data.vlaanderen.be/ns/implementatieelement#",
	"lgc":                  "https://lgc.data.wegenenverkeer.be/ns/installatie#",
}

const agentURI = "http://purl.org/dc/terms/Agent"

// TypeURIFromTitle maps a sheet title such as onderdeel#Camera back to a class URI
func TypeURIFromTitle(title string) (string, bool) {
	if title == "Agent" {
		return agentURI, true
	}
	short, class, ok := strings.Cut(title, "#")
	if !ok {
		return "", false
	}
	ns, ok := namespaces[short]
	if !ok {
		return "", false
	}
	return ns + class, true
}

// SheetTitles returns a distinct title per type URI, truncated to MaxSheetTitle and never
// equal to the choice list sheet.
func SheetTitles(uris []string) []string {
	titles := make([]string, len(uris))
	used := map[string]struct{}{strings.ToLower(ChoiceListSheet): {}}
	for i, uri := range uris {
		base := truncate(model.ShortURI(uri), MaxSheetTitle)
		title := base
		for n := 2; ; n++ {
			if _, taken := used[strings.ToLower(title)]; !taken {
				break
			}
			suffix := "~" + strconv.Itoa(n)
			title = truncate(base, MaxSheetTitle-len(suffix)) + suffix
		}
		used[strings.ToLower(title)] = struct{}{}
		titles[i] = title
	}
	return titles
}

// truncate keeps at most n runes of s
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// SplitPath returns the per-type path for dest: {stem}_{namespace}_{Class}{ext}
func SplitPath(dest, typeURI string) string {
	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	return stem + "_" + strings.ReplaceAll(model.ShortURI(typeURI), "#", "_") + ext
}
