package classifier

import (
	"regexp"
	"strings"
)

// ListingGeneral labels a listing that matches no category.
const ListingGeneral = "General"

// DefaultListingTable is the built-in crimeware market category table,
// with English and Russian slang keywords.
func DefaultListingTable() Table {
	return Table{
		{Name: "ACCESS", Keywords: []string{
			"rdp", "vpn", "access", "shell", "ssh", "citrix", "cpanel", "root",
			"доступ", "дедик", "шелл", "админка", "впн",
		}},
		{Name: "DATA", Keywords: []string{
			"database", "leak", "dump", "fullz", "passport", "sql", "ssn",
			"база", "слив", "дамп", "строки", "пасс", "доки", "логи",
		}},
		{Name: "MALWARE", Keywords: []string{
			"botnet", "stealer", "rat", "loader", "exploit", "builder", "apk",
			"стилер", "ботнет", "лоадер", "ратник", "вирус", "майнер",
		}},
		{Name: "HARDWARE", Keywords: []string{
			"flipper", "hackrf", "wifi", "jammer", "device", "skimmer",
			"флиппер", "глушилка", "скиммер", "оборудование",
		}},
		{Name: "SERVICES", Keywords: []string{
			"ddos", "hosting", "bulletproof", "cashout", "design", "qr",
			"ддос", "хостинг", "абузоустойчивый", "обнал", "залив", "пробив",
		}},
		{Name: "MILITARY", Keywords: []string{
			"leopard", "bradley", "abrams", "marder", "f-16", "su-", "mig-",
			"документация", "чертежи", "blueprints", "secret", "секретно",
		}},
	}
}

// ClassifyListing joins every matching category with ", ", or returns
// "General".
func ClassifyListing(table Table, text string) string {
	found := table.All(text)
	if len(found) == 0 {
		return ListingGeneral
	}
	return strings.Join(found, ", ")
}

var (
	saleMarkers = []string{"lot:", "лот:", "price:", "цена:", "selling", "продам"}
	productRe   = regexp.MustCompile(`(?i)(?:Состав лота|Описание лота|Description)[:\s*]+\**([^\n]+)`)
)

// Listing is a parsed market post.
type Listing struct {
	Product  string
	Category string
}

// ParseListing extracts the product and category from a market post. Posts
// without a sale marker are not listings.
func ParseListing(table Table, text string) (Listing, bool) {
	lower := strings.ToLower(text)
	isSale := false
	for _, marker := range saleMarkers {
		if strings.Contains(lower, marker) {
			isSale = true
			break
		}
	}
	if !isSale {
		return Listing{}, false
	}

	var product string
	if m := productRe.FindStringSubmatch(text); m != nil {
		product = strings.ReplaceAll(strings.TrimSpace(m[1]), "*", "")
	} else {
		first, _, _ := strings.Cut(text, "\n")
		product = truncateRunes(first, 100)
	}

	return Listing{Product: product, Category: ClassifyListing(table, text)}, true
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
