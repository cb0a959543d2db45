// Package simulate produces synthetic record batches for exercising the
// engine end to end without live collectors.
package simulate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/telhawk-systems/telhawk-intel/internal/classifier"
	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

// Sources used by generated records.
const (
	SourceCorporate = "SIMULATION_CORP"
	SourceC2Feed    = "C2_INTEL_FEED"
	SourceNews      = "RSS_Simulation"
	SourceMonitor   = "SIMULATION_MONITOR"
	SourceHost      = "SIMULATION_HOST"
)

// Counts selects how many records of each kind a batch contains.
type Counts struct {
	Corporate bool
	Victims   int
	C2        int
	Market    int
	Leads     int
	Health    int
	Security  int
	News      int
}

// DefaultCounts is a small batch touching every metric family.
func DefaultCounts() Counts {
	return Counts{Corporate: true, Victims: 2, C2: 2, Market: 2, Leads: 1, Health: 1, Security: 1, News: 1}
}

// corporateVictims is the headquarters lookup scenario: well-known
// organisations whose names geocode poorly but resolve through the
// knowledge graph.
var corporateVictims = []struct {
	victim string
	gang   string
}{
	{"Ferrari", "LockBit3"},
	{"Nintendo", "Qilin"},
	{"Emirates Airlines", "8Base"},
}

var (
	gangs       = []string{"LockBit3", "Qilin", "8Base", "Play", "BlackBasta", "Akira"}
	malware     = []string{"Cobalt", "Sliver", "Havoc", "Brute Ratel", "Mythic"}
	sellers     = []string{"KillNet_Market", "XSS_Board", "Exploit_Bazaar"}
	orgSuffixes = []string{"Bank", "Hospital", "University", "Ministry of Finance", "Tech", "Logistics", "City Council"}
	leadTypes   = []string{"onion", "telegram_handle", "admin_panel"}
	secEvents   = []string{"ssh_bruteforce", "port_scan", "web_shell_upload"}
	listings    = []string{
		"Lot: RDP access to %s network\nPrice: %d$",
		"Продам базу %s\nЦена: %d$",
		"Selling stealer logs from %s\nPrice: %d$",
		"Lot: ddos service, targets like %s\nPrice: %d$",
		"Description: ** Flipper kit with %s firmware\nprice: %d",
	}
)

// Generator builds synthetic records.
type Generator struct {
	faker    *gofakeit.Faker
	listings classifier.Table
	now      func() time.Time
	nextID   int64
}

// NewGenerator creates a generator. A seed of 0 picks a random seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		faker:    gofakeit.New(seed),
		listings: classifier.DefaultListingTable(),
		now:      func() time.Time { return time.Now().UTC() },
		nextID:   11001,
	}
}

// Batch generates records in a fixed kind order.
func (g *Generator) Batch(c Counts) model.Batch {
	var batch model.Batch
	if c.Corporate {
		batch = append(batch, g.Corporate()...)
	}
	for i := 0; i < c.Victims; i++ {
		batch = append(batch, g.Victim())
	}
	for i := 0; i < c.C2; i++ {
		batch = append(batch, g.C2())
	}
	for i := 0; i < c.Market; i++ {
		batch = append(batch, g.Market())
	}
	for i := 0; i < c.Leads; i++ {
		batch = append(batch, g.Lead())
	}
	for i := 0; i < c.Health; i++ {
		batch = append(batch, g.Health())
	}
	for i := 0; i < c.Security; i++ {
		batch = append(batch, g.Security())
	}
	for i := 0; i < c.News; i++ {
		batch = append(batch, g.News())
	}
	return batch
}

// Corporate returns the headquarters lookup scenario records.
func (g *Generator) Corporate() []model.Record {
	out := make([]model.Record, 0, len(corporateVictims))
	for _, v := range corporateVictims {
		rec := g.record(SourceCorporate, fmt.Sprintf("Victim: %s Gang Claimed: %s", v.victim, v.gang))
		rec.Analysis = model.Analysis{Victims: []string{v.victim}, Gangs: []string{v.gang}}
		out = append(out, rec)
	}
	return out
}

// Victim returns a leak-site claim against a fake organisation.
func (g *Generator) Victim() model.Record {
	victim := g.faker.LastName() + " " + g.faker.RandomString(orgSuffixes)
	gang := g.faker.RandomString(gangs)
	rec := g.record("leak_site_"+strings.ToLower(gang), fmt.Sprintf("New victim published: %s", victim))
	rec.Analysis = model.Analysis{
		Victims: []string{victim},
		Gangs:   []string{gang},
		IOCs:    []model.IOC{{Type: model.IOCTypeIP, Value: g.faker.IPv4Address()}},
	}
	if g.faker.Bool() {
		rec.Analysis.TranslationFailures = []json.RawMessage{json.RawMessage(`"ru"`)}
	}
	return rec
}

// C2 returns an indicator feed record with one command-and-control address.
func (g *Generator) C2() model.Record {
	rec := g.record(SourceC2Feed, "")
	rec.Analysis.IOCs = []model.IOC{{
		Type:    model.IOCTypeIP,
		Value:   g.faker.IPv4Address(),
		Malware: g.faker.RandomString(malware),
		Role:    "c2",
	}}
	return rec
}

// Market returns a crimeware market post, parsed into a listing lead.
func (g *Generator) Market() model.Record {
	seller := g.faker.RandomString(sellers)
	text := fmt.Sprintf(g.faker.RandomString(listings), g.faker.Company(), g.faker.Number(50, 5000))
	rec := g.record(seller, text)
	rec.Analysis.Gangs = []string{seller}

	if listing, ok := classifier.ParseListing(g.listings, text); ok {
		rec.Analysis.Leads = []model.Lead{{
			Type:     model.LeadTypeMarketListing,
			Value:    listing.Product,
			Category: listing.Category,
			Price:    "Unknown",
		}}
	}
	return rec
}

// Lead returns a target discovery lead.
func (g *Generator) Lead() model.Record {
	rec := g.record("dark_web_crawler", "")
	lead := model.Lead{Type: g.faker.RandomString(leadTypes)}
	switch lead.Type {
	case "telegram_handle":
		lead.Username = "@" + g.faker.Username()
	case "admin_panel":
		lead.Title = g.faker.Company() + " admin"
		lead.Value = g.faker.URL()
	default:
		lead.Value = strings.ToLower(g.faker.LetterN(16)) + ".onion"
	}
	rec.Analysis.Leads = []model.Lead{lead}
	return rec
}

// Health returns a collector reachability check.
func (g *Generator) Health() model.Record {
	rec := g.record(SourceMonitor, "")
	status := model.InfrastructureStatus{Target: g.faker.URL(), Status: "UP"}
	if g.faker.Number(0, 3) == 0 {
		status.Status = "DOWN"
		status.Error = "timeout"
	}
	rec.Analysis.InfrastructureStatus = &status
	return rec
}

// Security returns a host security event.
func (g *Generator) Security() model.Record {
	rec := g.record(SourceHost, "")
	eventType := g.faker.RandomString(secEvents)
	rec.Analysis.SecurityEvent = &model.SecurityEvent{
		Type:    eventType,
		Message: fmt.Sprintf("%s detected from %d sources", eventType, g.faker.Number(1, 40)),
		IP:      g.faker.IPv4Address(),
	}
	return rec
}

// News returns a strategic news-feed headline.
func (g *Generator) News() model.Record {
	rec := g.record(SourceNews, g.faker.HackerPhrase())
	rec.MessageID = model.MessageID(g.faker.URL())
	return rec
}

func (g *Generator) record(source, text string) model.Record {
	id := g.nextID
	g.nextID++
	return model.Record{
		Timestamp: model.Timestamp{Time: g.now()},
		Source:    source,
		MessageID: model.MessageID(fmt.Sprint(id)),
		RawText:   text,
	}
}

// WriteBatch writes batch into dir as <prefix>_<id>.json. The file is
// written under a temporary name and renamed so a watching engine never
// sees a partial batch.
func WriteBatch(dir, prefix string, batch model.Batch) (string, error) {
	if prefix == "" {
		prefix = "simulation"
	}
	data, err := json.MarshalIndent(batch, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshal batch: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s_%s.json", prefix, uuid.NewString()[:8])
	tmp := filepath.Join(dir, "._"+name)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write batch: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("publish batch: %w", err)
	}
	return path, nil
}
