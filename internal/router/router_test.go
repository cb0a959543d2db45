package router

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-intel/common/logging"
	"github.com/telhawk-systems/telhawk-intel/internal/classifier"
	"github.com/telhawk-systems/telhawk-intel/internal/enrich"
	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

type fakeEnricher struct {
	mu         sync.Mutex
	owners     map[string]model.Ownership
	places     map[string]model.Location
	ownerCalls []string
	placeCalls []string
}

func newFakeEnricher() *fakeEnricher {
	return &fakeEnricher{
		owners: map[string]model.Ownership{},
		places: map[string]model.Location{},
	}
}

func (f *fakeEnricher) ResolveOwnership(_ context.Context, addr string) enrich.OwnershipResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ownerCalls = append(f.ownerCalls, addr)
	if own, ok := f.owners[addr]; ok {
		return enrich.OwnershipResult{Ownership: own, Outcome: enrich.OutcomeResolved}
	}
	return enrich.OwnershipResult{Ownership: enrich.FailedOwnership, Outcome: enrich.OutcomeFailed}
}

func (f *fakeEnricher) ResolveLocation(_ context.Context, name string) enrich.LocationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placeCalls = append(f.placeCalls, name)
	if loc, ok := f.places[name]; ok {
		return enrich.LocationResult{Location: loc, Outcome: enrich.OutcomeResolved}
	}
	return enrich.LocationResult{Location: enrich.UnknownLocation, Outcome: enrich.OutcomeNotFound}
}

func decodeRecord(t *testing.T, raw string) *model.Record {
	t.Helper()
	var rec model.Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return &rec
}

func newTestRouter(e enrich.Enricher) *Router {
	return New(e, classifier.Default(), DefaultHomeBases(), logging.Discard())
}

func tag(t *testing.T, p *model.Point, key string) string {
	t.Helper()
	v, ok := p.Tag(key)
	require.True(t, ok, "missing tag %q", key)
	return v
}

func field(t *testing.T, p *model.Point, key string) any {
	t.Helper()
	v, ok := p.Field(key)
	require.True(t, ok, "missing field %q", key)
	return v
}

func TestRoute_GangName(t *testing.T) {
	r := newTestRouter(newFakeEnricher())

	points := r.Route(context.Background(), decodeRecord(t, `{"source":"RSS_Feed","analysis":{"gangs":["Qilin","Play"]}}`))
	require.Len(t, points, 1)
	assert.Equal(t, "Qilin", tag(t, points[0], "gang"))

	points = r.Route(context.Background(), decodeRecord(t, `{"source":"RSS_Feed","analysis":{"gangs":[]}}`))
	require.Len(t, points, 1)
	assert.Equal(t, "Unknown", tag(t, points[0], "gang"))
}

func TestRoute_StrategicIsExclusive(t *testing.T) {
	e := newFakeEnricher()
	r := newTestRouter(e)

	rec := decodeRecord(t, `{
		"timestamp": "2024-05-01T12:00:00",
		"source": "RSS_Example",
		"message_id": "https://news.example/item/1",
		"raw_text": "LockBit claims attack",
		"analysis": {
			"victims": ["Acme Bank"],
			"iocs": [{"type":"ip","value":"203.0.113.5"}],
			"leads": [{"type":"onion","value":"abc.onion"}],
			"infrastructure_status": {"target":"x","status":"UP","error":""},
			"security_event": {"type":"t","message":"m"}
		}
	}`)

	points := r.Route(context.Background(), rec)
	require.Len(t, points, 1)

	p := points[0]
	assert.Equal(t, model.MeasurementAttackIntel, p.Measurement)
	assert.Equal(t, "RSS_Example", tag(t, p, "source_channel"))
	assert.Equal(t, int64(0), field(t, p, "victim_count"))
	assert.Equal(t, "https://news.example/item/1", field(t, p, "url"))
	assert.Equal(t, "LockBit claims attack", field(t, p, "raw_text"))
	assert.Equal(t, 2024, p.Time.Year())
	assert.Empty(t, e.ownerCalls)
	assert.Empty(t, e.placeCalls)
}

func TestRoute_C2Scenario(t *testing.T) {
	e := newFakeEnricher()
	e.owners["203.0.113.5"] = model.Ownership{ASN: "64500", Org: "Bulletproof Hosting", Country: "NL"}
	r := newTestRouter(e)

	rec := decodeRecord(t, `{"source":"C2_INTEL_FEED","analysis":{"iocs":[{"type":"ip","value":"203.0.113.5","malware":"Cobalt"}]}}`)
	points := r.Route(context.Background(), rec)
	require.Len(t, points, 1)

	p := points[0]
	assert.Equal(t, model.MeasurementInfrastructureC2, p.Measurement)
	assert.Equal(t, "203.0.113.5", tag(t, p, "ip"))
	assert.Equal(t, "Cobalt", tag(t, p, "malware"))
	assert.Equal(t, "NL", tag(t, p, "geo_country"))
	assert.Equal(t, "64500", tag(t, p, "asn"))
	assert.Equal(t, "Bulletproof Hosting", tag(t, p, "hosting_provider"))
	assert.Equal(t, int64(1), field(t, p, "count"))
}

func TestRoute_C2Defaults(t *testing.T) {
	e := newFakeEnricher()
	r := newTestRouter(e)

	rec := decodeRecord(t, `{"source":"C2_INTEL_FEED","analysis":{
		"iocs":[{"type":"domain","value":"evil.example"},{"value":"198.51.100.1"}],
		"leads":[{"type":"onion","value":"x.onion"}]
	}}`)
	points := r.Route(context.Background(), rec)
	require.Len(t, points, 2, "terminal rule suppresses leads")

	domain := points[0]
	assert.Equal(t, "evil.example", tag(t, domain, "ip"))
	assert.Equal(t, "Unknown_C2", tag(t, domain, "malware"))
	assert.Equal(t, "Unknown", tag(t, domain, "asn"))
	assert.Equal(t, "Unknown", tag(t, domain, "hosting_provider"))
	assert.Equal(t, "XX", tag(t, domain, "geo_country"))

	untyped := points[1]
	assert.Equal(t, "Lookup_Failed", tag(t, untyped, "asn"))
	assert.Equal(t, []string{"198.51.100.1"}, e.ownerCalls, "only ip/unspecified IOCs are enriched")
}

func TestRoute_TacticalEnriched(t *testing.T) {
	e := newFakeEnricher()
	e.owners["203.0.113.5"] = model.Ownership{ASN: "64500", Org: "Example Hosting", Country: "DE"}
	e.places["Springfield University"] = model.Location{Lat: 40.1, Lon: -89.6, Country: "USA", Found: true}
	r := newTestRouter(e)

	rec := decodeRecord(t, `{
		"source": "lockbit_blog",
		"raw_text": "new victims",
		"analysis": {
			"victims": ["Springfield%20University", "Acme"],
			"gangs": ["LockBit3"],
			"iocs": [{"type":"domain","value":"x.example"},{"type":"ip","value":"203.0.113.5"}],
			"translation_failures": ["ru"]
		}
	}`)
	points := r.Route(context.Background(), rec)
	require.Len(t, points, 1)

	p := points[0]
	assert.Equal(t, model.MeasurementAttackIntel, p.Measurement)
	wantTags := []model.Tag{
		{Key: "source_channel", Value: "lockbit_blog"},
		{Key: "gang", Value: "LockBit3"},
		{Key: "language_barrier", Value: "True"},
		{Key: "hosting_provider", Value: "Example Hosting"},
		{Key: "geo_country", Value: "DE"},
		{Key: "asn", Value: "64500"},
		{Key: "victim_sector", Value: "Education"},
		{Key: "org_type", Value: "Public Sector"},
	}
	assert.Equal(t, wantTags, p.Tags)

	assert.Equal(t, int64(2), field(t, p, "victim_count"))
	assert.Equal(t, "Springfield%20University, Acme", field(t, p, "victims"))
	assert.Equal(t, 55.7558, field(t, p, "src_lat"))
	assert.Equal(t, 37.6173, field(t, p, "src_lon"))
	assert.Equal(t, 40.1, field(t, p, "dst_lat"))
	assert.Equal(t, -89.6, field(t, p, "dst_lon"))
	assert.Equal(t, []string{"Springfield University"}, e.placeCalls)
}

func TestRoute_TacticalNoIPUsesNone(t *testing.T) {
	e := newFakeEnricher()
	r := newTestRouter(e)

	rec := decodeRecord(t, `{"source":"tg","analysis":{"victims":["Ferrari"]}}`)
	points := r.Route(context.Background(), rec)
	require.Len(t, points, 1)

	p := points[0]
	assert.Equal(t, "None", tag(t, p, "asn"))
	assert.Equal(t, "None", tag(t, p, "hosting_provider"))
	assert.Equal(t, "None", tag(t, p, "geo_country"))
	assert.Equal(t, "False", tag(t, p, "language_barrier"))
	assert.Equal(t, "Other", tag(t, p, "victim_sector"))
	assert.Equal(t, "Private Sector", tag(t, p, "org_type"))

	_, hasCoords := p.Field("src_lat")
	assert.False(t, hasCoords, "coordinates only when location found")
	assert.Empty(t, e.ownerCalls)
}

func TestRoute_GarbageVictim(t *testing.T) {
	e := newFakeEnricher()
	e.places["&"] = model.Location{Lat: 1, Lon: 1, Found: true}
	r := newTestRouter(e)

	rec := decodeRecord(t, `{"source":"tg","analysis":{"victims":["&amp;"]}}`)
	points := r.Route(context.Background(), rec)
	require.Len(t, points, 1)

	p := points[0]
	assert.Equal(t, "Other", tag(t, p, "victim_sector"))
	assert.Equal(t, "Unknown", tag(t, p, "org_type"))
	for _, k := range []string{"src_lat", "src_lon", "dst_lat", "dst_lon"} {
		_, ok := p.Field(k)
		assert.False(t, ok, k)
	}
	assert.Empty(t, e.placeCalls)
	assert.Equal(t, "&amp;", field(t, p, "victims"))
}

func TestRoute_TacticalTranslationFailuresOnly(t *testing.T) {
	e := newFakeEnricher()
	r := newTestRouter(e)

	points := r.Route(context.Background(), decodeRecord(t, `{"source":"tg","analysis":{"translation_failures":[{"lang":"fa"}]}}`))
	require.Len(t, points, 1)

	p := points[0]
	assert.Equal(t, "True", tag(t, p, "language_barrier"))
	assert.Equal(t, int64(0), field(t, p, "victim_count"))
	assert.Equal(t, "Other", tag(t, p, "victim_sector"))
	assert.Equal(t, "Private Sector", tag(t, p, "org_type"))
	_, ok := p.Field("victims")
	assert.False(t, ok)
	assert.Empty(t, e.placeCalls)
}

func TestRoute_TacticalIOCOnly(t *testing.T) {
	e := newFakeEnricher()
	e.owners["203.0.113.9"] = model.Ownership{ASN: "64500", Org: "Example Hosting", Country: "NL"}
	r := newTestRouter(e)

	points := r.Route(context.Background(), decodeRecord(t, `{"source":"tg","analysis":{"iocs":[{"type":"ip","value":"203.0.113.9"}]}}`))
	require.Len(t, points, 1)

	p := points[0]
	assert.Equal(t, "64500", tag(t, p, "asn"))
	assert.Equal(t, "False", tag(t, p, "language_barrier"))
	assert.Equal(t, "Other", tag(t, p, "victim_sector"))
	assert.Equal(t, "Private Sector", tag(t, p, "org_type"))
	assert.Equal(t, int64(0), field(t, p, "victim_count"))
	for _, k := range []string{"victims", "src_lat", "dst_lat"} {
		_, ok := p.Field(k)
		assert.False(t, ok, k)
	}
	assert.Empty(t, e.placeCalls)
}

func TestIsGarbageVictim(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"ab", true},
		{"&amp;", true},
		{"&nbsp;Corp", true},
		{"DuckDuckGo Search", true},
		{"%20a", true},
		{"Ferrari", false},
		{"IBM", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsGarbageVictim(tt.name), tt.name)
	}
}

func TestRoute_MarketScenario(t *testing.T) {
	r := newTestRouter(newFakeEnricher())

	rec := decodeRecord(t, `{"source":"market_chat","analysis":{"leads":[{"type":"market_listing","value":"RDP access","category":"Network_Access"}],"gangs":["KillNet_Market"]}}`)
	points := r.Route(context.Background(), rec)
	require.Len(t, points, 1)

	p := points[0]
	assert.Equal(t, model.MeasurementCrimewareMarket, p.Measurement)
	assert.Equal(t, "KillNet_Market", tag(t, p, "seller"))
	assert.Equal(t, "Network_Access", tag(t, p, "category"))
	assert.Equal(t, "RDP access", field(t, p, "listing"))
}

func TestRoute_LeadsDefaults(t *testing.T) {
	r := newTestRouter(newFakeEnricher())

	rec := decodeRecord(t, `{"source":"onion_crawler","analysis":{"leads":[
		{"type":"market_listing"},
		{"type":"admin_panel","title":"Login","value":"http://x"},
		{"type":"telegram_user","username":"@seller","title":"t"},
		{}
	]}}`)
	points := r.Route(context.Background(), rec)
	require.Len(t, points, 4)

	assert.Equal(t, "General", tag(t, points[0], "category"))
	assert.Equal(t, "Unknown", tag(t, points[0], "seller"))
	assert.Equal(t, "Unknown Product", field(t, points[0], "listing"))

	assert.Equal(t, model.MeasurementTargetDiscovery, points[1].Measurement)
	assert.Equal(t, "onion_crawler", tag(t, points[1], "discovery_source"))
	assert.Equal(t, "admin_panel", tag(t, points[1], "lead_type"))
	assert.Equal(t, "Login", field(t, points[1], "discovered_target"))

	assert.Equal(t, "@seller", field(t, points[2], "discovered_target"))

	assert.Equal(t, "unknown", tag(t, points[3], "lead_type"))
	assert.Equal(t, "unknown", field(t, points[3], "discovered_target"))
}

func TestRoute_HealthScenario(t *testing.T) {
	r := newTestRouter(newFakeEnricher())

	points := r.Route(context.Background(), decodeRecord(t, `{"source":"monitor","analysis":{"infrastructure_status":{"target":"http://x","status":"DOWN","error":"timeout"}}}`))
	require.Len(t, points, 1)

	p := points[0]
	assert.Equal(t, model.MeasurementInfrastructureHealth, p.Measurement)
	assert.Equal(t, "http://x", tag(t, p, "target_url"))
	assert.Equal(t, "DOWN", tag(t, p, "status_text"))
	assert.Equal(t, int64(0), field(t, p, "status_code"))
	assert.Equal(t, "timeout", field(t, p, "error_msg"))

	points = r.Route(context.Background(), decodeRecord(t, `{"analysis":{"infrastructure_status":{"target":"http://x","status":"UP","error":""}}}`))
	require.Len(t, points, 1)
	assert.Equal(t, int64(1), field(t, points[0], "status_code"))
}

func TestRoute_SecurityEvent(t *testing.T) {
	r := newTestRouter(newFakeEnricher())

	points := r.Route(context.Background(), decodeRecord(t, `{"analysis":{"security_event":{"type":"ssh_bruteforce","message":"42 failures"}}}`))
	require.Len(t, points, 1)

	p := points[0]
	assert.Equal(t, model.MeasurementHostSecurity, p.Measurement)
	assert.Equal(t, "ssh_bruteforce", tag(t, p, "event_type"))
	assert.Equal(t, "HIGH", tag(t, p, "severity"))
	assert.Equal(t, "42 failures", field(t, p, "message"))
	assert.Equal(t, "N/A", field(t, p, "source_ip"))
}

func TestRoute_CumulativeBranches(t *testing.T) {
	r := newTestRouter(newFakeEnricher())

	rec := decodeRecord(t, `{"source":"tg","analysis":{
		"victims":["Acme Hospital"],
		"leads":[{"type":"onion","value":"a.onion"},{"type":"market_listing","value":"dump"}],
		"infrastructure_status":{"target":"t","status":"UP","error":""},
		"security_event":{"type":"x","message":"y","ip":"10.0.0.1"}
	}}`)
	points := r.Route(context.Background(), rec)

	var families []model.Measurement
	for _, p := range points {
		families = append(families, p.Measurement)
	}
	assert.Equal(t, []model.Measurement{
		model.MeasurementAttackIntel,
		model.MeasurementTargetDiscovery,
		model.MeasurementCrimewareMarket,
		model.MeasurementInfrastructureHealth,
		model.MeasurementHostSecurity,
	}, families)
	assert.Equal(t, "10.0.0.1", field(t, points[4], "source_ip"))
}

func TestRoute_EmptyRecord(t *testing.T) {
	r := newTestRouter(newFakeEnricher())
	assert.Empty(t, r.Route(context.Background(), decodeRecord(t, `{"analysis":"not an object"}`)))
	assert.Nil(t, r.Route(context.Background(), nil))
}

type stubRule struct {
	name     string
	terminal bool
	match    bool
}

func (s stubRule) Name() string           { return s.name }
func (s stubRule) Terminal() bool         { return s.terminal }
func (s stubRule) Matches(*Envelope) bool { return s.match }

func (s stubRule) Build(context.Context, *Envelope) []*model.Point {
	return []*model.Point{model.NewPoint(model.Measurement(s.name), time.Time{})}
}

func TestNewWithRules_TerminalStopsEvaluation(t *testing.T) {
	r := NewWithRules(logging.Discard(),
		stubRule{name: "a", match: true},
		stubRule{name: "b", match: false, terminal: true},
		stubRule{name: "c", match: true, terminal: true},
		stubRule{name: "d", match: true},
	)

	points := r.Route(context.Background(), &model.Record{})
	require.Len(t, points, 2)
	assert.Equal(t, model.Measurement("a"), points[0].Measurement)
	assert.Equal(t, model.Measurement("c"), points[1].Measurement)
}

func TestDefaultRules_Order(t *testing.T) {
	r := newTestRouter(newFakeEnricher())
	var names []string
	var terminal []bool
	for _, rule := range r.Rules() {
		names = append(names, rule.Name())
		terminal = append(terminal, rule.Terminal())
	}
	assert.Equal(t, []string{"strategic", "infrastructure", "tactical", "leads", "health", "security"}, names)
	assert.Equal(t, []bool{true, true, false, false, false, false}, terminal)
}
