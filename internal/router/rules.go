package router

import (
	"context"
	"strings"

	"github.com/telhawk-systems/telhawk-intel/internal/classifier"
	"github.com/telhawk-systems/telhawk-intel/internal/enrich"
	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

// Source markers.
const (
	StrategicSourcePrefix = "RSS_"
	C2FeedSource          = "C2_INTEL_FEED"
)

// Defaults written when a record lacks the value.
const (
	noneTag            = "None"
	unknownTag         = "Unknown"
	unknownCountry     = "XX"
	defaultC2Malware   = "Unknown_C2"
	defaultC2Address   = "unknown"
	defaultCategory    = "General"
	defaultListing     = "Unknown Product"
	defaultLeadType    = "unknown"
	defaultTarget      = "unknown"
	defaultSourceIP    = "N/A"
	severityHigh       = "HIGH"
	statusUp           = "UP"
	garbageMinLength   = 3
	garbageSearchToken = "DuckDuckGo"
)

// StrategicRule handles news-feed records: one attack_intel point, nothing
// else.
type StrategicRule struct{}

func (StrategicRule) Name() string   { return "strategic" }
func (StrategicRule) Terminal() bool { return true }

func (StrategicRule) Matches(env *Envelope) bool {
	return strings.HasPrefix(env.Record.Source, StrategicSourcePrefix)
}

func (StrategicRule) Build(_ context.Context, env *Envelope) []*model.Point {
	rec := env.Record
	p := model.NewPoint(model.MeasurementAttackIntel, rec.Timestamp.Time).
		AddTag("source_channel", rec.Source).
		AddTag("gang", env.Gang).
		AddField("raw_text", rec.RawText).
		AddField("url", string(rec.MessageID)).
		AddField("victim_count", 0)
	return []*model.Point{p}
}

// C2Rule handles the command-and-control indicator feed: one
// infrastructure_c2 point per IOC.
type C2Rule struct {
	Enricher enrich.Enricher
}

func (C2Rule) Name() string   { return "infrastructure" }
func (C2Rule) Terminal() bool { return true }

func (C2Rule) Matches(env *Envelope) bool {
	return env.Record.Source == C2FeedSource
}

func (r C2Rule) Build(ctx context.Context, env *Envelope) []*model.Point {
	rec := env.Record
	points := make([]*model.Point, 0, len(rec.Analysis.IOCs))
	for _, ioc := range rec.Analysis.IOCs {
		addr := orDefault(ioc.Value, defaultC2Address)

		own := model.Ownership{ASN: unknownTag, Org: unknownTag, Country: unknownCountry}
		if ioc.IsIP() && r.Enricher != nil {
			own = r.Enricher.ResolveOwnership(ctx, addr).Ownership
		}

		p := model.NewPoint(model.MeasurementInfrastructureC2, rec.Timestamp.Time).
			AddTag("ip", addr).
			AddTag("malware", orDefault(ioc.Malware, defaultC2Malware)).
			AddTag("geo_country", own.Country).
			AddTag("asn", own.ASN).
			AddTag("hosting_provider", own.Org).
			AddField("count", 1)
		points = append(points, p)
	}
	return points
}

// TacticalRule handles victim/indicator records from chat channels and leak
// sites: one enriched attack_intel point.
type TacticalRule struct {
	Enricher   enrich.Enricher
	Classifier *classifier.Classifier
	HomeBases  HomeBases
}

func (TacticalRule) Name() string   { return "tactical" }
func (TacticalRule) Terminal() bool { return false }

func (TacticalRule) Matches(env *Envelope) bool {
	return env.Record.Analysis.HasTacticalContent()
}

func (r TacticalRule) Build(ctx context.Context, env *Envelope) []*model.Point {
	rec := env.Record
	analysis := rec.Analysis

	own := model.Ownership{ASN: noneTag, Org: noneTag, Country: noneTag}
	if ioc, ok := analysis.FirstIP(); ok && r.Enricher != nil {
		own = r.Enricher.ResolveOwnership(ctx, ioc.Value).Ownership
	}

	var (
		sector, orgType string
		victimLoc       model.Location
	)
	switch {
	case len(analysis.Victims) == 0:
		// No victim is classified as the placeholder name; there is nothing
		// to geocode.
		sector = r.Classifier.ClassifySector(unknownTag)
		orgType = r.Classifier.ClassifyOrgType(sector)
	case IsGarbageVictim(analysis.Victims[0]):
		sector, orgType = classifier.SectorOther, classifier.OrgTypeUnknown
	default:
		name := enrich.NormalizeName(analysis.Victims[0])
		sector = r.Classifier.ClassifySector(name)
		orgType = r.Classifier.ClassifyOrgType(sector)
		if r.Enricher != nil {
			victimLoc = r.Enricher.ResolveLocation(ctx, name).Location
		}
	}

	p := model.NewPoint(model.MeasurementAttackIntel, rec.Timestamp.Time).
		AddTag("source_channel", rec.Source).
		AddTag("gang", env.Gang).
		AddTag("language_barrier", titleBool(len(analysis.TranslationFailures) > 0)).
		AddTag("hosting_provider", own.Org).
		AddTag("geo_country", own.Country).
		AddTag("asn", own.ASN).
		AddTag("victim_sector", sector).
		AddTag("org_type", orgType).
		AddField("raw_text", rec.RawText).
		AddField("victim_count", len(analysis.Victims))

	if len(analysis.Victims) > 0 {
		p.AddField("victims", strings.Join(analysis.Victims, ", "))
	}
	if victimLoc.Found {
		base := r.HomeBases.Lookup(env.Gang)
		p.AddField("src_lat", base.Lat).
			AddField("src_lon", base.Lon).
			AddField("dst_lat", victimLoc.Lat).
			AddField("dst_lon", victimLoc.Lon)
	}
	return []*model.Point{p}
}

// IsGarbageVictim reports whether a scraped victim name is noise: shorter
// than three characters, an HTML entity fragment, or a search-engine
// artefact. Both the raw and the decoded form are checked.
func IsGarbageVictim(name string) bool {
	for _, n := range []string{name, enrich.NormalizeName(name)} {
		if len([]rune(n)) < garbageMinLength ||
			strings.HasPrefix(n, "&") ||
			strings.Contains(n, garbageSearchToken) {
			return true
		}
	}
	return false
}

// LeadsRule emits one point per lead: crimeware_market for market listings,
// target_discovery otherwise.
type LeadsRule struct{}

func (LeadsRule) Name() string   { return "leads" }
func (LeadsRule) Terminal() bool { return false }

func (LeadsRule) Matches(env *Envelope) bool {
	return len(env.Record.Analysis.Leads) > 0
}

func (LeadsRule) Build(_ context.Context, env *Envelope) []*model.Point {
	rec := env.Record
	points := make([]*model.Point, 0, len(rec.Analysis.Leads))
	for _, lead := range rec.Analysis.Leads {
		if lead.Type == model.LeadTypeMarketListing {
			points = append(points, model.NewPoint(model.MeasurementCrimewareMarket, rec.Timestamp.Time).
				AddTag("category", orDefault(lead.Category, defaultCategory)).
				AddTag("seller", env.Gang).
				AddField("listing", orDefault(lead.Value, defaultListing)))
			continue
		}

		target, ok := lead.Target()
		if !ok {
			target = defaultTarget
		}
		points = append(points, model.NewPoint(model.MeasurementTargetDiscovery, rec.Timestamp.Time).
			AddTag("discovery_source", rec.Source).
			AddTag("lead_type", orDefault(lead.Type, defaultLeadType)).
			AddField("discovered_target", target))
	}
	return points
}

// HealthRule reports a collector's reachability check.
type HealthRule struct{}

func (HealthRule) Name() string   { return "health" }
func (HealthRule) Terminal() bool { return false }

func (HealthRule) Matches(env *Envelope) bool {
	return env.Record.Analysis.InfrastructureStatus != nil
}

func (HealthRule) Build(_ context.Context, env *Envelope) []*model.Point {
	rec := env.Record
	status := rec.Analysis.InfrastructureStatus

	code := 0
	if status.Status == statusUp {
		code = 1
	}
	p := model.NewPoint(model.MeasurementInfrastructureHealth, rec.Timestamp.Time).
		AddTag("target_url", status.Target).
		AddTag("status_text", status.Status).
		AddField("status_code", code).
		AddField("error_msg", status.Error)
	return []*model.Point{p}
}

// SecurityRule reports a host security event raised by a collector.
type SecurityRule struct{}

func (SecurityRule) Name() string   { return "security" }
func (SecurityRule) Terminal() bool { return false }

func (SecurityRule) Matches(env *Envelope) bool {
	return env.Record.Analysis.SecurityEvent != nil
}

func (SecurityRule) Build(_ context.Context, env *Envelope) []*model.Point {
	rec := env.Record
	event := rec.Analysis.SecurityEvent
	p := model.NewPoint(model.MeasurementHostSecurity, rec.Timestamp.Time).
		AddTag("event_type", event.Type).
		AddTag("severity", severityHigh).
		AddField("message", event.Message).
		AddField("source_ip", orDefault(event.IP, defaultSourceIP))
	return []*model.Point{p}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// titleBool renders a boolean the way existing dashboards filter on it.
func titleBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
