package model

import (
	"encoding/json"
)

// IOC types recognised by the router.
const (
	IOCTypeIP = "ip"
)

// LeadTypeMarketListing marks a lead scraped from a crimeware market.
const LeadTypeMarketListing = "market_listing"

// Analysis is the collector's extraction result. Every sub-structure is
// optional; the zero value means "nothing extracted".
//
// Decoding is lenient: a field with an unexpected JSON type is treated as
// absent instead of failing the record.
type Analysis struct {
	Victims              []string              `json:"victims,omitempty"`
	Gangs                []string              `json:"gangs,omitempty"`
	IOCs                 []IOC                 `json:"iocs,omitempty"`
	TranslationFailures  []json.RawMessage     `json:"translation_failures,omitempty"`
	Leads                []Lead                `json:"leads,omitempty"`
	InfrastructureStatus *InfrastructureStatus `json:"infrastructure_status,omitempty"`
	SecurityEvent        *SecurityEvent        `json:"security_event,omitempty"`
}

// IOC is an indicator of compromise. An empty Type means the collector did
// not specify one.
type IOC struct {
	Type    string `json:"type,omitempty"`
	Value   string `json:"value,omitempty"`
	Malware string `json:"malware,omitempty"`
	Role    string `json:"role,omitempty"`
}

// IsIP reports whether the indicator is an address, treating an unspecified
// type as an address.
func (i IOC) IsIP() bool {
	return i.Type == "" || i.Type == IOCTypeIP
}

// Lead is a discovery lead or market listing.
type Lead struct {
	Type     string `json:"type,omitempty"`
	Value    string `json:"value,omitempty"`
	Username string `json:"username,omitempty"`
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"`
	Price    string `json:"price,omitempty"`
}

// Target returns the first non-empty of username, title and value.
func (l Lead) Target() (string, bool) {
	for _, v := range []string{l.Username, l.Title, l.Value} {
		if v != "" {
			return v, true
		}
	}
	return "", false
}

// InfrastructureStatus is a collector's self-reported reachability check.
type InfrastructureStatus struct {
	Target string `json:"target"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// SecurityEvent is a host security event raised by a collector.
type SecurityEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	IP      string `json:"ip,omitempty"`
}

// GangName returns the first claimed gang or "Unknown".
func (a Analysis) GangName() string {
	if len(a.Gangs) > 0 {
		return a.Gangs[0]
	}
	return "Unknown"
}

// HasTacticalContent reports whether victims, IOCs or translation failures
// were extracted.
func (a Analysis) HasTacticalContent() bool {
	return len(a.Victims) > 0 || len(a.IOCs) > 0 || len(a.TranslationFailures) > 0
}

// FirstIP returns the first IOC explicitly typed as an address.
func (a Analysis) FirstIP() (IOC, bool) {
	for _, ioc := range a.IOCs {
		if ioc.Type == IOCTypeIP {
			return ioc, true
		}
	}
	return IOC{}, false
}

func (a *Analysis) UnmarshalJSON(data []byte) error {
	*a = Analysis{}
	obj, ok := decodeObject(data)
	if !ok {
		return nil
	}

	if raw, ok := obj["victims"]; ok {
		a.Victims = decodeStrings(raw)
	}
	if raw, ok := obj["gangs"]; ok {
		a.Gangs = decodeStrings(raw)
	}
	if raw, ok := obj["translation_failures"]; ok {
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) == nil {
			a.TranslationFailures = items
		}
	}
	if raw, ok := obj["iocs"]; ok {
		a.IOCs = decodeIOCs(raw)
	}
	if raw, ok := obj["leads"]; ok {
		a.Leads = decodeLeads(raw)
	}
	if raw, ok := obj["infrastructure_status"]; ok {
		if o, ok := decodeObject(raw); ok && len(o) > 0 {
			status := &InfrastructureStatus{}
			status.Target, _ = stringField(o, "target")
			status.Status, _ = stringField(o, "status")
			status.Error, _ = stringField(o, "error")
			a.InfrastructureStatus = status
		}
	}
	if raw, ok := obj["security_event"]; ok {
		if o, ok := decodeObject(raw); ok && len(o) > 0 {
			event := &SecurityEvent{}
			event.Type, _ = stringField(o, "type")
			event.Message, _ = stringField(o, "message")
			event.IP, _ = stringField(o, "ip")
			a.SecurityEvent = event
		}
	}
	return nil
}

func decodeIOCs(raw json.RawMessage) []IOC {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]IOC, 0, len(items))
	for _, item := range items {
		o, ok := decodeObject(item)
		if !ok {
			continue
		}
		var ioc IOC
		ioc.Type, _ = stringField(o, "type")
		ioc.Value, _ = stringField(o, "value")
		ioc.Malware, _ = stringField(o, "malware")
		ioc.Role, _ = stringField(o, "role")
		out = append(out, ioc)
	}
	return out
}

func decodeLeads(raw json.RawMessage) []Lead {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]Lead, 0, len(items))
	for _, item := range items {
		o, ok := decodeObject(item)
		if !ok {
			continue
		}
		var lead Lead
		lead.Type, _ = stringField(o, "type")
		lead.Value, _ = stringField(o, "value")
		lead.Username, _ = stringField(o, "username")
		lead.Title, _ = stringField(o, "title")
		lead.Category, _ = stringField(o, "category")
		lead.Price, _ = stringField(o, "price")
		out = append(out, lead)
	}
	return out
}
