package model

// Ownership is the network-ownership context of an address.
type Ownership struct {
	ASN     string `json:"asn"`
	Org     string `json:"org"`
	Country string `json:"country"`
}

// Location is a resolved geographic position. Found=false is a valid
// terminal result meaning no provider could place the subject.
type Location struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	Found   bool    `json:"found"`
}

// Coordinate is a bare latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}
