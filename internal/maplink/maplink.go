// Package maplink builds "open in maps" URLs for a delivery location. It
// never touches the network.
package maplink

import (
	"fmt"
	"net/url"
	"strconv"
)

type Provider string

const (
	Google        Provider = "google"
	OpenStreetMap Provider = "osm"
	Apple         Provider = "apple"
	Waze          Provider = "waze"
)

// Providers in the order Links returns them.
var Providers = []Provider{Google, OpenStreetMap, Apple, Waze}

type Link struct {
	Provider Provider `json:"provider"`
	Label    string   `json:"label"`
	URL      string   `json:"url"`
}

func (p Provider) Label() string {
	switch p {
	case Google:
		return "Google Maps"
	case OpenStreetMap:
		return "OpenStreetMap"
	case Apple:
		return "Apple Maps"
	case Waze:
		return "Waze"
	}
	return string(p)
}

// For returns the URL that opens (lat, lon) in provider.
func For(provider Provider, lat, lon float64) (string, error) {
	ll := coord(lat) + "," + coord(lon)
	switch provider {
	case Google:
		return "https://www.google.com/maps/search/?" + url.Values{"api": {"1"}, "query": {ll}}.Encode(), nil
	case OpenStreetMap:
		q := url.Values{"mlat": {coord(lat)}, "mlon": {coord(lon)}}.Encode()
		return fmt.Sprintf("https://www.openstreetmap.org/?%s#map=17/%s/%s", q, coord(lat), coord(lon)), nil
	case Apple:
		return "https://maps.apple.com/?" + url.Values{"ll": {ll}, "q": {ll}}.Encode(), nil
	case Waze:
		return "https://waze.com/ul?" + url.Values{"ll": {ll}, "navigate": {"yes"}}.Encode(), nil
	}
	return "", fmt.Errorf("unknown map provider %q", provider)
}

// Links returns a link for every provider.
func Links(lat, lon float64) []Link {
	links := make([]Link, 0, len(Providers))
	for _, p := range Providers {
		u, _ := For(p, lat, lon)
		links = append(links, Link{Provider: p, Label: p.Label(), URL: u})
	}
	return links
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
