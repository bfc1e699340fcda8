package model

import "strings"

// Destination is the storage target assigned to a question topic.
type Destination string

const (
	DestinationUsers     Destination = "users"
	DestinationProfile   Destination = "user_profile"
	DestinationLifeEvent Destination = "life_event"
	DestinationSkip      Destination = "skip"
)

// destinations maps each known question topic to its storage destination.
// The lookup is total: any topic not listed here routes to skip.
var destinations = map[string]Destination{
	"identity":   DestinationUsers,
	"origins":    DestinationUsers,
	"family":     DestinationLifeEvent,
	"education":  DestinationLifeEvent,
	"career":     DestinationLifeEvent,
	"influences": DestinationProfile,
	"values":     DestinationProfile,
}

// DestinationFor returns the storage destination for a question topic.
// Matching is case-insensitive; unknown or empty topics route to skip.
func DestinationFor(topic string) Destination {
	d, ok := destinations[strings.ToLower(strings.TrimSpace(topic))]
	if !ok {
		return DestinationSkip
	}
	return d
}
