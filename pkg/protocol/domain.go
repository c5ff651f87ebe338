package protocol

import "github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/universalmessage"

// Domain selects which vehicle subsystem a command or session targets. It is
// a thin, CLI/façade-facing enum distinct from the wire-level
// universalmessage.Domain_E: DomainNone has no wire representation and means
// "this command doesn't need a domain-scoped session at all" (e.g. the
// add-key request, which is unauthenticated).
type Domain int

const (
	DomainNone Domain = iota
	DomainVCSEC
	DomainInfotainment
)

func (d Domain) String() string {
	switch d {
	case DomainVCSEC:
		return "vehicle_security"
	case DomainInfotainment:
		return "infotainment"
	default:
		return "none"
	}
}

// WireDomain returns the universalmessage.Domain_E value a RoutableMessage
// addressed to d should carry. DomainNone maps to DOMAIN_BROADCAST, the
// vehicle's "no particular subsystem" value.
func (d Domain) WireDomain() universalmessage.Domain_E {
	switch d {
	case DomainVCSEC:
		return universalmessage.DOMAIN_VEHICLE_SECURITY
	case DomainInfotainment:
		return universalmessage.DOMAIN_INFOTAINMENT
	default:
		return universalmessage.DOMAIN_BROADCAST
	}
}
