// Package identity derives deterministic aggregate root identities so that
// independent processes can agree on a root UUID for the same business key
// without coordinating through a shared sequence or database round-trip.
package identity

import "github.com/google/uuid"

// ComputeRoot derives a deterministic root UUID from a service name, a
// domain, and a business key: UUID v5 over
// serviceName+domain+businessKey in the OID namespace. The same triple
// always yields the same root, which lets the coordinator address a
// not-yet-created aggregate before any event has been persisted for it.
func ComputeRoot(serviceName, domain, businessKey string) uuid.UUID {
	seed := serviceName + domain + businessKey
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))
}
