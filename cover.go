package runtime

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UnknownDomain is returned by Domain-like accessors when no domain is set.
const UnknownDomain = "unknown"

// DefaultEdition names the main timeline.
const DefaultEdition = "main"

// DomainDivergence marks the sequence in a domain's own history at which an
// Edition's alternate timeline diverged from the main one.
type DomainDivergence struct {
	Domain   string
	Sequence uint64
}

// Edition names an optional alternate timeline, together with the points at
// which it diverges per-domain from the main timeline. The runtime treats
// Edition as opaque routing metadata; it never inspects divergences itself.
type Edition struct {
	Name        string
	Divergences []DomainDivergence
}

// IsMainTimeline reports whether e represents the default, undiverged
// timeline.
func (e *Edition) IsMainTimeline() bool {
	return e == nil || e.Name == "" || e.Name == DefaultEdition
}

// DivergenceFor returns the divergence sequence recorded for domain, and
// whether one was found.
func (e *Edition) DivergenceFor(domain string) (uint64, bool) {
	if e == nil {
		return 0, false
	}
	for _, d := range e.Divergences {
		if d.Domain == domain {
			return d.Sequence, true
		}
	}
	return 0, false
}

// Cover is the routing and identity header that travels with every book:
// domain, root identity, correlation id for cross-domain workflows, and an
// optional named Edition.
type Cover struct {
	Domain        string
	Root          *uuid.UUID
	CorrelationID string
	Edition       *Edition
}

// NewCover builds a Cover for a fresh root in domain.
func NewCover(domain string, root uuid.UUID, correlationID string) *Cover {
	return &Cover{Domain: domain, Root: &root, CorrelationID: correlationID}
}

// DomainOrUnknown returns c.Domain, or UnknownDomain if c is nil or has no
// domain set.
func (c *Cover) DomainOrUnknown() string {
	if c == nil || c.Domain == "" {
		return UnknownDomain
	}
	return c.Domain
}

// HasCorrelationID reports whether c carries a non-empty correlation id.
func (c *Cover) HasCorrelationID() bool {
	return c != nil && c.CorrelationID != ""
}

// RootIDHex returns the root identity as a hex string, or "" if absent.
func (c *Cover) RootIDHex() string {
	if c == nil || c.Root == nil {
		return ""
	}
	return hex.EncodeToString(c.Root[:])
}

// EditionName returns the edition name, defaulting to DefaultEdition.
func (c *Cover) EditionName() string {
	if c == nil || c.Edition == nil || c.Edition.Name == "" {
		return DefaultEdition
	}
	return c.Edition.Name
}

// RoutingKey computes the coordinator's bus routing key for c: its domain.
func (c *Cover) RoutingKey() string {
	return c.DomainOrUnknown()
}

// CacheKey generates a cache key from domain and root identity.
func (c *Cover) CacheKey() string {
	return fmt.Sprintf("%s:%s", c.DomainOrUnknown(), c.RootIDHex())
}

// withCorrelationFrom returns a copy of the cover for a new domain, carrying
// forward the correlation id and root from source — used when the Saga
// Engine addresses a command to its output domain.
func withCorrelationFrom(source *Cover, destDomain string) *Cover {
	dest := &Cover{Domain: destDomain}
	if source != nil {
		dest.CorrelationID = source.CorrelationID
		dest.Root = source.Root
	}
	return dest
}

// now is the single seam for "current time" used when minting Event Pages;
// kept as a variable so tests can pin it.
var now = time.Now
