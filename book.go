package runtime

import "time"

// EventPage is one event record: a monotonic sequence number, the time it
// was minted, and its typed payload. A page published to signal a rejected
// command carries Notification instead of Event — see TypeURL and
// IsNotification.
type EventPage struct {
	Sequence     uint64
	CreatedAt    time.Time
	Event        *Envelope
	Notification *Notification
}

// TypeURL returns the discriminator the Projector, Upcaster and
// Process-Manager engines dispatch on: the event's type URL, or a synthetic
// Notification type URL when this page carries a rejection signal instead
// of a domain event.
func (p *EventPage) TypeURL() string {
	if p == nil {
		return ""
	}
	if p.Notification != nil {
		return TypeURLPrefix + "angzarr." + NotificationTypeSuffix
	}
	if p.Event == nil {
		return ""
	}
	return p.Event.TypeUrl
}

// EventBook is the ordered event log for one aggregate root: an optional
// snapshot, ordered pages, the cover of the root they belong to, and the
// next sequence number to assign. NextSequence is a stored field rather
// than a recomputation from len(Pages) so that a book loaded with a
// snapshot (whose pages start mid-stream) still reports the correct next
// value.
type EventBook struct {
	Cover        *Cover
	Snapshot     *Envelope
	Pages        []EventPage
	NextSequence uint64
}

// drain clears the pages carried in from the coordinator, implementing the
// consumed-pages rule: once reconstruction has run, a book returned to the
// coordinator must contain only events produced during the current request.
func (b *EventBook) drain() {
	if b == nil {
		return
	}
	b.Pages = nil
}

// CommandPage is one command record: the sequence the issuer expected
// (for optimistic concurrency, checked by the coordinator, not the runtime)
// and its typed payload. A page that carries a rejection notification
// instead of a domain command sets Notification rather than Command — see
// TypeURL and IsNotification.
type CommandPage struct {
	Sequence     uint64
	Command      *Envelope
	Notification *Notification
}

// TypeURL returns the discriminator the Aggregate and Process-Manager
// engines dispatch on: the Command envelope's type URL, or a synthetic
// Notification type URL when this page carries a control notification
// instead of a domain command.
func (p *CommandPage) TypeURL() string {
	if p == nil {
		return ""
	}
	if p.Notification != nil {
		return TypeURLPrefix + "angzarr." + NotificationTypeSuffix
	}
	if p.Command == nil {
		return ""
	}
	return p.Command.TypeUrl
}

// CommandBook is the ordered set of commands addressed to one aggregate
// root, together with the cover that routes them.
type CommandBook struct {
	Cover *Cover
	Pages []CommandPage
}

// NewCommandBook builds a CommandBook with a single command page.
func NewCommandBook(cover *Cover, command *Envelope) *CommandBook {
	return &CommandBook{Cover: cover, Pages: []CommandPage{{Command: command}}}
}

// IssuerType distinguishes the two component kinds allowed to issue a
// command that can later be rejected and routed back for compensation.
type IssuerType int

const (
	IssuerUnspecified IssuerType = iota
	IssuerSaga
	IssuerProcessManager
)

// RejectionNotification carries everything the Compensation Dispatcher
// needs: who issued the rejected command, why it was rejected, and the
// command and its target aggregate's cover.
type RejectionNotification struct {
	IssuerName          string
	IssuerType          IssuerType
	SourceEventSequence uint64
	RejectionReason     string
	RejectedCommand     *CommandBook
	SourceAggregate     *Cover
}

// Notification is a cross-domain signal. Ordinary notifications carry an
// opaque domain Payload; a notification that signals a rejected command
// instead carries a decoded RejectionNotification and triggers the
// Compensation Dispatcher. Because no compiled proto type exists for
// RejectionNotification in this runtime, it travels as a plain struct
// rather than round-tripping through an Envelope — the coordinator is free
// to wire-encode it however it likes at the transport boundary; the core
// only ever sees the decoded value.
type Notification struct {
	Payload   *Envelope
	rejection *RejectionNotification
}

// NewRejectionNotification builds a Notification carrying a decoded
// RejectionNotification.
func NewRejectionNotification(r *RejectionNotification) *Notification {
	return &Notification{rejection: r}
}

// AsRejection returns the RejectionNotification carried by n, if any.
func (n *Notification) AsRejection() (*RejectionNotification, bool) {
	if n == nil || n.rejection == nil {
		return nil, false
	}
	return n.rejection, true
}

// IsNotification reports whether a type URL's suffix marks its envelope as
// a Notification rather than an ordinary command, per the routing rule the
// Aggregate and Process-Manager engines apply before consulting their
// command dispatch tables.
func IsNotification(typeURL string) bool {
	return TypeURLMatches(typeURL, NotificationTypeSuffix)
}

// NotificationTypeSuffix is the discriminator suffix the Aggregate and
// Process-Manager engines check for to route an incoming envelope to the
// Compensation Dispatcher instead of ordinary command dispatch.
const NotificationTypeSuffix = "Notification"

// BusinessResponse is what an Aggregate Engine's Handle returns: either the
// events produced by a successfully handled command, or a revocation
// directive when handling a rejection notification with no custom
// compensation handler.
type BusinessResponse struct {
	Events     *EventBook
	Revocation *RevocationResponse
}

// RevocationResponse is the framework-delegation directive the Compensation
// Dispatcher returns when no user handler matches a rejection. Its fields
// are advisory; the runtime only ever sets and forwards them, never acts on
// them itself.
type RevocationResponse struct {
	EmitSystemRevocation bool
	SendToDeadLetterQueue bool
	Escalate             bool
	Abort                bool
	Reason               string
}

// RejectionHandlerResponse pairs own-state events to persist with an
// optional notification to propagate upstream. No engine in this package
// returns or consumes it: a Process-Manager rejection handler
// (ProcessManagerRejectionFunc) records its events through
// PMContext.ApplyAndRecord and returns the upstream notification directly.
// "No compensation" is expressed by the handler being absent from the
// Rejection table, never by an empty response.
type RejectionHandlerResponse struct {
	Events       []*Envelope
	Notification *Notification
}

// Projection is the opaque read-model update a Projector Engine returns.
// An empty Projection (Data == nil) signals no page in the book produced a
// result; it may still carry the projector's name and the book's cover.
type Projection struct {
	Cover     *Cover
	Projector string
	Sequence  uint64
	Data      *Envelope
}

// IsEmpty reports whether p is the zero-value "no projection produced"
// sentinel.
func (p *Projection) IsEmpty() bool {
	return p == nil || p.Data == nil
}
