package runtime

import (
	"sort"

	"google.golang.org/protobuf/proto"
)

// ApplierFunc mutates a component's state in response to one decoded
// event. It is the sole mechanism by which Component State evolves.
type ApplierFunc[S any] func(state *S, event proto.Message)

// SnapshotLoader seeds a component's state from an optional snapshot
// envelope before any event pages are applied.
type SnapshotLoader[S any] func(state *S, snapshot *Envelope) error

type applierEntry[S any] struct {
	newMessage func() proto.Message
	apply      ApplierFunc[S]
}

// StateProjector reconstructs Component State from an Event Book by
// invoking event-appliers in ascending sequence order, and then caches that
// state on behalf of the owning engine so later emissions never re-project
// from scratch (the §4.2 performance contract).
type StateProjector[S any] struct {
	factory  func() S
	snapshot SnapshotLoader[S]
	table    *suffixTable[applierEntry[S]]

	state *S
	built bool
}

// NewStateProjector builds a StateProjector whose empty state comes from
// factory.
func NewStateProjector[S any](factory func() S) *StateProjector[S] {
	return &StateProjector[S]{
		factory: factory,
		table:   newSuffixTable[applierEntry[S]]("event applier"),
	}
}

// WithSnapshotLoader registers an optional snapshot loader, run before any
// page is applied.
func (p *StateProjector[S]) WithSnapshotLoader(loader SnapshotLoader[S]) *StateProjector[S] {
	p.snapshot = loader
	return p
}

// On registers an event-applier for events whose type URL ends with suffix.
// Returns a ConfigurationError if suffix is already registered.
func (p *StateProjector[S]) On(suffix string, newMessage func() proto.Message, apply ApplierFunc[S]) error {
	return p.table.put(suffix, applierEntry[S]{newMessage: newMessage, apply: apply})
}

// State returns the cached state, reconstructing from an empty book first
// if Rebuild has not yet run this request.
func (p *StateProjector[S]) State() *S {
	if !p.built {
		p.Rebuild(nil)
	}
	return p.state
}

// Rebuild reconstructs state from prior and caches it on the projector.
// It returns an EventBook the owning engine should treat as the outgoing
// book for this request: same cover and a NextSequence carried forward, but
// with Pages cleared per the consumed-pages rule — prior's pages are never
// echoed back to the coordinator.
func (p *StateProjector[S]) Rebuild(prior *EventBook) *EventBook {
	state := p.factory()
	p.state = &state
	p.built = true

	outgoing := &EventBook{NextSequence: startSequence(prior)}
	if prior == nil {
		return outgoing
	}
	outgoing.Cover = prior.Cover

	if prior.Snapshot != nil && p.snapshot != nil {
		_ = p.snapshot(p.state, prior.Snapshot)
	}

	pages := make([]EventPage, len(prior.Pages))
	copy(pages, prior.Pages)
	sort.Slice(pages, func(i, j int) bool { return pages[i].Sequence < pages[j].Sequence })

	for _, page := range pages {
		p.applyEnvelope(page.Event)
	}
	return outgoing
}

// applyEnvelope decodes event and dispatches it through the applier table,
// contractually ignoring unknown event types so that older replicas
// lacking an applier for a newer event type still correctly project every
// other event.
func (p *StateProjector[S]) applyEnvelope(event *Envelope) {
	if event == nil || p.state == nil {
		return
	}
	entry, ok := p.table.match(event.TypeUrl)
	if !ok {
		return
	}
	msg := entry.newMessage()
	if err := Unpack(event, msg); err != nil {
		return
	}
	entry.apply(p.state, msg)
}

// Apply decodes and applies a single event to the cached state directly,
// without re-running reconstruction — the path emitted events take after
// Rebuild has already run once for this request.
func (p *StateProjector[S]) Apply(event *Envelope) {
	p.applyEnvelope(event)
}
