package runtime

import (
	"encoding/json"
	"sort"

	"google.golang.org/protobuf/proto"
)

// CommandHandlerFunc decodes and handles one command against state,
// returning the events it produces. It is pure with respect to events: it
// either returns an error (typically *CommandRejectedError) or a (possibly
// empty) slice of events to emit.
type CommandHandlerFunc[S any] func(state *S, command proto.Message, sequence uint64) ([]proto.Message, error)

// RejectionHandlerFunc handles a rejection notification routed to an
// aggregate by the Compensation Dispatcher, returning compensating events.
type RejectionHandlerFunc[S any] func(state *S, rejection *RejectionNotification) ([]proto.Message, error)

// StatePacker serializes a component's reconstructed state for Replay. The
// specification leaves this format open; the default packer uses
// encoding/json, but any caller may supply its own via WithStatePacker.
type StatePacker[S any] func(state *S) ([]byte, error)

func defaultStatePacker[S any](state *S) ([]byte, error) {
	return json.Marshal(state)
}

type commandEntry[S any] struct {
	newMessage func() proto.Message
	handle     CommandHandlerFunc[S]
}

// ContextualCommand is the input to Aggregate.Handle: the command to
// execute plus the aggregate's prior events, if any.
type ContextualCommand struct {
	Command *CommandBook
	Events  *EventBook
}

// ReplayRequest is the input to Aggregate.Replay: a candidate history to
// reconstruct state from, for the coordinator's conflict detection.
type ReplayRequest struct {
	BaseSnapshot *Envelope
	Events       []EventPage
}

// Aggregate is the Aggregate Engine for one domain: it translates commands
// into events while upholding business rules, reconstructing and caching
// state via an embedded StateProjector.
type Aggregate[S any] struct {
	domain     string
	projector  *StateProjector[S]
	commands   *suffixTable[commandEntry[S]]
	rejections *rejectionTable[RejectionHandlerFunc[S]]
	packer     StatePacker[S]
}

// NewAggregate constructs an Aggregate Engine for domain, whose empty state
// comes from factory. domain is mandatory class-level metadata; an empty
// domain is a ConfigurationError.
func NewAggregate[S any](domain string, factory func() S) (*Aggregate[S], error) {
	if domain == "" {
		return nil, NewConfigurationError("aggregate: domain is required")
	}
	return &Aggregate[S]{
		domain:     domain,
		projector:  NewStateProjector(factory),
		commands:   newSuffixTable[commandEntry[S]]("command"),
		rejections: newRejectionTable[RejectionHandlerFunc[S]](),
		packer:     defaultStatePacker[S],
	}, nil
}

// Domain returns the aggregate's domain.
func (a *Aggregate[S]) Domain() string { return a.domain }

// Handles registers a command handler for commands whose type URL ends with
// suffix.
func (a *Aggregate[S]) Handles(suffix string, newMessage func() proto.Message, handle CommandHandlerFunc[S]) error {
	return a.commands.put(suffix, commandEntry[S]{newMessage: newMessage, handle: handle})
}

// Applies registers an event applier for events whose type URL ends with
// suffix.
func (a *Aggregate[S]) Applies(suffix string, newMessage func() proto.Message, apply ApplierFunc[S]) error {
	return a.projector.On(suffix, newMessage, apply)
}

// Rejected registers a compensation handler invoked when a command this
// aggregate issued indirectly (via a saga or PM acting on its behalf) is
// rejected by domain, for commands whose suffix ends with commandSuffix.
func (a *Aggregate[S]) Rejected(domain, commandSuffix string, handler RejectionHandlerFunc[S]) error {
	return a.rejections.put(domain, commandSuffix, handler)
}

// WithStatePacker overrides the serializer Replay uses.
func (a *Aggregate[S]) WithStatePacker(packer StatePacker[S]) *Aggregate[S] {
	a.packer = packer
	return a
}

// WithSnapshotLoader registers an optional snapshot loader.
func (a *Aggregate[S]) WithSnapshotLoader(loader SnapshotLoader[S]) *Aggregate[S] {
	a.projector.WithSnapshotLoader(loader)
	return a
}

// Handle executes cc.Command against the state reconstructed from
// cc.Events, per §4.3.
func (a *Aggregate[S]) Handle(cc ContextualCommand) (*BusinessResponse, error) {
	outgoing := a.projector.Rebuild(cc.Events)

	if cc.Command == nil || len(cc.Command.Pages) == 0 {
		return nil, errNoCommandPages
	}
	page := cc.Command.Pages[0]
	typeURL := page.TypeURL()
	if typeURL == "" {
		return nil, errNoCommandPages
	}

	if IsNotification(typeURL) {
		return a.handleNotification(page, outgoing)
	}
	if page.Command == nil {
		return nil, errNilCommand
	}

	entry, ok := a.commands.match(page.Command.TypeUrl)
	if !ok {
		return nil, UnknownCommandError(page.Command.TypeUrl)
	}
	msg := entry.newMessage()
	if err := Unpack(page.Command, msg); err != nil {
		return nil, NewInvalidArgumentError("decoding command: %v", err)
	}

	events, err := entry.handle(a.projector.State(), msg, outgoing.NextSequence)
	if err != nil {
		return nil, err
	}
	if err := a.appendEvents(outgoing, events); err != nil {
		return nil, err
	}
	return &BusinessResponse{Events: outgoing}, nil
}

// handleNotification implements the Aggregate side of §4.7: decode the
// rejection, route it to a matching compensation handler, or return the
// framework-delegation directive.
func (a *Aggregate[S]) handleNotification(page CommandPage, outgoing *EventBook) (*BusinessResponse, error) {
	notification := page.Notification
	if notification == nil {
		return nil, NewInvalidArgumentError("notification page has no payload")
	}
	rejection, ok := notification.AsRejection()
	if !ok {
		return nil, NewInvalidArgumentError("notification payload is not a rejection")
	}

	domain, commandSuffix := extractRejectionKey(rejection)
	handler, ok := a.rejections.match(domain, commandSuffix)
	if !ok {
		return &BusinessResponse{Events: outgoing, Revocation: defaultRevocation(domain, commandSuffix)}, nil
	}

	events, err := handler(a.projector.State(), rejection)
	if err != nil {
		return nil, err
	}
	if err := a.appendEvents(outgoing, events); err != nil {
		return nil, err
	}
	return &BusinessResponse{Events: outgoing}, nil
}

// appendEvents packages each event into an Event Page with an ascending
// sequence number, applies it to the cached state, and appends it to
// outgoing — the shared emission path for both ordinary command handling
// and compensation.
func (a *Aggregate[S]) appendEvents(outgoing *EventBook, events []proto.Message) error {
	seq := outgoing.NextSequence
	for _, ev := range events {
		env, err := Pack(ev)
		if err != nil {
			return NewInvalidArgumentError("encoding event: %v", err)
		}
		outgoing.Pages = append(outgoing.Pages, EventPage{Sequence: seq, CreatedAt: now(), Event: env})
		a.projector.Apply(env)
		seq++
	}
	outgoing.NextSequence = seq
	return nil
}

// Replay reconstructs state from a candidate history and returns it
// serialized through the configured StatePacker, for the coordinator's
// concurrent-edit conflict detection.
func (a *Aggregate[S]) Replay(req ReplayRequest) ([]byte, error) {
	book := &EventBook{Snapshot: req.BaseSnapshot, Pages: req.Events}
	a.projector.Rebuild(book)
	return a.packer(a.projector.State())
}

// Descriptor publishes this aggregate's topology metadata.
func (a *Aggregate[S]) Descriptor() ComponentDescriptor {
	types := a.commands.suffixes()
	sort.Strings(types)
	return ComponentDescriptor{
		Name: a.domain,
		Kind: KindAggregate,
		Inputs: []InputDesc{
			{Domain: a.domain, Types: types},
		},
	}
}
