package runtime

import (
	"reflect"
	"sort"

	"google.golang.org/protobuf/proto"
)

// PMContext is the handle a Process-Manager's event and rejection handlers
// receive: read/write access to the PM's own state, and ApplyAndRecord, the
// runtime-provided channel for emitting PM-internal events that mutate that
// state and are persisted by the coordinator alongside any commands the
// handler returns.
type PMContext[S any] struct {
	state    *S
	recorded []proto.Message
}

// State returns the Process-Manager's own, already-reconstructed state.
func (c *PMContext[S]) State() *S { return c.state }

// ApplyAndRecord records event for inclusion in the response's
// process_events book. Handle applies recorded events to the PM's own state
// once the handler returns (see flushRecorded), so handlers for later
// trigger pages observe the change; State() does not reflect it during the
// handler call that recorded it. Events recorded by a Prepares handler are
// neither applied nor returned.
func (c *PMContext[S]) ApplyAndRecord(event proto.Message) {
	c.recorded = append(c.recorded, event)
}

type pmPrepareFunc[S any] func(ctx *PMContext[S], event *Envelope) ([]*Cover, error)
type pmHandleFunc[S any] func(ctx *PMContext[S], event *Envelope, destinations []*EventBook) ([]*CommandBook, error)

// ProcessManagerRejectionFunc handles a rejection routed to a Process
// Manager by the Compensation Dispatcher. It may mutate own state via
// ctx.ApplyAndRecord and/or return a notification to propagate upstream.
type ProcessManagerRejectionFunc[S any] func(ctx *PMContext[S], rejection *RejectionNotification) (*Notification, error)

// ProcessManagerHandleResponse is what Handle returns: commands addressed
// to other domains, the PM's own newly recorded events, an optional
// upstream propagation notification, and an optional framework-delegation
// directive when an incoming rejection matched no compensation handler.
type ProcessManagerHandleResponse struct {
	Commands      []*CommandBook
	ProcessEvents *EventBook
	Notification  *Notification
	Revocation    *RevocationResponse
}

// ProcessManager is the Process-Manager Engine: like a Saga, but stateful
// and scoped to a correlation id, able to declare destinations across
// several input domains and to handle compensation for commands it issued.
type ProcessManager[S any] struct {
	name         string
	domain       string
	inputDomains []string
	projector    *StateProjector[S]
	prepares     *suffixTable[pmPrepareFunc[S]]
	handlers     *suffixTable[pmHandleFunc[S]]
	rejections   *rejectionTable[ProcessManagerRejectionFunc[S]]
}

// NewProcessManager constructs a Process-Manager Engine. name, domain (the
// PM's own Event Book domain) and at least one input domain are mandatory
// class-level metadata.
func NewProcessManager[S any](name, domain string, inputDomains []string, factory func() S) (*ProcessManager[S], error) {
	if name == "" || domain == "" || len(inputDomains) == 0 {
		return nil, NewConfigurationError("process manager: name, domain and at least one input domain are required")
	}
	return &ProcessManager[S]{
		name:         name,
		domain:       domain,
		inputDomains: inputDomains,
		projector:    NewStateProjector(factory),
		prepares:     newSuffixTable[pmPrepareFunc[S]]("prepare"),
		handlers:     newSuffixTable[pmHandleFunc[S]]("handler"),
		rejections:   newRejectionTable[ProcessManagerRejectionFunc[S]](),
	}, nil
}

// Name, Domain and InputDomains expose the PM's construction-time metadata.
func (pm *ProcessManager[S]) Name() string           { return pm.name }
func (pm *ProcessManager[S]) Domain() string         { return pm.domain }
func (pm *ProcessManager[S]) InputDomains() []string { return pm.inputDomains }

// Applies registers a state applier for the PM's own event type suffix,
// reconstructing state exactly as a StateProjector does for an aggregate.
func (pm *ProcessManager[S]) Applies(suffix string, newMessage func() proto.Message, apply ApplierFunc[S]) error {
	return pm.projector.On(suffix, newMessage, apply)
}

// WithSnapshotLoader registers an optional snapshot loader for the PM's own
// state.
func (pm *ProcessManager[S]) WithSnapshotLoader(loader SnapshotLoader[S]) *ProcessManager[S] {
	pm.projector.WithSnapshotLoader(loader)
	return pm
}

// Prepares registers a destination-declaration handler for trigger events
// whose type URL ends with suffix. handler must have signature
// func(*PMContext[S], *EventType) ([]*Cover, error).
func (pm *ProcessManager[S]) Prepares(suffix string, handler any) error {
	eventType, call, err := bindPMPrepareFunc[S](handler)
	if err != nil {
		return NewConfigurationError("process manager %s: Prepares(%s): %v", pm.name, suffix, err)
	}
	wrapper := func(ctx *PMContext[S], event *Envelope) ([]*Cover, error) {
		msg, err := newAndUnpack(eventType, event)
		if err != nil {
			return nil, err
		}
		return call(ctx, msg)
	}
	return pm.prepares.put(suffix, wrapper)
}

// Handles registers an event-reaction handler for trigger events whose type
// URL ends with suffix. handler must have signature
// func(*PMContext[S], *EventType) ([]*CommandBook, error) or
// func(*PMContext[S], *EventType, []*EventBook) ([]*CommandBook, error).
func (pm *ProcessManager[S]) Handles(suffix string, handler any) error {
	eventType, call, err := bindPMHandleFunc[S](handler)
	if err != nil {
		return NewConfigurationError("process manager %s: Handles(%s): %v", pm.name, suffix, err)
	}
	wrapper := func(ctx *PMContext[S], event *Envelope, destinations []*EventBook) ([]*CommandBook, error) {
		msg, err := newAndUnpack(eventType, event)
		if err != nil {
			return nil, err
		}
		return call(ctx, msg, destinations)
	}
	return pm.handlers.put(suffix, wrapper)
}

// Rejected registers a compensation handler invoked when a command this PM
// issued to domain, matching commandSuffix, is rejected.
func (pm *ProcessManager[S]) Rejected(domain, commandSuffix string, handler ProcessManagerRejectionFunc[S]) error {
	return pm.rejections.put(domain, commandSuffix, handler)
}

// PrepareDestinations implements the PM side of §4.4/§4.5 step 1: project
// the PM's own state, then for every trigger event page consult the
// Prepare table and concatenate the declared destination covers.
func (pm *ProcessManager[S]) PrepareDestinations(trigger, processState *EventBook) ([]*Cover, error) {
	pm.projector.Rebuild(processState)
	ctx := &PMContext[S]{state: pm.projector.State()}

	if trigger == nil {
		return nil, nil
	}
	var destinations []*Cover
	for _, page := range trigger.Pages {
		if page.Event == nil {
			continue
		}
		handler, ok := pm.prepares.match(page.Event.TypeUrl)
		if !ok {
			continue
		}
		covers, err := handler(ctx, page.Event)
		if err != nil {
			return nil, err
		}
		destinations = append(destinations, covers...)
	}
	return destinations, nil
}

// Handle implements §4.5: project the PM's own state, then for every
// trigger event page either dispatch to the Event Reactor table or, for a
// Notification page, route to the Compensation Dispatcher. Commands and
// own-state events accumulate across the whole trigger book.
func (pm *ProcessManager[S]) Handle(trigger, processState *EventBook, destinations []*EventBook) (*ProcessManagerHandleResponse, error) {
	outgoing := pm.projector.Rebuild(processState)
	ctx := &PMContext[S]{state: pm.projector.State()}

	resp := &ProcessManagerHandleResponse{ProcessEvents: outgoing}
	if trigger == nil {
		return resp, nil
	}

	for _, page := range trigger.Pages {
		typeURL := page.TypeURL()
		if typeURL == "" {
			continue
		}

		if IsNotification(typeURL) {
			upstream, revocation, err := pm.handleNotification(ctx, page)
			if err != nil {
				return nil, err
			}
			if upstream != nil {
				resp.Notification = upstream
			}
			if revocation != nil {
				resp.Revocation = revocation
			}
		} else if page.Event != nil {
			handler, ok := pm.handlers.match(page.Event.TypeUrl)
			if !ok {
				continue
			}
			cmds, err := handler(ctx, page.Event, destinations)
			if err != nil {
				return nil, err
			}
			resp.Commands = append(resp.Commands, cmds...)
		}

		if err := pm.flushRecorded(outgoing, ctx); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// handleNotification implements the PM side of §4.7: decode the rejection,
// route it to a matching compensation handler (which may mutate state via
// ctx and/or return an upstream propagation notification), or return the
// framework-delegation directive.
func (pm *ProcessManager[S]) handleNotification(ctx *PMContext[S], page EventPage) (*Notification, *RevocationResponse, error) {
	notification := page.Notification
	if notification == nil {
		return nil, nil, NewInvalidArgumentError("notification page has no payload")
	}
	rejection, ok := notification.AsRejection()
	if !ok {
		return nil, nil, NewInvalidArgumentError("notification payload is not a rejection")
	}

	domain, commandSuffix := extractRejectionKey(rejection)
	handler, ok := pm.rejections.match(domain, commandSuffix)
	if !ok {
		return nil, defaultRevocation(domain, commandSuffix), nil
	}
	upstream, err := handler(ctx, rejection)
	if err != nil {
		return nil, nil, err
	}
	return upstream, nil, nil
}

// flushRecorded packs whatever ctx.ApplyAndRecord accumulated during the
// last handler call into sequenced Event Pages, applies each to the
// cached state immediately so later pages in the same request observe it,
// and clears the buffer.
func (pm *ProcessManager[S]) flushRecorded(outgoing *EventBook, ctx *PMContext[S]) error {
	if len(ctx.recorded) == 0 {
		return nil
	}
	seq := outgoing.NextSequence
	for _, msg := range ctx.recorded {
		env, err := Pack(msg)
		if err != nil {
			return NewInvalidArgumentError("encoding process event: %v", err)
		}
		outgoing.Pages = append(outgoing.Pages, EventPage{Sequence: seq, CreatedAt: now(), Event: env})
		pm.projector.Apply(env)
		seq++
	}
	outgoing.NextSequence = seq
	ctx.recorded = nil
	return nil
}

// Descriptor publishes this Process Manager's topology metadata: one entry
// per input domain, each carrying the full set of registered reaction
// types.
func (pm *ProcessManager[S]) Descriptor() ComponentDescriptor {
	types := pm.handlers.suffixes()
	sort.Strings(types)

	inputs := make([]InputDesc, 0, len(pm.inputDomains))
	for _, domain := range pm.inputDomains {
		inputs = append(inputs, InputDesc{Domain: domain, Types: types})
	}
	return ComponentDescriptor{Name: pm.name, Kind: KindProcessManager, Inputs: inputs}
}

// bindPMPrepareFunc validates a Prepares handler: func(*PMContext[S],
// *EventType) ([]*Cover, error) for some proto.Message EventType.
func bindPMPrepareFunc[S any](handler any) (reflect.Type, func(*PMContext[S], proto.Message) ([]*Cover, error), error) {
	ctxType := reflect.TypeOf((*PMContext[S])(nil))
	handlerValue := reflect.ValueOf(handler)
	handlerType := handlerValue.Type()
	if handlerType.Kind() != reflect.Func {
		return nil, nil, errHandlerNotFunc
	}
	if handlerType.NumIn() != 2 || handlerType.In(0) != ctxType {
		return nil, nil, errHandlerSignature
	}
	if handlerType.NumOut() != 2 {
		return nil, nil, errHandlerSignature
	}
	eventType, err := eventParamType(handlerType, 1)
	if err != nil {
		return nil, nil, err
	}

	call := func(ctx *PMContext[S], event proto.Message) ([]*Cover, error) {
		results := handlerValue.Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(event)})
		result := valueOrNil(results[0])
		var callErr error
		if errVal := results[1]; !errVal.IsNil() {
			callErr = errVal.Interface().(error)
		}
		if result == nil {
			return nil, callErr
		}
		covers, ok := result.([]*Cover)
		if !ok {
			return nil, NewConfigurationError("Prepares handler must return []*Cover, got %T", result)
		}
		return covers, callErr
	}
	return eventType, call, nil
}

// bindPMHandleFunc validates a Handles handler: func(*PMContext[S],
// *EventType) ([]*CommandBook, error), or the same with a trailing
// []*EventBook destinations parameter.
func bindPMHandleFunc[S any](handler any) (reflect.Type, func(*PMContext[S], proto.Message, []*EventBook) ([]*CommandBook, error), error) {
	ctxType := reflect.TypeOf((*PMContext[S])(nil))
	handlerValue := reflect.ValueOf(handler)
	handlerType := handlerValue.Type()
	if handlerType.Kind() != reflect.Func {
		return nil, nil, errHandlerNotFunc
	}
	numIn := handlerType.NumIn()
	if numIn < 2 || numIn > 3 || handlerType.In(0) != ctxType {
		return nil, nil, errHandlerSignature
	}
	if handlerType.NumOut() != 2 {
		return nil, nil, errHandlerSignature
	}
	eventType, err := eventParamType(handlerType, 1)
	if err != nil {
		return nil, nil, err
	}
	withDestinations := numIn == 3
	if withDestinations && handlerType.In(2).Kind() != reflect.Slice {
		return nil, nil, errHandlerSignature
	}

	call := func(ctx *PMContext[S], event proto.Message, destinations []*EventBook) ([]*CommandBook, error) {
		args := []reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(event)}
		if withDestinations {
			args = append(args, reflect.ValueOf(destinations))
		}
		results := handlerValue.Call(args)
		result := valueOrNil(results[0])
		errVal := results[1]
		var callErr error
		if !errVal.IsNil() {
			callErr = errVal.Interface().(error)
		}
		if result == nil {
			return nil, callErr
		}
		cmds, ok := result.([]*CommandBook)
		if !ok {
			return nil, NewConfigurationError("Handles handler must return []*CommandBook, got %T", result)
		}
		return cmds, callErr
	}
	return eventType, call, nil
}
