package runtime

import (
	"reflect"
	"sort"
)

type projectorFunc func(event *Envelope, cover *Cover, sequence uint64) (*Projection, error)

// Projector is the Projector Engine: a stateless event-to-read-model
// transformer that may subscribe to events from one or more domains.
type Projector struct {
	name     string
	domains  []string
	handlers *suffixTable[projectorFunc]
}

// NewProjector constructs a Projector Engine. name is mandatory class-level
// metadata; domains lists the domains it subscribes to for descriptor
// purposes (§4.6 "supports single or multi-domain inputs").
func NewProjector(name string, domains ...string) (*Projector, error) {
	if name == "" {
		return nil, NewConfigurationError("projector: name is required")
	}
	return &Projector{
		name:     name,
		domains:  domains,
		handlers: newSuffixTable[projectorFunc]("projection"),
	}, nil
}

// Name and Domains expose the projector's construction-time metadata.
func (p *Projector) Name() string      { return p.name }
func (p *Projector) Domains() []string { return p.domains }

// Projects registers a projection handler for events whose type URL ends
// with suffix. handler must have signature func(*EventType) (*Projection,
// error); returning a nil Projection lets the caller fall through to the
// next matching page rather than producing a result for this one.
func (p *Projector) Projects(suffix string, handler any) error {
	handlerValue := reflect.ValueOf(handler)
	handlerType := handlerValue.Type()
	if handlerType.Kind() != reflect.Func {
		return NewConfigurationError("projector %s: Projects(%s): handler must be a function", p.name, suffix)
	}
	if handlerType.NumIn() != 1 {
		return NewConfigurationError("projector %s: Projects(%s): handler must take exactly one parameter", p.name, suffix)
	}
	if handlerType.NumOut() != 2 {
		return NewConfigurationError("projector %s: Projects(%s): handler must return (*Projection, error)", p.name, suffix)
	}
	eventType, err := eventParamType(handlerType, 0)
	if err != nil {
		return NewConfigurationError("projector %s: Projects(%s): %v", p.name, suffix, err)
	}

	wrapper := func(event *Envelope, cover *Cover, sequence uint64) (*Projection, error) {
		msg, err := newAndUnpack(eventType, event)
		if err != nil {
			return nil, err
		}
		results := handlerValue.Call([]reflect.Value{reflect.ValueOf(msg)})
		result := valueOrNil(results[0])
		errVal := results[1]
		var callErr error
		if !errVal.IsNil() {
			callErr = errVal.Interface().(error)
		}
		if result == nil {
			return nil, callErr
		}
		projection, ok := result.(*Projection)
		if !ok {
			return nil, NewConfigurationError("Projects handler must return *Projection, got %T", result)
		}
		if projection.Cover == nil {
			projection.Cover = cover
		}
		if projection.Projector == "" {
			projection.Projector = p.name
		}
		if projection.Sequence == 0 {
			projection.Sequence = sequence
		}
		return projection, callErr
	}
	return p.handlers.put(suffix, wrapper)
}

// Handle implements §4.6: iterate every page of events, dispatch each
// through the Event Reactor table, and keep the *last* non-empty
// projection produced across the whole book — a full scan, not an early
// return on the first match, matching the reference "keep overwriting
// last_projection" semantics exactly.
func (p *Projector) Handle(events *EventBook) (*Projection, error) {
	if events == nil {
		return &Projection{Projector: p.name}, nil
	}

	last := &Projection{Cover: events.Cover, Projector: p.name}
	for _, page := range events.Pages {
		if page.Event == nil {
			continue
		}
		handler, ok := p.handlers.match(page.Event.TypeUrl)
		if !ok {
			continue
		}
		projection, err := handler(page.Event, events.Cover, page.Sequence)
		if err != nil {
			return nil, err
		}
		if projection != nil && !projection.IsEmpty() {
			last = projection
		}
	}
	return last, nil
}

// Descriptor publishes this projector's topology metadata: one input entry
// per subscribed domain, each carrying the full set of registered event
// types (the reference implementation does not partition registrations by
// domain either).
func (p *Projector) Descriptor() ComponentDescriptor {
	types := p.handlers.suffixes()
	sort.Strings(types)

	domains := p.domains
	if len(domains) == 0 {
		domains = []string{""}
	}
	inputs := make([]InputDesc, 0, len(domains))
	for _, domain := range domains {
		inputs = append(inputs, InputDesc{Domain: domain, Types: types})
	}
	return ComponentDescriptor{Name: p.name, Kind: KindProjector, Inputs: inputs}
}
