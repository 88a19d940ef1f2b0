package runtime

import (
	"fmt"
	"reflect"
	"sort"

	"google.golang.org/protobuf/proto"
)

// sagaPrepareFunc is the reflection-erased form of a registered Prepares
// handler: decode the event, return the destination covers it needs.
type sagaPrepareFunc func(event *Envelope) ([]*Cover, error)

// sagaReactFunc is the reflection-erased form of a registered ReactsTo
// handler: decode the event, optionally consult destination state, return
// zero or more command books addressed to the saga's output domain.
type sagaReactFunc func(event *Envelope, source *Cover, destinations []*EventBook) ([]*CommandBook, error)

// Saga is the Saga Engine for one input/output domain pair: a stateless
// event-to-command translator run in two phases, Prepare then Execute.
type Saga struct {
	name         string
	inputDomain  string
	outputDomain string
	prepares     *suffixTable[sagaPrepareFunc]
	reactors     *suffixTable[sagaReactFunc]
}

// NewSaga constructs a Saga Engine. name, inputDomain and outputDomain are
// mandatory class-level metadata; any left empty is a ConfigurationError.
func NewSaga(name, inputDomain, outputDomain string) (*Saga, error) {
	if name == "" || inputDomain == "" || outputDomain == "" {
		return nil, NewConfigurationError("saga: name, inputDomain and outputDomain are all required")
	}
	return &Saga{
		name:         name,
		inputDomain:  inputDomain,
		outputDomain: outputDomain,
		prepares:     newSuffixTable[sagaPrepareFunc]("prepare"),
		reactors:     newSuffixTable[sagaReactFunc]("reactor"),
	}, nil
}

// Name, InputDomain and OutputDomain expose the saga's construction-time
// metadata.
func (s *Saga) Name() string         { return s.name }
func (s *Saga) InputDomain() string  { return s.inputDomain }
func (s *Saga) OutputDomain() string { return s.outputDomain }

// Prepares registers a destination-declaration handler for events whose
// type URL ends with suffix. handler must have the signature
// func(*EventType) []*Cover, where EventType implements proto.Message;
// a mismatched signature is a ConfigurationError.
func (s *Saga) Prepares(suffix string, handler any) error {
	eventType, callFn, err := bindSingleEventHandler(handler, 1, func(results []reflect.Value) (any, error) {
		return valueOrNil(results[0]), nil
	})
	if err != nil {
		return NewConfigurationError("saga %s: Prepares(%s): %v", s.name, suffix, err)
	}

	wrapper := func(eventEnv *Envelope) ([]*Cover, error) {
		msg, err := newAndUnpack(eventType, eventEnv)
		if err != nil {
			return nil, err
		}
		result, err := callFn(msg, nil)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, nil
		}
		covers, ok := result.([]*Cover)
		if !ok {
			return nil, NewConfigurationError("saga %s: Prepares(%s) must return []*Cover, got %T", s.name, suffix, result)
		}
		return covers, nil
	}
	return s.prepares.put(suffix, wrapper)
}

// ReactsTo registers an event-reaction handler for events whose type URL
// ends with suffix. handler must have signature
// func(*EventType) (R, error) or func(*EventType, []*EventBook) (R, error),
// where R is a proto.Message, []proto.Message, *CommandBook, or
// []*CommandBook. The runtime introspects the parameter count to decide
// whether to pass destination state.
func (s *Saga) ReactsTo(suffix string, handler any) error {
	eventType, callFn, err := bindEventHandler(handler)
	if err != nil {
		return NewConfigurationError("saga %s: ReactsTo(%s): %v", s.name, suffix, err)
	}

	wrapper := func(eventEnv *Envelope, source *Cover, destinations []*EventBook) ([]*CommandBook, error) {
		msg, err := newAndUnpack(eventType, eventEnv)
		if err != nil {
			return nil, err
		}
		result, err := callFn(msg, destinations)
		if err != nil {
			return nil, err
		}
		return packReaction(result, s.outputDomain, source)
	}
	return s.reactors.put(suffix, wrapper)
}

// PrepareDestinations implements §4.4 step 1: for every event page in
// source, consult the Prepare table and concatenate every matching
// handler's declared destination covers.
func (s *Saga) PrepareDestinations(source *EventBook) ([]*Cover, error) {
	if source == nil {
		return nil, nil
	}
	var destinations []*Cover
	for _, page := range source.Pages {
		if page.Event == nil {
			continue
		}
		handler, ok := s.prepares.match(page.Event.TypeUrl)
		if !ok {
			continue
		}
		covers, err := handler(page.Event)
		if err != nil {
			return nil, err
		}
		destinations = append(destinations, covers...)
	}
	return destinations, nil
}

// Execute implements §4.4 step 2: for every event page in source, consult
// the Event Reactor table and pack whatever each matching handler returns
// into Command Books addressed to the saga's output domain.
func (s *Saga) Execute(source *EventBook, destinations []*EventBook) ([]*CommandBook, error) {
	if source == nil {
		return nil, nil
	}
	var commands []*CommandBook
	for _, page := range source.Pages {
		if page.Event == nil {
			continue
		}
		handler, ok := s.reactors.match(page.Event.TypeUrl)
		if !ok {
			continue
		}
		cmds, err := handler(page.Event, source.Cover, destinations)
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmds...)
	}
	return commands, nil
}

// Descriptor publishes this saga's topology metadata.
func (s *Saga) Descriptor() ComponentDescriptor {
	types := s.reactors.suffixes()
	sort.Strings(types)
	return ComponentDescriptor{
		Name: s.name,
		Kind: KindSaga,
		Inputs: []InputDesc{
			{Domain: s.inputDomain, Types: types},
		},
	}
}

// packReaction normalizes a reactor's return value, per §4.4: nothing, a
// single command message, a slice of command messages, or a pre-built
// Command Book (forwarded unchanged).
func packReaction(result any, outputDomain string, source *Cover) ([]*CommandBook, error) {
	switch v := result.(type) {
	case nil:
		return nil, nil
	case *CommandBook:
		if v == nil {
			return nil, nil
		}
		return []*CommandBook{v}, nil
	case []*CommandBook:
		return v, nil
	case []proto.Message:
		out := make([]*CommandBook, 0, len(v))
		for _, msg := range v {
			cb, err := packCommand(msg, outputDomain, source)
			if err != nil {
				return nil, err
			}
			out = append(out, cb)
		}
		return out, nil
	case proto.Message:
		cb, err := packCommand(v, outputDomain, source)
		if err != nil {
			return nil, err
		}
		return []*CommandBook{cb}, nil
	default:
		return nil, NewConfigurationError("reactor returned unsupported type %T", result)
	}
}

// packCommand packs one command message into a single-page Command Book
// addressed to outputDomain, carrying the root and correlation ID of the
// source event's cover.
func packCommand(msg proto.Message, outputDomain string, source *Cover) (*CommandBook, error) {
	env, err := Pack(msg)
	if err != nil {
		return nil, NewInvalidArgumentError("encoding command: %v", err)
	}
	return NewCommandBook(withCorrelationFrom(source, outputDomain), env), nil
}

// --- reflection plumbing shared by Saga and Process-Manager handler registration ---

// eventHandlerFunc is the reflection-erased call surface every bound
// handler reduces to: the decoded event plus optional destination state in,
// an arbitrary result plus error out.
type eventHandlerFunc func(event proto.Message, destinations []*EventBook) (any, error)

// bindSingleEventHandler validates that handler is a function taking
// exactly one proto.Message pointer parameter and numOut results, and
// returns its event type plus a reflection-erased caller.
func bindSingleEventHandler(handler any, numOut int, extract func([]reflect.Value) (any, error)) (reflect.Type, eventHandlerFunc, error) {
	handlerValue := reflect.ValueOf(handler)
	handlerType := handlerValue.Type()
	if handlerType.Kind() != reflect.Func {
		return nil, nil, fmt.Errorf("handler must be a function")
	}
	if handlerType.NumIn() != 1 {
		return nil, nil, fmt.Errorf("handler must take exactly one parameter")
	}
	if handlerType.NumOut() != numOut {
		return nil, nil, fmt.Errorf("handler must return %d values", numOut)
	}
	eventType, err := eventParamType(handlerType, 0)
	if err != nil {
		return nil, nil, err
	}

	call := func(event proto.Message, _ []*EventBook) (any, error) {
		results := handlerValue.Call([]reflect.Value{reflect.ValueOf(event)})
		return extract(results)
	}
	return eventType, call, nil
}

// bindEventHandler validates a ReactsTo-style handler: 1 or 2 parameters
// (event, and optionally a destinations slice), exactly 2 results (a
// result value and an error). The destinations parameter is passed only
// when the handler declares it, implementing §4.4's signature
// introspection.
func bindEventHandler(handler any) (reflect.Type, eventHandlerFunc, error) {
	handlerValue := reflect.ValueOf(handler)
	handlerType := handlerValue.Type()
	if handlerType.Kind() != reflect.Func {
		return nil, nil, fmt.Errorf("handler must be a function")
	}
	numIn := handlerType.NumIn()
	if numIn < 1 || numIn > 2 {
		return nil, nil, fmt.Errorf("handler must take 1 or 2 parameters")
	}
	if handlerType.NumOut() != 2 {
		return nil, nil, fmt.Errorf("handler must return (result, error)")
	}
	eventType, err := eventParamType(handlerType, 0)
	if err != nil {
		return nil, nil, err
	}
	withDestinations := numIn == 2
	if withDestinations && handlerType.In(1).Kind() != reflect.Slice {
		return nil, nil, fmt.Errorf("destinations parameter must be a slice")
	}

	call := func(event proto.Message, destinations []*EventBook) (any, error) {
		args := []reflect.Value{reflect.ValueOf(event)}
		if withDestinations {
			args = append(args, reflect.ValueOf(destinations))
		}
		results := handlerValue.Call(args)
		result := valueOrNil(results[0])
		errVal := results[1]
		if errVal.IsNil() {
			return result, nil
		}
		return result, errVal.Interface().(error)
	}
	return eventType, call, nil
}

// eventParamType extracts and validates the event parameter at index: it
// must be a pointer to a proto.Message implementation.
func eventParamType(handlerType reflect.Type, index int) (reflect.Type, error) {
	ptrType := handlerType.In(index)
	if ptrType.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("event parameter must be a pointer to a proto.Message")
	}
	if !ptrType.Implements(protoMessageType) {
		return nil, fmt.Errorf("event parameter must implement proto.Message")
	}
	return ptrType.Elem(), nil
}

var protoMessageType = reflect.TypeOf((*proto.Message)(nil)).Elem()

var (
	errHandlerNotFunc   = fmt.Errorf("handler must be a function")
	errHandlerSignature = fmt.Errorf("handler has an unsupported parameter or return signature")
)

// newAndUnpack allocates a fresh zero value of eventType and decodes env
// into it.
func newAndUnpack(eventType reflect.Type, env *Envelope) (proto.Message, error) {
	msg := reflect.New(eventType).Interface().(proto.Message)
	if err := Unpack(env, msg); err != nil {
		return nil, NewInvalidArgumentError("decoding event: %v", err)
	}
	return msg, nil
}

// valueOrNil converts a reflect.Value that may be a typed nil (pointer,
// slice, interface, map) into a true untyped nil interface, so downstream
// type switches see nil rather than a non-nil interface wrapping a nil
// pointer.
func valueOrNil(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Interface, reflect.Map, reflect.Chan, reflect.Func:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}
