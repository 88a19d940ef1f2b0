package runtime

import (
	"reflect"

	"google.golang.org/protobuf/proto"
)

type upcastEntry struct {
	transform func(old *Envelope) (*Envelope, error)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Upcaster is the Upcaster Engine: a stateless event-to-event transformer
// that rewrites pages of an older event type into their current shape,
// leaving non-matching pages untouched.
type Upcaster struct {
	name   string
	domain string
	table  *suffixTable[upcastEntry]
}

// NewUpcaster constructs an Upcaster Engine. name is mandatory class-level
// metadata; domain is descriptive only (the engine runs the same
// transformation regardless of it).
func NewUpcaster(name, domain string) (*Upcaster, error) {
	if name == "" {
		return nil, NewConfigurationError("upcaster: name is required")
	}
	return &Upcaster{name: name, domain: domain, table: newSuffixTable[upcastEntry]("upcast")}, nil
}

// Name and Domain expose the upcaster's construction-time metadata.
func (u *Upcaster) Name() string   { return u.name }
func (u *Upcaster) Domain() string { return u.domain }

// On registers a transformer for events whose type URL ends with suffix.
// handler must have signature func(*OldType) *NewType or func(*OldType)
// (*NewType, error), where OldType and NewType both implement
// proto.Message. A nil returned *NewType is a configuration error, not a
// pass-through: use a distinct suffix (or no registration at all) to leave
// an event type untouched.
func (u *Upcaster) On(suffix string, handler any) error {
	handlerValue := reflect.ValueOf(handler)
	handlerType := handlerValue.Type()
	if handlerType.Kind() != reflect.Func {
		return NewConfigurationError("upcaster %s: On(%s): handler must be a function", u.name, suffix)
	}
	if handlerType.NumIn() != 1 {
		return NewConfigurationError("upcaster %s: On(%s): handler must take exactly one parameter", u.name, suffix)
	}
	numOut := handlerType.NumOut()
	if numOut != 1 && numOut != 2 {
		return NewConfigurationError("upcaster %s: On(%s): handler must return (*NewType) or (*NewType, error)", u.name, suffix)
	}
	oldType, err := eventParamType(handlerType, 0)
	if err != nil {
		return NewConfigurationError("upcaster %s: On(%s): %v", u.name, suffix, err)
	}
	newPtrType := handlerType.Out(0)
	if newPtrType.Kind() != reflect.Ptr || !newPtrType.Implements(protoMessageType) {
		return NewConfigurationError("upcaster %s: On(%s): return type must be a pointer to a proto.Message", u.name, suffix)
	}
	hasError := numOut == 2
	if hasError && handlerType.Out(1) != errorType {
		return NewConfigurationError("upcaster %s: On(%s): second return value must be error", u.name, suffix)
	}

	entry := upcastEntry{
		transform: func(old *Envelope) (*Envelope, error) {
			oldMsg, err := newAndUnpack(oldType, old)
			if err != nil {
				return nil, err
			}
			results := handlerValue.Call([]reflect.Value{reflect.ValueOf(oldMsg)})
			if hasError {
				if errVal := results[1]; !errVal.IsNil() {
					return nil, errVal.Interface().(error)
				}
			}
			if results[0].IsNil() {
				return nil, NewConfigurationError("upcaster %s: On(%s): handler returned nil", u.name, suffix)
			}
			return Pack(results[0].Interface().(proto.Message))
		},
	}
	return u.table.put(suffix, entry)
}

// Upcast implements §4.6: for each page whose type URL matches a
// registered transformer, replace its envelope with the transform result
// while preserving sequence and created_at; leave non-matching pages
// unchanged. Order is preserved exactly.
func (u *Upcaster) Upcast(pages []EventPage) ([]EventPage, error) {
	out := make([]EventPage, len(pages))
	for i, page := range pages {
		out[i] = page
		if page.Event == nil {
			continue
		}
		entry, ok := u.table.match(page.Event.TypeUrl)
		if !ok {
			continue
		}
		newEnv, err := entry.transform(page.Event)
		if err != nil {
			return nil, err
		}
		out[i].Event = newEnv
	}
	return out, nil
}

// Descriptor publishes this upcaster's topology metadata.
func (u *Upcaster) Descriptor() ComponentDescriptor {
	return ComponentDescriptor{
		Name: u.name,
		Kind: KindUpcaster,
		Inputs: []InputDesc{
			{Domain: u.domain, Types: u.table.suffixes()},
		},
	}
}
