package runtime

import (
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

// TypeURLPrefix is the host portion prepended to every discriminator this
// runtime mints. Suffix matching on ".<TypeName>" is what actually
// authorizes dispatch; the prefix only needs to be consistent enough to
// round-trip through anypb.New/UnmarshalTo.
const TypeURLPrefix = "type.googleapis.com/"

// Envelope is the opaque, typed payload that crosses every runtime boundary:
// a discriminator string plus opaque bytes. anypb.Any already models this
// shape exactly (TypeUrl + Value) and ships compiled, so it is used directly
// rather than re-inventing an equivalent wrapper.
type Envelope = anypb.Any

// Pack wraps a concrete proto.Message into an Envelope.
func Pack(msg proto.Message) (*Envelope, error) {
	return anypb.New(msg)
}

// MustPack is Pack but panics on error; useful in tests and in handlers that
// construct envelopes from messages whose marshaling cannot fail.
func MustPack(msg proto.Message) *Envelope {
	env, err := Pack(msg)
	if err != nil {
		panic(err)
	}
	return env
}

// Unpack decodes an Envelope into the given proto.Message.
func Unpack(env *Envelope, into proto.Message) error {
	if env == nil {
		return NewInvalidArgumentError("nil envelope")
	}
	return anypb.UnmarshalTo(env, into, proto.UnmarshalOptions{})
}

// TypeURLMatches reports whether a type URL is discriminated by the given
// suffix, per the "Type-URL suffix authority" invariant: different hosts
// resolving to the same logical type are equivalent, so only ".<TypeName>"
// (or any caller-chosen suffix of it) is authoritative.
func TypeURLMatches(typeURL, suffix string) bool {
	return strings.HasSuffix(typeURL, suffix)
}

// TypeSuffix extracts the short name following the last '/' or '.' in a
// type URL, i.e. the minimal key a dispatch table actually needs to store.
func TypeSuffix(typeURL string) string {
	if idx := strings.LastIndexAny(typeURL, "/."); idx >= 0 {
		return typeURL[idx+1:]
	}
	return typeURL
}

// AfterLastSlash returns the substring following the last '/' in a type URL,
// or the whole string if there is none. This is the exact suffix-extraction
// rule the Compensation Dispatcher uses when reading a rejected command's
// type URL (see compensation.go), distinct from TypeSuffix which also
// breaks on '.'.
func AfterLastSlash(typeURL string) string {
	if idx := strings.LastIndex(typeURL, "/"); idx >= 0 {
		return typeURL[idx+1:]
	}
	return typeURL
}
