package runtime

// rejectionTable implements the Rejection table: a two-level mapping from
// domain (exact match) to command suffix (suffix match), keyed internally
// as "<domain>/<command_suffix>" per the specification, but represented as
// nested tables so the construction-time duplicate check can catch the
// exact pair while dispatch still performs genuine suffix matching on the
// command side.
type rejectionTable[H any] struct {
	byDomain map[string]*suffixTable[H]
}

func newRejectionTable[H any]() *rejectionTable[H] {
	return &rejectionTable[H]{byDomain: make(map[string]*suffixTable[H])}
}

// put registers handler for the pair (domain, commandSuffix). Returns a
// ConfigurationError if that exact pair is already registered.
func (t *rejectionTable[H]) put(domain, commandSuffix string, handler H) error {
	st, ok := t.byDomain[domain]
	if !ok {
		st = newSuffixTable[H]("rejection")
		t.byDomain[domain] = st
	}
	return st.put(commandSuffix, handler)
}

// match looks up the handler for an incoming rejection's (domain,
// commandSuffix) pair: domain must match exactly, commandSuffix must have
// some registered suffix as a trailing substring.
func (t *rejectionTable[H]) match(domain, commandSuffix string) (H, bool) {
	var zero H
	st, ok := t.byDomain[domain]
	if !ok {
		return zero, false
	}
	return st.match(commandSuffix)
}

// extractRejectionKey reads (domain, command_suffix) from a rejected
// command per §4.7 step 2: domain comes from the rejected command's cover,
// command_suffix is the substring of its first page's command type URL
// following the last '/' — matching the reference implementation's
// `type_url.rsplit("/", 1)[-1]` exactly, not a `.`-based TypeSuffix split.
func extractRejectionKey(rejection *RejectionNotification) (domain, commandSuffix string) {
	if rejection == nil || rejection.RejectedCommand == nil {
		return "", ""
	}
	cmd := rejection.RejectedCommand
	if cmd.Cover != nil {
		domain = cmd.Cover.Domain
	}
	if len(cmd.Pages) > 0 && cmd.Pages[0].Command != nil {
		commandSuffix = AfterLastSlash(cmd.Pages[0].Command.TypeUrl)
	}
	return domain, commandSuffix
}

// delegationReason formats the framework-delegation directive's message
// when no custom compensation handler matches a rejection.
func delegationReason(domain, commandSuffix string) string {
	return domain + " has no custom compensation for " + domain + "/" + commandSuffix
}

// defaultRevocation builds the RevocationResponse the Compensation
// Dispatcher returns when it finds no matching handler: step 5 of §4.7.
func defaultRevocation(domain, commandSuffix string) *RevocationResponse {
	return &RevocationResponse{
		EmitSystemRevocation: true,
		Reason:               delegationReason(domain, commandSuffix),
	}
}
