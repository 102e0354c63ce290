package track

// AuthKey names one of the six authorization slots a ResourceManager
// tracks.
type AuthKey uint8

const (
	AuthMint AuthKey = iota
	AuthBurn
	AuthWithdraw
	AuthDeposit
	AuthUpdateMetadata
	AuthUpdateNonFungibleData
)

func (k AuthKey) String() string {
	switch k {
	case AuthMint:
		return "Mint"
	case AuthBurn:
		return "Burn"
	case AuthWithdraw:
		return "Withdraw"
	case AuthDeposit:
		return "Deposit"
	case AuthUpdateMetadata:
		return "UpdateMetadata"
	case AuthUpdateNonFungibleData:
		return "UpdateNonFungibleData"
	default:
		return "Unknown"
	}
}

// AccessRule is the evaluated authorization expression attached to a
// method. Only AllowAll/DenyAll carry real semantics here — composed
// proof-rule trees depend on the auth-zone/worktop collaborator, which
// sits outside this package's scope.
type AccessRule uint8

const (
	AllowAll AccessRule = iota
	DenyAll
	Unsupported
)

// Mutability describes how a freshly declared MethodAccessRule's
// update_auth is seeded.
type Mutability struct {
	Locked bool
	Rule   AccessRule // meaningful only when !Locked
}

// Locked is the LOCKED mutability: update_auth starts at DenyAll.
func Locked() Mutability { return Mutability{Locked: true} }

// Mutable is the MUTABLE(rule) mutability: update_auth starts at rule.
func Mutable(rule AccessRule) Mutability { return Mutability{Locked: false, Rule: rule} }

// MethodAccessRule is the (auth, update_auth) pair governing a single
// method and its own mutability.
type MethodAccessRule struct {
	auth       AccessRule
	updateAuth AccessRule
}

// NewMethodAccessRule seeds auth and update_auth from a declared rule and
// mutability. update_auth is DenyAll when mutability is LOCKED, otherwise
// the mutability's own rule.
func NewMethodAccessRule(auth AccessRule, mutability Mutability) *MethodAccessRule {
	m := &MethodAccessRule{auth: auth}
	if mutability.Locked {
		m.updateAuth = DenyAll
	} else {
		m.updateAuth = mutability.Rule
	}
	return m
}

// Auth returns the rule currently guarding the method itself.
func (m *MethodAccessRule) Auth() AccessRule { return m.auth }

// UpdateAuth returns the rule guarding further update()/lock() calls.
func (m *MethodAccessRule) UpdateAuth() AccessRule { return m.updateAuth }

// Update sets auth to newAuth. Callers must have already checked the
// caller satisfies UpdateAuth before invoking this — the track and
// resource manager never evaluate proofs themselves.
func (m *MethodAccessRule) Update(newAuth AccessRule) {
	m.auth = newAuth
}

// Lock freezes the rule: update_auth becomes DenyAll, so no further
// Update or Lock can ever succeed again.
func (m *MethodAccessRule) Lock() {
	m.updateAuth = DenyAll
}

// clone returns an independent copy, used when a ResourceManager value is
// moved into the overlay.
func (m *MethodAccessRule) clone() *MethodAccessRule {
	cp := *m
	return &cp
}
