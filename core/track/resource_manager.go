package track

import (
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
)

// ResourceKind distinguishes the two resource type shapes.
type ResourceKind uint8

const (
	ResourceFungible ResourceKind = iota
	ResourceNonFungible
)

// ResourceType is Fungible{Divisibility} or NonFungible.
type ResourceType struct {
	Kind         ResourceKind
	Divisibility uint8 // meaningful only when Kind == ResourceFungible
}

// NewFungibleResourceType validates divisibility against the 0..=18 range
// a Decimal's 18 implied places can represent.
func NewFungibleResourceType(divisibility uint8) (ResourceType, error) {
	if divisibility > DecimalPlaces {
		return ResourceType{}, &InvalidDivisibilityError{Divisibility: divisibility}
	}
	return ResourceType{Kind: ResourceFungible, Divisibility: divisibility}, nil
}

// NewNonFungibleResourceType builds the NonFungible resource type.
func NewNonFungibleResourceType() ResourceType {
	return ResourceType{Kind: ResourceNonFungible}
}

// maxMintAmount is the per-call mint cap, expressed as a Decimal so the
// comparison runs through the same fixed-point path as every other amount
// check.
var maxMintAmount = NewDecimalFromInt64(100_000_000_000)

// resourceMethodRule is one entry of a method table: either Public
// (AllowAll, unconditionally) or Protected(key) (deferred to that
// AuthKey's MethodAccessRule).
type resourceMethodRule struct {
	public bool
	key    AuthKey
}

func publicRule() resourceMethodRule             { return resourceMethodRule{public: true} }
func protectedRule(k AuthKey) resourceMethodRule { return resourceMethodRule{key: k} }

// ResourceManager is the per-resource authorization and supply state
// machine. Method and vault-method tables are fixed at
// construction; only the AccessRule each AuthKey resolves to, and the
// update_auth guarding it, ever change afterwards.
type ResourceManager struct {
	resourceType ResourceType
	metadata     map[string]string

	methodTable      map[string]resourceMethodRule
	vaultMethodTable map[string]resourceMethodRule
	authorization    map[AuthKey]*MethodAccessRule

	totalSupply Decimal
}

// AuthSeed is the (AccessRule, Mutability) pair a caller supplies per
// AuthKey when constructing a ResourceManager.
type AuthSeed struct {
	Auth       AccessRule
	Mutability Mutability
}

// New constructs a ResourceManager, seeding every AuthKey's
// MethodAccessRule from rules (missing keys default to (DenyAll, LOCKED),
// the most restrictive starting point) and copying metadata.
func New(resourceType ResourceType, metadata map[string]string, rules map[AuthKey]AuthSeed) *ResourceManager {
	methodTable := map[string]resourceMethodRule{
		"mint":                     protectedRule(AuthMint),
		"burn":                     protectedRule(AuthBurn),
		"update_metadata":          protectedRule(AuthUpdateMetadata),
		"update_non_fungible_data": protectedRule(AuthUpdateNonFungibleData),
	}
	for _, m := range []string{"create_bucket", "metadata", "resource_type", "total_supply", "create_vault", "non_fungible_exists", "non_fungible_data"} {
		methodTable[m] = publicRule()
	}

	vaultMethodTable := map[string]resourceMethodRule{
		"withdraw":           protectedRule(AuthWithdraw),
		"deposit":            protectedRule(AuthDeposit),
		"take_non_fungibles": protectedRule(AuthWithdraw),
	}
	for _, m := range []string{"amount", "resource_address", "non_fungible_ids", "create_proof", "create_proof_by_amount", "create_proof_by_ids"} {
		vaultMethodTable[m] = publicRule()
	}

	rm := &ResourceManager{
		resourceType:     resourceType,
		metadata:         make(map[string]string, len(metadata)),
		methodTable:      methodTable,
		vaultMethodTable: vaultMethodTable,
		authorization:    make(map[AuthKey]*MethodAccessRule, 6),
		totalSupply:      ZeroDecimal(),
	}
	for k, v := range metadata {
		rm.metadata[k] = v
	}
	for _, key := range allAuthKeys {
		if seed, ok := rules[key]; ok {
			rm.authorization[key] = NewMethodAccessRule(seed.Auth, seed.Mutability)
		} else {
			rm.authorization[key] = NewMethodAccessRule(DenyAll, Locked())
		}
	}
	return rm
}

var allAuthKeys = []AuthKey{AuthMint, AuthBurn, AuthWithdraw, AuthDeposit, AuthUpdateMetadata, AuthUpdateNonFungibleData}

func (r *ResourceManager) resolveMethodRule(table map[string]resourceMethodRule, method string) AccessRule {
	rule, ok := table[method]
	if !ok {
		return Unsupported
	}
	if rule.public {
		return AllowAll
	}
	return r.authorization[rule.key].Auth()
}

// GetVaultAuth resolves the authorization guarding a vault method name
// (withdraw/deposit/take_non_fungibles/…): Public methods are AllowAll, Protected
// methods defer to their AuthKey's current Auth(), and an absent method
// is Unsupported rather than an error.
func (r *ResourceManager) GetVaultAuth(method string) AccessRule {
	return r.resolveMethodRule(r.vaultMethodTable, method)
}

// GetConsumingBucketAuth resolves the authorization guarding a
// resource-level method name the same way GetVaultAuth does, against the
// resource's own method table rather than its vault table.
func (r *ResourceManager) GetConsumingBucketAuth(method string) AccessRule {
	return r.resolveMethodRule(r.methodTable, method)
}

// resourceManagerUpdateAuthInput is the RLP-encoded argument GetAuth
// decodes for the "update_auth" method name.
type resourceManagerUpdateAuthInput struct {
	Method     uint8
	AccessRule uint8
}

// resourceManagerLockAuthInput is the RLP-encoded argument GetAuth
// decodes for the "lock_auth" method name.
type resourceManagerLockAuthInput struct {
	Method uint8
}

// GetAuth resolves the authorization guarding method_name given its call
// argument. "update_auth" and "lock_auth" are special-cased: both decode
// the targeted AuthKey out of arg and return that key's own UpdateAuth(),
// not its Auth() — the permission to change a rule is governed separately
// from the permission to invoke the method the rule protects. Every other
// method name falls through to the resource's own method table, same as
// GetConsumingBucketAuth.
func (r *ResourceManager) GetAuth(methodName string, arg []byte) (AccessRule, error) {
	switch methodName {
	case "update_auth":
		var in resourceManagerUpdateAuthInput
		if err := rlp.DecodeBytes(arg, &in); err != nil {
			return Unsupported, err
		}
		rule, ok := r.authorization[AuthKey(in.Method)]
		if !ok {
			return Unsupported, nil
		}
		return rule.UpdateAuth(), nil
	case "lock_auth":
		var in resourceManagerLockAuthInput
		if err := rlp.DecodeBytes(arg, &in); err != nil {
			return Unsupported, err
		}
		rule, ok := r.authorization[AuthKey(in.Method)]
		if !ok {
			return Unsupported, nil
		}
		return rule.UpdateAuth(), nil
	default:
		return r.resolveMethodRule(r.methodTable, methodName), nil
	}
}

// UpdateAuth sets the AccessRule for key. Callers must already have
// checked the caller satisfies the key's current UpdateAuth — neither the
// track nor the resource manager evaluates proofs.
func (r *ResourceManager) UpdateAuth(key AuthKey, newAuth AccessRule) {
	r.authorization[key].Update(newAuth)
}

// LockAuth freezes key's AccessRule against any further update.
func (r *ResourceManager) LockAuth(key AuthKey) {
	r.authorization[key].Lock()
}

func (r *ResourceManager) checkAmount(amount Decimal) error {
	if r.resourceType.Kind != ResourceFungible {
		return &ResourceTypeDoesNotMatchError{}
	}
	if amount.IsNegative() {
		return &InvalidAmountError{Amount: amount, Divisibility: r.resourceType.Divisibility}
	}
	if !amount.ModIsZero(r.resourceType.Divisibility) {
		return &InvalidAmountError{Amount: amount, Divisibility: r.resourceType.Divisibility}
	}
	return nil
}

// MintFungible increases total_supply by amount, after validating sign,
// divisibility and the per-call cap.
func (r *ResourceManager) MintFungible(amount Decimal) error {
	if err := r.checkAmount(amount); err != nil {
		return err
	}
	if amount.Cmp(maxMintAmount) > 0 {
		return &MaxMintAmountExceededError{Amount: amount}
	}
	r.totalSupply = r.totalSupply.Add(amount)
	return nil
}

// Burn decreases total_supply by amount. No negativity check: the caller
// must already have removed the burned units from a container.
func (r *ResourceManager) Burn(amount Decimal) {
	r.totalSupply = r.totalSupply.Sub(amount)
}

// NonFungibleEntry is one id's worth of mint input: the immutable and
// mutable data halves, each carrying whatever native ids its decoding
// surfaced so the leak check can run against both.
type NonFungibleEntry struct {
	Immutable NonFungibleData
	Mutable   NonFungibleData
}

// MintNonFungibles creates every entry, all or nothing: every blob is
// validated and every id checked for a prior occupant before the first
// write lands, so a duplicate in the batch leaves the supply and the
// non-fungible space untouched. Returns the minted ids in the
// deterministic order they were written.
func (r *ResourceManager) MintNonFungibles(self ResourceAddress, entries map[string]NonFungibleEntry, sys SystemAPI) ([]string, error) {
	if r.resourceType.Kind != ResourceNonFungible {
		return nil, &ResourceTypeDoesNotMatchError{}
	}
	if NewDecimalFromInt64(int64(len(entries))).Cmp(maxMintAmount) > 0 {
		return nil, &MaxMintAmountExceededError{Amount: NewDecimalFromInt64(int64(len(entries)))}
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		entry := entries[id]
		if err := entry.Immutable.validate(); err != nil {
			return nil, err
		}
		if err := entry.Mutable.validate(); err != nil {
			return nil, err
		}
		if _, exists := sys.GetNonFungible(self, id); exists {
			return nil, &NonFungibleAlreadyExistsError{Id: id}
		}
	}
	for _, id := range ids {
		entry := entries[id]
		sys.SetNonFungible(self, id, NewNonFungible(entry.Immutable.Raw, entry.Mutable.Raw))
	}
	r.totalSupply = r.totalSupply.Add(NewDecimalFromInt64(int64(len(entries))))
	return ids, nil
}

// NonFungibleExists reports whether id has a live entry in self's
// non-fungible space.
func (r *ResourceManager) NonFungibleExists(self ResourceAddress, id string, sys SystemAPI) bool {
	_, ok := sys.GetNonFungible(self, id)
	return ok
}

// NonFungibleDataOf returns the immutable/mutable halves of id.
func (r *ResourceManager) NonFungibleDataOf(self ResourceAddress, id string, sys SystemAPI) (immutable, mutable []byte, err error) {
	nf, ok := sys.GetNonFungible(self, id)
	if !ok {
		return nil, nil, &NonFungibleNotFoundError{Id: id}
	}
	return nf.Immutable, nf.Mutable, nil
}

// UpdateNonFungibleData replaces the mutable half of id, rejecting data
// that leaks a bucket/proof/vault/kv-store id just like mint does.
func (r *ResourceManager) UpdateNonFungibleData(self ResourceAddress, id string, data NonFungibleData, sys SystemAPI) error {
	if err := data.validate(); err != nil {
		return err
	}
	nf, ok := sys.GetNonFungible(self, id)
	if !ok {
		return &NonFungibleNotFoundError{Id: id}
	}
	nf.SetMutableData(data.Raw)
	sys.SetNonFungible(self, id, nf)
	return nil
}

// UpdateMetadata replaces the metadata map wholesale.
func (r *ResourceManager) UpdateMetadata(metadata map[string]string) {
	next := make(map[string]string, len(metadata))
	for k, v := range metadata {
		next[k] = v
	}
	r.metadata = next
}

func (r *ResourceManager) TotalSupply() Decimal         { return r.totalSupply }
func (r *ResourceManager) ResourceTypeOf() ResourceType { return r.resourceType }

func (r *ResourceManager) Metadata() map[string]string {
	cp := make(map[string]string, len(r.metadata))
	for k, v := range r.metadata {
		cp[k] = v
	}
	return cp
}

func (r *ResourceManager) clone() *ResourceManager {
	cp := &ResourceManager{
		resourceType:     r.resourceType,
		metadata:         make(map[string]string, len(r.metadata)),
		methodTable:      r.methodTable,
		vaultMethodTable: r.vaultMethodTable,
		authorization:    make(map[AuthKey]*MethodAccessRule, len(r.authorization)),
		totalSupply:      r.totalSupply,
	}
	for k, v := range r.metadata {
		cp.metadata[k] = v
	}
	for k, v := range r.authorization {
		cp.authorization[k] = v.clone()
	}
	return cp
}

// --- canonical encoding --------------------------------------------------

type rlpMetadataEntry struct {
	Key   string
	Value string
}

type rlpAuthEntry struct {
	Key        uint8
	Auth       uint8
	UpdateAuth uint8
}

type rlpResourceManager struct {
	Kind          uint8
	Divisibility  uint8
	Metadata      []rlpMetadataEntry
	Authorization []rlpAuthEntry
	TotalSupply   []byte
}

// Encode returns the canonical, deterministic encoding of the resource
// manager's state. Maps are flattened to key-sorted slices first — map
// iteration order in Go is randomized, so encoding a map directly would
// make the same logical state serialize differently from one commit to
// the next.
func (r *ResourceManager) Encode() []byte {
	metadata := make([]rlpMetadataEntry, 0, len(r.metadata))
	for k, v := range r.metadata {
		metadata = append(metadata, rlpMetadataEntry{Key: k, Value: v})
	}
	sort.Slice(metadata, func(i, j int) bool { return metadata[i].Key < metadata[j].Key })

	auth := make([]rlpAuthEntry, 0, len(allAuthKeys))
	for _, key := range allAuthKeys {
		rule := r.authorization[key]
		auth = append(auth, rlpAuthEntry{Key: uint8(key), Auth: uint8(rule.Auth()), UpdateAuth: uint8(rule.UpdateAuth())})
	}

	payload := rlpResourceManager{
		Kind:          uint8(r.resourceType.Kind),
		Divisibility:  r.resourceType.Divisibility,
		Metadata:      metadata,
		Authorization: auth,
		TotalSupply:   r.totalSupply.BigInt().Bytes(),
	}
	encoded, err := rlp.EncodeToBytes(payload)
	if err != nil {
		panic("track: rlp encode resource manager: " + err.Error())
	}
	return encoded
}
