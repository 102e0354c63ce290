package track

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

func encodeArg(t *testing.T, payload any) []byte {
	t.Helper()
	arg, err := rlp.EncodeToBytes(payload)
	if err != nil {
		t.Fatalf("encode arg: %v", err)
	}
	return arg
}

func createNonFungibleResource(t *testing.T, tr *Track, mint []MintNonFungibleEntry) ResourceManagerCreateOutput {
	t.Helper()
	in := ResourceManagerCreateInput{
		ResourceKind: uint8(ResourceNonFungible),
		Metadata:     []MetadataEntry{{Key: "name", Value: "test"}},
		Auth: []AuthSeedEntry{
			{Key: uint8(AuthMint), Auth: uint8(AllowAll), MutabilityLocked: false, MutabilityRule: uint8(AllowAll)},
		},
		HasMint: len(mint) > 0,
		Mint:    MintParams{Kind: MintKindNonFungible, Entries: mint},
	}
	out, err := StaticMain("create", encodeArg(t, in), tr)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return out
}

func TestStaticMainRejectsUnknownMethod(t *testing.T) {
	tr := NewTrack(newFakeStore(), txHashFor(4), nil)
	if _, err := StaticMain("destroy", nil, tr); err == nil {
		t.Fatalf("expected an invalid-method error")
	} else if _, ok := err.(*InvalidMethodError); !ok {
		t.Fatalf("expected InvalidMethodError, got %T", err)
	}
}

func TestStaticMainRejectsUndecodableInput(t *testing.T) {
	tr := NewTrack(newFakeStore(), txHashFor(4), nil)
	if _, err := StaticMain("create", []byte{0xff, 0xff}, tr); err == nil {
		t.Fatalf("expected an invalid-request-data error")
	} else if _, ok := err.(*InvalidRequestDataError); !ok {
		t.Fatalf("expected InvalidRequestDataError, got %T", err)
	}
}

func TestStaticMainCreateWithInitialMintPublishesResourceAndFillsBucket(t *testing.T) {
	store := newFakeStore()
	tr := NewTrack(store, txHashFor(5), nil)

	out := createNonFungibleResource(t, tr, []MintNonFungibleEntry{
		{Id: "a", Immutable: []byte("ia"), Mutable: []byte("ma")},
		{Id: "b", Immutable: []byte("ib"), Mutable: []byte("mb")},
	})
	if out.Bucket == nil {
		t.Fatalf("an initial mint must produce a bucket")
	}

	addr := ResourceAddr(out.ResourceAddress)
	value, err := tr.BorrowGlobalValue(addr)
	if err != nil {
		t.Fatalf("borrow_global_value failed: %v", err)
	}
	if supply := value.ResourceManagerMut().TotalSupply(); supply.Cmp(NewDecimalFromInt64(2)) != 0 {
		t.Fatalf("expected total supply 2, got %s", supply)
	}
	for _, id := range []string{"a", "b"} {
		if _, ok := tr.GetNonFungible(out.ResourceAddress, id); !ok {
			t.Fatalf("expected non-fungible %q to be present", id)
		}
	}

	receipt, err := tr.ToReceipt()
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	var virtualUps int
	for _, op := range receipt.Operations {
		if op.Kind == OpVirtualUp {
			virtualUps++
		}
	}
	if virtualUps != 1 {
		t.Fatalf("expected one virtual-up for the new non-fungible space, got %d", virtualUps)
	}
	if len(receipt.NewAddresses) != 1 || receipt.NewAddresses[0] != addr {
		t.Fatalf("expected the resource address in NewAddresses")
	}
}

func TestStaticMainCreateIsDeterministic(t *testing.T) {
	runOnce := func() ResourceAddress {
		tr := NewTrack(newFakeStore(), txHashFor(6), nil)
		out := createNonFungibleResource(t, tr, nil)
		return out.ResourceAddress
	}
	if runOnce() != runOnce() {
		t.Fatalf("identical create transactions must allocate identical addresses")
	}
}

func TestMainUnknownMethodIsInvalidAndReleasesTheLock(t *testing.T) {
	tr := NewTrack(newFakeStore(), txHashFor(7), nil)
	out := createNonFungibleResource(t, tr, nil)

	if _, err := Main(out.ResourceAddress, "does_not_exist", nil, tr); err == nil {
		t.Fatalf("expected an invalid-method error")
	} else if _, ok := err.(*InvalidMethodError); !ok {
		t.Fatalf("expected InvalidMethodError, got %T", err)
	}

	// The failed dispatch must have returned the manager: the commit path
	// refuses while anything is still checked out.
	if _, err := tr.ToReceipt(); err != nil {
		t.Fatalf("expected commit to succeed after a failed dispatch: %v", err)
	}
}

func TestMainMintFungibleOverCapLeavesSupplyUnchanged(t *testing.T) {
	tr := NewTrack(newFakeStore(), txHashFor(8), nil)

	in := ResourceManagerCreateInput{
		ResourceKind: uint8(ResourceFungible),
		Divisibility: 0,
	}
	out, err := StaticMain("create", encodeArg(t, in), tr)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	over := MintParams{Kind: MintKindFungible, AmountRaw: NewDecimalFromInt64(100_000_000_001).BigInt().Bytes()}
	if _, err := Main(out.ResourceAddress, "mint", encodeArg(t, over), tr); err == nil {
		t.Fatalf("expected the over-cap mint to be rejected")
	} else if _, ok := err.(*MaxMintAmountExceededError); !ok {
		t.Fatalf("expected MaxMintAmountExceededError, got %T", err)
	}

	supplyBytes, err := Main(out.ResourceAddress, "total_supply", nil, tr)
	if err != nil {
		t.Fatalf("total_supply query failed: %v", err)
	}
	var raw []byte
	if err := rlp.DecodeBytes(supplyBytes, &raw); err != nil {
		t.Fatalf("decode total_supply: %v", err)
	}
	if len(raw) != 0 {
		t.Fatalf("expected zero total supply after the rejected mint, got %x", raw)
	}
}

func TestMainUpdateMetadataReplacesWholesale(t *testing.T) {
	tr := NewTrack(newFakeStore(), txHashFor(9), nil)
	out := createNonFungibleResource(t, tr, nil)

	update := ResourceManagerUpdateMetadataInput{Metadata: []MetadataEntry{{Key: "symbol", Value: "TST"}}}
	if _, err := Main(out.ResourceAddress, "update_metadata", encodeArg(t, update), tr); err != nil {
		t.Fatalf("update_metadata failed: %v", err)
	}

	got, err := Main(out.ResourceAddress, "metadata", nil, tr)
	if err != nil {
		t.Fatalf("metadata query failed: %v", err)
	}
	var entries []MetadataEntry
	if err := rlp.DecodeBytes(got, &entries); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "symbol" || entries[0].Value != "TST" {
		t.Fatalf("expected metadata to be replaced wholesale, got %v", entries)
	}
}

func TestMainLockAuthFreezesTheTargetedRule(t *testing.T) {
	tr := NewTrack(newFakeStore(), txHashFor(10), nil)
	out := createNonFungibleResource(t, tr, nil)

	lockArg := encodeArg(t, resourceManagerLockAuthInput{Method: uint8(AuthMint)})
	if _, err := Main(out.ResourceAddress, "lock_auth", lockArg, tr); err != nil {
		t.Fatalf("lock_auth failed: %v", err)
	}

	value, err := tr.BorrowGlobalValue(ResourceAddr(out.ResourceAddress))
	if err != nil {
		t.Fatalf("borrow_global_value failed: %v", err)
	}
	rule, err := value.ResourceManagerMut().GetAuth("lock_auth", lockArg)
	if err != nil {
		t.Fatalf("get_auth failed: %v", err)
	}
	if rule != DenyAll {
		t.Fatalf("expected the locked rule's update_auth to be DenyAll, got %v", rule)
	}
}

func TestMainCreateVaultStagesAPendingNode(t *testing.T) {
	tr := NewTrack(newFakeStore(), txHashFor(11), nil)
	out := createNonFungibleResource(t, tr, nil)

	got, err := Main(out.ResourceAddress, "create_vault", nil, tr)
	if err != nil {
		t.Fatalf("create_vault failed: %v", err)
	}
	var node uint64
	if err := rlp.DecodeBytes(got, &node); err != nil {
		t.Fatalf("decode create_vault output: %v", err)
	}

	owner := tr.ids.NewComponentAddress(tr.txHash)
	vaultID := tr.ids.NewVaultId(tr.txHash)
	if err := tr.GlobalizeNode(ValueId(node), VaultAddr(owner, vaultID)); err != nil {
		t.Fatalf("globalize staged vault failed: %v", err)
	}
}
