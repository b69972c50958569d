package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

func packLog(t *testing.T, name string, values ...any) types.Log {
	t.Helper()
	parsed, err := ContractABI()
	if err != nil {
		t.Fatalf("ContractABI returned error: %v", err)
	}
	ev := parsed.Events[name]
	data, err := ev.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		t.Fatalf("pack %s: %v", name, err)
	}
	return types.Log{
		Address:     contractAddress,
		Topics:      []common.Hash{ev.ID},
		Data:        data,
		BlockNumber: 42,
		Index:       7,
		TxHash:      common.HexToHash("0x01"),
	}
}

func TestDecodeLogPerStream(t *testing.T) {
	client := newTestClient(t, newFakeBackend(), nil)
	audit := domain.MustEncodeName("audit")

	ev, err := client.DecodeLog(port.StreamPermission, packLog(t, "UpdatedPermission", "creation", abiPermission{Permission: audit, IsCustom: true}))
	if err != nil {
		t.Fatalf("DecodeLog returned error: %v", err)
	}
	if ev.Type != port.EventCreation || ev.Permission == nil || ev.Permission.Permission != audit || !ev.Permission.IsCustom {
		t.Fatalf("unexpected permission event: %+v", ev)
	}
	if ev.BlockNumber != 42 || ev.LogIndex != 7 || ev.TxHash == "" {
		t.Fatalf("expected log position to be carried: %+v", ev)
	}

	ev, err = client.DecodeLog(port.StreamRole, packLog(t, "UpdatedRole", "deletion", abiRole{Name: audit, Permissions: [][32]byte{}}))
	if err != nil || ev.Type != port.EventDeletion || ev.Role == nil || ev.Role.Name != audit {
		t.Fatalf("unexpected role event: %+v %v", ev, err)
	}

	ev, err = client.DecodeLog(port.StreamResource, packLog(t, "ResourceUpdated", "blacklist-updated", [32]byte(audit), "did:key:z1"))
	if err != nil || ev.Type != port.EventBlacklistUpdated || ev.Resource == nil || ev.Resource.ListedUser != "did:key:z1" {
		t.Fatalf("unexpected resource event: %+v %v", ev, err)
	}

	ev, err = client.DecodeLog(port.StreamUser, packLog(t, "UserUpdated", "updated-resource-added", "did:key:z1"))
	if err != nil || ev.Type != port.EventUpdatedResourceAdded || ev.EbsiDID != "did:key:z1" {
		t.Fatalf("unexpected user event: %+v %v", ev, err)
	}

	ev, err = client.DecodeLog(port.StreamPermissionDenied, packLog(t, "PermissionDenied", "not an admin"))
	if err != nil || ev.Message != "not an admin" {
		t.Fatalf("unexpected alert event: %+v %v", ev, err)
	}
}

func TestDecodeLogRejectsForeignSignature(t *testing.T) {
	client := newTestClient(t, newFakeBackend(), nil)
	lg := packLog(t, "UserUpdated", "creation", "did:key:z1")

	ev, err := client.DecodeLog(port.StreamPermission, lg)
	if err == nil {
		t.Fatalf("expected signature mismatch error")
	}
	if ev.Stream != port.StreamPermission || ev.Permission != nil {
		t.Fatalf("expected a bare event, got %+v", ev)
	}
	if ev.Validate() == nil {
		t.Fatalf("bare entity event must fail validation")
	}
}

func TestSubscribeDeliversDecodedEvents(t *testing.T) {
	backend := newFakeBackend()
	client := newTestClient(t, backend, nil)

	received := make(chan port.LedgerEvent, 1)
	sub, err := client.Subscribe(context.Background(), port.StreamUser, func(_ context.Context, ev port.LedgerEvent) {
		received <- ev
	})
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer sub.Unsubscribe()

	backend.mu.Lock()
	ch := backend.logsCh
	backend.mu.Unlock()
	if ch == nil {
		t.Fatalf("expected a log filter subscription")
	}
	ch <- packLog(t, "UserUpdated", "deletion", "did:key:z9")

	select {
	case ev := <-received:
		if ev.Type != port.EventDeletion || ev.EbsiDID != "did:key:z9" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestSubscribeUnknownStream(t *testing.T) {
	client := newTestClient(t, newFakeBackend(), nil)
	if _, err := client.Subscribe(context.Background(), port.StreamKind("Bogus"), func(context.Context, port.LedgerEvent) {}); err == nil {
		t.Fatalf("expected unknown stream error")
	}
}
