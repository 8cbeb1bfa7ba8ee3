package domain

import (
	"errors"
	"testing"

	"agritrace/pkg/auth"
)

func TestValidTransition_HappyPath(t *testing.T) {
	steps := []struct {
		from, to Status
	}{
		{StatusHarvested, StatusInTransit},
		{StatusInTransit, StatusDelivered},
		{StatusDelivered, StatusProcessed},
		{StatusDelivered, StatusSold},
	}
	for _, s := range steps {
		if err := ValidTransition(s.from, s.to, auth.RoleDistributor, true); err != nil {
			t.Errorf("%s -> %s: %v", s.from, s.to, err)
		}
	}
}

func TestValidTransition_TerminalStates(t *testing.T) {
	for _, terminal := range []Status{StatusSold, StatusCancelled} {
		for _, to := range []Status{StatusHarvested, StatusInTransit, StatusDelivered, StatusProcessed, StatusSold, StatusCancelled} {
			err := ValidTransition(terminal, to, auth.RoleAdmin, true)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s -> %s: want ErrInvalidTransition, got %v", terminal, to, err)
			}
		}
	}
}

func TestValidTransition_NoReentryToHarvested(t *testing.T) {
	err := ValidTransition(StatusInTransit, StatusHarvested, auth.RoleAdmin, true)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("want ErrInvalidTransition, got %v", err)
	}
}

func TestValidTransition_CancelFromAnyNonTerminal(t *testing.T) {
	for _, from := range []Status{StatusHarvested, StatusInTransit, StatusDelivered, StatusProcessed} {
		if err := ValidTransition(from, StatusCancelled, auth.RoleFarmer, true); err != nil {
			t.Errorf("%s -> cancelled: %v", from, err)
		}
	}
}

func TestValidTransition_SkippingStages(t *testing.T) {
	err := ValidTransition(StatusHarvested, StatusDelivered, auth.RoleFarmer, true)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("harvested -> delivered: want ErrInvalidTransition, got %v", err)
	}
	err = ValidTransition(StatusHarvested, StatusSold, auth.RoleFarmer, true)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("harvested -> sold: want ErrInvalidTransition, got %v", err)
	}
}

func TestValidTransition_Ownership(t *testing.T) {
	// 非持有人且非管理员
	err := ValidTransition(StatusHarvested, StatusInTransit, auth.RoleDistributor, false)
	if !errors.Is(err, ErrNotOwner) {
		t.Errorf("non-owner: want ErrNotOwner, got %v", err)
	}
	// 管理员越过持有权检查，但仍受流转表约束
	if err := ValidTransition(StatusHarvested, StatusInTransit, auth.RoleAdmin, false); err != nil {
		t.Errorf("admin: %v", err)
	}
	err = ValidTransition(StatusHarvested, StatusSold, auth.RoleAdmin, false)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("admin invalid edge: want ErrInvalidTransition, got %v", err)
	}
}

func TestValidTransition_UnknownStatus(t *testing.T) {
	if err := ValidTransition(StatusHarvested, Status("rotten"), auth.RoleAdmin, true); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown status: want ErrInvalidInput, got %v", err)
	}
}

func TestValidateTransfer(t *testing.T) {
	// 正常转移
	if err := ValidateTransfer("farmer-1", "farmer-1", "dist-1", auth.RoleFarmer); err != nil {
		t.Errorf("valid transfer: %v", err)
	}
	// 非持有人
	if err := ValidateTransfer("farmer-1", "dist-1", "retail-1", auth.RoleDistributor); !errors.Is(err, ErrNotOwner) {
		t.Errorf("non-owner: want ErrNotOwner, got %v", err)
	}
	// 转给自己
	if err := ValidateTransfer("farmer-1", "farmer-1", "farmer-1", auth.RoleFarmer); !errors.Is(err, ErrSelfTransfer) {
		t.Errorf("self transfer: want ErrSelfTransfer, got %v", err)
	}
	// 管理员可代为转移
	if err := ValidateTransfer("farmer-1", "admin-1", "dist-1", auth.RoleAdmin); err != nil {
		t.Errorf("admin transfer: %v", err)
	}
	// 空接收方
	if err := ValidateTransfer("farmer-1", "farmer-1", "", auth.RoleFarmer); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty recipient: want ErrInvalidInput, got %v", err)
	}
}

func TestCurrentOwnerAndChain(t *testing.T) {
	b := &Batch{BatchID: "AG-2025-100001", FarmerID: "F"}
	events := []*TransferEvent{
		{BatchID: b.BatchID, FromParty: "F", Type: EventCreation},
		{BatchID: b.BatchID, FromParty: "F", ToParty: "D", Type: EventTransfer},
		{BatchID: b.BatchID, FromParty: "D", Type: EventPickup},
		{BatchID: b.BatchID, FromParty: "D", ToParty: "R", Type: EventTransfer},
		{BatchID: b.BatchID, FromParty: "I", Type: EventInspection},
	}
	if owner := CurrentOwner(b, events); owner != "R" {
		t.Errorf("CurrentOwner: got %q", owner)
	}
	chain := CustodyChain(b, events)
	want := []string{"F", "D", "R"}
	if len(chain) != len(want) {
		t.Fatalf("CustodyChain: got %v", chain)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Errorf("CustodyChain[%d]: got %q want %q", i, chain[i], want[i])
		}
	}
	// 无转移事件时回落到农户
	if owner := CurrentOwner(b, nil); owner != "F" {
		t.Errorf("CurrentOwner fallback: got %q", owner)
	}
}
