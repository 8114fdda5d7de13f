package leaderelect

import "testing"

func TestElectLeader_IsDeterministicAcrossCallers(t *testing.T) {
	nominated := []string{"validator-c", "validator-a", "validator-b"}

	first, err := ElectLeader(5, nominated)
	if err != nil {
		t.Fatalf("ElectLeader: %v", err)
	}

	// A different ordering of the same nominated set must elect the same
	// leader, since every validator builds its CometBFT set independently.
	reordered := []string{"validator-b", "validator-c", "validator-a"}
	second, err := ElectLeader(5, reordered)
	if err != nil {
		t.Fatalf("ElectLeader: %v", err)
	}

	if first != second {
		t.Fatalf("expected the same leader regardless of input order, got %q and %q", first, second)
	}
}

func TestElectLeader_CanChangeAcrossEpochs(t *testing.T) {
	nominated := []string{"validator-a", "validator-b", "validator-c", "validator-d"}

	leaders := map[string]bool{}
	for epoch := uint64(0); epoch < 8; epoch++ {
		leader, err := ElectLeader(epoch, nominated)
		if err != nil {
			t.Fatalf("ElectLeader: %v", err)
		}
		leaders[leader] = true
	}

	if len(leaders) < 2 {
		t.Fatalf("expected leadership to rotate across epochs, only ever saw %v", leaders)
	}
}

func TestElectLeader_RejectsEmptySet(t *testing.T) {
	if _, err := ElectLeader(0, nil); err == nil {
		t.Fatal("expected an error for an empty nominated set")
	}
}

func TestElectLeader_ElectedAddressIsAlwaysAMember(t *testing.T) {
	nominated := []string{"validator-a", "validator-b", "validator-c"}
	for epoch := uint64(0); epoch < 5; epoch++ {
		leader, err := ElectLeader(epoch, nominated)
		if err != nil {
			t.Fatalf("ElectLeader: %v", err)
		}
		found := false
		for _, addr := range nominated {
			if addr == leader {
				found = true
			}
		}
		if !found {
			t.Fatalf("elected leader %q is not in the nominated set", leader)
		}
	}
}
