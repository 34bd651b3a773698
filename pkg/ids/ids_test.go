package ids

import "testing"

func TestNextAccountIdMonotonicAndUnique(t *testing.T) {
	var seq AccountSeq
	seen := make(map[AccountId]bool)
	for i := 0; i < 100; i++ {
		id := seq.NextAccountId()
		if seen[id] {
			t.Fatalf("duplicate id %q at iteration %d", id, i)
		}
		seen[id] = true
	}
	if seq.Value() != 100 {
		t.Fatalf("expected counter 100, got %d", seq.Value())
	}
}

func TestRestoreNeverMovesBackwards(t *testing.T) {
	var seq OrderSeq
	seq.NextOrderId()
	seq.NextOrderId()
	seq.Restore(1)
	if seq.Value() != 2 {
		t.Fatalf("restore to a lower value must be a no-op, got %d", seq.Value())
	}
	seq.Restore(10)
	if seq.Value() != 10 {
		t.Fatalf("restore to a higher value must take effect, got %d", seq.Value())
	}
}
