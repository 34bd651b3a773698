package accounts

import (
	"testing"

	"github.com/tradeforge/engine/pkg/ids"
	"github.com/tradeforge/engine/pkg/numeric"
)

func newService() (*Service, *ids.AccountSeq) {
	var seq ids.AccountSeq
	return NewService(&seq), &seq
}

func amt(s string) numeric.Int {
	v, err := numeric.ToPriceInt(s, 2)
	if err != nil {
		panic(err)
	}
	return v
}

func TestDepositLockUnlock(t *testing.T) {
	s, _ := newService()
	acc := s.CreateAccount("")

	if _, err := s.Deposit(acc.Id, "USDT", amt("200.00")); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	ok, err := s.Lock(acc.Id, "USDT", amt("150.00"))
	if err != nil || !ok {
		t.Fatalf("lock failed: ok=%v err=%v", ok, err)
	}

	snap, err := s.GetBalancesSnapshot(acc.Id)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	bal := snap["USDT"]
	if numeric.FromPriceInt(bal.Free, 2) != "50.0" || numeric.FromPriceInt(bal.Locked, 2) != "150.0" {
		t.Fatalf("unexpected balance after lock: %+v", bal)
	}

	if err := s.Unlock(acc.Id, "USDT", amt("150.00")); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	snap, _ = s.GetBalancesSnapshot(acc.Id)
	bal = snap["USDT"]
	if numeric.FromPriceInt(bal.Free, 2) != "200.0" || !bal.Locked.IsZero() {
		t.Fatalf("unexpected balance after unlock: %+v", bal)
	}
}

func TestLockInsufficientFreeReturnsFalse(t *testing.T) {
	s, _ := newService()
	acc := s.CreateAccount("")
	_, _ = s.Deposit(acc.Id, "USDT", amt("10.00"))

	ok, err := s.Lock(acc.Id, "USDT", amt("20.00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected lock to fail (insufficient free), got ok=true")
	}
}

func TestUnlockMoreThanLockedFails(t *testing.T) {
	s, _ := newService()
	acc := s.CreateAccount("")
	_, _ = s.Deposit(acc.Id, "USDT", amt("10.00"))
	if _, err := s.Lock(acc.Id, "USDT", amt("10.00")); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if err := s.Unlock(acc.Id, "USDT", amt("20.00")); err == nil {
		t.Fatal("expected validation error unlocking more than locked")
	}
}

func TestUnknownAccountIsNotFound(t *testing.T) {
	s, _ := newService()
	if _, err := s.Get(ids.AccountId("acc-999")); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestApplyTradeFeesLockedVsFree(t *testing.T) {
	s, _ := newService()
	acc := s.CreateAccount("")
	_, _ = s.Deposit(acc.Id, "USDT", amt("100.00"))
	_, _ = s.Lock(acc.Id, "USDT", amt("100.00"))

	if err := s.ApplyTradeFees(acc.Id, "USDT", amt("1.00"), true); err != nil {
		t.Fatalf("apply fee (locked) failed: %v", err)
	}
	snap, _ := s.GetBalancesSnapshot(acc.Id)
	if numeric.FromPriceInt(snap["USDT"].Locked, 2) != "99.0" {
		t.Fatalf("expected locked reduced by fee, got %+v", snap["USDT"])
	}

	if err := s.CreditFree(acc.Id, "USDT", amt("5.00")); err != nil {
		t.Fatalf("credit free failed: %v", err)
	}
	if err := s.ApplyTradeFees(acc.Id, "USDT", amt("0.50"), false); err != nil {
		t.Fatalf("apply fee (free) failed: %v", err)
	}
	snap, _ = s.GetBalancesSnapshot(acc.Id)
	if numeric.FromPriceInt(snap["USDT"].Free, 2) != "4.5" {
		t.Fatalf("expected free reduced by fee, got %+v", snap["USDT"])
	}
}
