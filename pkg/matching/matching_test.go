package matching

import (
	"testing"

	"github.com/tradeforge/engine/pkg/ids"
	"github.com/tradeforge/engine/pkg/market"
	"github.com/tradeforge/engine/pkg/numeric"
	"github.com/tradeforge/engine/pkg/orders"
	"github.com/tradeforge/engine/pkg/state"
)

func newFixture(t *testing.T) (*Engine, *orders.Service, *state.ExchangeState, ids.AccountId) {
	t.Helper()
	st := state.New(market.FeeSchedule{MakerBps: 10, TakerBps: 10})
	if err := st.Symbols.Register(market.SymbolConfig{
		Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT", PriceScale: 2, QtyScale: 3,
	}); err != nil {
		t.Fatalf("register symbol: %v", err)
	}
	acc := st.Accounts.CreateAccount("")
	ordersSvc := orders.NewService(st)
	eng := NewEngine(ordersSvc, DefaultConfig())
	return eng, ordersSvc, st, acc.Id
}

func dec(s string, scale int) numeric.Int {
	v, err := numeric.ToInt(s, scale, false)
	if err != nil {
		panic(err)
	}
	return v
}

// Scenario 1: LIMIT BUY partial fill against a crossing trade, then a
// second trade that does not improve the remainder (price above the
// order's limit does not cross a BUY).
func TestLimitBuyPartialFillScenario(t *testing.T) {
	eng, ordersSvc, st, accID := newFixture(t)
	if _, err := st.Accounts.Deposit(accID, "USDT", dec("200.00", 2)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	price := dec("100.00", 2)
	order, err := ordersSvc.PlaceOrder(orders.PlaceOrderInput{
		AccountId: accID, Symbol: "BTCUSDT", Type: orders.Limit, Side: orders.Buy, Tif: orders.GTC,
		Price: &price, Qty: dec("1.000", 3), Ts: 0,
	})
	if err != nil || order.Status != orders.Open {
		t.Fatalf("place order failed: %v %+v", err, order)
	}

	reports := eng.OnTrade(TradeEvent{Ts: 1, Symbol: "BTCUSDT", Price: dec("99.00", 2), Qty: dec("0.300", 3)})
	if len(reports) != 1 || reports[0].Kind != ReportFill {
		t.Fatalf("expected exactly one FILL report, got %+v", reports)
	}
	f := reports[0].Fill
	if numeric.FromPriceInt(f.Price, 2) != "99.0" || numeric.FromQtyInt(f.Qty, 3) != "0.3" {
		t.Fatalf("unexpected fill: %+v", f)
	}
	if f.Liquidity != orders.Maker {
		t.Fatalf("expected MAKER liquidity for a resting limit order, got %s", f.Liquidity)
	}

	got, _ := ordersSvc.Get(order.Id)
	if got.Status != orders.PartiallyFilled {
		t.Fatalf("expected PARTIALLY_FILLED, got %s", got.Status)
	}
	if numeric.FromQtyInt(got.ExecutedQty, 3) != "0.3" {
		t.Fatalf("unexpected executedQty: %s", numeric.FromQtyInt(got.ExecutedQty, 3))
	}
	if got.Fees.Maker.DecimalString() != "2" {
		t.Fatalf("unexpected maker fee: %s", got.Fees.Maker.DecimalString())
	}

	// Second trade at 101.00 does not cross a BUY limit at 100.00.
	reports = eng.OnTrade(TradeEvent{Ts: 2, Symbol: "BTCUSDT", Price: dec("101.00", 2), Qty: dec("0.500", 3)})
	if len(reports) != 0 {
		t.Fatalf("expected no reports from a non-crossing trade, got %+v", reports)
	}
	got, _ = ordersSvc.Get(order.Id)
	if got.Status != orders.PartiallyFilled || numeric.FromQtyInt(got.ExecutedQty, 3) != "0.3" {
		t.Fatalf("order should be unchanged by the non-crossing trade: %+v", got)
	}
}

// Scenario 2: FOK BUY canceled outright when the crossing trade's
// available quantity cannot fill the whole order.
func TestFokInsufficientDepthCancels(t *testing.T) {
	eng, ordersSvc, st, accID := newFixture(t)
	if _, err := st.Accounts.Deposit(accID, "USDT", dec("500.00", 2)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	price := dec("101.00", 2)
	order, err := ordersSvc.PlaceOrder(orders.PlaceOrderInput{
		AccountId: accID, Symbol: "BTCUSDT", Type: orders.Limit, Side: orders.Buy, Tif: orders.FOK,
		Price: &price, Qty: dec("1.000", 3), Ts: 15,
	})
	if err != nil || order.Status != orders.Open {
		t.Fatalf("place order failed: %v %+v", err, order)
	}

	reports := eng.OnTrade(TradeEvent{Ts: 16, Symbol: "BTCUSDT", Price: dec("101.00", 2), Qty: dec("0.600", 3)})
	if len(reports) != 1 || reports[0].Kind != ReportUpdated {
		t.Fatalf("expected exactly one ORDER_UPDATED report, got %+v", reports)
	}
	if reports[0].Patch.Status != orders.Canceled {
		t.Fatalf("expected CANCELED patch, got %+v", reports[0].Patch)
	}

	got, _ := ordersSvc.Get(order.Id)
	if got.Status != orders.Canceled || len(got.Fills) != 0 {
		t.Fatalf("expected canceled order with no fills, got %+v", got)
	}
	snap, _ := st.Accounts.GetBalancesSnapshot(accID)
	if numeric.FromPriceInt(snap["USDT"].Free, 2) != "500.0" || !snap["USDT"].Locked.IsZero() {
		t.Fatalf("expected full reservation returned to free, got %+v", snap["USDT"])
	}
}

// Scenario 3: a STOP_LIMIT BUY activates on the trigger-crossing trade,
// then fills across that same event and the next.
func TestStopLimitActivatesThenFills(t *testing.T) {
	eng, ordersSvc, st, accID := newFixture(t)
	if _, err := st.Accounts.Deposit(accID, "USDT", dec("2000.00", 2)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	trigger := dec("100.00", 2)
	limitPrice := dec("101.00", 2)
	order, err := ordersSvc.PlaceOrder(orders.PlaceOrderInput{
		AccountId: accID, Symbol: "BTCUSDT", Type: orders.StopLimit, Side: orders.Buy, Tif: orders.GTC,
		TriggerPrice: &trigger, TriggerDirection: orders.Up, Price: &limitPrice, Qty: dec("1.000", 3), Ts: 0,
	})
	if err != nil || order.Status != orders.Open {
		t.Fatalf("place stop order failed: %v %+v", err, order)
	}

	reports := eng.OnTrade(TradeEvent{Ts: 1, Symbol: "BTCUSDT", Price: dec("99.00", 2), Qty: dec("0.400", 3)})
	if len(reports) != 0 {
		t.Fatalf("expected no activation below trigger, got %+v", reports)
	}
	got, _ := ordersSvc.Get(order.Id)
	if got.Activated {
		t.Fatal("order should not yet be activated")
	}

	reports = eng.OnTrade(TradeEvent{Ts: 2, Symbol: "BTCUSDT", Price: dec("100.00", 2), Qty: dec("0.600", 3)})
	var sawActivation, sawFill bool
	for _, r := range reports {
		if r.Kind == ReportUpdated && r.OrderId == order.Id {
			sawActivation = true
		}
		if r.Kind == ReportFill && r.OrderId == order.Id {
			sawFill = true
			if numeric.FromQtyInt(r.Fill.Qty, 3) != "0.6" {
				t.Fatalf("unexpected fill qty at activation event: %s", numeric.FromQtyInt(r.Fill.Qty, 3))
			}
		}
	}
	if !sawActivation || !sawFill {
		t.Fatalf("expected both activation and fill reports at ts=2, got %+v", reports)
	}
	got, _ = ordersSvc.Get(order.Id)
	if got.Type != orders.Limit || !got.Activated {
		t.Fatalf("expected collapsed, activated order: %+v", got)
	}
	if got.Status != orders.PartiallyFilled || numeric.FromQtyInt(got.ExecutedQty, 3) != "0.6" {
		t.Fatalf("unexpected status after activation fill: %+v", got)
	}

	reports = eng.OnTrade(TradeEvent{Ts: 3, Symbol: "BTCUSDT", Price: dec("101.00", 2), Qty: dec("0.400", 3)})
	var finalFill bool
	for _, r := range reports {
		if r.Kind == ReportFill && r.OrderId == order.Id {
			finalFill = true
		}
	}
	if !finalFill {
		t.Fatalf("expected a closing fill at ts=3, got %+v", reports)
	}
	got, _ = ordersSvc.Get(order.Id)
	if got.Status != orders.Filled || numeric.FromQtyInt(got.ExecutedQty, 3) != "1.0" {
		t.Fatalf("expected FILLED 1.000, got %+v", got)
	}
	if len(got.Fills) != 2 {
		t.Fatalf("expected two fill records, got %d", len(got.Fills))
	}
	if len(ordersSvc.OpenOrdersForSymbol("BTCUSDT")) != 0 {
		t.Fatal("filled order should be removed from openOrders")
	}
}

func TestIOCCancelsWhenNotCrossing(t *testing.T) {
	eng, ordersSvc, st, accID := newFixture(t)
	if _, err := st.Accounts.Deposit(accID, "USDT", dec("1000.00", 2)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	price := dec("90.00", 2)
	order, err := ordersSvc.PlaceOrder(orders.PlaceOrderInput{
		AccountId: accID, Symbol: "BTCUSDT", Type: orders.Limit, Side: orders.Buy, Tif: orders.IOC,
		Price: &price, Qty: dec("1.000", 3), Ts: 0,
	})
	if err != nil || order.Status != orders.Open {
		t.Fatalf("place order failed: %v %+v", err, order)
	}

	reports := eng.OnTrade(TradeEvent{Ts: 1, Symbol: "BTCUSDT", Price: dec("95.00", 2), Qty: dec("1.000", 3)})
	var sawCancel bool
	for _, r := range reports {
		if r.OrderId == order.Id && r.Kind == ReportUpdated && r.Patch.Status == orders.Canceled {
			sawCancel = true
		}
	}
	if !sawCancel {
		t.Fatalf("expected the non-crossing IOC order canceled at the same event, got %+v", reports)
	}
}

func TestParticipationFactorZeroDisablesMatching(t *testing.T) {
	st := state.New(market.FeeSchedule{MakerBps: 10, TakerBps: 10})
	if err := st.Symbols.Register(market.SymbolConfig{
		Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT", PriceScale: 2, QtyScale: 3,
	}); err != nil {
		t.Fatalf("register symbol: %v", err)
	}
	acc := st.Accounts.CreateAccount("")
	ordersSvc := orders.NewService(st)
	eng := NewEngine(ordersSvc, Config{ParticipationFactor: 0, TreatLimitAsMaker: true})

	if _, err := st.Accounts.Deposit(acc.Id, "USDT", dec("1000.00", 2)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	price := dec("100.00", 2)
	order, err := ordersSvc.PlaceOrder(orders.PlaceOrderInput{
		AccountId: acc.Id, Symbol: "BTCUSDT", Type: orders.Limit, Side: orders.Buy, Tif: orders.GTC,
		Price: &price, Qty: dec("1.000", 3), Ts: 0,
	})
	if err != nil || order.Status != orders.Open {
		t.Fatalf("place order failed: %v %+v", err, order)
	}
	reports := eng.OnTrade(TradeEvent{Ts: 1, Symbol: "BTCUSDT", Price: dec("99.00", 2), Qty: dec("5.000", 3)})
	if len(reports) != 0 {
		t.Fatalf("expected no matching with participation factor 0, got %+v", reports)
	}
}
