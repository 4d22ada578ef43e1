package service

import (
	"context"
	"testing"
)

func TestPortfolioService_GetHoldingsAndSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.place(t, "user-1", "TCS", 2, "BUY"); err != nil {
		t.Fatalf("BUY TCS: %v", err)
	}
	if _, err := env.place(t, "user-1", "INFY", 10, "BUY"); err != nil {
		t.Fatalf("BUY INFY: %v", err)
	}
	env.prices.set("INFY", "165")
	env.prices.set("TCS", "3040")

	views, err := env.portfolio.GetHoldings(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetHoldings: %v", err)
	}
	if len(views) != 2 || views[0].Symbol != "INFY" || views[1].Symbol != "TCS" {
		t.Fatalf("views = %+v, want INFY then TCS", views)
	}
	infy := views[0]
	if !infy.CurrentPrice.Equal(dec("165")) || !infy.MarketValue.Equal(dec("1650")) ||
		!infy.Invested.Equal(dec("1500")) || !infy.PnL.Equal(dec("150")) || !infy.PnLPercent.Equal(dec("10")) {
		t.Errorf("INFY view = %+v", infy)
	}
	tcs := views[1]
	if !tcs.PnL.Equal(dec("-320")) || !tcs.PnLPercent.Equal(dec("-5")) {
		t.Errorf("TCS view pnl = %s (%s%%), want -320 (-5%%)", tcs.PnL, tcs.PnLPercent)
	}

	sum, err := env.portfolio.Summary(ctx, "user-1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	// 100000 − 6400 − 1500
	if !sum.Balance.Equal(dec("92100")) {
		t.Errorf("balance = %s, want 92100", sum.Balance)
	}
	if !sum.TotalInvested.Equal(dec("7900")) || !sum.TotalCurrent.Equal(dec("7730")) || !sum.TotalPnL.Equal(dec("-170")) {
		t.Errorf("totals = %s/%s/%s, want 7900/7730/-170", sum.TotalInvested, sum.TotalCurrent, sum.TotalPnL)
	}
	if !sum.NetWorth.Equal(dec("99830")) {
		t.Errorf("netWorth = %s, want 99830", sum.NetWorth)
	}
	if sum.Holdings != 2 || sum.Currency != "USD" {
		t.Errorf("summary = %+v", sum)
	}
}

func TestPortfolioService_EmptyPortfolio(t *testing.T) {
	env := newTestEnv(t)
	sum, err := env.portfolio.Summary(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !sum.NetWorth.Equal(dec("100000")) || !sum.TotalPnLPct.IsZero() || sum.Holdings != 0 {
		t.Errorf("summary = %+v, want untouched 100000 wallet", sum)
	}
}
