package insight

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-dashboard/internal/market"
	"portfolio-dashboard/internal/portfolio"
)

type fakeModel struct {
	reply string
	err   error
	seen  []*schema.Message
}

func (f *fakeModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.seen = in
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func testSnapshot(t *testing.T) portfolio.Snapshot {
	t.Helper()
	h := func(sym, price string, qty int64, sector string) portfolio.Holding {
		return portfolio.Holding{Symbol: sym, Name: sym, PurchasePrice: decimal.RequireFromString(price), Quantity: qty, Exchange: "NSE", Sector: sector}
	}
	holdings := []portfolio.Holding{
		h("AAA", "100", 10, "Tech"),
		h("BBB", "50", 10, "Tech"),
		h("CCC", "20", 10, "Energy"),
		h("DDD", "10", 10, "Energy"),
	}
	quotes := map[string]market.Quote{
		"AAA": {Symbol: "AAA", Price: 150},
		"BBB": {Symbol: "BBB", Price: 40},
		"CCC": {Symbol: "CCC", Price: 22},
	}
	snap, err := portfolio.NewEngine(nil).Value(context.Background(), holdings, quotes)
	require.NoError(t, err)
	snap.Source = market.MockName
	return snap
}

func TestFallback(t *testing.T) {
	in := Fallback(testSnapshot(t), "INR")

	assert.Equal(t, ModeRules, in.Mode)
	assert.Equal(t, "Invested ₹1,800.00, now worth ₹2,120.00 (+17.78%).", in.Summary)
	assert.Contains(t, in.Highlights, "Best performer: AAA at +50.00%.")
	assert.Contains(t, in.Highlights, "Weakest performer: BBB at -20.00%.")
	assert.Contains(t, in.Highlights, "Largest sector: Tech with 83.33% of the investment.")
	assert.Contains(t, in.Risks, "Tech holds more than 40% of the portfolio.")
	assert.Contains(t, in.Risks, "No live price for 1 holding(s): [DDD].")
	assert.Contains(t, in.Risks, "Prices come from canned demo data.")
}

func TestFallbackEmpty(t *testing.T) {
	in := Fallback(portfolio.Snapshot{}, "INR")
	assert.Equal(t, "The portfolio is empty.", in.Summary)
	assert.Empty(t, in.Highlights)
}

func TestEvaluateDisabledUsesRules(t *testing.T) {
	a := New(Config{Enabled: false})
	mode, reason := a.Mode()
	assert.Equal(t, ModeRules, mode)
	assert.Equal(t, "disabled by config", reason)

	in, err := a.Evaluate(context.Background(), testSnapshot(t), "INR")
	require.NoError(t, err)
	assert.Equal(t, ModeRules, in.Mode)
}

func TestEvaluateWithModel(t *testing.T) {
	fm := &fakeModel{reply: "Sure:\n```json\n{\"summary\":\" Up 17.78% overall. \",\"highlights\":[\"AAA leads\"]}\n```"}
	a := &Agent{enabled: true, model: fm, modelName: "test-model"}

	in, err := a.Evaluate(context.Background(), testSnapshot(t), "INR")
	require.NoError(t, err)
	assert.Equal(t, ModeLLM, in.Mode)
	assert.Equal(t, "test-model", in.Model)
	assert.Equal(t, "Up 17.78% overall.", in.Summary)
	assert.Equal(t, []string{"AAA leads"}, in.Highlights)
	assert.NotNil(t, in.Risks)

	require.Len(t, fm.seen, 2)
	assert.True(t, strings.Contains(fm.seen[1].Content, `"symbol":"AAA"`))
}

func TestEvaluateModelErrorFallsBack(t *testing.T) {
	a := &Agent{enabled: true, model: &fakeModel{err: errors.New("unavailable")}}

	in, err := a.Evaluate(context.Background(), testSnapshot(t), "INR")
	assert.Error(t, err)
	assert.Equal(t, ModeRules, in.Mode)
	assert.NotEmpty(t, in.Summary)
}

func TestEvaluateGarbageFallsBack(t *testing.T) {
	a := &Agent{enabled: true, model: &fakeModel{reply: "no json here"}}

	in, err := a.Evaluate(context.Background(), testSnapshot(t), "INR")
	assert.Error(t, err)
	assert.Equal(t, ModeRules, in.Mode)
}

func TestParseInsight(t *testing.T) {
	in, err := parseInsight(`{"summary":"ok","risks":["r"]}`)
	require.NoError(t, err)
	assert.Equal(t, "ok", in.Summary)
	assert.Equal(t, []string{"r"}, in.Risks)

	_, err = parseInsight("{broken")
	assert.Error(t, err)
}
