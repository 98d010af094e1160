package dashboard

import (
	"strings"

	"github.com/betbot/statusdash/internal/api"
)

// TradeStyle 成交金额的展示样式
type TradeStyle string

const (
	StyleWin    TradeStyle = "win"
	StyleDanger TradeStyle = "danger"
)

// TradeRow 最近成交列表的一行
type TradeRow struct {
	Asset   string     `json:"asset"`
	Detail  string     `json:"detail"`  // "CALL • smc"
	Amount  string     `json:"amount"`  // "+$8.50" / "-$3.00"
	Style   TradeStyle `json:"style"`
	Outcome string     `json:"outcome"` // 大写结果，例如 "WIN"
}

// RenderTrades 把成交整体渲染成行，不与上一次结果做 diff。
// 符号只由 result 决定：win 为 "+" 和 win 样式，其余为 "-" 和 danger 样式。
func RenderTrades(trades []api.Trade) []TradeRow {
	rows := make([]TradeRow, 0, len(trades))
	for _, t := range trades {
		sign, style := "-", StyleDanger
		if t.IsWin() {
			sign, style = "+", StyleWin
		}
		rows = append(rows, TradeRow{
			Asset:   t.Asset,
			Detail:  t.Action + " • " + t.Strategy,
			Amount:  sign + FormatMoney(t.Profit),
			Style:   style,
			Outcome: strings.ToUpper(t.Result),
		})
	}
	return rows
}
