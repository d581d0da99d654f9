package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"shared-basket/internal/app"
	"shared-basket/internal/basket"
	"shared-basket/internal/catalog"
	"shared-basket/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func errorReply(prefix string, err error) reply {
	safeErr := strings.ReplaceAll(err.Error(), "`", "'")
	return reply{Text: fmt.Sprintf("❌ *%s:*\n```\n%v\n```", prefix, safeErr)}
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func formatMoney(d decimal.Decimal) string {
	return "₪" + d.StringFixed(2)
}

func activeStore(v app.View) *catalog.Store {
	if v.Mode == basket.ModeSingleStore {
		return v.SelectedStore
	}
	return nil
}

// formatList numbers items in display order; /bought refers to these numbers.
func formatList(v app.View) string {
	if len(v.Items) == 0 {
		return "🛒 The list is empty."
	}

	var sb strings.Builder
	sb.WriteString("🛒 *Shopping List*\n\n")
	active := activeStore(v)
	for i, it := range v.Items {
		mark := "▫️"
		if it.IsBought {
			mark = "✅"
		}
		line := fmt.Sprintf("%d. %s %s %s %s %s", i+1, mark, it.Emoji, escape(it.Name), formatQuantity(it.Quantity), escape(it.Unit))
		if it.IsPriority {
			line += " ❗"
		}
		switch store, ok := basket.AssignedStore(it, active); {
		case it.Scanning():
			line += " _(scanning prices)_"
		case ok:
			line += fmt.Sprintf(" - %s (%s)", formatMoney(it.PriceAt(store)), escape(string(store)))
		}
		sb.WriteString(line + "\n")
	}
	if v.Scanning > 0 {
		sb.WriteString(fmt.Sprintf("\n_%d item(s) still scanning_\n", v.Scanning))
	}
	return sb.String()
}

func formatTotals(v app.View) string {
	var sb strings.Builder
	sb.WriteString("💰 *Totals*\n\n")

	switch {
	case v.Mode == basket.ModeSingleStore && v.SelectedStore != nil:
		sb.WriteString(fmt.Sprintf("Mode: single store (%s)\n", escape(string(*v.SelectedStore))))
	case v.Mode == basket.ModeSingleStore:
		sb.WriteString("Mode: single store (none selected)\n")
	default:
		sb.WriteString("Mode: cheapest split basket\n")
	}
	sb.WriteString(fmt.Sprintf("*Total:* %s (shipping %s)\n", formatMoney(v.Totals.Total), formatMoney(v.Totals.Shipping)))
	sb.WriteString(fmt.Sprintf("*In cart:* %s (%.0f%%)\n\n", formatMoney(v.Totals.Spent), v.Progress))

	cheapest, _ := v.Breakdown.CheapestStore()
	for _, s := range catalog.Stores {
		t := v.Breakdown.Stores[s]
		marker := ""
		if s == cheapest && len(v.Items) > 0 {
			marker = " 🏆"
		}
		sb.WriteString(fmt.Sprintf("• %s: %s%s\n", escape(string(s)), formatMoney(t.Total), marker))
	}
	sb.WriteString(fmt.Sprintf("• Split basket: %s\n", formatMoney(v.Breakdown.Cheapest.Total)))
	return sb.String()
}

func formatMetrics(usage []metrics.DailyUsage, health metrics.Health) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d calls, %d fallbacks)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution, d.TotalFallback))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB heap / %dMB reserved\n", health.HeapMB, health.ReservedMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• State: %d files, %s\n", health.StateFiles, health.StateSize()))
	return sb.String()
}
