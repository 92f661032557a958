package main

import (
	"fmt"
	"math"
	"strings"
)

// FormatListing renders one offer as a Telegram HTML message. The URL goes
// first so the client attaches a link preview with the offer photo.
func FormatListing(l Listing) string {
	var b strings.Builder
	b.WriteString(l.URL)
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("<b>%s ₽</b> · %d-к, %s м²\n", formatPrice(l.Price), l.Rooms, formatArea(l.Area)))
	b.WriteString(escapeHTML(l.Address))
	if l.TravelTime > 0 {
		minutes := int(math.Round(l.TravelTime.Minutes()))
		b.WriteString(fmt.Sprintf("\n🚗 ~%d мин в пути", minutes))
	}
	return b.String()
}

// FormatSummary renders the end-of-run digest with per-source totals.
func FormatSummary(stats *RunStats) string {
	cian := stats.ForSource(SourceIDCian)
	yandex := stats.ForSource(SourceIDYandex)
	return fmt.Sprintf(
		"ℹ️ <b>Сводка</b>\n"+
			"Циан   — %d / новых %d\n"+
			"Яндекс — %d / новых %d",
		cian.Fetched, cian.New,
		yandex.Fetched, yandex.New,
	)
}

// formatPrice groups thousands with spaces: 45000 -> "45 000".
func formatPrice(price int) string {
	s := fmt.Sprintf("%d", price)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return strings.Join(parts, " ")
}

func formatArea(area float64) string {
	if area == math.Trunc(area) {
		return fmt.Sprintf("%.0f", area)
	}
	return fmt.Sprintf("%.1f", area)
}

func escapeHTML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return replacer.Replace(s)
}
