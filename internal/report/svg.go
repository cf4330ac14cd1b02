package report

import (
	"bytes"
	"fmt"
	"html"
	"os"

	"sigtrader/internal/backtest"
)

const (
	chartWidth  = 900
	chartHeight = 320
	marketColor = "#59a6ff"
	stratColor  = "#8bff9b"
)

// Chart draws the cumulative market and strategy curves on one axis.
func Chart(result backtest.Result) []byte {
	market, strat := result.Curves.Market, result.Curves.Strategy
	plotW, plotH := float64(chartWidth-80), float64(chartHeight-70)

	var b bytes.Buffer
	fmt.Fprintf(&b, "<svg xmlns='http://www.w3.org/2000/svg' width='%d' height='%d' viewBox='0 0 %d %d'>", chartWidth, chartHeight, chartWidth, chartHeight)
	b.WriteString("<rect width='100%' height='100%' fill='#0b0f17'/>")
	fmt.Fprintf(&b, "<text x='16' y='20' fill='#e6edf3' font-family='Inter' font-size='14'>%s</text>", html.EscapeString(result.Title))
	b.WriteString("<g transform='translate(40,30)'>")
	fmt.Fprintf(&b, "<line x1='0' y1='0' x2='0' y2='%.0f' stroke='#1f2837'/>", plotH)
	fmt.Fprintf(&b, "<line x1='0' y1='%.0f' x2='%.0f' y2='%.0f' stroke='#1f2837'/>", plotH, plotW, plotH)

	if len(market) > 0 {
		lo, hi := bounds(market, strat)
		sx := plotW / float64(max(len(market)-1, 1))
		sy := plotH / (hi - lo + 1e-9)
		polyline(&b, market, sx, sy, lo, plotH, marketColor)
		polyline(&b, strat, sx, sy, lo, plotH, stratColor)
		fmt.Fprintf(&b, "<text x='4' y='12' fill='#8b949e' font-family='Inter' font-size='11'>%.2f</text>", hi)
		fmt.Fprintf(&b, "<text x='4' y='%.0f' fill='#8b949e' font-family='Inter' font-size='11'>%.2f</text>", plotH-4, lo)
	}
	b.WriteString("</g>")
	fmt.Fprintf(&b, "<text x='%d' y='%d' fill='%s' font-family='Inter' font-size='12'>Market Returns</text>", chartWidth-260, chartHeight-12, marketColor)
	fmt.Fprintf(&b, "<text x='%d' y='%d' fill='%s' font-family='Inter' font-size='12'>Strategy Returns</text>", chartWidth-140, chartHeight-12, stratColor)
	b.WriteString("</svg>")
	return b.Bytes()
}

func WriteSVGFile(path string, result backtest.Result) error {
	return os.WriteFile(path, Chart(result), 0o644)
}

func polyline(b *bytes.Buffer, ys []float64, sx, sy, lo, plotH float64, color string) {
	fmt.Fprintf(b, "<polyline fill='none' stroke='%s' stroke-width='1.5' points='", color)
	for i, y := range ys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(b, "%.2f,%.2f", float64(i)*sx, plotH-(y-lo)*sy)
	}
	b.WriteString("'/>")
}

func bounds(curves ...[]float64) (lo, hi float64) {
	first := true
	for _, c := range curves {
		for _, v := range c {
			if first || v < lo {
				lo = v
			}
			if first || v > hi {
				hi = v
			}
			first = false
		}
	}
	return lo, hi
}
