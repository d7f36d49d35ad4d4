package main

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// formatter renders amounts with the grouping of the configured locale.
type formatter struct {
	p *message.Printer
}

func newFormatter(locale string) *formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &formatter{p: message.NewPrinter(tag)}
}

func (f *formatter) Amount(d decimal.Decimal) string {
	return f.p.Sprint(number.Decimal(d.InexactFloat64(), number.MaxFractionDigits(2)))
}

func (f *formatter) Count(n int) string {
	return f.p.Sprint(number.Decimal(n))
}
