package core

// Currency describes one entry of the supported-currency table.
type Currency struct {
	Code   string
	Symbol string
	Name   string
}

// SupportedCurrencies is the fixed set of currencies a user may pick as
// their display currency. Codes outside this table are never written by
// the UI but may appear in the database; symbol resolution then fails
// and callers keep whatever symbol they had.
var SupportedCurrencies = []Currency{
	{Code: "USD", Symbol: "$", Name: "US Dollar"},
	{Code: "EUR", Symbol: "€", Name: "Euro"},
	{Code: "GBP", Symbol: "£", Name: "British Pound"},
	{Code: "INR", Symbol: "₹", Name: "Indian Rupee"},
	{Code: "JPY", Symbol: "¥", Name: "Japanese Yen"},
	{Code: "CNY", Symbol: "¥", Name: "Chinese Yuan"},
	{Code: "CAD", Symbol: "C$", Name: "Canadian Dollar"},
	{Code: "AUD", Symbol: "A$", Name: "Australian Dollar"},
}

// SymbolFor resolves a currency code to its display symbol.
func SymbolFor(code string) (string, bool) {
	for _, c := range SupportedCurrencies {
		if c.Code == code {
			return c.Symbol, true
		}
	}
	return "", false
}

// SupportedCurrency reports whether code is in the supported table.
func SupportedCurrency(code string) bool {
	_, ok := SymbolFor(code)
	return ok
}
