package swap

import (
	"wallet-swap/pkg/types"
)

// CurrencyStatus tells whether a currency can be picked in the swap form
type CurrencyStatus string

const (
	StatusOK         CurrencyStatus = "ok"
	StatusNoApp      CurrencyStatus = "noApp"
	StatusNoAccounts CurrencyStatus = "noAccounts"
)

// CanRequestRates reports whether the snapshot is complete enough to be quoted
func CanRequestRates(s State) bool {
	ex := s.Swap.Exchange
	return s.FromCurrency != nil &&
		s.ToCurrency != nil &&
		ex.FromAccount != nil &&
		ex.ToAccount != nil &&
		s.FromAmount.IsPositive() &&
		!s.HasRate()
}

// CurrenciesWithStatus computes the status of every selectable currency. A
// currency is ok when the device app of its chain is installed and an
// account of its chain holds funds.
func CurrenciesWithStatus(accounts []*types.Account, installedApps []string, selectable []*types.Currency) map[string]CurrencyStatus {
	installed := make(map[string]bool, len(installedApps))
	for _, name := range installedApps {
		installed[name] = true
	}

	funded := make(map[string]bool)
	for _, a := range accounts {
		if a.HasBalance() && a.Currency != nil {
			funded[a.Currency.ID] = true
		}
	}

	statuses := make(map[string]CurrencyStatus, len(selectable))
	for _, c := range selectable {
		main := c.MainCurrency()
		switch {
		case !installed[main.ManagerAppName]:
			statuses[c.ID] = StatusNoApp
		case !funded[main.ID]:
			statuses[c.ID] = StatusNoAccounts
		default:
			statuses[c.ID] = StatusOK
		}
	}

	return statuses
}

// OKCurrencies keeps the selectable currencies whose status is ok, in order
func OKCurrencies(selectable []*types.Currency, statuses map[string]CurrencyStatus) []*types.Currency {
	var ok []*types.Currency
	for _, c := range selectable {
		if statuses[c.ID] == StatusOK {
			ok = append(ok, c)
		}
	}
	return ok
}
