package domain

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const reportTimeLayout = "2006-01-02T15:04:05.000"

// Report summarises every account in insertion order.
type Report struct {
	GeneratedAt  time.Time       `json:"generated_at"`
	AccountCount int             `json:"account_count"`
	TotalBalance decimal.Decimal `json:"total_balance"`
	Accounts     []Account       `json:"accounts"`
}

func NewReport(accounts []Account, at time.Time) Report {
	r := Report{
		GeneratedAt:  at,
		AccountCount: len(accounts),
		TotalBalance: decimal.Zero,
		Accounts:     make([]Account, 0, len(accounts)),
	}
	for _, a := range accounts {
		r.TotalBalance = r.TotalBalance.Add(a.Balance)
		r.Accounts = append(r.Accounts, a.Clone())
	}
	return r
}

// WriteText renders the report as plain text, one block per account, and
// returns the first write error.
func (r Report) WriteText(w io.Writer) error {
	for _, a := range r.Accounts {
		var history strings.Builder
		for _, tx := range a.History {
			fmt.Fprintf(&history, " - %s - %s: %s\n", tx.Timestamp.Format(reportTimeLayout), tx.Kind.Label(), tx.Amount)
		}

		_, err := fmt.Fprintf(w, "Account Holder: %s\nAccount Number: %s\nBalance: %s\nTransaction History:\n%s\n",
			a.HolderName, a.AccountNumber, a.Balance, history.String())
		if err != nil {
			return err
		}
	}
	return nil
}
