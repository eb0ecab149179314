package parser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormAction is an edit of the interactive swap form
type FormAction int

const (
	ActionShow FormAction = iota
	ActionFrom
	ActionTo
	ActionAmount
	ActionMax
	ActionAccount
	ActionAccounts
	ActionRetry
	ActionConfirm
	ActionHelp
	ActionQuit
)

// Side of the exchange an account command targets
const (
	SideFrom = "from"
	SideTo   = "to"
)

// FormCommand is one parsed line of the interactive form
type FormCommand struct {
	Action FormAction
	Symbol string // currency ticker or id
	Chain  string
	Amount string
	Side   string
	ID     string
}

// FormHelp lists the form commands
const FormHelp = `Commands:
  from <token> [on <chain>]   select the currency to send
  to <token> [on <chain>]     select the currency to receive
  amount <value> | <value>    set the amount to send
  max                         toggle sending the whole spendable balance
  account from|to <id>        select an account
  accounts                    list eligible accounts
  retry                       request a new quote
  confirm                     proceed with the current quote
  show                        print the form
  help                        print this help
  quit                        leave`

// ParseFormCommand parses a line typed in the interactive swap form
func ParseFormCommand(line string) (FormCommand, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return FormCommand{Action: ActionShow}, nil
	}

	verb := strings.ToLower(fields[0])
	args := fields[1:]

	// a bare number sets the amount
	if _, err := decimal.NewFromString(verb); err == nil && len(args) == 0 {
		return parseAmount(verb)
	}

	switch verb {
	case "show", "status", "s":
		return noArgs(ActionShow, verb, args)
	case "from":
		return parseCurrency(ActionFrom, args)
	case "to":
		return parseCurrency(ActionTo, args)
	case "amount", "a":
		if len(args) != 1 {
			return FormCommand{}, fmt.Errorf("usage: amount <value>")
		}
		return parseAmount(args[0])
	case "max", "all":
		return noArgs(ActionMax, verb, args)
	case "account":
		return parseAccount(args)
	case "accounts":
		return noArgs(ActionAccounts, verb, args)
	case "retry", "r":
		return noArgs(ActionRetry, verb, args)
	case "confirm", "swap", "go":
		return noArgs(ActionConfirm, verb, args)
	case "help", "h", "?":
		return noArgs(ActionHelp, verb, args)
	case "quit", "exit", "q":
		return noArgs(ActionQuit, verb, args)
	}

	return FormCommand{}, fmt.Errorf("unknown command %q, type 'help' for the list", fields[0])
}

func noArgs(action FormAction, verb string, args []string) (FormCommand, error) {
	if len(args) > 0 {
		return FormCommand{}, fmt.Errorf("%s takes no arguments", verb)
	}
	return FormCommand{Action: action}, nil
}

func parseCurrency(action FormAction, args []string) (FormCommand, error) {
	switch {
	case len(args) == 1:
		return FormCommand{Action: action, Symbol: NormalizeTokenSymbol(args[0])}, nil
	case len(args) == 3 && strings.EqualFold(args[1], "on"):
		return FormCommand{Action: action, Symbol: NormalizeTokenSymbol(args[0]), Chain: strings.ToLower(args[2])}, nil
	}
	return FormCommand{}, fmt.Errorf("usage: from|to <token> [on <chain>]")
}

func parseAmount(value string) (FormCommand, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return FormCommand{}, fmt.Errorf("invalid amount %q", value)
	}
	if amount.IsNegative() {
		return FormCommand{}, fmt.Errorf("amount must not be negative")
	}
	return FormCommand{Action: ActionAmount, Amount: value}, nil
}

func parseAccount(args []string) (FormCommand, error) {
	if len(args) != 2 {
		return FormCommand{}, fmt.Errorf("usage: account from|to <id>")
	}
	side := strings.ToLower(args[0])
	if side != SideFrom && side != SideTo {
		return FormCommand{}, fmt.Errorf("account side must be 'from' or 'to', got %q", args[0])
	}
	return FormCommand{Action: ActionAccount, Side: side, ID: args[1]}, nil
}
