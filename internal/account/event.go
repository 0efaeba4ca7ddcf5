package account

import (
	"time"

	"github.com/google/uuid"
	"google.golang.org/genproto/googleapis/type/money"

	"github.com/get-retrace/go-retrace/message"
)

var (
	_ message.Message = new(Opened)
	_ message.Message = new(Deposited)
	_ message.Message = new(Withdrawn)
)

// Opened is the domain event fired after an Account is opened.
type Opened struct {
	ID       uuid.UUID
	Owner    string
	Currency string
	At       time.Time
}

// Name implements message.Message.
func (*Opened) Name() string { return "AccountOpened" }

// Deposited is the domain event fired after money is deposited
// on an Account.
type Deposited struct {
	Amount *money.Money
}

// Name implements message.Message.
func (*Deposited) Name() string { return "AccountDeposited" }

// Withdrawn is the domain event fired after money is withdrawn
// from an Account.
type Withdrawn struct {
	Amount *money.Money
}

// Name implements message.Message.
func (*Withdrawn) Name() string { return "AccountWithdrawn" }
