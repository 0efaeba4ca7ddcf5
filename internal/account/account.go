// Package account serves as a small domain example of how to model
// an Aggregate using go-retrace.
//
// This package is used for tests in the parent module.
package account

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genproto/googleapis/type/money"
	"google.golang.org/protobuf/proto"

	"github.com/get-retrace/go-retrace/aggregate"
	"github.com/get-retrace/go-retrace/message"
)

// Type is the Account aggregate type.
var Type = aggregate.Type[uuid.UUID, *Account]{
	Name:    "Account",
	Factory: func() *Account { return new(Account) },
}

// Account is a naive bank account state, modeled as an Aggregate state
// using go-retrace's API.
type Account struct {
	ID       uuid.UUID
	Owner    string
	Balance  *money.Money
	OpenedAt time.Time
}

// Name implements message.Message, so that the Account state can be
// recorded as a Snapshot.
func (a *Account) Name() string { return "Account" }

// CopyState implements aggregate.State, producing the deep copy used to
// seed a Transaction builder.
func (a *Account) CopyState() *Account {
	copied := &Account{
		ID:       a.ID,
		Owner:    a.Owner,
		OpenedAt: a.OpenedAt,
	}

	if a.Balance != nil {
		copied.Balance = proto.Clone(a.Balance).(*money.Money)
	}

	return copied
}

// NewRegistry builds the applier registry for the Account aggregate type.
func NewRegistry() *aggregate.Registry[*Account] {
	return aggregate.NewRegistry[*Account]().
		MustRegister(new(Opened), applyOpened).
		MustRegister(new(Deposited), applyDeposited).
		MustRegister(new(Withdrawn), applyWithdrawn)
}

func applyOpened(builder *Account, msg message.Message) error {
	evt, ok := msg.(*Opened)
	if !ok {
		return fmt.Errorf("account.applyOpened: unexpected message type, %T", msg)
	}

	builder.ID = evt.ID
	builder.Owner = evt.Owner
	builder.OpenedAt = evt.At
	builder.Balance = &money.Money{CurrencyCode: evt.Currency}

	return nil
}

func applyDeposited(builder *Account, msg message.Message) error {
	evt, ok := msg.(*Deposited)
	if !ok {
		return fmt.Errorf("account.applyDeposited: unexpected message type, %T", msg)
	}

	builder.Balance = add(builder.Balance, evt.Amount)

	return nil
}

func applyWithdrawn(builder *Account, msg message.Message) error {
	evt, ok := msg.(*Withdrawn)
	if !ok {
		return fmt.Errorf("account.applyWithdrawn: unexpected message type, %T", msg)
	}

	builder.Balance = add(builder.Balance, negate(evt.Amount))

	return nil
}

const nanosPerUnit = 1_000_000_000

// add sums two money values, assuming the same currency and normalizing
// the nanos component into units.
func add(a, b *money.Money) *money.Money {
	if a == nil {
		return proto.Clone(b).(*money.Money)
	}

	if b == nil {
		return a
	}

	currency := a.GetCurrencyCode()
	if currency == "" {
		currency = b.GetCurrencyCode()
	}

	total := (a.GetUnits()*nanosPerUnit + int64(a.GetNanos())) +
		(b.GetUnits()*nanosPerUnit + int64(b.GetNanos()))

	return &money.Money{
		CurrencyCode: currency,
		Units:        total / nanosPerUnit,
		Nanos:        int32(total % nanosPerUnit),
	}
}

func negate(m *money.Money) *money.Money {
	if m == nil {
		return nil
	}

	return &money.Money{
		CurrencyCode: m.GetCurrencyCode(),
		Units:        -m.GetUnits(),
		Nanos:        -m.GetNanos(),
	}
}
