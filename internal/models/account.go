package models

import "time"

// AccountType is the utility a service account is billed for.
type AccountType string

const (
	AccountTypeGas   AccountType = "GAS"
	AccountTypeWater AccountType = "WATER"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	return t == AccountTypeGas || t == AccountTypeWater
}

// Account represents a utility service account owned by a user.
type Account struct {
	// ID is the unique identifier for the account.
	ID string

	// UserID is the owner of the account.
	UserID string

	// Type is the utility billed on this account.
	Type AccountType

	// MeterNumber is the utility's meter identifier.
	MeterNumber string

	// Address is the service address.
	Address string

	// Link is the linked-bank credential, nil when no bank is connected.
	// An account holds at most one link; establishing a new link replaces it.
	Link *BankLink

	// CreatedAt is when the account was onboarded.
	CreatedAt time.Time
}

// HasLinkedBank reports whether the account carries a usable bank credential.
func (a *Account) HasLinkedBank() bool {
	return a.Link != nil && a.Link.AccessToken != ""
}

// BankLink is the persistent credential returned by the linked-account
// data provider after the user approves a connection.
type BankLink struct {
	// AccessToken is the opaque provider credential. Never logged or returned to clients.
	AccessToken string

	// ItemID is the provider's identifier for the connection.
	ItemID string

	// AccountID is the provider's identifier for the chosen bank account.
	AccountID string

	// InstitutionName is the display name of the bank.
	InstitutionName string

	// Mask is the last digits of the bank account number.
	Mask string

	// LinkedAt is when the link was established.
	LinkedAt time.Time
}
