// Package models defines the core domain models for utilipay.
//
// # Models
//
//   - User: Registered customer account used for authentication
//   - Account: A utility service account (gas or water) owned by a user
//   - BankLink: The linked-bank credential attached to an account
//   - Bill: An amount due on an account, moved through the payment lifecycle
//   - PaymentTransaction: The immutable settlement receipt for a paid bill
//   - UsageLog: Historical meter readings for an account
//
// # Design Principles
//
// 1. **Money is decimal**: amounts use shopspring/decimal, never float64
// 2. **Avoid circular references**: relationships are ID strings, not pointers
// 3. **Monotonic lifecycle**: bills only move UNPAID -> PENDING_SETTLEMENT -> PAID
// 4. **Append-only receipts**: payment transactions are never updated or deleted
package models
