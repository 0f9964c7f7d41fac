/**
 * @description
 * Core domain models for the fund-transfer service. An account holder (user) owns
 * exactly one balance; the account identifier is the user identifier.
 *
 * @notes
 * - Balances are stored as minor units (cents) in `Money` to avoid floating-point
 *   inaccuracies with financial data.
 */

package domain

import "time"

// User is an account holder together with their balance.
// This struct maps directly to the `users` table in the database.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Balance      Money     `json:"balance"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// BalanceSnapshot summarises all balances at one instant.
type BalanceSnapshot struct {
	Accounts int64
	Total    Money
}
