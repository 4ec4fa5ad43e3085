// Package models defines the core domain models for teamtab.
//
// # Models
//
//   - Team: the tenant boundary; owns participants and transactions
//   - Participant: a named party who can pay for or share in an expense
//   - Transaction: one recorded expense or repayment
//   - Split: a transaction's allocation of cost onto one participant
//
// Net balances are derived from transactions and splits on every read and
// are never stored (see package calculator).
//
// # Design Principles
//
//  1. **Explicit team scope**: every record carries its TeamID; nothing reads
//     an ambient "current team".
//  2. **History is never orphaned**: participants are tombstoned (RemovedAt),
//     not deleted, so old splits keep resolving a name.
//  3. **Decimal money**: amounts are shopspring decimals with two fractional
//     digits.
//  4. **Avoid circular references**: use ID strings instead of pointers for
//     relationships.
package models
