// Package loyalty provides a merchant loyalty-points and referral ledger
// engine for Go applications.
//
// Loyalty is designed as a library, not a service. Import it directly into
// your Go application for maximum performance and flexibility. It provides:
//
//   - Non-negative point balances with an append-only transaction ledger
//   - Atomic balance mutations, serialized per identity key
//   - Idempotent phone-based registration with referral tracking
//   - Uniform 6-digit loyalty code allocation with collision retry
//   - Monetary referral rewards recorded alongside point history
//   - Dashboard projections: totals, source breakdown, leaderboards
//   - Pluggable lifecycle hooks for audit and metrics
//
// # Quick Start
//
// Create an engine instance with your preferred store:
//
//	import (
//	    "github.com/xraph/loyalty"
//	    "github.com/xraph/loyalty/store/memory"
//	)
//
//	// Create engine (memory for demo; the postgres, sqlite and mongo
//	// stores take a *grove.DB)
//	e := loyalty.New(memory.New())
//
//	// Start the engine (migrates and begins background workers)
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
// # Core Concepts
//
// Customer accounts live under a business and are keyed by a 6-digit
// loyalty code or a normalized 10-digit phone number:
//
//	acct, err := e.CreateIdentity(ctx, businessID)
//
//	acct, isNew, err := e.RegisterCustomer(ctx, businessID,
//	    "+1 (555) 123-4567", referrerKey, account.SourceReferral)
//
// Points flow through the ledger:
//
//	added, balance, err := e.EarnPoints(ctx, businessID, key, amountSpent)
//	balance, err = e.RedeemPoints(ctx, businessID, key, 100)
//
// Every mutation appends a transaction record, and an account's balance
// always equals the sum of its records' point changes.
//
// # Consistency
//
// The store's ApplyDelta is the single atomic primitive: the balance check,
// balance write and record append commit together, and mutations on one
// (business, key) pair are linearizable while distinct keys proceed in
// parallel. A redemption that would take the balance negative is rejected
// without side effects.
//
// All monetary reward calculations use integer arithmetic to avoid
// floating-point precision issues; purchase amounts use exact decimals.
//
// # TypeID
//
// Stored records use TypeID for globally unique, type-safe identifiers:
//
//	cust_01h2xcejqtf2nbrexx3vqjhp41  // Account record ID
//	txn_01h455vb4pex5vsknk084sn02q   // Transaction record ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of records.
package loyalty
