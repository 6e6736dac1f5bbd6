// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package lottery implements the fairness core of a draw: uniform random
selection, reproducible winner shuffles, and prize allocation.

# Randomness

Source wraps a byte stream and draws integers with rejection sampling, so
every value in [min, max] is equally likely. Live draws read crypto/rand;
replays read an HMAC-SHA256 counter stream keyed on the draw's published
seed. Because the seed is generated before any selection decision and all
shuffle indices derive from it, the seed is a complete, publishable proof
of how the winners were chosen.

# Selection

SelectWinners sorts the ticket pool into canonical order (ascending ticket
number), runs a seeded Fisher-Yates shuffle, and takes the first N tickets
as winners in rank order. VerifySelection repeats the same computation from
a stored seed; if its output matches the recorded winners, the draw is
provably untampered.

# Allocation

Allocate splits a monetary pool across ranks by percentage, with ranks
missing from the distribution falling back to an equal share of the pool.
Non-monetary rewards allocate a description and zero amounts. All money
math uses shopspring/decimal; nothing here rounds to cents, callers do
that at credit time.
*/
package lottery
