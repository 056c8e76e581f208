// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package eligibility checks whether an identity may vote for an artwork.
package eligibility
