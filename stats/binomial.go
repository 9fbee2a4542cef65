// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package stats

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

// MinProb replaces a probability of exactly zero wherever the probability is
// used as a denominator or passed to a logarithm.
const MinProb = 1e-9

// BinomialUpperTail returns P(X >= successes) for X ~ Binomial(trials, p).
//
// The tail is evaluated as the regularized incomplete beta function
// I_p(successes, trials-successes+1), which stays accurate far into the tail
// where 1-CDF would round to zero.
func BinomialUpperTail(successes, trials int, p float64) float64 {
	switch {
	case successes <= 0:
		return 1
	case successes > trials:
		return 0
	case p <= 0:
		return 0
	case p >= 1:
		return 1
	}
	return mathext.RegIncBeta(float64(successes), float64(trials-successes+1), p)
}

// Nudge returns MinProb if p is zero, and p otherwise.
func Nudge(p float64) float64 {
	if p == 0 {
		return MinProb
	}
	return p
}

// NegLog10 returns -log10(p), with zero nudged to MinProb.
func NegLog10(p float64) float64 {
	return -math.Log10(Nudge(p))
}
