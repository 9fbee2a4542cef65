// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package stats provides the binomial tail test shared by the window scanner
// and the mismatch scorer.
package stats
