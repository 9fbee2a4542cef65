// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package breakpoint finds candidate structural-variant breakpoints in
// coordinate-sorted alignments.
//
// Scan sweeps fixed-size windows anchored at every read start and end and
// tests each window for an excess of reads starting or ending in it against a
// binomial null model. Overlapping significant windows are merged into
// regions.
//
// Screen walks the alignments again against those regions, collects the
// mismatches found near read ends inside each region, scores how unlikely
// they are under the local error rate and picks a seed sequence from the read
// most likely to span the breakpoint.
//
// Both stages stream: memory is bounded by the windows, regions and reads
// that can still overlap the current read.
package breakpoint
