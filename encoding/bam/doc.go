// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bam decodes the parts of an alignment record that
// github.com/grailbio/hts/sam leaves to the caller: CIGAR spans and
// reference-to-read offsets, MD-style mismatch tags, and integer aux values.
package bam
