// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bamprovider provides utilities for scanning coordinate-sorted BAM
// files.
//
// The Provider is an interface for reading one BAM file, or several BAM files
// merged by coordinate, either whole or one reference range at a time.
//
// NewProviderFromArg turns a command-line input argument (a BAM path, a list
// of BAM paths, or a file listing BAM paths) into a Provider.
package bamprovider
