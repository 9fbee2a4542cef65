// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
Command bio-breakpointer finds structural variant breakpoints in
coordinate-sorted single-end alignments. It runs in two stages.

The scan subcommand slides fixed-size windows over the alignments, anchored at
every read start and end, and reports windows where unusually many reads start
or end. Overlapping significant windows are merged into regions, written one
per line as

  chr start end size depth ratio1 ratio2 score

The screen subcommand reads the regions back, walks the alignments again and
looks for mismatches near the ends of the reads overlapping each region.
Regions covered by at least five reads, with mismatches at two or more
positions never seen mismatching away from a read end, are written as GFF
lines with a seed sequence likely to span the breakpoint.

Usage:

  bio-breakpointer scan -readlen=36 -out=regions.txt sample.bam
  bio-breakpointer screen -readlen=36 -qualclip=phred33 -out=breakpoints.gff sample.bam regions.txt
*/
package main
