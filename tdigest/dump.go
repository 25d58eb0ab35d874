// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package tdigest

import (
	"bytes"
	"fmt"
	"io"
)

// Dump compacts the digest and writes one "index = (mean, weight)" line per
// live centroid to w. A trailing line reports any difference between the
// listed weights and Count(), which only happens if the storage is corrupted.
func (t *TDigest) Dump(w io.Writer) error {
	if err := t.Compact(); err != nil {
		return err
	}

	var buffer bytes.Buffer
	if t.centroids[0].Weight == 0 {
		buffer.WriteString("empty tdigest\n")
	}
	var listed uint64
	for i, c := range t.centroids[:t.config.Capacity()] {
		if c.Weight == 0 {
			break
		}
		listed += c.Weight
		buffer.WriteString(fmt.Sprintf("%d = (%f, %d)\n", i, c.Mean, c.Weight))
	}
	if missing := int64(t.pointCount - listed); missing != 0 {
		buffer.WriteString(fmt.Sprintf("centroids missing %d included values\n", missing))
	}

	if _, err := w.Write(buffer.Bytes()); err != nil {
		return fmt.Errorf("%w: writing dump: %w", ErrIO, err)
	}
	return nil
}
