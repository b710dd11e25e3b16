// go-tagkit
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-tagkit.
//
// go-tagkit is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-tagkit is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-tagkit; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package tagkit

import "fmt"

// ISOType is reported for every tag the session accepts.
const ISOType = "ISO 14443-3A"

// TagReport describes a tag after a read.
type TagReport struct {
	Records             []string
	SerialNumber        string
	TagType             string
	Family              string
	MemoryInfo          string
	ISOType             string
	ChipVariant         ChipVariant
	UsedSize            int
	TotalSize           int
	IsReadOnly          bool
	IsPasswordProtected bool
}

// String renders the report the way the CLI prints it.
func (r *TagReport) String() string {
	s := fmt.Sprintf("Serial: %s\nType: %s %s (%s)\nChip: %s\nMemory: %s\nNDEF: %d/%d bytes\nRead-only: %t\nPassword protected: %t\n",
		r.SerialNumber, r.TagType, r.Family, r.ISOType, r.ChipVariant, r.MemoryInfo,
		r.UsedSize, r.TotalSize, r.IsReadOnly, r.IsPasswordProtected)
	for i, rec := range r.Records {
		s += fmt.Sprintf("Record %d: %s\n", i+1, rec)
	}
	return s
}

// newTagReport fills everything but the records from the session state.
func newTagReport(sess *SessionContext) *TagReport {
	report := &TagReport{
		SerialNumber:        sess.Tag.SerialNumber(),
		TagType:             sess.Tag.Kind.String(),
		Family:              sess.Tag.Family.String(),
		ISOType:             ISOType,
		ChipVariant:         sess.Variant,
		TotalSize:           sess.Status.Capacity,
		IsReadOnly:          sess.Status.Status == StatusReadOnly,
		IsPasswordProtected: sess.Protected,
		MemoryInfo:          "n/a",
	}
	if l, err := sess.Variant.Layout(); err == nil {
		report.TagType = l.Name
		report.MemoryInfo = l.MemoryInfo()
	}
	return report
}
