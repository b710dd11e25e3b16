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

package relay

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// Discover browses mDNS for relay servers for up to timeout and returns
// their WebSocket URLs.
func Discover(ctx context.Context, timeout time.Duration) ([]string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan []string, 1)
	go func() {
		var urls []string
		for entry := range entries {
			if u := entryURL(entry); u != "" {
				urls = append(urls, u)
			}
		}
		done <- urls
	}()

	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to browse for %s: %w", ServiceType, err)
	}
	<-ctx.Done()
	return <-done, nil
}

// entryURL builds ws://addr:port/path from a resolved service entry.
func entryURL(entry *zeroconf.ServiceEntry) string {
	var host string
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0].String()
	case entry.HostName != "":
		host = strings.TrimSuffix(entry.HostName, ".")
	default:
		return ""
	}
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(entry.Port)) + txtPath(entry.Text)
}

func txtPath(txt []string) string {
	for _, kv := range txt {
		if path, ok := strings.CutPrefix(kv, "path="); ok && strings.HasPrefix(path, "/") {
			return path
		}
	}
	return DefaultPath
}
