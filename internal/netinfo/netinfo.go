// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

// Package netinfo detects the address pair the process is reachable at:
// the external (NAT-facing) address via an HTTP probe and the internal
// address from interface enumeration.
package netinfo

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DefaultProbeURL answers GET with the caller's public address as plain
// text.
const DefaultProbeURL = "https://api.ipify.org"

const (
	probeTimeout    = 5 * time.Second
	probeMaxRetries = 4
	probeBodyLimit  = 64
)

// AddressPair is the detected pair. External is the zero Addr when the
// probe failed; that is a degraded mode, not an error, since LAN-only
// deployments have no external address.
type AddressPair struct {
	External netip.Addr
	Internal netip.Addr
}

// HasExternal reports whether an external address was detected.
func (p AddressPair) HasExternal() bool {
	return p.External.IsValid()
}

// Detect builds the address pair. The external probe is retried with
// exponential backoff; persistent failure logs a warning and leaves
// External unset.
func Detect(ctx context.Context, probeURL string) AddressPair {
	if probeURL == "" {
		probeURL = DefaultProbeURL
	}

	var pair AddressPair

	internal, err := detectInternal()
	if err != nil {
		slog.Warn("could not detect internal address", "error", err)
	} else {
		pair.Internal = internal
	}

	external, err := detectExternal(ctx, probeURL)
	if err != nil {
		slog.Warn("could not detect external address, continuing without one",
			"probe_url", probeURL,
			"error", err,
		)
	} else {
		pair.External = external
	}

	return pair
}

// detectInternal picks the first global unicast IPv4 address on a non-down
// interface.
func detectInternal() (netip.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return netip.Addr{}, oops.Code("NETINFO_INTERFACES_FAILED").Wrap(err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			parsed, ok := netip.AddrFromSlice(ipNet.IP)
			if !ok {
				continue
			}
			parsed = parsed.Unmap()
			if parsed.Is4() && parsed.IsGlobalUnicast() {
				return parsed, nil
			}
		}
	}
	return netip.Addr{}, oops.Code("NETINFO_NO_ADDRESS").Errorf("no usable interface address found")
}

func detectExternal(ctx context.Context, probeURL string) (netip.Addr, error) {
	client := &http.Client{Timeout: probeTimeout}

	var detected netip.Addr
	backoff := retry.WithMaxRetries(probeMaxRetries, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		addr, err := probeOnce(ctx, client, probeURL)
		if err != nil {
			return retry.RetryableError(err)
		}
		detected = addr
		return nil
	})
	if err != nil {
		return netip.Addr{}, err
	}
	return detected, nil
}

func probeOnce(ctx context.Context, client *http.Client, probeURL string) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return netip.Addr{}, oops.Code("NETINFO_PROBE_FAILED").Wrap(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return netip.Addr{}, oops.Code("NETINFO_PROBE_FAILED").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, oops.Code("NETINFO_PROBE_FAILED").
			With("status", resp.StatusCode).
			Errorf("probe returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, probeBodyLimit))
	if err != nil {
		return netip.Addr{}, oops.Code("NETINFO_PROBE_FAILED").Wrap(err)
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(string(body)))
	if err != nil {
		return netip.Addr{}, oops.Code("NETINFO_PROBE_FAILED").
			With("body", strings.TrimSpace(string(body))).
			Wrap(err)
	}
	return addr, nil
}
