/**
 * DNS Resolution.
 *
 * The probe engine's name resolver: an ordered address list plus the
 * measured resolution duration, failing with kind Dns on lookup failure.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package probe

import (
	"context"
	"net"
	"time"

	"github.com/netdiag/netdiag/internal/errs"
)

// Resolver resolves hostnames to an ordered address list.
type Resolver struct {
	resolver *net.Resolver
}

// NewResolver builds a Resolver using the system's default net.Resolver.
func NewResolver() *Resolver {
	return &Resolver{resolver: net.DefaultResolver}
}

// Resolve looks up host and returns the addresses in the order the system
// resolver supplied them, alongside the time the lookup took.
func (r *Resolver) Resolve(ctx context.Context, host string) ([]net.IP, time.Duration, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, 0, nil
	}

	start := time.Now()
	addrs, err := r.resolver.LookupIPAddr(ctx, host)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, errs.Wrap(errs.Dns, "probe.Resolve", "failed to resolve "+host, err)
	}
	if len(addrs) == 0 {
		return nil, elapsed, errs.New(errs.Dns, "probe.Resolve", "no addresses returned for "+host)
	}

	ips := make([]net.IP, len(addrs))
	for i, a := range addrs {
		ips[i] = a.IP
	}
	return ips, elapsed, nil
}

// ResolveOne resolves host and returns its first address, preferring the
// order the resolver returned addresses in (the probe engine does not
// re-sort by family).
func (r *Resolver) ResolveOne(ctx context.Context, host string) (net.IP, time.Duration, error) {
	ips, elapsed, err := r.Resolve(ctx, host)
	if err != nil {
		return nil, elapsed, err
	}
	return ips[0], elapsed, nil
}
