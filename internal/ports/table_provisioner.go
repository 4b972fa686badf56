package ports

import "context"

// TableProvisioner creates the landing table for a routing combination on
// first use and returns its name.
type TableProvisioner interface {
	EnsureTable(ctx context.Context, platform string, domain string, subDomain string, granularity string) (string, error)
}
