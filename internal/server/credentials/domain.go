package credentials

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
)

// DomainChecker decides whether an email address can plausibly receive mail.
type DomainChecker interface {
	CheckEmail(ctx context.Context, email string) error
}

// Resolver is the part of *net.Resolver used by DNSChecker.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DNSChecker rejects addresses whose domain does not exist. Lookups that
// fail for any other reason (timeouts, SERVFAIL) are treated as unknown
// and accepted.
type DNSChecker struct {
	resolver Resolver
	timeout  time.Duration
}

func NewDNSChecker(r Resolver) *DNSChecker {
	if r == nil {
		r = net.DefaultResolver
	}
	return &DNSChecker{resolver: r, timeout: 3 * time.Second}
}

func (c *DNSChecker) CheckEmail(ctx context.Context, email string) error {
	_, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return common.ErrInvalidEmail
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	mx, err := c.resolver.LookupMX(ctx, domain)
	if err == nil && len(mx) > 0 {
		return nil
	}
	if err != nil && !isNotFound(err) {
		return nil
	}

	// no MX record: mail falls back to the A/AAAA record
	_, err = c.resolver.LookupHost(ctx, domain)
	if err != nil && isNotFound(err) {
		return common.ErrEmailUnreachable
	}
	return nil
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}
