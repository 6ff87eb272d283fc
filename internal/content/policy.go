// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

// Reasons a query is not served from the shared cache.
const (
	skipOffset      = "offset"
	skipDestination = "destination_scope"
	skipFullDetail  = "full_detail"
)

// queryShape holds the option fields the cache policy looks at.
type queryShape struct {
	offset      int
	destination int64
	single      bool
	profile     Profile
}

// skipReason returns why a query must bypass the shared cache, or "".
//
// Paginated listings and full single-item reads are never cached.
// Destination-scoped queries have too many distinct keys for the shared
// cache; they may use the bounded scoped tier instead.
func skipReason(s queryShape) string {
	switch {
	case s.offset > 0 && !s.single:
		return skipOffset
	case s.single && s.profile == ProfileFull:
		return skipFullDetail
	case s.destination != 0:
		return skipDestination
	}
	return ""
}

func (o DestinationOptions) shape() queryShape {
	return queryShape{offset: o.Offset, single: o.single(), profile: o.Profile}
}

func (o ArticleOptions) shape() queryShape {
	return queryShape{offset: o.Offset, destination: o.DestinationID, single: o.single(), profile: o.Profile}
}

func (o CompanyOptions) shape() queryShape {
	return queryShape{offset: o.Offset, destination: o.DestinationID, single: o.single(), profile: o.Profile}
}
