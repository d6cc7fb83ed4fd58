package resolver

import (
	"context"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/openidx/authcore/pkg/directory"
	apperrors "github.com/openidx/authcore/pkg/errors"
	"github.com/openidx/authcore/pkg/logging"
)

// compiledPatternCacheSize bounds the LRU of compiled patterns. The mapping
// table is small in practice; the bound only guards against unbounded admin
// churn.
const compiledPatternCacheSize = 1024

// Mapping is one exported (pattern, method) -> permission key row
type Mapping struct {
	URLPattern    string `json:"url_pattern"`
	HTTPMethod    string `json:"http_method"`
	PermissionKey string `json:"permission_key"`
}

// Export is the bulk snapshot a gateway pulls and caches wholesale. It
// re-pulls when LastUpdatedAt advances, not on a fixed schedule.
type Export struct {
	Mappings      []Mapping `json:"mappings"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Resolver matches request paths against the permission-endpoint table. It
// holds no table snapshot of its own; the directory is read per call and
// only the compiled pattern forms are cached.
type Resolver struct {
	endpoints   directory.EndpointDirectory
	permissions directory.PermissionDirectory
	compiled    *lru.Cache[string, *Pattern]
	logger      zerolog.Logger
}

// New creates a resolver over the given directories
func New(endpoints directory.EndpointDirectory, permissions directory.PermissionDirectory) (*Resolver, error) {
	cache, err := lru.New[string, *Pattern](compiledPatternCacheSize)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create pattern cache")
	}
	return &Resolver{
		endpoints:   endpoints,
		permissions: permissions,
		compiled:    cache,
		logger:      logging.GetLogger("resolver"),
	}, nil
}

// Resolve returns the permission key guarding (method, path), choosing the
// most specific matching pattern. No match is a miss, not an error: whether
// an unmapped endpoint is public or forbidden is the caller's policy.
func (r *Resolver) Resolve(ctx context.Context, method, path string) (string, bool, error) {
	eps, err := r.endpoints.ListEndpoints(ctx)
	if err != nil {
		return "", false, apperrors.NewUnavailable(err, "permission endpoint directory")
	}

	var (
		best    *directory.PermissionEndpoint
		bestPat *Pattern
	)
	for i := range eps {
		ep := &eps[i]
		if !strings.EqualFold(ep.Method, method) {
			continue
		}
		pat, err := r.pattern(ep.URLPattern)
		if err != nil {
			r.logger.Warn().Err(err).Str("url_pattern", ep.URLPattern).
				Msg("skipping endpoint with invalid pattern")
			continue
		}
		if !pat.Match(path) {
			continue
		}
		if best == nil || pat.MoreSpecificThan(bestPat) {
			best, bestPat = ep, pat
		}
	}
	if best == nil {
		return "", false, nil
	}

	perm, err := r.permissions.FindPermissionByID(ctx, best.PermissionID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			// a mapping pointing at a vanished permission is a data
			// consistency fault, not a miss
			return "", false, apperrors.Wrap(err, apperrors.ErrCodeInternal,
				"endpoint mapping references unknown permission "+best.PermissionID)
		}
		return "", false, apperrors.NewUnavailable(err, "permission directory")
	}
	return perm.Key(), true, nil
}

// BulkExport returns every live mapping with its permission key, sorted by
// (pattern, method) so repeated exports of the same table are byte-stable.
func (r *Resolver) BulkExport(ctx context.Context) (Export, error) {
	eps, err := r.endpoints.ListEndpoints(ctx)
	if err != nil {
		return Export{}, apperrors.NewUnavailable(err, "permission endpoint directory")
	}

	mappings := make([]Mapping, 0, len(eps))
	for _, ep := range eps {
		perm, err := r.permissions.FindPermissionByID(ctx, ep.PermissionID)
		if err != nil {
			if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
				r.logger.Warn().Str("endpoint_id", ep.ID).Str("permission_id", ep.PermissionID).
					Msg("skipping endpoint mapping with unknown permission")
				continue
			}
			return Export{}, apperrors.NewUnavailable(err, "permission directory")
		}
		mappings = append(mappings, Mapping{
			URLPattern:    ep.URLPattern,
			HTTPMethod:    strings.ToUpper(ep.Method),
			PermissionKey: perm.Key(),
		})
	}
	sort.Slice(mappings, func(i, j int) bool {
		if mappings[i].URLPattern != mappings[j].URLPattern {
			return mappings[i].URLPattern < mappings[j].URLPattern
		}
		return mappings[i].HTTPMethod < mappings[j].HTTPMethod
	})

	updatedAt, err := r.endpoints.LastUpdatedAt(ctx)
	if err != nil {
		return Export{}, apperrors.NewUnavailable(err, "permission endpoint directory")
	}
	return Export{Mappings: mappings, LastUpdatedAt: updatedAt}, nil
}

// pattern returns the compiled form of raw, compiling and caching on first
// sight.
func (r *Resolver) pattern(raw string) (*Pattern, error) {
	if p, ok := r.compiled.Get(raw); ok {
		return p, nil
	}
	p, err := Compile(raw)
	if err != nil {
		return nil, err
	}
	r.compiled.Add(raw, p)
	return p, nil
}
