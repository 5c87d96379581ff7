package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erp/portal/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const scopePlaceholder = "{scope}"

// Page is one decoded page of a paginated resource
type Page[T any] struct {
	Items    []T
	HasMore  bool
	Page     int
	PageSize int
	// Skipped counts items dropped because they failed to decode or normalize
	Skipped int
}

type pageEnvelope struct {
	Items    []json.RawMessage `json:"items"`
	HasMore  bool              `json:"hasMore"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

// ResourceSpec describes one paginated ERP resource
type ResourceSpec[T any] struct {
	// Entity names the resource for timeout overrides and logs
	Entity string
	// Path is relative to the base URL; scoped resources contain "{scope}"
	Path    string
	Timeout time.Duration
	// Normalize cleans up one decoded item; an error skips the item
	Normalize func(*T) error
}

// Resource fetches pages of T from the ERP API
type Resource[T any] struct {
	client  *Client
	spec    ResourceSpec[T]
	timeout time.Duration
}

// NewResource binds spec to client
func NewResource[T any](client *Client, spec ResourceSpec[T]) *Resource[T] {
	return &Resource[T]{
		client:  client,
		spec:    spec,
		timeout: client.Timeout(spec.Entity, spec.Timeout),
	}
}

// Scoped reports whether the resource path takes a scope
func (r *Resource[T]) Scoped() bool {
	return strings.Contains(r.spec.Path, scopePlaceholder)
}

// Timeout returns the per-request timeout in effect
func (r *Resource[T]) Timeout() time.Duration {
	return r.timeout
}

// FetchPage fetches and decodes one page. Items that fail to decode or
// normalize are skipped and counted; a malformed envelope fails the call.
func (r *Resource[T]) FetchPage(ctx context.Context, scope string, page, pageSize int) (*Page[T], error) {
	path, err := r.path(scope)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("pageSize", strconv.Itoa(pageSize))

	body, err := r.client.Get(ctx, path, query, r.timeout)
	if err != nil {
		return nil, err
	}

	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %s page %d: %v", ErrUpstreamInvalidResponse, path, page, err)
	}

	log := logger.Enrich(ctx, r.client.logger).With(
		zap.String("entity", r.spec.Entity),
		zap.Int("page", page),
	)
	result := &Page[T]{
		Items:    make([]T, 0, len(env.Items)),
		HasMore:  env.HasMore,
		Page:     page,
		PageSize: pageSize,
	}
	for i, raw := range env.Items {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			result.Skipped++
			log.Warn("Skipping undecodable item", zap.Int("index", i), zap.Error(err))
			continue
		}
		if r.spec.Normalize != nil {
			if err := r.spec.Normalize(&item); err != nil {
				result.Skipped++
				log.Warn("Skipping invalid item", zap.Int("index", i), zap.Error(err))
				continue
			}
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

func (r *Resource[T]) path(scope string) (string, error) {
	if !r.Scoped() {
		if scope != "" {
			return "", fmt.Errorf("%w: %s", ErrUnexpectedScope, r.spec.Entity)
		}
		return r.spec.Path, nil
	}
	if scope == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingScope, r.spec.Entity)
	}
	if strings.Contains(scope, "/") {
		return "", fmt.Errorf("%w: %s: %q", ErrInvalidScope, r.spec.Entity, scope)
	}
	return strings.ReplaceAll(r.spec.Path, scopePlaceholder, scope), nil
}
