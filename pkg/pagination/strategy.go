// Package pagination implements the per-extraction strategy state machine
// for the three pagination conventions: page-number, offset, and opaque
// cursor.
//
// A Strategy is created at the start of an extraction, mutated once per
// page, and discarded when the extraction ends. It decides the query
// parameters for the next request and whether another page should be
// fetched at all. Lifecycle: INIT (nothing fetched) -> one Params/Advance
// round per page -> DONE once a termination rule fires. The two caps apply
// at different points: max_pages is checked before issuing the next
// request, max_records after a page has been fully yielded, so a page may
// carry the running total past max_records but is never truncated mid-page.
package pagination

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pagepull/pagepull/pkg/config"
)

// Parameter and sizing defaults applied when the declarative config leaves
// them out.
const (
	defaultPageParam   = "page"
	defaultSizeParam   = "per_page"
	defaultOffsetParam = "offset"
	defaultLimitParam  = "limit"
	defaultCursorParam = "cursor"
	defaultPageSize    = 100
)

// Strategy tracks pagination state for one in-flight extraction. It is
// owned exclusively by that extraction and is not safe for concurrent use.
type Strategy struct {
	style string

	pageParam   string
	sizeParam   string
	cursorParam string
	pageSize    int
	maxPages    int
	maxRecords  int

	// Exactly one of position/cursor is live, matching style.
	position int // current page number or offset
	cursor   any // current cursor token, nil before the first is known

	pages   int // pages fetched so far
	records int // records yielded so far
	done    bool
}

// New builds a Strategy from a declarative pagination config. An
// unrecognized type fails here, before any request is issued.
func New(cfg config.Pagination) (*Strategy, error) {
	style := strings.ToLower(strings.TrimSpace(cfg.Type))

	s := &Strategy{
		style:      style,
		pageSize:   cfg.PageSize,
		maxPages:   cfg.MaxPages,
		maxRecords: cfg.MaxRecords,
	}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}

	switch style {
	case config.TypePage:
		s.pageParam = orDefault(cfg.PageParam, defaultPageParam)
		s.sizeParam = orDefault(cfg.SizeParam, defaultSizeParam)
		s.position = 1
		if cfg.StartPage != nil {
			s.position = *cfg.StartPage
		}
	case config.TypeOffset:
		s.pageParam = orDefault(cfg.PageParam, defaultOffsetParam)
		s.sizeParam = orDefault(cfg.SizeParam, defaultLimitParam)
		if cfg.StartPage != nil {
			s.position = *cfg.StartPage
		}
	case config.TypeCursor:
		s.cursorParam = orDefault(cfg.CursorParam, defaultCursorParam)
		s.sizeParam = orDefault(cfg.SizeParam, defaultLimitParam)
		if cfg.CursorPath == "" {
			return nil, fmt.Errorf("cursor pagination requires cursor_path")
		}
		if cfg.StartCursor != "" {
			s.cursor = cfg.StartCursor
		}
		// Cursor page size is optional: only sent when configured.
		if cfg.PageSize <= 0 {
			s.pageSize = 0
		}
	default:
		return nil, fmt.Errorf("unknown pagination type %q", cfg.Type)
	}

	return s, nil
}

// Done reports whether the extraction should stop before issuing another
// request. This is where the max_pages cap is enforced.
func (s *Strategy) Done() bool {
	if s.done {
		return true
	}
	if s.maxPages > 0 && s.pages >= s.maxPages {
		return true
	}
	return false
}

// Params returns the pagination query parameters for the next request.
func (s *Strategy) Params() map[string]string {
	params := make(map[string]string, 2)
	switch s.style {
	case config.TypePage, config.TypeOffset:
		params[s.pageParam] = strconv.Itoa(s.position)
		params[s.sizeParam] = strconv.Itoa(s.pageSize)
	case config.TypeCursor:
		if s.cursor != nil {
			params[s.cursorParam] = formatCursor(s.cursor)
		}
		if s.pageSize > 0 {
			params[s.sizeParam] = strconv.Itoa(s.pageSize)
		}
	}
	return params
}

// Advance feeds the outcome of a fetched page back into the state machine:
// how many records the page carried and, for cursor style, the extracted
// next cursor (hasCursor false means the response carried none).
func (s *Strategy) Advance(batchLen int, nextCursor any, hasCursor bool) {
	s.pages++
	s.records += batchLen

	switch s.style {
	case config.TypePage, config.TypeOffset:
		if batchLen == 0 {
			s.done = true
			return
		}
		if s.capReached() {
			s.done = true
			return
		}
		if s.style == config.TypeOffset {
			s.position += s.pageSize
		} else {
			s.position++
		}
	case config.TypeCursor:
		if !hasCursor {
			s.done = true
			return
		}
		if s.capReached() {
			s.done = true
			return
		}
		s.cursor = nextCursor
	}
}

// capReached checks the soft max_records cap after a page has been yielded.
func (s *Strategy) capReached() bool {
	return s.maxRecords > 0 && s.records >= s.maxRecords
}

// Pages returns the number of pages fetched so far.
func (s *Strategy) Pages() int { return s.pages }

// Records returns the number of records yielded so far.
func (s *Strategy) Records() int { return s.records }

// Style returns the active pagination convention.
func (s *Strategy) Style() string { return s.style }

// formatCursor renders a cursor scalar as a query value. Strings pass
// through verbatim so opaque tokens round-trip byte for byte.
func formatCursor(cursor any) string {
	switch v := cursor.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
