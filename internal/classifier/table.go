package classifier

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/iliyamo/theatre-diary/internal/model"
)

// DefaultPageSize is the number of rows per page of the all-plays table.
const DefaultPageSize = 15

// SortField names a sortable column of the all-plays table.
type SortField string

const (
	SortByDate    SortField = "date"
	SortByName    SortField = "name"
	SortByTheatre SortField = "theatre"
	SortByRating  SortField = "rating"
)

// ParseSortField returns the field named s, or false when s is unknown.
func ParseSortField(s string) (SortField, bool) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case SortByDate, SortByName, SortByTheatre, SortByRating:
		return f, true
	}
	return "", false
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection returns Asc for "asc" (any case) and Desc otherwise.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Asc)) {
		return Asc
	}
	return Desc
}

// SortState is the current column and direction of the table.
type SortState struct {
	Field     SortField `json:"sort"`
	Direction Direction `json:"dir"`
}

// DefaultSort shows the most recent plays first.
func DefaultSort() SortState { return SortState{Field: SortByDate, Direction: Desc} }

// Toggle applies a click on a column header: the same column flips the
// direction, a different column starts descending.
func (s SortState) Toggle(f SortField) SortState {
	if f == s.Field {
		if s.Direction == Asc {
			return SortState{Field: f, Direction: Desc}
		}
		return SortState{Field: f, Direction: Asc}
	}
	return SortState{Field: f, Direction: Desc}
}

// Query describes one request for a page of the all-plays table.
//
// Page is 1-based.  Callers are expected to keep it within
// [1, TotalPages]; a page outside that range yields no items rather than an
// error.  PageSize <= 0 means DefaultPageSize.  Locale selects the collation
// used for name and theatre; the zero tag means English.
type Query struct {
	Text     string
	Sort     SortState
	Page     int
	PageSize int
	Locale   language.Tag
}

// Page is one page of the filtered, sorted table.
type Page struct {
	Items      []*model.Play `json:"items"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
}

// SearchSortPaginate filters plays by q.Text (case-insensitive substring of
// name or theatre), orders them by q.Sort and cuts out page q.Page.
func SearchSortPaginate(plays []model.Play, q Query) Page {
	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	needle := strings.ToLower(q.Text)

	matched := make([]*model.Play, 0, len(plays))
	for i := range plays {
		p := &plays[i]
		if needle == "" || containsFold(p.Name, needle) || containsFold(p.Theatre, needle) {
			matched = append(matched, p)
		}
	}

	sortPlays(matched, q.Sort, q.Locale)

	total := len(matched)
	pages := (total + size - 1) / size
	out := Page{Items: []*model.Play{}, Total: total, TotalPages: pages, Page: q.Page, PageSize: size}
	if q.Page < 1 || q.Page > pages {
		return out
	}
	start := (q.Page - 1) * size
	end := min(start+size, total)
	out.Items = matched[start:end]
	return out
}

func containsFold(s, lowerNeedle string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), lowerNeedle)
}

func sortPlays(ps []*model.Play, s SortState, tag language.Tag) {
	field := s.Field
	if _, ok := ParseSortField(string(field)); !ok {
		field = SortByDate
	}
	sign := 1
	if s.Direction != Asc {
		sign = -1
	}

	var cmp func(a, c *model.Play) int
	switch field {
	case SortByName, SortByTheatre:
		if tag == language.Und {
			tag = language.English
		}
		// A Collator keeps scratch buffers, so each call gets its own.
		col := collate.New(tag)
		cmp = func(a, c *model.Play) int {
			if field == SortByName {
				return col.CompareString(a.Name, c.Name)
			}
			return col.CompareString(a.Theatre, c.Theatre)
		}
	case SortByRating:
		cmp = func(a, c *model.Play) int { return a.Rating.Score() - c.Rating.Score() }
	default:
		cmp = compareDates
	}
	slices.SortStableFunc(ps, func(a, c *model.Play) int { return sign * cmp(a, c) })
}
