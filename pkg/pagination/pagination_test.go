package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextFor(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(contextFor("/"))

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(contextFor("/?limit=50&offset=10"))

	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
	if p.Offset != 10 {
		t.Errorf("expected offset 10, got %d", p.Offset)
	}
}

func TestFromContext_Page(t *testing.T) {
	p := FromContext(contextFor("/?limit=10&page=3"))
	if p.Offset != 20 {
		t.Errorf("expected offset 20 for page 3, got %d", p.Offset)
	}

	p = FromContext(contextFor("/?limit=10&page=3&offset=5"))
	if p.Offset != 5 {
		t.Errorf("expected explicit offset to win, got %d", p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := FromContext(contextFor("/?limit=500"))

	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	p := FromContext(contextFor("/?offset=-5"))

	if p.Offset != 0 {
		t.Errorf("expected offset 0 for negative input, got %d", p.Offset)
	}
}

func TestSQL(t *testing.T) {
	p := Params{Limit: 20, Offset: 40}
	expected := "LIMIT 20 OFFSET 40"
	if p.SQL() != expected {
		t.Errorf("expected %q, got %q", expected, p.SQL())
	}
}

func TestNewResponse(t *testing.T) {
	data := []string{"a", "b", "c"}
	r := NewResponse(data, 10, 3, 0)

	if r.Total != 10 {
		t.Errorf("expected total 10, got %d", r.Total)
	}
	if !r.HasMore {
		t.Error("expected has_more to be true when offset+limit < total")
	}

	r2 := NewResponse(data, 3, 3, 0)
	if r2.HasMore {
		t.Error("expected has_more to be false when offset+limit >= total")
	}
}

func TestParams_Navigation(t *testing.T) {
	tests := []struct {
		name     string
		params   Params
		total    int
		hasNext  bool
		hasPrev  bool
		next     int
		previous int
	}{
		{"first page", Params{Limit: 10, Offset: 0}, 25, true, false, 10, 0},
		{"middle page", Params{Limit: 10, Offset: 10}, 25, true, true, 20, 0},
		{"last page", Params{Limit: 10, Offset: 20}, 25, false, true, 30, 10},
		{"partial back", Params{Limit: 10, Offset: 5}, 25, true, true, 15, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.HasNext(tt.total); got != tt.hasNext {
				t.Errorf("HasNext = %v, want %v", got, tt.hasNext)
			}
			if got := tt.params.HasPrevious(); got != tt.hasPrev {
				t.Errorf("HasPrevious = %v, want %v", got, tt.hasPrev)
			}
			if got := tt.params.NextOffset(); got != tt.next {
				t.Errorf("NextOffset = %d, want %d", got, tt.next)
			}
			if got := tt.params.PreviousOffset(); got != tt.previous {
				t.Errorf("PreviousOffset = %d, want %d", got, tt.previous)
			}
		})
	}
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	got := Slice(items, Params{Limit: 2, Offset: 1})
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("unexpected page: %v", got)
	}

	got = Slice(items, Params{Limit: 10, Offset: 3})
	if len(got) != 2 {
		t.Errorf("expected tail of 2, got %v", got)
	}

	got = Slice(items, Params{Limit: 10, Offset: 9})
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil page, got %v", got)
	}
}
