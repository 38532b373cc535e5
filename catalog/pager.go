package catalog

// PageSize is how many products a listing shows at once
const PageSize = 12

// Pager is the offset pagination state of a listing.
type Pager struct {
	Total int
	Skip  int
	Limit int
}

func (p Pager) limit() int {
	if p.Limit <= 0 {
		return PageSize
	}
	return p.Limit
}

func (p Pager) TotalPages() int {
	l := p.limit()
	return (p.Total + l - 1) / l
}

func (p Pager) CurrentPage() int {
	return p.Skip/p.limit() + 1
}

func (p Pager) HasPrev() bool {
	return p.Skip > 0
}

func (p Pager) HasNext() bool {
	return p.Skip+p.limit() < p.Total
}

// Next is the pager for the following page. It does not move past the last page.
func (p Pager) Next() Pager {
	if p.HasNext() {
		p.Skip += p.limit()
	}
	return p
}

// Prev is the pager for the previous page, clamped at the first.
func (p Pager) Prev() Pager {
	p.Skip -= p.limit()
	if p.Skip < 0 {
		p.Skip = 0
	}
	return p
}
