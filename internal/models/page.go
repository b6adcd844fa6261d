package models

// PostPage is one page of a newest-first post listing.
type PostPage struct {
	Posts  []Post
	Number int
	Size   int
	Total  int
}

func (p *PostPage) NumPages() int {
	if p.Size <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.Size - 1) / p.Size
}

func (p *PostPage) HasPrev() bool { return p.Number > 1 }
func (p *PostPage) HasNext() bool { return p.Number < p.NumPages() }
func (p *PostPage) Prev() int     { return p.Number - 1 }
func (p *PostPage) Next() int     { return p.Number + 1 }

// Offset is the number of rows to skip for page number n.
func Offset(n, size int) int {
	if n < 1 {
		n = 1
	}
	return (n - 1) * size
}
