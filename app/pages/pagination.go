package pages

import "strconv"

// PerPage is the number of products on one list page.
const PerPage = 10

// Page describes one page of a paginated listing.
type Page struct {
	Number   int
	NumPages int
	Count    int64
}

// Paginate resolves the raw ?page= value against count rows. It accepts a
// page number or "last" and reports false for anything out of range. An
// empty listing still has a first page.
func Paginate(raw string, count int64, perPage int) (Page, bool) {
	numPages := int((count + int64(perPage) - 1) / int64(perPage))
	if numPages < 1 {
		numPages = 1
	}

	number := 1
	switch raw {
	case "":
	case "last":
		number = numPages
	default:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Page{}, false
		}
		number = n
	}
	if number < 1 || number > numPages {
		return Page{}, false
	}
	return Page{Number: number, NumPages: numPages, Count: count}, true
}

func (p Page) Offset(perPage int) int { return (p.Number - 1) * perPage }
func (p Page) HasNext() bool          { return p.Number < p.NumPages }
func (p Page) HasPrevious() bool      { return p.Number > 1 }
func (p Page) Next() int              { return p.Number + 1 }
func (p Page) Previous() int          { return p.Number - 1 }
