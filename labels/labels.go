// Package labels turns a document's page-label ranges into display numbers
// and groups consecutive pages that share a number into slides.
//
// A presentation exported with overlays (beamer, for example) emits one
// physical page per build step and labels all steps of a frame with the same
// number. Grouping by label therefore recovers the logical slide.
package labels

import "sort"

// Range declares that numbering restarts at First on page index Start and
// increments by one per page until the next range begins.
type Range struct {
	Start int // 0-based physical page index
	First int // display number of page Start
}

// Table maps every physical page to its display number. The zero value is an
// empty table.
type Table struct {
	numbers []int
}

// Slide is a maximal run of consecutive pages sharing one display number.
type Slide struct {
	Number    int
	FirstPage int
	LastPage  int
}

// Pages returns the number of physical pages in the slide.
func (s Slide) Pages() int { return s.LastPage - s.FirstPage + 1 }

// Resolve builds the display-number table for pageCount pages. Without ranges
// pages are numbered 1..pageCount. Ranges are applied in ascending Start
// order; when several share a Start the first one given wins. Pages before
// the first range are numbered from 1.
func Resolve(pageCount int, ranges []Range) Table {
	if pageCount <= 0 {
		return Table{}
	}
	numbers := make([]int, pageCount)
	if len(ranges) == 0 {
		for i := range numbers {
			numbers[i] = i + 1
		}
		return Table{numbers: numbers}
	}

	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	next := 0
	p := 1
	for i := 0; i < pageCount; i++ {
		// Ranges starting before i were shadowed by an earlier range at the
		// same index, or start at a negative index.
		for next < len(sorted) && sorted[next].Start < i {
			next++
		}
		if next < len(sorted) && sorted[next].Start == i {
			p = sorted[next].First
			next++
		}
		numbers[i] = p
		p++
	}
	return Table{numbers: numbers}
}

// FromNumbers wraps an already resolved number sequence.
func FromNumbers(numbers []int) Table {
	out := make([]int, len(numbers))
	copy(out, numbers)
	return Table{numbers: out}
}

// Len returns the number of physical pages.
func (t Table) Len() int { return len(t.numbers) }

// Numbers returns a copy of the per-page display numbers.
func (t Table) Numbers() []int {
	out := make([]int, len(t.numbers))
	copy(out, t.numbers)
	return out
}

// SlideNumber returns the display number of page, clamping page into the
// table's bounds. An empty table yields 0.
func (t Table) SlideNumber(page int) int {
	n := len(t.numbers)
	if n == 0 {
		return 0
	}
	if page < 0 {
		page = 0
	}
	if page >= n {
		page = n - 1
	}
	return t.numbers[page]
}

// LastPageOfSlide returns the highest page index whose display number is
// slide. ok is false when no page carries that number.
func (t Table) LastPageOfSlide(slide int) (page int, ok bool) {
	for i := len(t.numbers) - 1; i >= 0; i-- {
		if t.numbers[i] == slide {
			return i, true
		}
	}
	return 0, false
}

// Slides partitions the pages into runs of equal display numbers.
func (t Table) Slides() []Slide {
	var out []Slide
	for i, num := range t.numbers {
		if len(out) > 0 && out[len(out)-1].Number == num && out[len(out)-1].LastPage == i-1 {
			out[len(out)-1].LastPage = i
			continue
		}
		out = append(out, Slide{Number: num, FirstPage: i, LastPage: i})
	}
	return out
}

// SlideOf returns the slide containing page, clamped like SlideNumber.
func (t Table) SlideOf(page int) (Slide, bool) {
	if len(t.numbers) == 0 {
		return Slide{}, false
	}
	if page < 0 {
		page = 0
	}
	if page >= len(t.numbers) {
		page = len(t.numbers) - 1
	}
	num := t.numbers[page]
	first, last := page, page
	for first > 0 && t.numbers[first-1] == num {
		first--
	}
	for last+1 < len(t.numbers) && t.numbers[last+1] == num {
		last++
	}
	return Slide{Number: num, FirstPage: first, LastPage: last}, true
}
