package scanner

import (
	"fmt"
	"sort"
	"time"
)

// Section is one month of a timeline view.
type Section struct {
	Year   int            `json:"year"`
	Month  int            `json:"month"`
	Images []ScannedImage `json:"images"`
}

// Title is the heading shown above the section, e.g. "March 2024".
func (s Section) Title() string {
	if s.Year == 0 || s.Month < 1 || s.Month > 12 {
		return "Unknown date"
	}
	return fmt.Sprintf("%s %d", time.Month(s.Month), s.Year)
}

// GroupByMonth splits images into one section per (year, month), newest
// first. Images keep their relative order inside a section.
func GroupByMonth(images []ScannedImage) []Section {
	type key struct{ year, month int }

	index := make(map[key]int)
	var sections []Section
	for _, img := range images {
		k := key{img.Year, img.Month}
		i, ok := index[k]
		if !ok {
			i = len(sections)
			index[k] = i
			sections = append(sections, Section{Year: img.Year, Month: img.Month})
		}
		sections[i].Images = append(sections[i].Images, img)
	}

	sort.SliceStable(sections, func(i, j int) bool {
		if sections[i].Year != sections[j].Year {
			return sections[i].Year > sections[j].Year
		}
		return sections[i].Month > sections[j].Month
	})
	return sections
}
