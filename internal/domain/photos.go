package domain

import (
	"fmt"
	"sort"
)

type Photo struct {
	ImageURL     string `json:"image_url"`
	Caption      string `json:"caption,omitempty"`
	AltText      string `json:"alt_text,omitempty"`
	Category     string `json:"category"`
	DisplayOrder int    `json:"display_order"`
	IsPrimary    bool   `json:"is_primary"`
}

// PhotoList keeps at most one primary entry; a non-empty list always has exactly one.
type PhotoList []Photo

type Direction int

const (
	Up   Direction = -1
	Down Direction = 1
)

func (l PhotoList) inRange(i int) bool { return i >= 0 && i < len(l) }

// Add appends p at the end. It becomes primary only when the list was empty.
func (l *PhotoList) Add(p Photo) {
	p.DisplayOrder = len(*l)
	p.IsPrimary = len(*l) == 0
	if p.Category == "" {
		p.Category = DefaultPhotoCategory
	}
	*l = append(*l, p)
}

// Remove drops the entry at i. Display orders of the remaining entries are
// left as they were; call Reorder to make them dense again.
func (l *PhotoList) Remove(i int) error {
	if !l.inRange(i) {
		return fmt.Errorf("remove photo %d: %w", i, ErrInvalidPhoto)
	}
	wasPrimary := (*l)[i].IsPrimary
	out := make(PhotoList, 0, len(*l)-1)
	out = append(out, (*l)[:i]...)
	out = append(out, (*l)[i+1:]...)
	if wasPrimary && len(out) > 0 {
		out[0].IsPrimary = true
	}
	*l = out
	return nil
}

func (l PhotoList) SetPrimary(i int) error {
	if !l.inRange(i) {
		return fmt.Errorf("set primary photo %d: %w", i, ErrInvalidPhoto)
	}
	for k := range l {
		l[k].IsPrimary = k == i
	}
	return nil
}

// Move swaps the entry at i with its neighbour in direction d and renumbers
// the whole list. Moving past either end is a no-op.
func (l PhotoList) Move(i int, d Direction) error {
	if !l.inRange(i) || (d != Up && d != Down) {
		return fmt.Errorf("move photo %d: %w", i, ErrInvalidPhoto)
	}
	j := i + int(d)
	if !l.inRange(j) {
		return nil
	}
	l[i], l[j] = l[j], l[i]
	l.Reorder()
	return nil
}

// Reorder makes display_order dense and equal to list position.
func (l PhotoList) Reorder() {
	for k := range l {
		l[k].DisplayOrder = k
	}
}

func (l PhotoList) Primary() (Photo, bool) {
	for _, p := range l {
		if p.IsPrimary {
			return p, true
		}
	}
	return Photo{}, false
}

func (l PhotoList) PrimaryCount() int {
	n := 0
	for _, p := range l {
		if p.IsPrimary {
			n++
		}
	}
	return n
}

// Normalize sorts by display_order, renumbers densely and repairs the
// primary flag. Used on data that did not come through the list operations.
func (l PhotoList) Normalize() {
	sort.SliceStable(l, func(a, b int) bool { return l[a].DisplayOrder < l[b].DisplayOrder })
	l.Reorder()
	seen := false
	for k := range l {
		if l[k].Category == "" {
			l[k].Category = DefaultPhotoCategory
		}
		if l[k].IsPrimary {
			if seen {
				l[k].IsPrimary = false
			}
			seen = true
		}
	}
	if !seen && len(l) > 0 {
		l[0].IsPrimary = true
	}
}

// URLs returns image URLs in display order; this is the legacy flat images column.
func (l PhotoList) URLs() []string {
	out := make([]string, 0, len(l))
	for _, p := range l {
		out = append(out, p.ImageURL)
	}
	return out
}

func (l PhotoList) Clone() PhotoList {
	if l == nil {
		return nil
	}
	out := make(PhotoList, len(l))
	copy(out, l)
	return out
}
