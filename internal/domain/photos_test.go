package domain_test

import (
	"errors"
	"math/rand"
	"testing"

	"staylist/internal/domain"
)

func urls(l domain.PhotoList) []string { return l.URLs() }

func TestAddMakesFirstPhotoPrimary(t *testing.T) {
	var l domain.PhotoList
	l.Add(domain.Photo{ImageURL: "a"})
	l.Add(domain.Photo{ImageURL: "b", IsPrimary: true}) // caller flag is ignored
	if !l[0].IsPrimary || l[1].IsPrimary {
		t.Fatalf("primary flags: %+v", l)
	}
	if l[1].DisplayOrder != 1 || l[1].Category != domain.DefaultPhotoCategory {
		t.Fatalf("second photo: %+v", l[1])
	}
}

func TestRemoveDoesNotRenumber(t *testing.T) {
	var l domain.PhotoList
	for _, u := range []string{"a", "b", "c"} {
		l.Add(domain.Photo{ImageURL: u})
	}
	if err := l.Remove(0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if l[0].DisplayOrder != 1 || l[1].DisplayOrder != 2 {
		t.Fatalf("orders should be untouched until Reorder: %+v", l)
	}
	if !l[0].IsPrimary {
		t.Fatalf("removing the primary must promote another photo")
	}
	l.Reorder()
	if l[0].DisplayOrder != 0 || l[1].DisplayOrder != 1 {
		t.Fatalf("reorder: %+v", l)
	}
	if err := l.Remove(5); !errors.Is(err, domain.ErrInvalidPhoto) {
		t.Fatalf("out of range remove: %v", err)
	}
}

func TestSetPrimaryAndMove(t *testing.T) {
	var l domain.PhotoList
	for _, u := range []string{"a", "b", "c"} {
		l.Add(domain.Photo{ImageURL: u})
	}
	if err := l.SetPrimary(2); err != nil {
		t.Fatalf("set primary: %v", err)
	}
	if p, _ := l.Primary(); p.ImageURL != "c" || l.PrimaryCount() != 1 {
		t.Fatalf("primary: %+v", l)
	}
	if err := l.Move(2, domain.Up); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := urls(l); got[1] != "c" || got[2] != "b" || l[1].DisplayOrder != 1 || l[2].DisplayOrder != 2 {
		t.Fatalf("after move: %+v", l)
	}
	if err := l.Move(0, domain.Up); err != nil || urls(l)[0] != "a" {
		t.Fatalf("moving past the top is a no-op: %v %v", err, urls(l))
	}
}

func TestExactlyOnePrimaryUnderRandomEdits(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var l domain.PhotoList
	for step := 0; step < 2000; step++ {
		switch op := rng.Intn(4); {
		case op == 0 || len(l) == 0:
			l.Add(domain.Photo{ImageURL: "u"})
		case op == 1:
			_ = l.Remove(rng.Intn(len(l)))
		case op == 2:
			_ = l.SetPrimary(rng.Intn(len(l)))
		default:
			_ = l.Move(rng.Intn(len(l)), domain.Direction([]int{-1, 1}[rng.Intn(2)]))
		}
		if len(l) > 0 && l.PrimaryCount() != 1 {
			t.Fatalf("step %d: %d primaries in %+v", step, l.PrimaryCount(), l)
		}
	}
}

func TestNormalizeRepairsImportedList(t *testing.T) {
	l := domain.PhotoList{
		{ImageURL: "c", DisplayOrder: 9, IsPrimary: true},
		{ImageURL: "a", DisplayOrder: 1, IsPrimary: true},
		{ImageURL: "b", DisplayOrder: 4},
	}
	l.Normalize()
	if got := urls(l); got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("order: %v", got)
	}
	if l.PrimaryCount() != 1 || !l[0].IsPrimary || l[2].DisplayOrder != 2 {
		t.Fatalf("normalize: %+v", l)
	}

	none := domain.PhotoList{{ImageURL: "x", DisplayOrder: 3}}
	none.Normalize()
	if !none[0].IsPrimary || none[0].DisplayOrder != 0 {
		t.Fatalf("single photo should become primary: %+v", none)
	}
}
