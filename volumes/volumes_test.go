package volumes

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

type fakeLister struct {
	vols []Volume
	err  error
}

func (f fakeLister) Volumes() ([]Volume, error) { return f.vols, f.err }

func TestEligible_OnlyFixedAndReady(t *testing.T) {
	vols := []Volume{
		{Root: `C:\`, Kind: KindFixed, Ready: true},
		{Root: `D:\`, Kind: KindRemovable, Ready: true},
		{Root: `E:\`, Kind: KindNetwork, Ready: true},
		{Root: `F:\`, Kind: KindOptical, Ready: true},
		{Root: `G:\`, Kind: KindFixed, Ready: false},
		{Root: `H:\`, Kind: KindRAM, Ready: true},
		{Root: `I:\`, Kind: KindUnknown, Ready: true},
		{Root: `J:\`, Kind: KindFixed, Ready: true},
		{Root: `C:\`, Kind: KindFixed, Ready: true},
	}

	got := Eligible(vols)
	want := []string{`C:\`, `J:\`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Eligible() = %v; want %v", got, want)
	}
}

func TestEligible_Empty(t *testing.T) {
	if got := Eligible(nil); len(got) != 0 {
		t.Fatalf("expected no roots, got %v", got)
	}
}

func TestEligibleRoots(t *testing.T) {
	l := fakeLister{vols: []Volume{
		{Root: "/", Kind: KindFixed, Ready: true},
		{Root: "/mnt/nas", Kind: KindNetwork, Ready: true},
	}}
	roots, err := EligibleRoots(l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(roots, []string{"/"}) {
		t.Fatalf("EligibleRoots() = %v", roots)
	}

	boom := errors.New("boom")
	if _, err := EligibleRoots(fakeLister{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected lister error to propagate, got %v", err)
	}
}

func TestOutermost(t *testing.T) {
	p := filepath.FromSlash
	tests := []struct {
		name  string
		roots []string
		want  []string
	}{
		{"nested after parent", []string{p("/srv"), p("/srv/home"), p("/data")}, []string{p("/srv"), p("/data")}},
		{"nested before parent", []string{p("/srv/home"), p("/srv")}, []string{p("/srv")}},
		{"duplicates keep first", []string{p("/data"), p("/data/"), p("/data")}, []string{p("/data")}},
		{"shared prefix is not nesting", []string{p("/srv"), p("/srv2")}, []string{p("/srv"), p("/srv2")}},
		{"deeply nested", []string{p("/a/b/c"), p("/a"), p("/a/b")}, []string{p("/a")}},
		{"empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outermost(tt.roots); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Outermost(%v) = %v; want %v", tt.roots, got, tt.want)
			}
		})
	}
}

func TestEligible_DropsNestedMounts(t *testing.T) {
	root := filepath.FromSlash("/")
	home := filepath.FromSlash("/home")
	vols := []Volume{
		{Root: root, Kind: KindFixed, Ready: true},
		{Root: home, Kind: KindFixed, Ready: true},
		{Root: filepath.FromSlash("/boot"), Kind: KindFixed, Ready: true},
	}
	if got := Eligible(vols); !reflect.DeepEqual(got, []string{root}) {
		t.Fatalf("Eligible() = %v; want [%s]", got, root)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindFixed:     "fixed",
		KindRemovable: "removable",
		KindNetwork:   "network",
		KindOptical:   "optical",
		KindRAM:       "ram",
		KindNoRoot:    "no-root",
		KindUnknown:   "unknown",
		Kind(99):      "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q; want %q", int(k), got, want)
		}
	}
}
