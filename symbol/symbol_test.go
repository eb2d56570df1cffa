package symbol

import "testing"

func TestWellKnownEncodings(t *testing.T) {
	cases := []struct {
		name string
		sym  Symbol
		want Symbol
	}{
		{"K28.5 comma", New(true, 28, 5), Comma},
		{"K28.0 skip", New(true, 28, 0), Skip},
		{"K23.7 pad", New(true, 23, 7), Pad},
		{"D10.2", New(false, 10, 2), D10_2},
		{"D5.2", New(false, 5, 2), D5_2},
		{"D21.5", New(false, 21, 5), D21_5},
		{"D26.5", New(false, 26, 5), D26_5},
	}
	for _, c := range cases {
		if c.sym != c.want {
			t.Errorf("%s: got %#x want %#x", c.name, c.sym, c.want)
		}
	}
}

func TestIsKIsD(t *testing.T) {
	if !Comma.IsK() || Comma.IsD() {
		t.Fatal("comma must be a K-code")
	}
	if !D10_2.IsD() || D10_2.IsK() {
		t.Fatal("D10.2 must be a data symbol")
	}
}

func TestBitExactValues(t *testing.T) {
	cases := map[Symbol]uint16{
		Comma: 0x1BC,
		Skip:  0x11C,
		Pad:   0x1F7,
		D10_2: 0x4A,
		D5_2:  0x45,
		D21_5: 0xB5,
		D26_5: 0xBA,
	}
	for sym, want := range cases {
		if uint16(sym) != want {
			t.Errorf("%s: got %#x want %#x", sym, uint16(sym), want)
		}
	}
}
