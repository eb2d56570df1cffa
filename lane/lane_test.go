package lane

import "testing"

func TestRatioValid(t *testing.T) {
	if !Ratio1.Valid() || !Ratio2.Valid() {
		t.Fatal("ratio 1 and 2 must both be valid")
	}
	if Ratio(0).Valid() || Ratio(3).Valid() {
		t.Fatal("only ratio 1 and 2 are valid")
	}
}

func TestNewRXTXSizing(t *testing.T) {
	rx := NewRX(Ratio2)
	if len(rx.Symbol) != 2 || len(rx.Valid) != 2 {
		t.Fatalf("expected ratio-2 slices, got %+v", rx)
	}
	tx := NewTX(Ratio1)
	if len(tx.Symbol) != 1 || len(tx.SetDisp) != 1 || len(tx.Disp) != 1 || len(tx.EIdle) != 1 {
		t.Fatalf("expected ratio-1 slices, got %+v", tx)
	}
}
