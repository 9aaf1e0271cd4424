package noise

import "testing"

func TestFractalRange(t *testing.T) {
	g := New(12345, 5, 0.5, 2)
	for i := 0; i < 500; i++ {
		x := float64(i) * 0.137
		y := float64(i) * 0.071
		if v := g.Fractal2(x, y); v < -1 || v > 1 {
			t.Fatalf("Fractal2(%f,%f) = %f out of [-1,1]", x, y, v)
		}
		if v := g.Fractal3(x, y, x-y); v < -1 || v > 1 {
			t.Fatalf("Fractal3 out of range: %f", v)
		}
	}
}

func TestDeterministicPerSeed(t *testing.T) {
	a := New(99, 4, 0.5, 2)
	b := New(99, 4, 0.5, 2)
	c := New(100, 4, 0.5, 2)
	differs := false
	for i := 0; i < 50; i++ {
		x, y := float64(i)*0.31, float64(i)*0.17
		if a.Fractal2(x, y) != b.Fractal2(x, y) {
			t.Fatalf("equal seeds produced different samples at %d", i)
		}
		if a.Fractal2(x, y) != c.Fractal2(x, y) {
			differs = true
		}
	}
	if !differs {
		t.Fatal("different seeds produced identical fields")
	}
}

func TestCylinderTilesHorizontally(t *testing.T) {
	g := New(7, 4, 0.5, 2)
	const w, h = 64, 32
	for y := 0; y < h; y++ {
		if g.Cylinder(0, y, w, h, 4) != g.Cylinder(w, y, w, h, 4) {
			t.Fatalf("row %d: column 0 and column width differ", y)
		}
	}
}

func TestUnit(t *testing.T) {
	if Unit(-1) != 0 || Unit(1) != 1 || Unit(0) != 0.5 {
		t.Fatal("Unit must map [-1,1] onto [0,1]")
	}
	if Unit(5) != 1 {
		t.Fatal("Unit must clamp")
	}
}
