package resize

import "testing"

func TestResizeShape(t *testing.T) {
	input := NewImage(792, 612, 3)
	output := Resize(input, 640, 640)
	if output.Height != 640 || output.Width != 640 || output.Channels != 3 {
		t.Fatalf("shape = (%d,%d,%d), want (640,640,3)", output.Height, output.Width, output.Channels)
	}
}

// TestSimpleUpsampling reproduces the reference 1x2 -> 1x5 fixture:
// expected output [100, 110, 150, 190, 200].
func TestSimpleUpsampling(t *testing.T) {
	input := NewImage(1, 2, 3)
	for c := 0; c < 3; c++ {
		input.set(0, 0, c, 100)
		input.set(0, 1, c, 200)
	}

	output := Resize(input, 1, 5)

	want := []uint8{100, 110, 150, 190, 200}
	for x, w := range want {
		if got := output.at(0, x, 0); got != w {
			t.Errorf("output[0,%d,0] = %d, want %d", x, got, w)
		}
	}
}

// TestDownsampling10x10To4x4 reproduces the reference ramp-image
// fixture verified against Pillow.
func TestDownsampling10x10To4x4(t *testing.T) {
	input := NewImage(10, 10, 3)
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			v := uint8(i*10 + j)
			for c := 0; c < 3; c++ {
				input.set(i, j, c, v)
			}
		}
	}

	output := Resize(input, 4, 4)

	want := [4][4]uint8{
		{11, 13, 16, 18},
		{33, 35, 38, 40},
		{59, 61, 64, 66},
		{81, 83, 86, 88},
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if got := output.at(y, x, 0); got != want[y][x] {
				t.Errorf("output[%d,%d,0] = %d, want %d", y, x, got, want[y][x])
			}
		}
	}
}

func TestResizeIdentity(t *testing.T) {
	input := NewImage(4, 4, 3)
	for i := range input.Pix {
		input.Pix[i] = uint8(i % 256)
	}
	output := Resize(input, 4, 4)
	for i := range input.Pix {
		if output.Pix[i] != input.Pix[i] {
			t.Fatalf("identity resize changed pixel %d: %d -> %d", i, input.Pix[i], output.Pix[i])
		}
	}
}

func TestClip8(t *testing.T) {
	cases := []struct {
		in   int64
		want uint8
	}{
		{-100, 0},
		{0, 0},
		{255, 255},
		{300, 255},
		{128, 128},
	}
	for _, c := range cases {
		if got := clip8(c.in); got != c.want {
			t.Errorf("clip8(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
