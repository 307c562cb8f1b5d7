package kernel

import (
	"testing"

	"volseg/pkg/volume"
)

func TestConnectivityOffsets(t *testing.T) {
	cases := []struct {
		name         string
		connectivity Connectivity
		wantCount    int
	}{
		{"face", Face6, 6},
		{"edge", Edge18, 18},
		{"vertex", Vertex26, 26},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			offsets, err := tc.connectivity.Offsets()
			if err != nil {
				t.Fatalf("Offsets: %v", err)
			}
			if len(offsets) != tc.wantCount {
				t.Errorf("got %d offsets, want %d", len(offsets), tc.wantCount)
			}
			for _, off := range offsets {
				if off == (volume.Point3D{}) {
					t.Errorf("offsets must not include the identity")
				}
				if off.X < -1 || off.X > 1 || off.Y < -1 || off.Y > 1 || off.Z < -1 || off.Z > 1 {
					t.Errorf("offset %v outside the unit neighborhood", off)
				}
			}
		})
	}
}

func TestConnectivityOffsetsUnknown(t *testing.T) {
	if _, err := Connectivity(7).Offsets(); err == nil {
		t.Errorf("expected an error for an unknown connectivity mode")
	}
}

func TestSphereKernel(t *testing.T) {
	offsets, err := MorphologyKernel(Sphere, 1)
	if err != nil {
		t.Fatalf("MorphologyKernel: %v", err)
	}
	// Radius 1 sphere is the identity plus the six face neighbors.
	if len(offsets) != 7 {
		t.Errorf("radius-1 sphere has %d offsets, want 7", len(offsets))
	}

	for _, off := range offsets {
		if off.X*off.X+off.Y*off.Y+off.Z*off.Z > 1 {
			t.Errorf("offset %v outside the radius-1 sphere", off)
		}
	}
}

func TestSphereKernelRejectsNonPositiveRadius(t *testing.T) {
	if _, err := MorphologyKernel(Sphere, 0); err == nil {
		t.Errorf("expected an error for a radius-0 sphere")
	}
}

func TestCubeKernel(t *testing.T) {
	offsets, err := MorphologyKernel(Cube, 1)
	if err != nil {
		t.Fatalf("MorphologyKernel: %v", err)
	}
	if len(offsets) != 27 {
		t.Errorf("radius-1 cube has %d offsets, want 27", len(offsets))
	}

	// Radius 0 degrades to the identity.
	offsets, err = MorphologyKernel(Cube, 0)
	if err != nil {
		t.Fatalf("MorphologyKernel: %v", err)
	}
	if len(offsets) != 1 || offsets[0] != (volume.Point3D{}) {
		t.Errorf("radius-0 cube should be the identity offset only")
	}
}

func TestCrossKernel(t *testing.T) {
	offsets, err := MorphologyKernel(Cross, 2)
	if err != nil {
		t.Fatalf("MorphologyKernel: %v", err)
	}
	// Identity plus two arms of length 2 per axis.
	if len(offsets) != 13 {
		t.Errorf("radius-2 cross has %d offsets, want 13", len(offsets))
	}
	for _, off := range offsets {
		axes := 0
		if off.X != 0 {
			axes++
		}
		if off.Y != 0 {
			axes++
		}
		if off.Z != 0 {
			axes++
		}
		if axes > 1 {
			t.Errorf("cross offset %v is not axis-aligned", off)
		}
	}
}

func TestUnknownShape(t *testing.T) {
	if _, err := MorphologyKernel(Shape(99), 1); err == nil {
		t.Errorf("expected an error for an unknown kernel shape")
	}
}
