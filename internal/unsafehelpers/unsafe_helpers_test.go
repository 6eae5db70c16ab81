// © 2025 dbgbuilder authors. MIT License.
package unsafehelpers

import (
	"testing"
	"unsafe"
)

func TestBytesToStringRoundTrip(t *testing.T) {
	b := []byte("ACGTACGT")
	s := BytesToString(b)
	if s != "ACGTACGT" {
		t.Errorf("BytesToString = %q, want ACGTACGT", s)
	}
}

func TestBytesToStringEmpty(t *testing.T) {
	if got := BytesToString(nil); got != "" {
		t.Errorf("BytesToString(nil) = %q, want empty", got)
	}
}

func TestStringToBytesRoundTrip(t *testing.T) {
	s := "ACGTACGT"
	b := StringToBytes(s)
	if string(b) != s {
		t.Errorf("StringToBytes(%q) = %q", s, b)
	}
}

func TestStringToBytesEmpty(t *testing.T) {
	if got := StringToBytes(""); got != nil {
		t.Errorf("StringToBytes(\"\") = %v, want nil", got)
	}
}

func TestPtrSlice(t *testing.T) {
	arr := [4]uint32{1, 2, 3, 4}
	s := PtrSlice(&arr[0], 4)
	if len(s) != 4 || s[0] != 1 || s[3] != 4 {
		t.Errorf("PtrSlice = %v, want [1 2 3 4]", s)
	}
}

func TestPtrSliceZeroLen(t *testing.T) {
	var x uint32
	if s := PtrSlice(&x, 0); s != nil {
		t.Errorf("PtrSlice with n=0 = %v, want nil", s)
	}
}

func TestByteSliceFrom(t *testing.T) {
	buf := []byte{10, 20, 30, 40}
	got := ByteSliceFrom(unsafe.Pointer(&buf[0]), 4)
	for i := range buf {
		if got[i] != buf[i] {
			t.Errorf("ByteSliceFrom[%d] = %d, want %d", i, got[i], buf[i])
		}
	}
}

func TestByteSliceFromZeroLen(t *testing.T) {
	buf := []byte{1}
	if got := ByteSliceFrom(unsafe.Pointer(&buf[0]), 0); got != nil {
		t.Errorf("ByteSliceFrom with length=0 = %v, want nil", got)
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		x, align, want uintptr
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{17, 16, 32},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.x, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.x, tt.align, got, tt.want)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		x    uintptr
		want bool
	}{
		{0, false},
		{1, true},
		{2, true},
		{3, false},
		{64, true},
		{65, false},
	}
	for _, tt := range tests {
		if got := IsPowerOfTwo(tt.x); got != tt.want {
			t.Errorf("IsPowerOfTwo(%d) = %v, want %v", tt.x, got, tt.want)
		}
	}
}
