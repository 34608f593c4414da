package fir

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestDesignIdentBand(t *testing.T) {
	h, err := Design(IdentBand)
	if err != nil {
		t.Fatalf("design: %v", err)
	}
	if len(h) != 101 {
		t.Fatalf("expected 101 taps, got %d", len(h))
	}

	for i := range h {
		if math.Abs(h[i]-h[len(h)-1-i]) > 1e-15 {
			t.Fatalf("coefficients must be symmetric, tap %d differs", i)
		}
	}

	if g := Gain(h, 1000, IdentBand.SampleRate); math.Abs(g-1) > 1e-9 {
		t.Errorf("expected unit gain at the band centre, got %g", g)
	}
	if g := Gain(h, 0, IdentBand.SampleRate); g > 0.05 {
		t.Errorf("expected DC to be rejected, got %g", g)
	}
	if g := Gain(h, 5000, IdentBand.SampleRate); g > 0.05 {
		t.Errorf("expected 5 kHz to be rejected, got %g", g)
	}
}

func TestDesignRejectsBadBands(t *testing.T) {
	for _, b := range []Band{
		{Taps: 100, Low: 900, High: 1100, SampleRate: 48000},
		{Taps: 101, Low: 1100, High: 900, SampleRate: 48000},
		{Taps: 101, Low: 900, High: 30000, SampleRate: 48000},
		{Taps: 101, Low: 900, High: 1100},
	} {
		if _, err := Design(b); err == nil {
			t.Errorf("expected %+v to be rejected", b)
		}
	}
}

func TestWriteCHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCHeader(&buf, []float64{0.5, -0.00125}); err != nil {
		t.Fatal(err)
	}
	want := "#pragma once\n" +
		"constexpr int FIR_ORDER = 2;\n" +
		"static const double fir_coeffs[FIR_ORDER] = {\n" +
		"    5.0000000000000000e-01,\n" +
		"    -1.2500000000000000e-03,\n" +
		"};\n"
	if buf.String() != want {
		t.Errorf("unexpected header:\n%s", buf.String())
	}
}

func TestWriteGo(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGo(&buf, "ident", IdentBand, []float64{1}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"package ident", "const FIROrder = 1", "var FIRCoeffs = [FIROrder]float64{"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteError(t *testing.T) {
	if err := WriteCHeader(failingWriter{}, []float64{1}); err == nil {
		t.Error("expected the write error to be returned")
	}
}
