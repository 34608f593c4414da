// Package fir designs the windowed-sinc band-pass filter the station
// identifier uses to isolate the 1020 Hz Morse ident tone, and writes its
// coefficients as a C header or Go source.
package fir

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/cmplx"
)

// Band describes a band-pass design.
type Band struct {
	Taps       int
	Low, High  float64 // Hz
	SampleRate float64 // Hz
}

// IdentBand is the 900-1100 Hz filter at 48 kHz with 101 taps.
var IdentBand = Band{Taps: 101, Low: 900, High: 1100, SampleRate: 48000}

func (b Band) validate() error {
	nyq := b.SampleRate / 2
	switch {
	case b.Taps < 3 || b.Taps%2 == 0:
		return fmt.Errorf("taps must be odd and at least 3, got %d", b.Taps)
	case b.SampleRate <= 0:
		return errors.New("sample rate must be positive")
	case b.Low <= 0 || b.High <= b.Low || b.High >= nyq:
		return fmt.Errorf("band %g-%g Hz must satisfy 0 < low < high < %g", b.Low, b.High, nyq)
	}
	return nil
}

// Design returns Hamming-windowed band-pass coefficients normalised to
// unit gain at the centre of the band.
func Design(b Band) ([]float64, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	nyq := b.SampleRate / 2
	left, right := b.Low/nyq, b.High/nyq
	alpha := 0.5 * float64(b.Taps-1)

	h := make([]float64, b.Taps)
	for n := range h {
		m := float64(n) - alpha
		h[n] = right*sinc(right*m) - left*sinc(left*m)
		h[n] *= hamming(n, b.Taps)
	}

	// Scale so that the response at the band centre is exactly 1.
	centre := 0.5 * (left + right)
	var s float64
	for n, c := range h {
		s += c * math.Cos(math.Pi*(float64(n)-alpha)*centre)
	}
	for n := range h {
		h[n] /= s
	}
	return h, nil
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

func hamming(n, taps int) float64 {
	return 0.54 - 0.46*math.Cos(2*math.Pi*float64(n)/float64(taps-1))
}

// Gain is the magnitude response of coeffs at freq.
func Gain(coeffs []float64, freq, sampleRate float64) float64 {
	var sum complex128
	for n, c := range coeffs {
		sum += complex(c, 0) * cmplx.Exp(complex(0, -2*math.Pi*freq*float64(n)/sampleRate))
	}
	return cmplx.Abs(sum)
}

// WriteCHeader writes coeffs as the fir_coeffs[FIR_ORDER] table the C++
// identifier includes.
func WriteCHeader(w io.Writer, coeffs []float64) error {
	ew := &errWriter{w: w}
	ew.printf("#pragma once\n")
	ew.printf("constexpr int FIR_ORDER = %d;\n", len(coeffs))
	ew.printf("static const double fir_coeffs[FIR_ORDER] = {\n")
	for _, c := range coeffs {
		ew.printf("    %.16e,\n", c)
	}
	ew.printf("};\n")
	return ew.err
}

// WriteGo writes coeffs as a Go source file declaring FIROrder and
// FIRCoeffs in package pkg.
func WriteGo(w io.Writer, pkg string, b Band, coeffs []float64) error {
	ew := &errWriter{w: w}
	ew.printf("// Code generated by vornav fir; DO NOT EDIT.\n\n")
	ew.printf("package %s\n\n", pkg)
	ew.printf("// FIRCoeffs is a %g-%g Hz band-pass at %g Hz.\n", b.Low, b.High, b.SampleRate)
	ew.printf("const FIROrder = %d\n\n", len(coeffs))
	ew.printf("var FIRCoeffs = [FIROrder]float64{\n")
	for _, c := range coeffs {
		ew.printf("\t%.16e,\n", c)
	}
	ew.printf("}\n")
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
