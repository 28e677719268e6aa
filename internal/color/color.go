// Package color assigns display colors to participants.
package color

import (
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
)

var (
	hslPattern = regexp.MustCompile(`(?i)hsl\((\d+(?:\.\d+)?),\s*(\d+)%?,\s*(\d+)%?\)`)
	rgbPattern = regexp.MustCompile(`(?i)rgba?\((\d+),\s*(\d+),\s*(\d+)(?:,\s*(\d+(?:\.\d+)?))?\)`)
)

// Normalize canonicalizes a textual color to a 6-digit hex string.
// Hex input is already canonical and passes through; hsl(...) and
// rgb[a](...) notations are converted. Anything else is returned
// unchanged so callers can surface it as-is.
func Normalize(col string) string {
	col = strings.TrimSpace(col)
	if col == "" {
		return Derive("")
	}
	if strings.HasPrefix(col, "#") {
		return col
	}
	if strings.HasPrefix(strings.ToLower(col), "hsl") {
		if m := hslPattern.FindStringSubmatch(col); m != nil {
			h, _ := strconv.ParseFloat(m[1], 64)
			s, _ := strconv.ParseFloat(m[2], 64)
			l, _ := strconv.ParseFloat(m[3], 64)
			return hslToHex(h, s, l)
		}
	}
	if strings.HasPrefix(strings.ToLower(col), "rgb") {
		if m := rgbPattern.FindStringSubmatch(col); m != nil {
			r, _ := strconv.Atoi(m[1])
			g, _ := strconv.Atoi(m[2])
			b, _ := strconv.Atoi(m[3])
			return fmt.Sprintf("#%02x%02x%02x", r, g, b)
		}
	}
	return col
}

// Derive picks a stable hue from the seed: the sum of its character
// codes modulo 360, at 70% saturation and 55% lightness. An empty seed
// gets a random hue instead.
func Derive(seed string) string {
	var hue float64
	if seed == "" {
		hue = math.Mod(rand.Float64()*1000, 360)
	} else {
		sum := 0
		for _, c := range seed {
			sum += int(c)
		}
		hue = float64(sum % 360)
	}
	return hslToHex(hue, 70, 55)
}

// hslToHex converts HSL (h in degrees, s and l in percent) to a hex
// RGB string using the standard sector formula.
func hslToHex(h, s, l float64) string {
	s /= 100
	l /= 100
	c := (1 - math.Abs(2*l-1)) * s
	hh := h / 60
	x := c * (1 - math.Abs(math.Mod(hh, 2)-1))
	var r, g, b float64
	switch {
	case 0 <= hh && hh < 1:
		r, g, b = c, x, 0
	case 1 <= hh && hh < 2:
		r, g, b = x, c, 0
	case 2 <= hh && hh < 3:
		r, g, b = 0, c, x
	case 3 <= hh && hh < 4:
		r, g, b = 0, x, c
	case 4 <= hh && hh < 5:
		r, g, b = x, 0, c
	case 5 <= hh && hh < 6:
		r, g, b = c, 0, x
	}
	m := l - c/2
	return fmt.Sprintf("#%02x%02x%02x",
		int(math.Round((r+m)*255)),
		int(math.Round((g+m)*255)),
		int(math.Round((b+m)*255)))
}
