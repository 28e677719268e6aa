package color

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHSL(t *testing.T) {
	// Golden value via the sector formula: h=200 falls in sector 3,
	// c=0.63, x=0.42, m=0.235 -> (60, 167, 221).
	assert.Equal(t, "#3ca7dd", Normalize("hsl(200, 70%, 55%)"))
}

func TestNormalizeRGB(t *testing.T) {
	assert.Equal(t, "#3ca7dd", Normalize("rgb(60, 167, 221)"))
	assert.Equal(t, "#3ca7dd", Normalize("rgba(60, 167, 221, 0.5)"))
}

func TestNormalizeHexPassthrough(t *testing.T) {
	assert.Equal(t, "#ff0000", Normalize("#ff0000"))
	assert.Equal(t, "#f00", Normalize("#f00"))
}

func TestNormalizeUnrecognizedPassthrough(t *testing.T) {
	assert.Equal(t, "chartreuse", Normalize("chartreuse"))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"hsl(200, 70%, 55%)",
		"hsl(0, 100%, 50%)",
		"rgb(1, 2, 3)",
		"rgba(255, 255, 255, 1)",
		"#3ca7dd",
		"not-a-color",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestDeriveDeterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, Derive("alice"), Derive("alice"))
	}
	// "alice" sums to 510 -> hue 150.
	assert.Equal(t, "#3cdd8c", Derive("alice"))
}

func TestDeriveWithoutSeed(t *testing.T) {
	hex6 := regexp.MustCompile(`^#[0-9a-f]{6}$`)
	for i := 0; i < 20; i++ {
		assert.Regexp(t, hex6, Derive(""))
	}
}
