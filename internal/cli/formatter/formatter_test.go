package formatter

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffplan/internal/core"
)

func TestMoney(t *testing.T) {
	cases := map[core.Money]string{
		0:        "0",
		999:      "999",
		1000:     "1 000",
		120000:   "120 000",
		-1234567: "-1 234 567",
	}
	for in, want := range cases {
		assert.Equal(t, want, Money(in))
	}
	assert.Equal(t, "1 200h", Hours(1200))
	assert.Equal(t, "12.5%", Percent(12.46))
}

func TestAmount(t *testing.T) {
	cases := map[string]string{
		"0":        "0",
		"120000":   "120 000",
		"1000.6":   "1 000.60",
		"1234.567": "1 234.57",
		"-0.5":     "-0.50",
		"-1500.25": "-1 500.25",
	}
	for in, want := range cases {
		assert.Equal(t, want, Amount(core.NewAmount(decimal.RequireFromString(in))), in)
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable([]string{"Name", "Hours"}, [][]string{
		{"Vera", "40h"},
		{"Alexander", StyleRed.Render("8h")},
		{"short"},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "Name")
	assert.Contains(t, lines[1], "─")
	assert.True(t, strings.HasPrefix(lines[2], "Vera"))
	assert.Contains(t, lines[3], "8h")

	assert.Empty(t, RenderTable(nil, nil))
}

func TestLoadStyle(t *testing.T) {
	assert.Equal(t, StyleRed, LoadStyle(50, true, false))
	assert.Equal(t, StyleDim, LoadStyle(0, false, true))
	assert.Equal(t, StyleYellow, LoadStyle(0, false, false))
	assert.Equal(t, StyleGreen, LoadStyle(40, false, false))
}
