package api

import "fmt"

// Mode selects how properties become columns.
type Mode string

const (
	// ModeRich infers columns from a frequency sample of the scene.
	ModeRich Mode = "rich"
	// ModeMinimal maps property names onto a fixed set of columns.
	ModeMinimal Mode = "minimal"
)

// ParseMode accepts "rich" or "minimal"; empty means rich.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeRich:
		return ModeRich, nil
	case ModeMinimal:
		return ModeMinimal, nil
	}
	return "", fmt.Errorf("unknown mode %q (want rich or minimal)", s)
}

// Format is the artifact encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat accepts "xlsx" or "json"; empty means xlsx.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown format %q (want xlsx or json)", s)
}

// Extension is the file extension without the dot.
func (f Format) Extension() string { return string(f) }
