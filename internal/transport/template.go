package transport

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// TileURL expands the {x}, {y} and {z} placeholders of a tile source
// template. {-y} is replaced by the TMS row, counted from the south.
func TileURL(template string, t maptile.Tile) string {
	url := strings.Replace(template, "{x}", strconv.Itoa(int(t.X)), -1)
	url = strings.Replace(url, "{-y}", strconv.Itoa((1<<uint(t.Z))-1-int(t.Y)), -1)
	url = strings.Replace(url, "{y}", strconv.Itoa(int(t.Y)), -1)
	url = strings.Replace(url, "{z}", strconv.Itoa(int(t.Z)), -1)
	return url
}

// IsTemplate reports whether s carries all three tile placeholders.
func IsTemplate(s string) bool {
	return strings.Contains(s, "{x}") &&
		(strings.Contains(s, "{y}") || strings.Contains(s, "{-y}")) &&
		strings.Contains(s, "{z}")
}
