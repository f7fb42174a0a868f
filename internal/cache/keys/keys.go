// Package keys builds the Redis key space used by the station stores.
package keys

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Record is the JSON record of a single station.
func Record(layer, id string) string {
	return fmt.Sprintf("stn:%s:%s", sanitizeLayer(strings.TrimSpace(layer)), sanitizeForKey(id))
}

// RecordPrefix matches every record of a layer.
func RecordPrefix(layer string) string {
	return fmt.Sprintf("stn:%s:", sanitizeLayer(strings.TrimSpace(layer)))
}

// Cell is the set of station ids whose position falls in an H3 cell.
func Cell(layer string, res int, cell string) string {
	return fmt.Sprintf("cell:%s:%d:%s", sanitizeLayer(strings.TrimSpace(layer)), res, cell)
}

// Members is the set of every station id in a layer.
func Members(layer string) string {
	return fmt.Sprintf("members:%s", sanitizeLayer(strings.TrimSpace(layer)))
}

// Names maps station names to ids.
func Names(layer string) string {
	return fmt.Sprintf("names:%s", sanitizeLayer(strings.TrimSpace(layer)))
}

// Blob holds a single JSON document, such as the replace-all averages table.
func Blob(name string) string {
	return "blob:" + sanitizeLayer(strings.TrimSpace(name))
}

// Version is the monotonically increasing change counter of a layer.
func Version(layer string) string {
	return "ver:" + sanitizeLayer(strings.TrimSpace(layer))
}

// StationID derives a stable id from a station name. Upstream station lists
// carry no numeric id, so names are hashed.
func StationID(name string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(collapseASCIIWhitespace(name)))
}

// Resolve is the cache key of a nearest-station lookup; coordinates are
// quantised to 8 decimals.
func Resolve(layer string, lat, lng, radiusKm float64) string {
	return fmt.Sprintf("%s|%d|%d|%d",
		sanitizeLayer(strings.TrimSpace(layer)),
		quantise(lat), quantise(lng), quantise(radiusKm))
}

func quantise(v float64) int64 {
	return int64(math.Round(v * 1e8))
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// Any other rune (including non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func sanitizeLayer(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

// converts any run of ASCII whitespace to a single space.
func collapseASCIIWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
