package respond

import (
	"strconv"
	"strings"
)

type mediaRange struct {
	typ     string
	subtype string
	q       float64
}

// parseAccept splits an Accept header into media ranges. Missing or invalid
// q values count as 1.0; a bare type without a slash is read as type/*.
func parseAccept(header string) []mediaRange {
	var ranges []mediaRange
	for part := range strings.SplitSeq(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		params := strings.Split(part, ";")
		mr := mediaRange{q: 1.0}
		full := strings.ToLower(strings.TrimSpace(params[0]))
		if typ, sub, ok := strings.Cut(full, "/"); ok {
			mr.typ, mr.subtype = typ, sub
		} else {
			mr.typ, mr.subtype = full, "*"
		}
		for _, p := range params[1:] {
			k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || strings.TrimSpace(k) != "q" {
				continue
			}
			if q, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && q >= 0 && q <= 1 {
				mr.q = q
			}
		}
		ranges = append(ranges, mr)
	}
	return ranges
}

// matchQuality reports how specifically mr matches application/<format> and
// its +<format> structured-suffix variants: 3 exact, 2 suffix wildcard,
// 1 type or full wildcard, 0 no match.
func (mr mediaRange) matchQuality(format string) int {
	switch {
	case mr.typ == "*" && mr.subtype == "*":
		return 1
	case mr.typ != "application":
		return 0
	case mr.subtype == format || strings.HasSuffix(mr.subtype, "+"+format) && !strings.HasPrefix(mr.subtype, "*"):
		return 3
	case mr.subtype == "*+"+format:
		return 2
	case mr.subtype == "*":
		return 1
	default:
		return 0
	}
}

// acceptQ returns the q value of the most specific range matching format.
func acceptQ(ranges []mediaRange, format string) float64 {
	best, q := 0, 0.0
	for _, mr := range ranges {
		if m := mr.matchQuality(format); m > best {
			best, q = m, mr.q
		}
	}
	return q
}

// selectFormat reports whether CBOR should be used for the given Accept
// header. JSON wins ties and is the default when nothing matches.
func selectFormat(accept string) bool {
	ranges := parseAccept(accept)
	if len(ranges) == 0 {
		return false
	}
	return acceptQ(ranges, "cbor") > acceptQ(ranges, "json")
}
