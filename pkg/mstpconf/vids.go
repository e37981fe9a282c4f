package mstpconf

import (
	"errors"
	"strconv"
	"strings"

	"github.com/mstpgo/mstpd/pkg/model"
)

// VID range lists are comma-separated `N` or `N-M` with N<=M<=4094; decode
// writes mstid into every listed entry of table, encode renders the set of
// VIDs currently mapped to mstid back to the same syntax with maximal runs.

var errBadVIDRange = errors.New("bad vid range")

// DecodeVIDs applies one `vids` token to table, mapping every listed VID to
// mstid. Values above 4094 saturate at 4094 and a descending
// range is an error.
func DecodeVIDs(table *model.VIDToMSTIDTable, s string, mstid model.MSTID) error {
	if s == "" {
		return errBadVIDRange
	}
	for _, part := range strings.Split(s, ",") {
		lo, hi, ok := splitRange(part)
		if !ok {
			return errBadVIDRange
		}
		for v := lo; v <= hi; v++ {
			table.Set(model.VID(v), mstid)
		}
	}
	return nil
}

// EncodeVIDs renders the VIDs mapped to mstid as a range list, or "" when
// none are.
func EncodeVIDs(table model.VIDToMSTIDTable, mstid model.MSTID) string {
	var sb strings.Builder
	for v := 0; v <= int(model.MaxVID); v++ {
		if table[v] != mstid {
			continue
		}
		end := v
		for end+1 <= int(model.MaxVID) && table[end+1] == mstid {
			end++
		}
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(v))
		if end != v {
			sb.WriteByte('-')
			sb.WriteString(strconv.Itoa(end))
		}
		v = end
	}
	return sb.String()
}

func splitRange(part string) (lo, hi int, ok bool) {
	a, b, dashed := strings.Cut(part, "-")
	lo, ok = vidValue(a)
	if !ok {
		return 0, 0, false
	}
	hi = lo
	if dashed {
		hi, ok = vidValue(b)
		if !ok || lo > hi {
			return 0, 0, false
		}
	}
	return lo, hi, true
}

func vidValue(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	if n > int(model.MaxVID) {
		n = int(model.MaxVID)
	}
	return n, true
}
