package probe

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"codeberg.org/znoxx/sleepynas/internal/errors"
)

const (
	averageLabel = "Average"
	ifaceColumn  = "IFACE"
	rxColumn     = "rxkB/s"
	txColumn     = "txkB/s"
)

// columns of sar -n DEV when no header row is seen
var defaultLayout = layout{iface: 1, rx: 4, tx: 5}

type layout struct {
	iface, rx, tx int
}

func (l layout) width() int {
	return max(l.iface, l.rx, l.tx) + 1
}

// ParseAverage returns rxkB/s + txkB/s from the last Average row for iface.
// Column positions are taken from the Average header row when present.
func ParseAverage(r io.Reader, iface string) (int64, error) {
	var (
		cols  = defaultLayout
		row   []string
		found bool
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || !strings.HasPrefix(fields[0], averageLabel) {
			continue
		}

		if header, ok := parseHeader(fields); ok {
			cols = header
			continue
		}

		if len(fields) >= cols.width() && fields[cols.iface] == iface {
			row = fields
			found = true
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.New().Wrap(errors.ErrMeasurement, err)
	}

	if !found {
		return 0, errNoAverage.WithData(iface)
	}

	rx, err := parseRate(row[cols.rx])
	if err != nil {
		return 0, errMalformed.WithData(strings.Join(row, " "))
	}
	tx, err := parseRate(row[cols.tx])
	if err != nil {
		return 0, errMalformed.WithData(strings.Join(row, " "))
	}
	if rx > MaxThroughput-tx {
		return 0, errMalformed.WithData(strings.Join(row, " "))
	}

	return rx + tx, nil
}

func parseHeader(fields []string) (layout, bool) {
	l := layout{iface: -1, rx: -1, tx: -1}
	for i, f := range fields {
		switch f {
		case ifaceColumn:
			l.iface = i
		case rxColumn:
			l.rx = i
		case txColumn:
			l.tx = i
		}
	}

	return l, l.iface >= 0 && l.rx >= 0 && l.tx >= 0
}

// parseRate truncates to whole kB/s; sar is run with --dec=0 so fractions are rare.
func parseRate(s string) (int64, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if i < 0 {
			return 0, strconv.ErrRange
		}
		return i, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if !(f >= 0) || f > float64(MaxThroughput) {
		return 0, strconv.ErrRange
	}

	return int64(f), nil
}
