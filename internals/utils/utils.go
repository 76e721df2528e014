package utils

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

func ValidateURL(urlString string) (string, error) {
	u, err := url.Parse(urlString)
	if err != nil {
		return "", err
	}

	if u.Scheme == "" {
		u.Scheme = "https"
		u, err = url.Parse(u.String())
		if err != nil {
			return "", err
		}
	}

	// Remove the path
	u.Path = ""

	// Get the modified URL without the path
	cleanURL := u.String()
	return cleanURL, nil
}

// ParseDicomDate combines a DICOM DA value (YYYYMMDD) with an optional TM
// value (HH, HHMM or HHMMSS with an optional fractional part) into a
// time.Time. An empty time value yields midnight.
func ParseDicomDate(date string, tm string) (time.Time, error) {
	day, err := time.Parse("20060102", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid DICOM date %q: %w", date, err)
	}
	if tm == "" {
		return day, nil
	}

	frac := ""
	if idx := strings.IndexByte(tm, '.'); idx >= 0 {
		frac = tm[idx+1:]
		tm = tm[:idx]
	}
	if len(tm) != 2 && len(tm) != 4 && len(tm) != 6 {
		return time.Time{}, fmt.Errorf("invalid DICOM time %q", tm)
	}

	hour, minute, second := 0, 0, 0
	if hour, err = strconv.Atoi(tm[0:2]); err != nil {
		return time.Time{}, fmt.Errorf("invalid DICOM time %q", tm)
	}
	if len(tm) >= 4 {
		if minute, err = strconv.Atoi(tm[2:4]); err != nil {
			return time.Time{}, fmt.Errorf("invalid DICOM time %q", tm)
		}
	}
	if len(tm) == 6 {
		if second, err = strconv.Atoi(tm[4:6]); err != nil {
			return time.Time{}, fmt.Errorf("invalid DICOM time %q", tm)
		}
	}

	nanos := 0
	if frac != "" {
		if len(frac) > 6 {
			frac = frac[:6]
		}
		for len(frac) < 6 {
			frac += "0"
		}
		micros, err := strconv.Atoi(frac)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid DICOM time fraction %q", frac)
		}
		nanos = micros * 1000
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, nanos, time.UTC), nil
}

// ParseDicomTimestamp parses Orthanc's LastUpdate format, YYYYMMDDTHHMMSS.
func ParseDicomTimestamp(ts string) (time.Time, error) {
	date, tm, found := strings.Cut(ts, "T")
	if !found {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", ts)
	}
	return ParseDicomDate(date, tm)
}
