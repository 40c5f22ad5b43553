package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"bankledger/internal/money"
)

const dayLayout = "2006-01-02"

var (
	errInvalidAmount = errors.New("invalid amount")
	errInvalidID     = errors.New("invalid account id")
)

// parseAmount accepts a JSON number or numeric string with at most two
// decimals. Sign and zero checks are left to the ledger.
func parseAmount(raw json.Number) (int64, error) {
	amount, err := money.ParseMinor(raw.String())
	if err != nil {
		return 0, errInvalidAmount
	}
	return amount, nil
}

func parseOptionalAmount(raw json.Number) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return parseAmount(raw)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// parseDayRange turns inclusive YYYY-MM-DD bounds into a UTC time range.
// The end bound covers the whole day.
func parseDayRange(start, end string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if start != "" {
		day, err := time.ParseInLocation(dayLayout, start, time.UTC)
		if err != nil {
			return nil, nil, errors.New("invalid start_date format, use YYYY-MM-DD")
		}
		from = &day
	}
	if end != "" {
		day, err := time.ParseInLocation(dayLayout, end, time.UTC)
		if err != nil {
			return nil, nil, errors.New("invalid end_date format, use YYYY-MM-DD")
		}
		last := day.Add(24*time.Hour - time.Nanosecond)
		to = &last
	}
	return from, to, nil
}
