package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
)

// sqlite hands timestamps back as text unless the column affinity is recognised.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTimeText(t)
	case []byte:
		return parseTimeText(string(t))
	case int64:
		return time.UnixMilli(t).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp value %T", v)
	}
}

func toTimePtr(v any) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	t, err := toTime(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseTimeText(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

// nullable converts typed nil pointers into untyped nil for driver args.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

func unmarshalJSON(ns sql.NullString, dst any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(ns.String), dst); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}

func dbError(op string, err error) error {
	if err == nil {
		return nil
	}
	return common.NewAppError(common.CodeDatabase, op, errors.Join(common.ErrDatabase, err))
}
