package model

import (
	"fmt"
	"strconv"
	"strings"
)

// CodeKind selects the base validity of an activation code.
type CodeKind int

const (
	CodeKindDay CodeKind = iota
	CodeKindMonth
	CodeKindYear
	CodeKindPermanent
)

var codeKindNames = map[CodeKind]string{
	CodeKindDay:       "day",
	CodeKindMonth:     "month",
	CodeKindYear:      "year",
	CodeKindPermanent: "permanent",
}

// AllCodeKinds is ordered by validity, shortest first.
var AllCodeKinds = []CodeKind{CodeKindDay, CodeKindMonth, CodeKindYear, CodeKindPermanent}

func (k CodeKind) Valid() bool {
	_, ok := codeKindNames[k]
	return ok
}

func (k CodeKind) String() string {
	if name, ok := codeKindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func (k CodeKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid code kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *CodeKind) UnmarshalText(text []byte) error {
	parsed, err := ParseCodeKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseCodeKind accepts a kind name ("month") or its numeric value ("1").
func ParseCodeKind(s string) (CodeKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for kind, name := range codeKindNames {
		if s == name {
			return kind, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && CodeKind(n).Valid() {
		return CodeKind(n), nil
	}
	return 0, fmt.Errorf("unknown code kind %q", s)
}

type CodeStatus string

const (
	CodeStatusUnused      CodeStatus = "unused"
	CodeStatusDistributed CodeStatus = "distributed"
	CodeStatusActivated   CodeStatus = "activated"
	CodeStatusInvalid     CodeStatus = "invalid"
)

// AllCodeStatuses is in lifecycle order.
var AllCodeStatuses = []CodeStatus{
	CodeStatusUnused,
	CodeStatusDistributed,
	CodeStatusActivated,
	CodeStatusInvalid,
}
