package version

import (
	_ "embed" // for go:embed
	"strconv"
	"strings"
)

// VERSION holds the server's version
//
//go:embed VERSION
var VERSION string

// Version segments
var (
	MAJOR int
	MINOR int
	FIX   int
)

func init() {
	VERSION = strings.TrimSuffix(VERSION, "\n")
	v := strings.Split(VERSION, ".")
	MAJOR, _ = strconv.Atoi(v[0])
	if len(v) > 1 {
		MINOR, _ = strconv.Atoi(v[1])
	}
	if len(v) > 2 {
		FIX, _ = strconv.Atoi(strings.Split(v[2], "-")[0])
	}
}
