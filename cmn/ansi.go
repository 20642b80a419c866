package cmn

import (
	"strconv"
	"strings"
)

/*
	ansi escape sequences for pretty printing

	fmt.Printf("%vHello World%v\n", cmn.ForeRed, cmn.AttrOff)

	flags compose with |, e.g. cmn.AttrBold|cmn.ForeGreen
*/
type AnsiFlag uint32

const (
	AttrOff AnsiFlag = iota
	AttrBold
)

const (
	ForeRed AnsiFlag = (iota + 31) << 8
	ForeGreen
	ForeYellow
	ForeBlue
)

// String encodes f as [0 | back | fore | attr], one byte per part.
func (f AnsiFlag) String() string {
	var parts []string
	for f != 0 {
		if p := f & 0xFF; p != 0 {
			parts = append(parts, strconv.Itoa(int(p)))
		}
		f >>= 8
	}
	if len(parts) == 0 {
		return "\033[0m"
	}
	return "\033[" + strings.Join(parts, ";") + "m"
}
