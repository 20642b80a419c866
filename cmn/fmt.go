package cmn

import (
	"fmt"
	"io"
)

const (
	MediumMark        = "✓"
	MediumX           = "✕"
	MediumBulletPoint = "•"
)

// Printfln is a formatted line printer.
type Printfln func(w io.Writer, format string, args ...interface{})

func PrintflnSuccess(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%v%s %s%v\n", ForeGreen, MediumMark, fmt.Sprintf(format, args...), AttrOff)
}

func PrintflnWarn(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%v%s %s%v\n", ForeYellow, MediumX, fmt.Sprintf(format, args...), AttrOff)
}

func PrintflnNotify(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%v%s%v %s\n", ForeBlue, MediumBulletPoint, AttrOff, fmt.Sprintf(format, args...))
}

/*
	conditional formatting.
	if fmtdisable is set the line is printed raw, else through fptr.
*/
func CndPrintfln(w io.Writer, fmtdisable bool, fptr Printfln, format string, args ...interface{}) {
	if fmtdisable {
		fmt.Fprintf(w, format+"\n", args...)
		return
	}
	fptr(w, format, args...)
}
