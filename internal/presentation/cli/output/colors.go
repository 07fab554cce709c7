package output

import (
	"os"
	"sync"
)

// IsColorSupported reports whether stdout should get ANSI colors. The
// answer is computed once per process.
var IsColorSupported = sync.OnceValue(func() bool {
	return colorSupport(os.LookupEnv, os.Stdout)
})

// colorSupport decides from the environment and the output file. NO_COLOR
// wins over FORCE_COLOR; otherwise the file must be a terminal with a
// usable TERM.
func colorSupport(lookup func(string) (string, bool), out *os.File) bool {
	if _, ok := lookup("NO_COLOR"); ok {
		return false
	}
	if _, ok := lookup("FORCE_COLOR"); ok {
		return true
	}
	if out == nil {
		return false
	}
	stat, err := out.Stat()
	if err != nil || stat.Mode()&os.ModeCharDevice == 0 {
		return false
	}
	term, _ := lookup("TERM")
	return term != "" && term != "dumb"
}
