package configs

import (
	"fmt"
	"github.com/goccy/go-json"
	"log"
	"time"
)

// Debugging toggles. Kept as free-standing vars so a server can flip them
// from a config file or flag without plumbing a context through every call.
var (
	ShowDebugInfo = false
	ShowTestInfo  = ShowDebugInfo
	ShowWarnings  = true
	LogToFile     = false
)

func stamp(format string) string {
	return time.Now().Format("15:04:05.00") + " <---> " + format + "\n"
}

func DPrintf(format string, a ...interface{}) {
	if !ShowDebugInfo {
		return
	}
	if LogToFile {
		log.Printf(stamp(format), a...)
	} else {
		fmt.Printf(stamp(format), a...)
	}
}

func TPrintf(format string, a ...interface{}) {
	if !ShowTestInfo {
		return
	}
	if LogToFile {
		log.Printf(stamp(format), a...)
	} else {
		fmt.Printf(stamp(format), a...)
	}
}

// Warn logs msg when cond is false and returns cond unchanged, so call
// sites can write `configs.Warn(ok, "...")` inline with the check they're
// already making.
func Warn(cond bool, msg string) bool {
	if ShowWarnings && !cond {
		if LogToFile {
			log.Printf("[WARNING] " + msg + "\n")
		} else {
			fmt.Printf("[WARNING] " + msg + "\n")
		}
	}
	return cond
}

// Assert panics with msg when cond is false. Used at invariants that must
// never be violated by a correct caller (programmer errors, not user errors).
func Assert(cond bool, msg string) bool {
	if !cond {
		panic("[ASSERT] " + msg)
	}
	return cond
}

// CheckError panics on any non-nil error. Reserved for the fatal conditions
// in the commit path (storage append rejection/failure, internal channel
// send failure) where recovery is out of scope.
func CheckError(err error) {
	if err != nil {
		panic(err.Error())
	}
}

func JToString(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func JPrint(v interface{}) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
