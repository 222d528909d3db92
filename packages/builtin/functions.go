package builtin

import (
	"encoding/base64"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Func func(args []string) (any, error)

type Registry struct {
	funcs map[string]Func
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = funcNow
	r.funcs["timestamp"] = funcTimestamp
	r.funcs["uuid"] = funcUUID
	r.funcs["random"] = funcRandom
	r.funcs["base64"] = funcBase64
	r.funcs["urlEncode"] = funcURLEncode
	r.funcs["date"] = funcDate
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates an expression such as `date("2006-01")`. ok is false when the
// expression is not a call to a registered function.
func (r *Registry) Call(expr string) (result any, ok bool, err error) {
	matches := funcCallPattern.FindStringSubmatch(expr)
	if matches == nil {
		return nil, false, nil
	}

	fn, found := r.funcs[matches[1]]
	if !found {
		return nil, false, nil
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}

	result, err = fn(args)
	return result, true, err
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !inQuote && (ch == '"' || ch == '\'') {
			inQuote = true
			quoteChar = ch
		} else if inQuote && ch == quoteChar {
			inQuote = false
			quoteChar = 0
		} else if !inQuote && ch == ',' {
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		} else {
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func funcNow(_ []string) (any, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func funcTimestamp(_ []string) (any, error) {
	return time.Now().Unix(), nil
}

func funcUUID(_ []string) (any, error) {
	return uuid.New().String(), nil
}

func funcRandom(args []string) (any, error) {
	min, max := 0, 100
	if len(args) >= 2 {
		var err error
		if min, err = strconv.Atoi(args[0]); err != nil {
			return nil, &ArgumentError{Func: "random", Arg: args[0]}
		}
		if max, err = strconv.Atoi(args[1]); err != nil {
			return nil, &ArgumentError{Func: "random", Arg: args[1]}
		}
	}
	if max < min {
		min, max = max, min
	}
	return rand.Intn(max-min+1) + min, nil
}

func funcBase64(args []string) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0])), nil
}

func funcURLEncode(args []string) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	return url.QueryEscape(args[0]), nil
}

func funcDate(args []string) (any, error) {
	format := "2006-01-02"
	if len(args) >= 1 {
		format = args[0]
	}
	return time.Now().UTC().Format(format), nil
}

// ArgumentError reports an argument a builtin could not interpret.
type ArgumentError struct {
	Func string
	Arg  string
}

func (e *ArgumentError) Error() string {
	return e.Func + "(): invalid argument " + strconv.Quote(e.Arg)
}
