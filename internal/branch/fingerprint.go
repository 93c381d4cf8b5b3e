package branch

import (
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a short stable hash of v. Map keys are visited in
// sorted order and struct fields in declaration order, so equal values
// always produce equal fingerprints. Cycles, funcs and channels are written
// as markers. Fingerprint never panics; if traversal fails it returns a
// time-derived value that matches nothing previously returned.
func Fingerprint(v interface{}) (fp string) {
	defer func() {
		if rec := recover(); rec != nil {
			fp = "t" + strconv.FormatInt(time.Now().UnixNano(), 36)
		}
	}()
	d := xxhash.New()
	w := canonicalWriter{w: d, seen: make(map[uintptr]bool)}
	w.write(reflect.ValueOf(v))
	return strconv.FormatUint(d.Sum64(), 36)
}

type canonicalWriter struct {
	w    io.Writer
	seen map[uintptr]bool
}

func (c *canonicalWriter) str(s string) {
	_, _ = io.WriteString(c.w, s)
}

func (c *canonicalWriter) write(v reflect.Value) {
	if !v.IsValid() {
		c.str("null")
		return
	}
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			c.str("null")
			return
		}
		c.write(v.Elem())
	case reflect.Ptr:
		if v.IsNil() {
			c.str("null")
			return
		}
		if c.enter(v.Pointer()) {
			return
		}
		defer c.leave(v.Pointer())
		c.write(v.Elem())
	case reflect.Map:
		if v.IsNil() {
			c.str("null")
			return
		}
		if c.enter(v.Pointer()) {
			return
		}
		defer c.leave(v.Pointer())
		keys := v.MapKeys()
		names := make([]string, len(keys))
		byName := make(map[string]reflect.Value, len(keys))
		for i, k := range keys {
			names[i] = fmt.Sprint(k.Interface())
			byName[names[i]] = k
		}
		sort.Strings(names)
		c.str("{")
		for i, name := range names {
			if i > 0 {
				c.str(",")
			}
			c.str(strconv.Quote(name))
			c.str(":")
			c.write(v.MapIndex(byName[name]))
		}
		c.str("}")
	case reflect.Slice:
		if v.IsNil() {
			c.str("null")
			return
		}
		if v.Len() > 0 {
			if c.enter(v.Pointer()) {
				return
			}
			defer c.leave(v.Pointer())
		}
		c.list(v)
	case reflect.Array:
		c.list(v)
	case reflect.Struct:
		t := v.Type()
		c.str("{")
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if i > 0 {
				c.str(",")
			}
			c.str(strconv.Quote(t.Field(i).Name))
			c.str(":")
			c.write(v.Field(i))
		}
		c.str("}")
	case reflect.String:
		c.str(strconv.Quote(v.String()))
	case reflect.Bool:
		c.str(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		c.str(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		c.str(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			// 3 and 3.0 decode differently from YAML and JSON; hash them alike.
			c.str(strconv.FormatInt(int64(f), 10))
			return
		}
		c.str(strconv.FormatFloat(f, 'g', -1, 64))
	case reflect.Func:
		c.str("<func>")
	case reflect.Chan:
		c.str("<chan>")
	default:
		c.str("<" + v.Kind().String() + ">")
	}
}

func (c *canonicalWriter) list(v reflect.Value) {
	c.str("[")
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			c.str(",")
		}
		c.write(v.Index(i))
	}
	c.str("]")
}

// enter marks p as on the current path and reports whether it already was.
func (c *canonicalWriter) enter(p uintptr) bool {
	if c.seen[p] {
		c.str("<cycle>")
		return true
	}
	c.seen[p] = true
	return false
}

func (c *canonicalWriter) leave(p uintptr) {
	delete(c.seen, p)
}
