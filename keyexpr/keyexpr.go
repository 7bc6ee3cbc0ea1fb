// Copyright 2025 StreamNative, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package keyexpr compiles key templates such as `$remote_addr$uri` or
// `user-${cookie_uid}` and evaluates them against an HTTP request.
//
// A variable is a `$` followed by letters, digits and underscores, optionally
// wrapped in braces to separate it from following text. Variables that are not
// set on the request evaluate to the empty string.
package keyexpr

import (
	"net"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/streamnative/chashmap/chash"
)

type variable func(r *http.Request) string

var variables = map[string]variable{
	"remote_addr": func(r *http.Request) string {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	},
	"remote_port": func(r *http.Request) string {
		_, port, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return ""
		}
		return port
	},
	"host": func(r *http.Request) string {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		return strings.ToLower(host)
	},
	// The Host header is not kept in r.Header.
	"http_host": func(r *http.Request) string {
		return r.Host
	},
	"uri": func(r *http.Request) string {
		return r.URL.Path
	},
	"request_uri": func(r *http.Request) string {
		return r.URL.RequestURI()
	},
	"args": func(r *http.Request) string {
		return r.URL.RawQuery
	},
	"query_string": func(r *http.Request) string {
		return r.URL.RawQuery
	},
	"request_method": func(r *http.Request) string {
		return r.Method
	},
	"scheme": func(r *http.Request) string {
		if r.TLS != nil {
			return "https"
		}
		return "http"
	},
	"server_protocol": func(r *http.Request) string {
		return r.Proto
	},
}

// Prefixed variables take their name from the rest of the variable.
var prefixed = map[string]func(name string) variable{
	"arg_": func(name string) variable {
		return func(r *http.Request) string {
			return r.URL.Query().Get(name)
		}
	},
	"http_": func(name string) variable {
		header := http.CanonicalHeaderKey(strings.ReplaceAll(name, "_", "-"))
		return func(r *http.Request) string {
			return r.Header.Get(header)
		}
	},
	"cookie_": func(name string) variable {
		return func(r *http.Request) string {
			c, err := r.Cookie(name)
			if err != nil {
				return ""
			}
			return c.Value
		}
	},
}

type segment struct {
	literal  string
	variable variable
}

// Template is a compiled key template. It is immutable and safe for concurrent
// use.
type Template struct {
	raw       string
	segments  []segment
	variables []string
}

func Compile(expr string) (*Template, error) {
	t := &Template{raw: expr}

	var literal strings.Builder
	flush := func() {
		if literal.Len() > 0 {
			t.segments = append(t.segments, segment{literal: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(expr); {
		if expr[i] != '$' {
			literal.WriteByte(expr[i])
			i++
			continue
		}

		name, next, err := scanName(expr, i+1)
		if err != nil {
			return nil, err
		}

		v, err := lookupVariable(name)
		if err != nil {
			return nil, err
		}

		flush()
		t.segments = append(t.segments, segment{variable: v})
		t.variables = append(t.variables, name)
		i = next
	}
	flush()

	return t, nil
}

func MustCompile(expr string) *Template {
	t, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return t
}

// scanName reads the variable name starting at position i, just after the `$`,
// and returns the position following it.
func scanName(expr string, i int) (name string, next int, err error) {
	braced := i < len(expr) && expr[i] == '{'
	if braced {
		i++
	}

	start := i
	for i < len(expr) && isNameChar(expr[i]) {
		i++
	}
	name = expr[start:i]

	if name == "" {
		return "", 0, errors.Wrapf(chash.ErrConfig, "invalid variable name at offset %d in %q", start, expr)
	}

	if braced {
		if i >= len(expr) || expr[i] != '}' {
			return "", 0, errors.Wrapf(chash.ErrConfig, "missing '}' after variable %q in %q", name, expr)
		}
		i++
	}
	return name, i, nil
}

func isNameChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

func lookupVariable(name string) (variable, error) {
	if v, ok := variables[name]; ok {
		return v, nil
	}

	for prefix, factory := range prefixed {
		if suffix, ok := strings.CutPrefix(name, prefix); ok && suffix != "" {
			return factory(suffix), nil
		}
	}

	return nil, errors.Wrapf(chash.ErrConfig, "unknown variable %q", "$"+name)
}

// Evaluate computes the key for the request.
func (t *Template) Evaluate(r *http.Request) []byte {
	var b []byte
	for _, s := range t.segments {
		if s.variable != nil {
			b = append(b, s.variable(r)...)
		} else {
			b = append(b, s.literal...)
		}
	}
	return b
}

// Empty reports whether the template has neither text nor variables.
func (t *Template) Empty() bool {
	return len(t.segments) == 0
}

// Variables returns the names of the variables referenced by the template.
func (t *Template) Variables() []string {
	return t.variables
}

func (t *Template) String() string {
	return t.raw
}
