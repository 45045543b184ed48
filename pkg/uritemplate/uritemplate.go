// Package uritemplate implements RFC 6570 URI Templates, levels 1 through
// 4: the operators "", +, #, ., /, ;, ?, & plus the prefix (:n) and
// explode (*) modifiers. It both expands a template given a variable map
// and performs the inverse - matching a concrete URI back against a
// template to recover the variables bound to it - which is what
// resources/read uses to route an incoming URI to a handler.
package uritemplate

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// reservedOperators are explicitly out of scope for this engine: templates
// using = , ! @ | as an operator are rejected rather than expanded.
const reservedOperators = "=,!@|"

type varSpec struct {
	name      string
	explode   bool
	maxLength int // 0 means "no prefix modifier"
}

type expression struct {
	operator byte // 0 for the simple/no-operator case
	vars     []varSpec
}

// part is either a literal string segment or a template expression.
type part struct {
	literal string
	expr    *expression
}

// Template is a parsed, reusable RFC 6570 template.
type Template struct {
	raw   string
	parts []part
	names []string
}

// operatorSpec carries the per-operator expansion rules of RFC 6570's
// operator table: a leading prefix, the separator between multiple values, whether
// values keep reserved characters unencoded (+, #: encodeUnreservedOnly)
// or have everything outside the unreserved set percent-encoded (all other
// operators), and whether expanded values are named (name=value) or positional.
type operatorSpec struct {
	prefix               string
	separator            string
	encodeUnreservedOnly bool
	named                bool
	ifEmptyOmitEq        bool
}

var operatorSpecs = map[byte]operatorSpec{
	0: {prefix: "", separator: ",", encodeUnreservedOnly: false, named: false},
	'+': {prefix: "", separator: ",", encodeUnreservedOnly: true, named: false},
	'#': {prefix: "#", separator: ",", encodeUnreservedOnly: true, named: false},
	'.': {prefix: ".", separator: ".", encodeUnreservedOnly: false, named: false},
	'/': {prefix: "/", separator: "/", encodeUnreservedOnly: false, named: false},
	';': {prefix: ";", separator: ";", encodeUnreservedOnly: false, named: true, ifEmptyOmitEq: true},
	'?': {prefix: "?", separator: "&", encodeUnreservedOnly: false, named: true},
	'&': {prefix: "&", separator: "&", encodeUnreservedOnly: false, named: true},
}

// Parse validates raw against RFC 6570 levels 1-4 and compiles it into a
// reusable Template.
func Parse(raw string) (*Template, error) {
	t := &Template{raw: raw}
	seen := map[string]bool{}

	i := 0
	for i < len(raw) {
		if raw[i] == '{' {
			end := strings.IndexByte(raw[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("uritemplate: unterminated expression in %q", raw)
			}
			exprBody := raw[i+1 : i+end]
			expr, err := parseExpression(exprBody)
			if err != nil {
				return nil, err
			}
			t.parts = append(t.parts, part{expr: expr})
			for _, v := range expr.vars {
				if !seen[v.name] {
					seen[v.name] = true
					t.names = append(t.names, v.name)
				}
			}
			i += end + 1
		} else {
			start := i
			for i < len(raw) && raw[i] != '{' {
				i++
			}
			t.parts = append(t.parts, part{literal: raw[start:i]})
		}
	}
	return t, nil
}

func parseExpression(body string) (*expression, error) {
	if body == "" {
		return nil, fmt.Errorf("uritemplate: empty expression")
	}

	var op byte
	rest := body
	if isOperatorByte(body[0]) {
		op = body[0]
		rest = body[1:]
	}
	if strings.ContainsAny(reservedOperators, string(body[0])) {
		return nil, fmt.Errorf("uritemplate: reserved operator used in %q", body)
	}

	varStrs := strings.Split(rest, ",")
	vars := make([]varSpec, 0, len(varStrs))
	for _, vs := range varStrs {
		vs = strings.TrimSpace(vs)
		if vs == "" {
			return nil, fmt.Errorf("uritemplate: empty variable name in %q", body)
		}
		v := varSpec{name: vs}
		if strings.HasSuffix(vs, "*") {
			v.explode = true
			v.name = strings.TrimSuffix(vs, "*")
		} else if idx := strings.IndexByte(vs, ':'); idx >= 0 {
			n, err := strconv.Atoi(vs[idx+1:])
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("uritemplate: invalid prefix modifier in %q", vs)
			}
			v.name = vs[:idx]
			v.maxLength = n
		}
		if v.name == "" {
			return nil, fmt.Errorf("uritemplate: empty variable name in %q", body)
		}
		vars = append(vars, v)
	}
	return &expression{operator: op, vars: vars}, nil
}

func isOperatorByte(b byte) bool {
	switch b {
	case '+', '#', '.', '/', ';', '?', '&':
		return true
	default:
		return false
	}
}

// Names returns the ordered, de-duplicated list of variables the template
// references.
func (t *Template) Names() []string {
	return append([]string(nil), t.names...)
}

func (t *Template) String() string { return t.raw }

// danglingQuerySuffix matches a hand-written "?key=" or "&key=" a template
// author wrote as plain literal text right before a bare (non-operator)
// variable, e.g. "...?locale={lang}". RFC 6570's named operators ({?x},
// {&x}) only ever bind a query key to a variable of the same name; this
// lets a literal-text key differ from the variable name while still
// disappearing, prefix and all, when that variable is empty.
var danglingQuerySuffix = regexp.MustCompile(`[?&][A-Za-z0-9_.~%-]*=$`)

// Expand substitutes vars into the template. Missing
// variables expand to nothing, and an operator whose variables are all
// missing/empty omits its own prefix entirely. A plain literal "?key=" or
// "&key=" immediately preceding an expression that renders empty is
// trimmed along with it, so a handwritten query-key literal doesn't leave
// a dangling "?key=" behind.
func (t *Template) Expand(vars map[string]any) (string, error) {
	var b strings.Builder
	for _, p := range t.parts {
		if p.expr == nil {
			b.WriteString(p.literal)
			continue
		}
		expanded, err := expandExpression(p.expr, vars)
		if err != nil {
			return "", err
		}
		if expanded == "" {
			trimDanglingQuerySuffix(&b)
			continue
		}
		b.WriteString(expanded)
	}
	return b.String(), nil
}

func trimDanglingQuerySuffix(b *strings.Builder) {
	s := b.String()
	loc := danglingQuerySuffix.FindStringIndex(s)
	if loc == nil {
		return
	}
	b.Reset()
	b.WriteString(s[:loc[0]])
}

func expandExpression(e *expression, vars map[string]any) (string, error) {
	spec := operatorSpecs[e.operator]
	var rendered []string

	for _, v := range e.vars {
		val, present := vars[v.name]
		if !present || val == nil {
			continue
		}
		pieces, err := renderVar(v, val, spec)
		if err != nil {
			return "", err
		}
		rendered = append(rendered, pieces...)
	}

	if len(rendered) == 0 {
		return "", nil
	}
	return spec.prefix + strings.Join(rendered, spec.separator), nil
}

func renderVar(v varSpec, val any, spec operatorSpec) ([]string, error) {
	switch vv := val.(type) {
	case []string:
		return renderList(v, vv, spec)
	case []any:
		strs := make([]string, len(vv))
		for i, e := range vv {
			strs[i] = fmt.Sprintf("%v", e)
		}
		return renderList(v, strs, spec)
	case map[string]string:
		return renderMap(v, vv, spec)
	default:
		s := fmt.Sprintf("%v", vv)
		if v.maxLength > 0 && len(s) > v.maxLength {
			s = s[:v.maxLength]
		}
		encoded := encodeValue(s, spec.encodeUnreservedOnly)
		if spec.named {
			if encoded == "" && spec.ifEmptyOmitEq {
				return []string{v.name}, nil
			}
			return []string{v.name + "=" + encoded}, nil
		}
		return []string{encoded}, nil
	}
}

func renderList(v varSpec, values []string, spec operatorSpec) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if v.explode {
		out := make([]string, len(values))
		for i, val := range values {
			encoded := encodeValue(val, spec.encodeUnreservedOnly)
			if spec.named {
				out[i] = v.name + "=" + encoded
			} else {
				out[i] = encoded
			}
		}
		return out, nil
	}
	encoded := make([]string, len(values))
	for i, val := range values {
		encoded[i] = encodeValue(val, spec.encodeUnreservedOnly)
	}
	joined := strings.Join(encoded, ",")
	if spec.named {
		return []string{v.name + "=" + joined}, nil
	}
	return []string{joined}, nil
}

func renderMap(v varSpec, m map[string]string, spec operatorSpec) ([]string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	if v.explode {
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, encodeValue(k, spec.encodeUnreservedOnly)+"="+encodeValue(m[k], spec.encodeUnreservedOnly))
		}
		return out, nil
	}
	var flat []string
	for _, k := range keys {
		flat = append(flat, encodeValue(k, spec.encodeUnreservedOnly), encodeValue(m[k], spec.encodeUnreservedOnly))
	}
	joined := strings.Join(flat, ",")
	if spec.named {
		return []string{v.name + "=" + joined}, nil
	}
	return []string{joined}, nil
}

const reservedChars = ":/?#[]@!$&'()*+,;="

func isUnreservedByte(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// encodeValue applies the operator's RFC 6570 encoding rule:
// "+"/"#" pass reserved characters and already-percent-encoded triples
// through untouched (unreservedOnly=true); every other operator
// percent-encodes everything outside the unreserved set.
func encodeValue(s string, unreservedOnly bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isUnreservedByte(c):
			b.WriteByte(c)
		case unreservedOnly && strings.IndexByte(reservedChars, c) >= 0:
			b.WriteByte(c)
		case unreservedOnly && c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// Match is the inverse of Expand: it attempts to bind uri against the
// template's literal/variable structure and returns the recovered
// variables. Works reliably for templates without reserved/
// operator-dependent encoding, where extract(construct(vars)) == vars.
func (t *Template) Match(uri string) (map[string]string, bool) {
	var pattern strings.Builder
	pattern.WriteByte('^')
	var groupNames []string

	for _, p := range t.parts {
		if p.expr == nil {
			pattern.WriteString(regexp.QuoteMeta(p.literal))
			continue
		}
		spec := operatorSpecs[p.expr.operator]
		if spec.prefix != "" {
			pattern.WriteString(regexp.QuoteMeta(spec.prefix) + "?")
		}
		for i, v := range p.expr.vars {
			if i > 0 {
				pattern.WriteString(regexp.QuoteMeta(spec.separator))
			}
			groupNames = append(groupNames, v.name)
			if spec.named {
				pattern.WriteString(regexp.QuoteMeta(v.name) + "=")
			}
			pattern.WriteString(`([^/,&?]*)`)
		}
	}
	pattern.WriteByte('$')

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, false
	}
	m := re.FindStringSubmatch(uri)
	if m == nil {
		return nil, false
	}

	result := make(map[string]string, len(groupNames))
	for i, name := range groupNames {
		decoded, err := url.QueryUnescape(m[i+1])
		if err != nil {
			decoded = m[i+1]
		}
		result[name] = decoded
	}
	return result, true
}
