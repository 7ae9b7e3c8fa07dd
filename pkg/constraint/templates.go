package constraint

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Mindburn-Labs/conformance/pkg/pattern"
)

// ErrUnknownTemplate is returned by FromTemplate for an unregistered name.
var ErrUnknownTemplate = errors.New("constraint: unknown template")

// always is the activation of the unary templates: every trace activates them.
const always = ""

func build(template string, params []string, activation, satisfaction string) *Pattern {
	c, err := NewPattern(Description{Template: template, Params: params}, activation, satisfaction)
	if err != nil {
		// Labels are quoted, so template patterns always compile.
		panic(err)
	}
	return c
}

func q(l string) string { return pattern.Quote(l) }

// Existence requires at least n occurrences of a. Counts above
// pattern.MaxRepeat panic; FromTemplate rejects them.
func Existence(a string, n int) *Pattern {
	return build("Existence", []string{a, strconv.Itoa(n)}, always,
		fmt.Sprintf("(.* %s){%d} .*", q(a), n))
}

// Absence forbids a.
func Absence(a string) *Pattern {
	return build("Absence", []string{a}, always, fmt.Sprintf("[^%s]*", q(a)))
}

// AtMost allows at most n occurrences of a.
func AtMost(a string, n int) *Pattern {
	return build("AtMost", []string{a, strconv.Itoa(n)}, always,
		fmt.Sprintf("[^%[1]s]* (%[1]s [^%[1]s]*){0,%[2]d}", q(a), n))
}

// Exactly requires exactly n occurrences of a.
func Exactly(a string, n int) *Pattern {
	return build("Exactly", []string{a, strconv.Itoa(n)}, always,
		fmt.Sprintf("[^%[1]s]* (%[1]s [^%[1]s]*){%[2]d}", q(a), n))
}

// Init requires the trace to start with a.
func Init(a string) *Pattern {
	return build("Init", []string{a}, always, q(a)+" .*")
}

// End requires the trace to end with a.
func End(a string) *Pattern {
	return build("End", []string{a}, always, ".* "+q(a))
}

// Choice requires a or b to occur.
func Choice(a, b string) *Pattern {
	return build("Choice", []string{a, b}, always, fmt.Sprintf(".* [%s %s] .*", q(a), q(b)))
}

// ExclusiveChoice requires exactly one of a and b to occur.
func ExclusiveChoice(a, b string) *Pattern {
	return build("ExclusiveChoice", []string{a, b}, always,
		fmt.Sprintf("([^%[2]s]* %[1]s [^%[2]s]*) | ([^%[1]s]* %[2]s [^%[1]s]*)", q(a), q(b)))
}

// RespondedExistence requires b somewhere in any trace containing a.
func RespondedExistence(a, b string) *Pattern {
	return build("RespondedExistence", []string{a, b}, q(a),
		fmt.Sprintf("[^%s]* | .* %s .*", q(a), q(b)))
}

// CoExistence requires a and b to occur together or not at all.
func CoExistence(a, b string) *Pattern {
	return build("CoExistence", []string{a, b}, fmt.Sprintf("%s | %s", q(a), q(b)),
		fmt.Sprintf("[^%[1]s %[2]s]* | .* %[1]s .* %[2]s .* | .* %[2]s .* %[1]s .*", q(a), q(b)))
}

// Response requires every a to be eventually followed by b.
func Response(a, b string) *Pattern {
	return build("Response", []string{a, b}, q(a),
		fmt.Sprintf("[^%[1]s]* (%[1]s .* %[2]s)* [^%[1]s]*", q(a), q(b)))
}

// Precedence requires every b to be preceded by a.
func Precedence(a, b string) *Pattern {
	return build("Precedence", []string{a, b}, q(b),
		fmt.Sprintf("[^%[1]s %[2]s]* (%[1]s .*)?", q(a), q(b)))
}

// Succession combines Response(a, b) and Precedence(a, b).
func Succession(a, b string) *Pattern {
	return build("Succession", []string{a, b}, fmt.Sprintf("%s | %s", q(a), q(b)),
		fmt.Sprintf("[^%[1]s %[2]s]* (%[1]s .* %[2]s)* [^%[1]s %[2]s]*", q(a), q(b)))
}

// AlternateResponse requires each a to be followed by b before the next a.
func AlternateResponse(a, b string) *Pattern {
	return build("AlternateResponse", []string{a, b}, q(a),
		fmt.Sprintf("[^%[1]s]* (%[1]s [^%[1]s]* %[2]s [^%[1]s]*)*", q(a), q(b)))
}

// AlternatePrecedence requires each b to be preceded by a since the last b.
func AlternatePrecedence(a, b string) *Pattern {
	return build("AlternatePrecedence", []string{a, b}, q(b),
		fmt.Sprintf("[^%[2]s]* (%[1]s [^%[2]s]* %[2]s [^%[2]s]*)*", q(a), q(b)))
}

// AlternateSuccession combines AlternateResponse and AlternatePrecedence.
func AlternateSuccession(a, b string) *Pattern {
	return build("AlternateSuccession", []string{a, b}, fmt.Sprintf("%s | %s", q(a), q(b)),
		fmt.Sprintf("[^%[1]s %[2]s]* (%[1]s [^%[1]s %[2]s]* %[2]s [^%[1]s %[2]s]*)*", q(a), q(b)))
}

// ChainResponse requires every a to be immediately followed by b.
func ChainResponse(a, b string) *Pattern {
	return build("ChainResponse", []string{a, b}, q(a),
		fmt.Sprintf("[^%[1]s]* (%[1]s %[2]s [^%[1]s]*)*", q(a), q(b)))
}

// ChainPrecedence requires every b to be immediately preceded by a.
func ChainPrecedence(a, b string) *Pattern {
	return build("ChainPrecedence", []string{a, b}, q(b),
		fmt.Sprintf("[^%[2]s]* (%[1]s %[2]s [^%[2]s]*)*", q(a), q(b)))
}

// ChainSuccession combines ChainResponse and ChainPrecedence.
func ChainSuccession(a, b string) *Pattern {
	return build("ChainSuccession", []string{a, b}, fmt.Sprintf("%s | %s", q(a), q(b)),
		fmt.Sprintf("[^%[1]s %[2]s]* (%[1]s %[2]s [^%[1]s %[2]s]*)*", q(a), q(b)))
}

// NotCoExistence forbids a and b in the same trace.
func NotCoExistence(a, b string) *Pattern {
	return build("NotCoExistence", []string{a, b}, fmt.Sprintf("%s | %s", q(a), q(b)),
		fmt.Sprintf("[^%s]* | [^%s]*", q(a), q(b)))
}

// NotSuccession forbids b after a.
func NotSuccession(a, b string) *Pattern {
	return build("NotSuccession", []string{a, b}, q(a),
		fmt.Sprintf("[^%[1]s]* (%[1]s [^%[2]s]*)*", q(a), q(b)))
}

// NotChainSuccession forbids b immediately after a.
func NotChainSuccession(a, b string) *Pattern {
	return build("NotChainSuccession", []string{a, b}, q(a),
		fmt.Sprintf("([^%[1]s] | %[1]s+ [^%[1]s %[2]s])* %[1]s*", q(a), q(b)))
}

type templateEntry struct {
	arity int  // number of label parameters
	count bool // takes a trailing integer parameter
	unary func(a string, n int) Constraint
	pair  func(a, b string) Constraint
}

var templates = map[string]templateEntry{
	"existence":           {arity: 1, count: true, unary: func(a string, n int) Constraint { return Existence(a, n) }},
	"absence":             {arity: 1, unary: func(a string, _ int) Constraint { return Absence(a) }},
	"atmost":              {arity: 1, count: true, unary: func(a string, n int) Constraint { return AtMost(a, n) }},
	"exactly":             {arity: 1, count: true, unary: func(a string, n int) Constraint { return Exactly(a, n) }},
	"init":                {arity: 1, unary: func(a string, _ int) Constraint { return Init(a) }},
	"end":                 {arity: 1, unary: func(a string, _ int) Constraint { return End(a) }},
	"choice":              {arity: 2, pair: func(a, b string) Constraint { return Choice(a, b) }},
	"exclusivechoice":     {arity: 2, pair: func(a, b string) Constraint { return ExclusiveChoice(a, b) }},
	"respondedexistence":  {arity: 2, pair: func(a, b string) Constraint { return RespondedExistence(a, b) }},
	"coexistence":         {arity: 2, pair: func(a, b string) Constraint { return CoExistence(a, b) }},
	"response":            {arity: 2, pair: func(a, b string) Constraint { return Response(a, b) }},
	"precedence":          {arity: 2, pair: func(a, b string) Constraint { return Precedence(a, b) }},
	"succession":          {arity: 2, pair: func(a, b string) Constraint { return Succession(a, b) }},
	"alternateresponse":   {arity: 2, pair: func(a, b string) Constraint { return AlternateResponse(a, b) }},
	"alternateprecedence": {arity: 2, pair: func(a, b string) Constraint { return AlternatePrecedence(a, b) }},
	"alternatesuccession": {arity: 2, pair: func(a, b string) Constraint { return AlternateSuccession(a, b) }},
	"chainresponse":       {arity: 2, pair: func(a, b string) Constraint { return ChainResponse(a, b) }},
	"chainprecedence":     {arity: 2, pair: func(a, b string) Constraint { return ChainPrecedence(a, b) }},
	"chainsuccession":     {arity: 2, pair: func(a, b string) Constraint { return ChainSuccession(a, b) }},
	"notcoexistence":      {arity: 2, pair: func(a, b string) Constraint { return NotCoExistence(a, b) }},
	"notsuccession":       {arity: 2, pair: func(a, b string) Constraint { return NotSuccession(a, b) }},
	"notchainsuccession":  {arity: 2, pair: func(a, b string) Constraint { return NotChainSuccession(a, b) }},
}

func templateKey(name string) string {
	return strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(name))
}

// Templates returns the registered template names in canonical lower-case form.
func Templates() []string {
	out := make([]string, 0, len(templates))
	for k := range templates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FromTemplate builds a template constraint by name. Names are matched
// case-insensitively, ignoring spaces, '_' and '-'. Counting templates take
// the count as a trailing parameter, defaulting to 1.
func FromTemplate(name string, params []string) (Constraint, error) {
	tmpl, ok := templates[templateKey(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	want := tmpl.arity
	switch {
	case tmpl.count && (len(params) == want || len(params) == want+1):
	case len(params) != want:
		return nil, fmt.Errorf("constraint: template %s takes %d parameters, got %d", name, want, len(params))
	}
	if tmpl.pair != nil {
		return tmpl.pair(params[0], params[1]), nil
	}
	n := 1
	if tmpl.count && len(params) == 2 {
		v, err := strconv.Atoi(params[1])
		if err != nil || v < 0 || v > pattern.MaxRepeat {
			return nil, fmt.Errorf("constraint: template %s: invalid count %q", name, params[1])
		}
		n = v
	}
	return tmpl.unary(params[0], n), nil
}
