package agent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rahul/toolagent/internal/tools"
)

// Invocation is one tool call in a plan.
type Invocation struct {
	Tool tools.ID
	Args tools.Args
}

// Plan is the ordered list of invocations produced for a query. Rule names
// the rule that matched; an empty plan means no rule did.
type Plan struct {
	Rule  string
	Steps []Invocation
}

// Empty reports whether no rule matched.
func (p Plan) Empty() bool { return len(p.Steps) == 0 }

// StepRef returns the placeholder that a later step uses to refer to the
// result of step n (1-based).
func StepRef(n int) string {
	return "{{step" + strconv.Itoa(n) + "}}"
}

var stepRefPattern = regexp.MustCompile(`\{\{step(\d+)\}\}`)

// Validate checks that every placeholder refers to an earlier step.
func (p Plan) Validate() error {
	for i, step := range p.Steps {
		for _, v := range step.Args {
			for _, m := range stepRefPattern.FindAllStringSubmatch(v, -1) {
				n, _ := strconv.Atoi(m[1])
				if n < 1 || n > i {
					return fmt.Errorf("step %d of rule %s refers to step %d", i+1, p.Rule, n)
				}
			}
		}
	}
	return nil
}

// Rule turns a query into invocations, or reports that it does not apply.
type Rule struct {
	Name  string
	Match func(q Query) ([]Invocation, bool)
}

// Planner evaluates rules in order; the first rule that matches wins.
type Planner struct {
	rules       []Rule
	defaultCity string
}

// PlannerOptions configures the built-in rule set.
type PlannerOptions struct {
	DefaultCity string
}

// NewPlanner builds the planner with the built-in rules in priority order.
// An empty DefaultCity means Paris.
func NewPlanner(opts PlannerOptions) *Planner {
	p := &Planner{defaultCity: opts.DefaultCity}
	if p.defaultCity == "" {
		p.defaultCity = "Paris"
	}
	p.rules = []Rule{
		{Name: "average_temperature", Match: matchAverageTemperature},
		{Name: "percentage", Match: matchPercentage},
		{Name: "unit_conversion", Match: matchUnitConversion},
		{Name: "translation", Match: matchTranslation},
		{Name: "arithmetic_words", Match: matchArithmeticWords},
		{Name: "arithmetic", Match: matchArithmetic},
		{Name: "weather", Match: p.matchWeather},
		{Name: "knowledge_base", Match: matchKnowledgeBase},
	}
	return p
}

// Rules returns the rule names in evaluation order.
func (p *Planner) Rules() []string {
	names := make([]string, len(p.rules))
	for i, r := range p.rules {
		names[i] = r.Name
	}
	return names
}

// Plan normalises query and runs the rules against it.
func (p *Planner) Plan(query string) Plan {
	return p.PlanQuery(NormalizeQuery(query))
}

// PlanQuery runs the rules against an already normalised query. Step
// placeholders typed by the user are broken up first, so only rules can
// emit them.
func (p *Planner) PlanQuery(q Query) Plan {
	if q.Empty() {
		return Plan{}
	}
	q.Text = trimSentence(escapeStepRefs(q.Text))
	q.Lower = strings.ToLower(q.Text)
	for _, r := range p.rules {
		if steps, ok := r.Match(q); ok && len(steps) > 0 {
			return Plan{Rule: r.Name, Steps: steps}
		}
	}
	return Plan{}
}

func trimSentence(s string) string {
	return strings.TrimRight(s, "?!. ")
}

// escapeStepRefs rewrites every "{{" in user text as "{ {".
func escapeStepRefs(s string) string {
	for strings.Contains(s, "{{") {
		s = strings.ReplaceAll(s, "{{", "{ {")
	}
	return s
}

const num = `-?\d+(?:\.\d+)?`

var (
	reAverageTemp = regexp.MustCompile(`(?i)(?:\b(add|subtract)\s+(` + num + `)\s+(?:to|from)\s+)?(?:the\s+)?\baverage\s+(?:temperature|temp)\s+(?:in|of|for|across|between)\s+(.+)$`)
	reCitySplit   = regexp.MustCompile(`(?i)\s*(?:,\s*and\s+|,|\s+and\s+|&)\s*`)

	rePercentage = regexp.MustCompile(`(?i)(` + num + `)\s*(?:%|percent)\s+of\s+(` + num + `)`)

	unitWord    = `(?:degrees?\s+)?([a-z°]+)`
	reConvert   = regexp.MustCompile(`(?i)\bconvert\s+(` + num + `)\s*` + unitWord + `\s+(?:to|into|in)\s+` + unitWord + `$`)
	reConvertTo = regexp.MustCompile(`(?i)(?:^|\s)(` + num + `)\s*` + unitWord + `\s+to\s+` + unitWord + `$`)

	quote             = `["“”]`
	reTranslateQuoted = regexp.MustCompile(`(?i)\btranslate\s+` + quote + `([^"“”]+)` + quote + `(?:\s+from\s+([a-z]+))?\s+(?:to|into)\s+([a-z]+)$`)
	reTranslateWords  = regexp.MustCompile(`(?i)\btranslate\s+(.+?)(?:\s+from\s+([a-z]+))?\s+(?:to|into)\s+([a-z]+)$`)
	reHowDoYouSay     = regexp.MustCompile(`(?i)\bhow\s+do\s+(?:you|i)\s+say\s+` + quote + `?([^"“”]+?)` + quote + `?\s+in\s+([a-z]+)$`)

	reAddWords      = regexp.MustCompile(`(?i)\badd\s+(` + num + `)\s+(?:to|and)\s+(` + num + `)$`)
	reSubtractWords = regexp.MustCompile(`(?i)\bsubtract\s+(` + num + `)\s+from\s+(` + num + `)$`)
	reMultiplyWords = regexp.MustCompile(`(?i)\bmultiply\s+(` + num + `)\s+(?:by|and)\s+(` + num + `)$`)
	reDivideWords   = regexp.MustCompile(`(?i)\bdivide\s+(` + num + `)\s+by\s+(` + num + `)$`)
	reAverageOf     = regexp.MustCompile(`(?i)\baverage\s+of\s+(` + num + `(?:\s*(?:,|and|,\s*and)\s*` + num + `)+)$`)
	reNumber        = regexp.MustCompile(num)

	reLeadIn  = regexp.MustCompile(`(?i)^(?:what\s+is|what's|whats|calculate|compute|evaluate|how\s+much\s+is)\s+`)
	reWordOps = []wordOp{
		{regexp.MustCompile(`(?i)\s+multiplied\s+by\s+`), " * "},
		{regexp.MustCompile(`(?i)\s+divided\s+by\s+`), " / "},
		{regexp.MustCompile(`(?i)\s+plus\s+`), " + "},
		{regexp.MustCompile(`(?i)\s+minus\s+`), " - "},
		{regexp.MustCompile(`(?i)\s+times\s+`), " * "},
		{regexp.MustCompile(`(?i)\s+over\s+`), " / "},
		{regexp.MustCompile(`(?i)\s+mod(?:ulo)?\s+`), " % "},
	}
	reArithStart = regexp.MustCompile(`(?i)^(?:[\d.(\-]|(?:sqrt|abs|round|floor|ceil|pow)\s*\()`)
	reHasDigit   = regexp.MustCompile(`\d`)
	reHasOp      = regexp.MustCompile(`[+\-*/%]`)

	reWeather    = regexp.MustCompile(`(?i)\b(?:weather|temperature|temp|forecast)\b`)
	reWeatherAt  = regexp.MustCompile(`(?i).*\b(?:in|for|at)\s+([\p{L}][\p{L} .'-]*)$`)
	weatherTails = []string{"right now", "at the moment", "currently", "today", "tonight", "now", "please", "like"}

	reKnowledge = regexp.MustCompile(`(?i)\b(?:who\s+is|who\s+was|who's|tell\s+me\s+about|what\s+do\s+you\s+know\s+about)\s+(.+)$`)
)

type wordOp struct {
	re   *regexp.Regexp
	repl string
}

func matchAverageTemperature(q Query) ([]Invocation, bool) {
	m := reAverageTemp.FindStringSubmatch(q.Text)
	if m == nil {
		return nil, false
	}
	var cities []string
	for _, c := range reCitySplit.Split(m[3], -1) {
		if c = trimWeatherTail(c); c != "" {
			cities = append(cities, titleCase(c))
		}
	}
	if len(cities) == 0 {
		return nil, false
	}

	steps := make([]Invocation, 0, len(cities)+2)
	refs := make([]string, 0, len(cities))
	for _, c := range cities {
		steps = append(steps, Invocation{Tool: tools.Weather, Args: tools.Args{"city": c}})
		refs = append(refs, StepRef(len(steps)))
	}
	steps = append(steps, Invocation{Tool: tools.Calculator, Args: tools.Args{
		"expr": fmt.Sprintf("(%s) / %d", strings.Join(refs, " + "), len(cities)),
	}})

	if op := strings.ToLower(m[1]); op != "" {
		sign := "+"
		if op == "subtract" {
			sign = "-"
		}
		steps = append(steps, Invocation{Tool: tools.Calculator, Args: tools.Args{
			"expr": fmt.Sprintf("%s %s %s", StepRef(len(steps)), sign, m[2]),
		}})
	}
	return steps, true
}

func matchPercentage(q Query) ([]Invocation, bool) {
	m := rePercentage.FindStringSubmatch(q.Text)
	if m == nil {
		return nil, false
	}
	return calc(fmt.Sprintf("(%s / 100) * %s", m[1], m[2])), true
}

func matchUnitConversion(q Query) ([]Invocation, bool) {
	m := reConvert.FindStringSubmatch(q.Text)
	if m == nil {
		m = reConvertTo.FindStringSubmatch(q.Text)
	}
	if m == nil {
		return nil, false
	}
	return []Invocation{{Tool: tools.UnitConverter, Args: tools.Args{
		"value": m[1],
		"from":  strings.ToLower(m[2]),
		"to":    strings.ToLower(m[3]),
	}}}, true
}

func matchTranslation(q Query) ([]Invocation, bool) {
	var text, from, to string
	if m := reTranslateQuoted.FindStringSubmatch(q.Text); m != nil {
		text, from, to = m[1], m[2], m[3]
	} else if m := reTranslateWords.FindStringSubmatch(q.Text); m != nil {
		text, from, to = m[1], m[2], m[3]
	} else if m := reHowDoYouSay.FindStringSubmatch(q.Text); m != nil {
		text, to = m[1], m[2]
	} else {
		return nil, false
	}
	text = strings.Trim(strings.TrimSpace(text), `"“”`)
	if text == "" {
		return nil, false
	}
	if from == "" {
		from = "english"
	}
	return []Invocation{{Tool: tools.Translator, Args: tools.Args{
		"text": text,
		"from": strings.ToLower(from),
		"to":   strings.ToLower(to),
	}}}, true
}

func matchArithmeticWords(q Query) ([]Invocation, bool) {
	if m := reAddWords.FindStringSubmatch(q.Text); m != nil {
		return calc(m[1] + " + " + m[2]), true
	}
	if m := reSubtractWords.FindStringSubmatch(q.Text); m != nil {
		return calc(m[2] + " - " + m[1]), true
	}
	if m := reMultiplyWords.FindStringSubmatch(q.Text); m != nil {
		return calc(m[1] + " * " + m[2]), true
	}
	if m := reDivideWords.FindStringSubmatch(q.Text); m != nil {
		return calc(m[1] + " / " + m[2]), true
	}
	if m := reAverageOf.FindStringSubmatch(q.Text); m != nil {
		nums := reNumber.FindAllString(m[1], -1)
		return calc(fmt.Sprintf("(%s) / %d", strings.Join(nums, " + "), len(nums))), true
	}
	return nil, false
}

func matchArithmetic(q Query) ([]Invocation, bool) {
	body := reLeadIn.ReplaceAllString(q.Text, "")
	for _, op := range reWordOps {
		body = op.re.ReplaceAllString(body, op.repl)
	}
	body = strings.TrimSpace(body)
	if !reArithStart.MatchString(body) || !reHasDigit.MatchString(body) || !reHasOp.MatchString(body) {
		return nil, false
	}
	return calc(body), true
}

func (p *Planner) matchWeather(q Query) ([]Invocation, bool) {
	if !reWeather.MatchString(q.Text) {
		return nil, false
	}
	city := p.defaultCity
	if m := reWeatherAt.FindStringSubmatch(stripWeatherTails(q.Text)); m != nil {
		if c := trimWeatherTail(m[1]); c != "" {
			city = titleCase(c)
		}
	}
	return []Invocation{{Tool: tools.Weather, Args: tools.Args{"city": city}}}, true
}

// stripWeatherTails removes trailing filler such as "right now" or
// "at the moment", repeatedly, so it never ends up in a city name.
func stripWeatherTails(s string) string {
	s = strings.TrimSpace(s)
	for trimmed := true; trimmed; {
		trimmed = false
		lower := strings.ToLower(s)
		for _, tail := range weatherTails {
			if lower == tail {
				return ""
			}
			if strings.HasSuffix(lower, " "+tail) {
				s = strings.TrimSpace(s[:len(s)-len(tail)])
				trimmed = true
				break
			}
		}
	}
	return s
}

func trimWeatherTail(s string) string {
	s = stripWeatherTails(s)
	if strings.HasPrefix(strings.ToLower(s), "the ") {
		s = s[4:]
	}
	return strings.TrimSpace(s)
}

func matchKnowledgeBase(q Query) ([]Invocation, bool) {
	m := reKnowledge.FindStringSubmatch(q.Text)
	if m == nil {
		return nil, false
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return nil, false
	}
	return []Invocation{{Tool: tools.KnowledgeBase, Args: tools.Args{"name": name}}}, true
}

func calc(expr string) []Invocation {
	return []Invocation{{Tool: tools.Calculator, Args: tools.Args{"expr": expr}}}
}

// titleCase capitalises each word. Casers keep state, so one is built per call.
func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}
