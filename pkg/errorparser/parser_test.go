package errorparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCategory_ByCode(t *testing.T) {
	cases := map[string]ErrorCategory{
		"E0308": CategoryTypeMismatch,
		"E0502": CategoryBorrowChecker,
		"E0505": CategoryBorrowChecker,
		"E0382": CategoryBorrowChecker,
		"E0106": CategoryLifetime,
		"E0495": CategoryLifetime,
		"E0621": CategoryLifetime,
		"E0277": CategoryTraitBound,
		"E0599": CategoryTraitBound,
		"E0603": CategoryImportResolution,
		"E0412": CategoryImportResolution,
		"E0658": CategoryMacro,
	}
	for code, want := range cases {
		assert.Equal(t, want, classifyCategory(code, ""), "code %s", code)
	}
}

func TestClassifyCategory_SendBoundHintIsAsync(t *testing.T) {
	got := classifyCategory("", "the trait bound `Send` is not satisfied for this future")
	assert.Equal(t, CategoryAsync, got)
}

func TestClassifyCategory_MessageFallbacks(t *testing.T) {
	cases := []struct {
		message string
		want    ErrorCategory
	}{
		{"cannot use x (variable of type int) as string value", CategoryTypeMismatch},
		{"mismatched types int and string", CategoryTypeMismatch},
		{"*T does not implement io.Reader", CategoryTraitBound},
		{"undefined: frobnicate", CategoryImportResolution},
		{"imported and not used: \"fmt\"", CategoryImportResolution},
		{"x escapes to heap", CategoryBorrowChecker},
		{"lifetime of reference outlives its referent", CategoryLifetime},
		{"macro expansion failed", CategoryMacro},
		{"something entirely novel", CategoryOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyCategory("", tc.message), "message %q", tc.message)
	}
}

func TestParseJSONLines_SkipsNonDiagnosticLines(t *testing.T) {
	input := []byte(`{"code":"E0308","message":"mismatched types","rendered":"error[E0308]: mismatched types"}
not json at all
{"build_output":"irrelevant"}

{"code":"E0277","message":"trait bound unsatisfied","rendered":"error[E0277]"}
`)
	errs := ParseJSONLines(input)
	require.Len(t, errs, 2)
	assert.Equal(t, CategoryTypeMismatch, errs[0].Category)
	assert.Equal(t, CategoryTraitBound, errs[1].Category)
}

func TestParseJSONLines_PrimarySpanWinsAndLabelsCollected(t *testing.T) {
	input := []byte(`{"code":"E0308","message":"mismatched types","spans":[` +
		`{"file_name":"src/other.go","line_start":3,"column_start":1,"label":"expected here","is_primary":false},` +
		`{"file_name":"src/main.go","line_start":12,"column_start":9,"label":"found here","is_primary":true,"suggested_replacement":"int64(x)"}]}`)
	errs := ParseJSONLines(input)
	require.Len(t, errs, 1)

	e := errs[0]
	assert.Equal(t, "src/main.go", e.File)
	assert.Equal(t, 12, e.Line)
	assert.Equal(t, 9, e.Column)
	assert.Equal(t, "int64(x)", e.Suggestion)
	assert.Equal(t, []string{"expected here", "found here"}, e.Labels)
}

func TestParseJSONLines_RenderedFallsBackToMessage(t *testing.T) {
	errs := ParseJSONLines([]byte(`{"code":"E0599","message":"no method named frob"}`))
	require.Len(t, errs, 1)
	assert.Equal(t, "no method named frob", errs[0].Rendered)
}

func TestToSignal_DropsRenderingDetail(t *testing.T) {
	p := ParsedError{
		Category:   CategoryLifetime,
		Code:       "E0106",
		Message:    "missing lifetime specifier",
		File:       "src/lib.go",
		Line:       4,
		Column:     17,
		Suggestion: "add a lifetime",
		Rendered:   "error[E0106]: missing lifetime specifier",
		Labels:     []string{"here"},
	}
	s := p.ToSignal()
	assert.Equal(t, FailureSignal{
		Category: CategoryLifetime,
		Code:     "E0106",
		Message:  "missing lifetime specifier",
		File:     "src/lib.go",
		Line:     4,
	}, s)
}

func TestAggregateCategories(t *testing.T) {
	errs := []ParsedError{
		{Category: CategoryTypeMismatch},
		{Category: CategoryTypeMismatch},
		{Category: CategoryAsync},
	}
	counts := AggregateCategories(errs)
	assert.Equal(t, map[ErrorCategory]int{
		CategoryTypeMismatch: 2,
		CategoryAsync:        1,
	}, counts)
}

func TestComplexity_HighComplexityCategories(t *testing.T) {
	for _, cat := range []ErrorCategory{CategoryLifetime, CategoryAsync, CategoryMacro} {
		assert.True(t, cat.IsHighComplexity(), "%s should be high complexity", cat)
	}
	for _, cat := range []ErrorCategory{CategoryOther, CategoryImportResolution, CategoryTypeMismatch, CategoryTraitBound, CategoryBorrowChecker} {
		assert.False(t, cat.IsHighComplexity(), "%s should not be high complexity", cat)
	}
	for _, cat := range []ErrorCategory{CategoryTypeMismatch, CategoryBorrowChecker, CategoryLifetime, CategoryTraitBound, CategoryAsync, CategoryImportResolution, CategoryMacro, CategoryOther} {
		assert.GreaterOrEqual(t, cat.Complexity(), 0)
		assert.LessOrEqual(t, cat.Complexity(), 4)
	}
}
