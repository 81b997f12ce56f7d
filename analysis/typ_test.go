package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rlch/phpintel/analysis"
)

func TestUnion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []analysis.Type
		want  analysis.Type
	}{
		{name: "single", input: []analysis.Type{analysis.TypeInt}, want: analysis.TypeInt},
		{name: "dedupe", input: []analysis.Type{"int|string", analysis.TypeString}, want: "int|string"},
		{name: "unknown member", input: []analysis.Type{analysis.TypeInt, ""}, want: analysis.TypeMixed},
		{name: "mixed member", input: []analysis.Type{analysis.TypeMixed, analysis.TypeInt}, want: analysis.TypeMixed},
		{name: "empty", want: analysis.TypeMixed},
		{name: "generic kept whole", input: []analysis.Type{`\Box<int|string>`, analysis.TypeNull}, want: `\Box<int|string>|null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, analysis.Union(tt.input...))
		})
	}
}

func TestType_ClassNames(t *testing.T) {
	t.Parallel()

	typ := analysis.Type(`\App\User|int|\App\Post[]|\A&\B`)

	assert.Equal(t, []string{`App\User`, "A", "B"}, typ.ClassNames())
	assert.Empty(t, analysis.Type("").ClassNames())
}

func TestType_ElementType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, analysis.Type(`\App\User`), analysis.Type(`\App\User[]`).ElementType())
	assert.Equal(t, analysis.Type("int|string"), analysis.Type("int[]|string[]|null").ElementType())
	assert.Equal(t, analysis.TypeMixed, analysis.TypeArray.ElementType())
}

func TestType_Without(t *testing.T) {
	t.Parallel()

	assert.Equal(t, analysis.TypeString, analysis.Type("string|null").Without(analysis.TypeNull))
	assert.Equal(t, analysis.TypeMixed, analysis.TypeNull.Without(analysis.TypeNull))
}

func TestType_Helpers(t *testing.T) {
	t.Parallel()

	assert.True(t, analysis.Type("").IsUnknown())
	assert.True(t, analysis.TypeMixed.IsUnknown())
	assert.False(t, analysis.TypeInt.IsUnknown())
	assert.Equal(t, analysis.TypeMixed, analysis.Type("").OrMixed())
	assert.Equal(t, analysis.Type(`\App\User`), analysis.ClassType(`\App\User`))
	assert.Equal(t, analysis.Type(`\App\User`), analysis.ClassType(`App\User`))
	assert.True(t, analysis.IsPrimitiveName("Integer"))
	assert.False(t, analysis.IsPrimitiveName("User"))
}

func TestContainerName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		`App\User`:         "App",
		`App\User->name`:   `App\User`,
		`App\User::make()`: `App\User`,
		`App\User::$x`:     `App\User`,
		`strlen()`:         "",
		`App\helper()`:     "App",
	}

	for fqn, want := range tests {
		assert.Equal(t, want, analysis.ContainerName(fqn), fqn)
	}
}

func TestDefinition_Name(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		`App\User`:         "User",
		`App\User->name`:   "name",
		`App\User::make()`: "make",
		`App\User::$x`:     "$x",
		`App\User::CONST`:  "CONST",
		`strlen()`:         "strlen",
	}

	for fqn, want := range tests {
		d := &analysis.Definition{FQN: fqn}
		assert.Equal(t, want, d.Name(), fqn)
	}
}
