package upstream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/studyflow/pkg/api"
)

func mustParse(t *testing.T, s string) Value {
	t.Helper()
	v, err := Parse([]byte(s))
	require.NoError(t, err, "Parse(%s)", s)
	return v
}

func TestParse_KeepsMemberOrder(t *testing.T) {
	v := mustParse(t, `{"z":1,"a":[true,null,"x"],"m":{"k":2.5}}`)

	require.Equal(t, KindObject, v.Kind())
	members := v.Members()
	require.Len(t, members, 3)
	require.Equal(t, "z", members[0].Key)
	require.Equal(t, "a", members[1].Key)
	require.Equal(t, "m", members[2].Key)

	arr, _ := v.Get("a")
	require.Equal(t, []Kind{KindBool, KindNull, KindString}, []Kind{arr.Items()[0].Kind(), arr.Items()[1].Kind(), arr.Items()[2].Kind()})
	require.Equal(t, map[string]any{"k": 2.5}, mustParse(t, `{"k":2.5}`).Interface())
}

func TestParse_RejectsTrailingData(t *testing.T) {
	_, err := Parse([]byte(`{"a":1} {"b":2}`))
	require.Error(t, err)

	_, err = Parse([]byte(`{"a":`))
	require.Error(t, err)
}

func TestValue_Int(t *testing.T) {
	cases := map[string]struct {
		in   string
		want int
		ok   bool
	}{
		"integer":   {in: `3`, want: 3, ok: true},
		"integral":  {in: `2.0`, want: 2, ok: true},
		"fraction":  {in: `1.5`, ok: false},
		"string":    {in: `"1"`, ok: false},
		"negative":  {in: `-1`, want: -1, ok: true},
		"too large": {in: `1e20`, ok: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := mustParse(t, tc.in).Int()
			require.Equal(t, tc.ok, ok)
			if ok {
				require.Equal(t, tc.want, got)
			}
		})
	}
}

func TestValue_UnwrapDoubleEncoded(t *testing.T) {
	v := mustParse(t, `"{\"markdown\":\"# hi\"}"`).Unwrap()
	require.Equal(t, KindObject, v.Kind())

	plain := String("not json").Unwrap()
	s, ok := plain.Str()
	require.True(t, ok)
	require.Equal(t, "not json", s)
}

func TestWalk_PreOrderAndStop(t *testing.T) {
	v := mustParse(t, `{"a":{"b":1},"c":[2,3]}`)

	var kinds []Kind
	completed := Walk(v, func(n Value) Action {
		kinds = append(kinds, n.Kind())
		return Continue
	})
	require.True(t, completed)
	require.Equal(t, []Kind{KindObject, KindObject, KindNumber, KindArray, KindNumber, KindNumber}, kinds)

	visited := 0
	completed = Walk(v, func(n Value) Action {
		visited++
		if n.Kind() == KindNumber {
			return Stop
		}
		return Continue
	})
	require.False(t, completed)
	require.Equal(t, 3, visited)

	visited = 0
	Walk(v, func(n Value) Action {
		visited++
		if n.Kind() == KindObject && n.Has("b") {
			return SkipChildren
		}
		return Continue
	})
	require.Equal(t, 5, visited)
}

func TestFindText(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
		ok   bool
	}{
		"top level markdown":   {in: `{"markdown":"# A"}`, want: "# A", ok: true},
		"priority order":       {in: `{"content":"c","text":"t"}`, want: "t", ok: true},
		"blank skipped":        {in: `{"markdown":"  ","content":"c"}`, want: "c", ok: true},
		"nested output":        {in: `{"data":[{"meta":1},{"output":"deep"}]}`, want: "deep", ok: true},
		"own keys before kids": {in: `{"child":{"text":"inner"},"text":"outer"}`, want: "outer", ok: true},
		"non-string ignored":   {in: `{"text":{"markdown":"x"}}`, want: "x", ok: true},
		"nothing":              {in: `{"a":[1,2]}`, ok: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := FindText(mustParse(t, tc.in))
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestQuestionsFromPayload_NestedNodes(t *testing.T) {
	payload := mustParse(t, `{"nodes":[{"output":[{"question":"Q1","options":["A","B"]}]}]}`)

	got := QuestionsFromPayload(payload)
	require.Equal(t, []api.Question{{
		Prompt:       "Q1",
		Options:      []string{"A", "B", "Option 3", "Option 4"},
		CorrectIndex: 0,
	}}, got)
}

func TestQuestionsFromPayload_TopLevelList(t *testing.T) {
	payload := mustParse(t, `{"questions":[
		{"q":"one","options":["a","b","c","d","e"],"answer_index":3},
		"not an object",
		{"q":"two","answer_index":9}
	]}`)

	got := QuestionsFromPayload(payload)
	require.Len(t, got, 2)
	require.Equal(t, []string{"a", "b", "c", "d"}, got[0].Options)
	require.Equal(t, 3, got[0].CorrectIndex)
	require.Equal(t, []string{"Option 1", "Option 2", "Option 3", "Option 4"}, got[1].Options)
	require.Equal(t, 0, got[1].CorrectIndex)
}

func TestQuestionsFromPayload_NothingUsable(t *testing.T) {
	require.Nil(t, QuestionsFromPayload(mustParse(t, `{"questions":[]}`)))
	require.Nil(t, QuestionsFromPayload(mustParse(t, `["x",1]`)))
}

func TestCoerceQuestion(t *testing.T) {
	cases := map[string]struct {
		in      string
		prompt  string
		options []string
		index   int
	}{
		"alternate index key": {
			in:     `{"question":"Q","options":["1","2","3","4"],"correctIndex":2,"answerIndex":2}`,
			prompt: "Q", options: []string{"1", "2", "3", "4"}, index: 2,
		},
		"integral float index": {
			in:     `{"q":"Q","options":["a","b","c","d"],"answer_index":1.0}`,
			prompt: "Q", options: []string{"a", "b", "c", "d"}, index: 1,
		},
		"fractional index": {
			in:     `{"q":"Q","options":["a","b","c","d"],"answer_index":1.5}`,
			prompt: "Q", options: []string{"a", "b", "c", "d"}, index: 0,
		},
		"negative index": {
			in:     `{"q":"Q","options":["a","b","c","d"],"answer_index":-1}`,
			prompt: "Q", options: []string{"a", "b", "c", "d"}, index: 0,
		},
		"stringified options": {
			in:     `{"q":"Q","options":[1,true,null,{"x":1}]}`,
			prompt: "Q", options: []string{"1", "true", "", `{"x":1}`}, index: 0,
		},
		"empty prompt": {
			in:     `{"q":"","options":[]}`,
			prompt: "Question", options: []string{"Option 1", "Option 2", "Option 3", "Option 4"}, index: 0,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := CoerceQuestion(mustParse(t, tc.in))
			require.Equal(t, tc.prompt, got.Prompt)
			require.Equal(t, tc.options, got.Options)
			require.Equal(t, tc.index, got.CorrectIndex)
		})
	}
}

func TestFakeQuestions(t *testing.T) {
	got := FakeQuestions(3, "graphs")
	require.Len(t, got, 3)
	require.Equal(t, "1. Topic: graphs. Choose the correct option.", got[0].Prompt)
	for _, q := range got {
		require.Len(t, q.Options, api.OptionsPerQuestion)
		require.Equal(t, 0, q.CorrectIndex)
	}

	require.Len(t, FakeQuestions(0, "x"), 1)
}
