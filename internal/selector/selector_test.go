package selector

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/smarthire/internal/bank"
	"github.com/pavelanni/smarthire/internal/llm"
	"github.com/pavelanni/smarthire/internal/model"
)

type stubGen struct {
	available bool
	questions []string
	err       error
	lastReq   llm.QuestionRequest
	calls     int
}

func (g *stubGen) Available() bool { return g.available }

func (g *stubGen) GenerateQuestions(_ context.Context, req llm.QuestionRequest) ([]string, error) {
	g.calls++
	g.lastReq = req
	return g.questions, g.err
}

func (g *stubGen) EvaluateBatch(context.Context, []model.QA) (*llm.BatchEvaluation, error) {
	return nil, llm.ErrUnavailable
}

func seeded(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed+1)))
}

func smallBank(t *testing.T) *bank.Bank {
	t.Helper()
	b, err := bank.New([]bank.Category{
		{Tag: "go", Questions: []string{"G1", "G2", "Shared"}},
		{Tag: "golang tooling", Questions: []string{"T1", "Shared"}},
		{Tag: bank.GenericTag, Questions: []string{"P1", "P2"}},
	}, []string{"M1", "M2", "M3"})
	require.NoError(t, err)
	return b
}

func assertUnique(t *testing.T, got []string) {
	t.Helper()
	seen := make(map[string]bool, len(got))
	for _, q := range got {
		assert.False(t, seen[q], "duplicate question %q", q)
		seen[q] = true
	}
}

func TestSelectFromSkillCategory(t *testing.T) {
	b := bank.MustDefault()
	s := New(b, nil, seeded(1))

	got := s.Select(context.Background(), []string{"python"}, model.InterviewTechnical, nil, 5)
	require.Len(t, got, 5)
	assertUnique(t, got)
	for _, q := range got {
		assert.Contains(t, b.Questions("python"), q)
	}
}

func TestSelectUnknownSkillUsesGenericPool(t *testing.T) {
	b := bank.MustDefault()
	s := New(b, nil, seeded(2))

	got := s.Select(context.Background(), []string{"obscurelang"}, model.InterviewTechnical, nil, 5)
	require.Len(t, got, 5)
	assertUnique(t, got)
	for _, q := range got {
		assert.Contains(t, b.Questions(bank.GenericTag), q)
	}
}

func TestSelectNoRepeatAcrossSessions(t *testing.T) {
	s := New(bank.MustDefault(), nil, seeded(3))
	ctx := context.Background()

	first := s.Select(ctx, []string{"sql"}, model.InterviewTechnical, nil, 10)
	require.Len(t, first, 10)
	second := s.Select(ctx, []string{"sql"}, model.InterviewTechnical, first, 10)
	require.Len(t, second, 10)

	for _, q := range second {
		assert.NotContains(t, first, q)
	}
}

func TestSelectExhaustsPoolWithoutRepeats(t *testing.T) {
	s := New(smallBank(t), nil, seeded(4))
	ctx := context.Background()

	var used []string
	for range 3 {
		got := s.Select(ctx, []string{"go"}, model.InterviewTechnical, used, 2)
		for _, q := range got {
			assert.NotContains(t, used, q)
		}
		used = append(used, got...)
	}
	// go, golang tooling and generic pools hold 6 distinct questions.
	assertUnique(t, used)
	assert.Len(t, used, 6)

	// Every bank question is used; the default set takes over.
	got := s.Select(ctx, []string{"go"}, model.InterviewTechnical, used, 3)
	require.Len(t, got, 3)
	for _, q := range got {
		assert.Contains(t, DefaultQuestions, q)
	}
}

func TestSelectDedupAcrossCategories(t *testing.T) {
	s := New(smallBank(t), nil, seeded(5))
	// "go" matches both "go" and "golang tooling"; "Shared" appears in each.
	got := s.Select(context.Background(), []string{"go", "GO"}, model.InterviewTechnical, nil, 10)
	assertUnique(t, got)
	assert.ElementsMatch(t, []string{"G1", "G2", "Shared", "T1", "P1", "P2"}, got)
}

func TestSelectGenericOnlyWhenShort(t *testing.T) {
	s := New(smallBank(t), nil, seeded(6))
	// The matched pool has 4 after dedup, which covers 3; generic is not added.
	got := s.Select(context.Background(), []string{"go"}, model.InterviewTechnical, nil, 3)
	require.Len(t, got, 3)
	assert.Subset(t, []string{"G1", "G2", "Shared", "T1"}, got)

	got = s.Select(context.Background(), []string{"golang"}, model.InterviewTechnical, nil, 4)
	assert.ElementsMatch(t, []string{"G1", "G2", "Shared", "T1"}, got)
}

func TestSelectBound(t *testing.T) {
	s := New(bank.MustDefault(), nil, seeded(7))
	ctx := context.Background()
	for _, count := range []int{0, 1, 5, 15, 200} {
		for _, skills := range [][]string{nil, {"python", "java", "spring boot"}, {"c"}} {
			got := s.Select(ctx, skills, model.InterviewTechnical, nil, count)
			assert.LessOrEqual(t, len(got), count)
			assertUnique(t, got)
		}
	}
}

func TestSelectEmptySkills(t *testing.T) {
	s := New(bank.MustDefault(), nil, seeded(8))
	got := s.Select(context.Background(), nil, model.InterviewTechnical, nil, 5)
	assert.Len(t, got, 5)
}

func TestSelectManagement(t *testing.T) {
	s := New(smallBank(t), &stubGen{available: true, questions: []string{"AI?"}}, seeded(9))
	ctx := context.Background()

	got := s.Select(ctx, []string{"go"}, model.InterviewManagement, []string{"M2"}, 5)
	assert.ElementsMatch(t, []string{"M1", "M3"}, got)

	got = s.Select(ctx, nil, model.InterviewManagement, []string{"M1", "M2", "M3"}, 5)
	assert.Empty(t, got)
}

func TestSelectGeneratorTopUp(t *testing.T) {
	gen := &stubGen{
		available: true,
		questions: []string{"G1", "Fresh 1?", "Fresh 1?", "Old?", "Fresh 2?", "Fresh 3?"},
	}
	s := New(smallBank(t), gen, seeded(10))

	got := s.Select(context.Background(), []string{"go"}, model.InterviewTechnical, []string{"Old?"}, 9)
	assertUnique(t, got)
	require.Len(t, got, 9)
	assert.Subset(t, got, []string{"Fresh 1?", "Fresh 2?", "Fresh 3?"})
	assert.NotContains(t, got, "Old?")

	require.Equal(t, 1, gen.calls)
	assert.Equal(t, 3, gen.lastReq.Count)
	assert.Equal(t, []string{"go"}, gen.lastReq.Skills)
	assert.Contains(t, gen.lastReq.Exclude, "Old?")
	assert.Contains(t, gen.lastReq.Exclude, "G1")
	assert.Len(t, gen.lastReq.Exclude, 7)
}

func TestSelectGeneratorFailureFallsThrough(t *testing.T) {
	gen := &stubGen{available: true, err: llm.ErrMalformedResponse}
	s := New(smallBank(t), gen, seeded(11))
	all := []string{"G1", "G2", "Shared", "T1", "P1", "P2"}

	got := s.Select(context.Background(), []string{"go"}, model.InterviewTechnical, all, 5)
	assert.Equal(t, 1, gen.calls)
	require.Len(t, got, 5)
	assert.ElementsMatch(t, DefaultQuestions, got)
}

func TestSelectUnavailableGeneratorNotCalled(t *testing.T) {
	gen := &stubGen{available: false, questions: []string{"X?"}}
	s := New(smallBank(t), gen, seeded(12))
	got := s.Select(context.Background(), []string{"go"}, model.InterviewTechnical, nil, 10)
	assert.Len(t, got, 6)
	assert.Zero(t, gen.calls)
}

func TestSelectSeededIsReproducible(t *testing.T) {
	b := bank.MustDefault()
	a := New(b, nil, seeded(42)).Select(context.Background(), []string{"javascript"}, model.InterviewTechnical, nil, 10)
	c := New(b, nil, seeded(42)).Select(context.Background(), []string{"javascript"}, model.InterviewTechnical, nil, 10)
	assert.Equal(t, a, c)
}
