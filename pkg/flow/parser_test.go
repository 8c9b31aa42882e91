package flow_test

import (
	"testing"

	"github.com/flowchat/engine/pkg/api"
	"github.com/flowchat/engine/pkg/flow"
	"github.com/stretchr/testify/assert"
)

func TestParseNumberedLines(t *testing.T) {
	as := assert.New(t)

	res, err := flow.Parse(
		"1. Write a haiku about the sea\n" +
			"2. Translate it into French\n" +
			"3. Explain the translation choices",
	)
	as.NoError(err)
	as.Len(res.Steps, 3)
	as.Equal("Write a haiku about the sea", res.Steps[0].Instruction)
	as.Equal("Translate it into French", res.Steps[1].Instruction)
	as.Equal("Explain the translation choices", res.Steps[2].Instruction)
	as.Equal(1, res.Steps[0].Order)
	as.Equal(3, res.Steps[2].Order)
}

func TestParseConnectors(t *testing.T) {
	as := assert.New(t)

	res, err := flow.Parse(
		"Summarize the article, then list three key points, " +
			"and then write a title",
	)
	as.NoError(err)
	as.Len(res.Steps, 3)
	as.Equal("Summarize the article", res.Steps[0].Instruction)
	as.Equal("list three key points", res.Steps[1].Instruction)
	as.Equal("write a title", res.Steps[2].Instruction)
}

func TestParseChaining(t *testing.T) {
	as := assert.New(t)

	res, err := flow.Parse("First step\nSecond step\nThird step")
	as.NoError(err)
	as.False(res.Steps[0].UsesPreviousOutput)
	as.True(res.Steps[1].UsesPreviousOutput)
	as.True(res.Steps[2].UsesPreviousOutput)
}

func TestParseBulletsAndBlanks(t *testing.T) {
	as := assert.New(t)

	res, err := flow.Parse(
		"\n- Draft an outline.\n\n* Expand it into prose;\n\n",
	)
	as.NoError(err)
	as.Len(res.Steps, 2)
	as.Equal("Draft an outline", res.Steps[0].Instruction)
	as.Equal("Expand it into prose", res.Steps[1].Instruction)
}

func TestParseSingleStep(t *testing.T) {
	as := assert.New(t)

	res, err := flow.Parse("Tell me a joke")
	as.NoError(err)
	as.Len(res.Steps, 1)
	as.False(res.Steps[0].UsesPreviousOutput)
}

func TestParseEmpty(t *testing.T) {
	as := assert.New(t)

	res, err := flow.Parse("   \n\n  ")
	as.Nil(res)
	as.ErrorIs(err, api.ErrNoSteps)
}

func TestParsePreservesSource(t *testing.T) {
	as := assert.New(t)

	src := "1. One thing, then another thing"
	res, err := flow.Parse(src)
	as.NoError(err)
	as.Equal(src, res.Source)
	as.Len(res.Steps, 2)
}
