package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimatorTokenizer(t *testing.T) {
	est := EstimatorTokenizer{}

	n, err := est.CountTokens("")
	require.NoError(t, err)
	assert.Zero(t, n)

	// Short text still counts as at least one token.
	n, err = est.CountTokens("hi")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = est.CountTokens("this is a sentence of modest length")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestEstimatorCountMessages(t *testing.T) {
	est := EstimatorTokenizer{}
	msgs := []Message{
		NewSystemMessage("You are a data analyst."),
		NewUserMessage("What is our total revenue?"),
	}

	n, err := est.CountMessages(msgs)
	require.NoError(t, err)

	// Content tokens plus per-message and reply overhead.
	content := 0
	for _, m := range msgs {
		c, _ := est.CountTokens(m.Content)
		content += c
	}
	assert.Equal(t, content+4*len(msgs)+3, n)
}

type failingTokenizer struct{}

func (failingTokenizer) CountTokens(string) (int, error) {
	return 0, errors.New("encoding unavailable")
}

func (failingTokenizer) CountMessages([]Message) (int, error) {
	return 0, errors.New("encoding unavailable")
}

func TestCountPromptTokensFallsBack(t *testing.T) {
	msgs := []Message{NewUserMessage("What is our total revenue?")}

	fromEstimator, _ := EstimatorTokenizer{}.CountMessages(msgs)
	assert.Equal(t, fromEstimator, CountPromptTokens(failingTokenizer{}, msgs))
	assert.Equal(t, fromEstimator, CountPromptTokens(nil, msgs))
}
