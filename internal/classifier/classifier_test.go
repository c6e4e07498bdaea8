package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Healthcare(t *testing.T) {
	c := New()
	text := "The Secretary shall establish a grant program for rural hospitals. " +
		"Eligible patients receive assistance with prescription costs."

	topics := c.Classify(text)
	assert.Contains(t, topics, "healthcare")
}

func TestClassify_MultipleTopics(t *testing.T) {
	c := New()
	text := "There is authorized to be appropriated $50 million for each fiscal year " +
		"to fund hospital construction and physician training for patient care."

	topics := c.Classify(text)
	assert.Contains(t, topics, "appropriations")
	assert.Contains(t, topics, "healthcare")
}

func TestClassify_SingleHitIsNoise(t *testing.T) {
	c := New()
	// "hospital" alone should not tag a naming bill as healthcare.
	topics := c.Classify("The facility shall be known as the John Smith Memorial Hospital.")
	assert.NotContains(t, topics, "healthcare")
}

func TestClassify_Empty(t *testing.T) {
	c := New()
	assert.Nil(t, c.Classify(""))
	assert.Nil(t, c.Classify("Lorem ipsum dolor sit amet."))
}

func TestClassify_Deterministic(t *testing.T) {
	c := New()
	text := "Appropriated funds for fiscal year 2026: hospital grants, medicare payments, " +
		"school construction, student aid, teacher training."

	first := c.Classify(text)
	second := c.Classify(text)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestClassify_ThresholdOption(t *testing.T) {
	c := New(WithMinMatches(1))
	topics := c.Classify("The hospital shall file reports.")
	assert.Contains(t, topics, "healthcare")
}
