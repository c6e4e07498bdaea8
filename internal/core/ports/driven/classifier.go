package driven

// Classifier assigns topic labels to bill text.
//
// This is an optional capability - when nil, records are persisted
// without topics. Implementations range from keyword tables to
// model-backed classifiers; callers never assume which.
type Classifier interface {
	// Classify returns the set of labels that apply to the text,
	// sorted, without duplicates.
	Classify(text string) []string
}
