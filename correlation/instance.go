package correlation

// Instance associates a correlation with the ID of the process instance it
// identifies.
type Instance struct {
	// EncodedID is the result of Encode(Correlation).
	EncodedID string

	// CorrelatedID is the ID of the process instance.
	CorrelatedID string

	// Correlation is the correlation itself.
	Correlation Correlation
}
