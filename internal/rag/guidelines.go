package rag

import (
	"fmt"
	"os"
)

// ContextUnavailable is the context handed to the judge when neither static
// guidelines nor reference passages can be produced.
const ContextUnavailable = "Standard arbitration rules could not be loaded."

// LoadGuidelines reads the static arbitration rules document.
func LoadGuidelines(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("rag: read guidelines: %w", err)
	}
	return string(b), nil
}

// BuildContext assembles the judge's rule context from the static
// guidelines and the retrieved passages.
func BuildContext(guidelines, retrieved string) string {
	return fmt.Sprintf("Standard Arbitration Rules:\n%s\n\nAdditional Policy Guidelines (RAG Retrieved):\n%s", guidelines, retrieved)
}
