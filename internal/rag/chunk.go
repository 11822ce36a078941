package rag

// splitText cuts text into overlapping windows measured in runes, so
// multi-byte characters never get split mid-sequence.
func splitText(text string, size int, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := size - overlap

	chunks := []string{}
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
