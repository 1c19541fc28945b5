package util

import "fmt"

// ChunkText splits text into chunks of chunkSize runes, each window starting
// chunkSize-overlap runes after the previous one. Whitespace is preserved so
// that concatenating the chunks with the overlap removed reconstructs the
// input exactly. The final chunk may be shorter than chunkSize. Empty input
// yields no chunks.
func ChunkText(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap <= 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must satisfy 0 < overlap < chunk size, got overlap=%d size=%d", overlap, chunkSize)
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	step := chunkSize - overlap
	out := make([]string, 0, (len(runes)+step-1)/step)
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return out, nil
}
