package github

import (
	"fmt"
	"sort"
)

// ChunkThreshold is the maximum size of a single committed blob,
// mirroring the hosting platform's per-file limit. An archive at or
// under the threshold is committed whole; a larger one is split into
// sequentially numbered chunks each at most this size. The same
// constant drives both the split (write) and the probe (read) side.
const ChunkThreshold = 10 * 1024 * 1024 // 10 MiB

// Chunk is a size-bounded slice of a serialized archive. Index is
// 1-based; ordering is carried explicitly rather than recovered from
// filename sorting (part10 sorts before part2 lexically).
type Chunk struct {
	Index int
	Data  []byte
}

// splitChunks cuts data into ceil(len/max) chunks of at most max
// bytes. Boundaries are purely size-based, so reassembly is byte
// concatenation in ascending index order.
func splitChunks(data []byte, max int) []Chunk {
	if max <= 0 {
		max = ChunkThreshold
	}
	n := (len(data) + max - 1) / max
	chunks := make([]Chunk, 0, n)
	for i := 0; i < n; i++ {
		start := i * max
		end := start + max
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, Chunk{Index: i + 1, Data: data[start:end]})
	}
	return chunks
}

// reassemble concatenates chunks in ascending index order, verifying
// the sequence is 1-indexed, gap-free and duplicate-free.
func reassemble(chunks []Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to reassemble")
	}
	sorted := make([]Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var total int
	for i, ch := range sorted {
		if ch.Index != i+1 {
			return nil, fmt.Errorf("chunk sequence broken: expected part%d, got part%d", i+1, ch.Index)
		}
		total += len(ch.Data)
	}

	out := make([]byte, 0, total)
	for _, ch := range sorted {
		out = append(out, ch.Data...)
	}
	return out, nil
}

// chunkPath returns the committed path of chunk index for an archive
// at base, e.g. archive.tar.gz.part3.
func chunkPath(base string, index int) string {
	return fmt.Sprintf("%s.part%d", base, index)
}
