package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

// NormalizePath puts a path into the canonical form chunk_id derivation
// uses: forward slashes, cleaned of "." and ".." segments. Backslashes are
// normalized explicitly rather than via filepath.ToSlash, since that is a
// no-op on non-Windows build hosts and chunk_id must be stable regardless of
// the platform that produced the path.
func NormalizePath(path string) string {
	return filepath.ToSlash(filepath.Clean(strings.ReplaceAll(path, "\\", "/")))
}

// ChunkID derives the deterministic, globally unique chunk identifier.
func ChunkID(normalizedPath string, index int) string {
	sum := sha256.Sum256([]byte(normalizedPath + "::" + strconv.Itoa(index)))
	return hex.EncodeToString(sum[:])
}

func approxTokenCount(s string) int {
	return len(strings.Fields(s))
}

type fenceState struct {
	active bool
	marker byte
	length int
	buf    strings.Builder
}

func isFenceStart(line string) (marker byte, length int, ok bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if len(trimmed) < 3 {
		return 0, 0, false
	}
	c := trimmed[0]
	if c != '`' && c != '~' {
		return 0, 0, false
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == c {
		n++
	}
	if n < 3 {
		return 0, 0, false
	}
	return c, n, true
}

func isFenceEnd(line string, marker byte, length int) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < length {
		return false
	}
	for i := 0; i < length; i++ {
		if trimmed[i] != marker {
			return false
		}
	}
	return strings.Trim(trimmed[length:], " \t") == ""
}

// headingStack tracks the current ancestor heading titles by level (1-6)
// and recomputes the " > "-joined breadcrumb on each heading encountered.
type headingStack struct {
	titles [6]string
}

func (h *headingStack) push(level int, title string) string {
	h.titles[level-1] = title
	for i := level; i < 6; i++ {
		h.titles[i] = ""
	}
	var parts []string
	for i := 0; i < level; i++ {
		if h.titles[i] != "" {
			parts = append(parts, h.titles[i])
		}
	}
	return strings.Join(parts, " > ")
}

// Chunk splits content into a deterministic ordered sequence of Records.
// path is the file's path relative to the indexed root; it is normalized
// internally before being mixed into chunk_id.
//
// The algorithm is a single-pass line scanner: a heading boundary flushes
// the accumulated buffer only once it holds at least MinChunkChars (so a
// run of short sections is merged under the heading active when it is
// finally flushed); any buffer reaching MaxChunkChars flushes immediately
// regardless of heading boundaries, and a line longer than the room left in
// the buffer is cut at MaxChunkChars (on a UTF-8 rune boundary) across as
// many chunks as it needs. Fenced code blocks are read as one
// atomic unit: appending one that would overflow the buffer flushes first,
// then the fence is emitted as its own chunk even if that exceeds
// MaxChunkChars — it is never split.
func Chunk(path string, content string, opts Options) []Record {
	opts = opts.withDefaults()
	normalized := NormalizePath(path)

	if strings.TrimSpace(content) == "" {
		return nil
	}

	var (
		records     []Record
		buf         strings.Builder
		headingPath string
		stack       headingStack
		fence       fenceState
		nextIndex   int
	)

	flush := func() {
		trimmed := strings.TrimSpace(buf.String())
		buf.Reset()
		if trimmed == "" {
			return
		}
		records = append(records, Record{
			ChunkID:     ChunkID(normalized, nextIndex),
			ChunkIndex:  nextIndex,
			HeadingPath: headingPath,
			Content:     trimmed,
			TokenCount:  approxTokenCount(trimmed),
		})
		nextIndex++
	}

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		if fence.active {
			fence.buf.WriteString(line)
			fence.buf.WriteString("\n")
			if isFenceEnd(line, fence.marker, fence.length) {
				fence.active = false
				block := fence.buf.String()
				fence.buf.Reset()

				if buf.Len() > 0 && buf.Len()+len(block) > opts.MaxChunkChars {
					flush()
				}
				buf.WriteString(block)
				if buf.Len() >= opts.MaxChunkChars {
					flush()
				}
			}
			continue
		}

		if marker, length, ok := isFenceStart(line); ok {
			fence.active = true
			fence.marker = marker
			fence.length = length
			fence.buf.WriteString(line)
			fence.buf.WriteString("\n")
			continue
		}

		if m := headingPattern.FindStringSubmatch(line); m != nil {
			level := len(m[1])
			title := strings.TrimSpace(m[2])

			if buf.Len() >= opts.MinChunkChars {
				flush()
			}
			headingPath = stack.push(level, title)
			continue
		}

		for buf.Len()+len(line) > opts.MaxChunkChars {
			n := opts.MaxChunkChars - buf.Len()
			for n > 0 && !utf8.RuneStart(line[n]) {
				n--
			}
			if n == 0 && buf.Len() == 0 {
				_, n = utf8.DecodeRuneInString(line)
			}
			buf.WriteString(line[:n])
			line = line[n:]
			flush()
		}
		buf.WriteString(line)
		buf.WriteString("\n")
		if buf.Len() >= opts.MaxChunkChars {
			flush()
		}
	}

	// An unterminated fence at EOF is flushed as-is rather than discarded;
	// malformed input should not lose content.
	if fence.active {
		buf.WriteString(fence.buf.String())
	}
	flush()

	return records
}
