package filebuffer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

type buffersKey struct{}

func WithBuffers(ctx context.Context, buffers *BufferLookup) context.Context {
	return context.WithValue(ctx, buffersKey{}, buffers)
}

func Buffers(ctx context.Context) *BufferLookup {
	buffers, ok := ctx.Value(buffersKey{}).(*BufferLookup)
	if !ok {
		return NewBuffers()
	}
	return buffers
}

type BufferLookup struct {
	fbs map[string]*FileBuffer
	mu  sync.Mutex
}

func NewBuffers() *BufferLookup {
	return &BufferLookup{
		fbs: make(map[string]*FileBuffer),
	}
}

func (b *BufferLookup) Get(filename string) *FileBuffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fbs[filename]
}

func (b *BufferLookup) Set(filename string, fb *FileBuffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fbs[filename] = fb
}

func (b *BufferLookup) Delete(filename string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.fbs, filename)
}

func (b *BufferLookup) All() []*FileBuffer {
	b.mu.Lock()
	var filenames []string
	for filename := range b.fbs {
		filenames = append(filenames, filename)
	}
	b.mu.Unlock()
	sort.Strings(filenames)
	var fbs []*FileBuffer
	for _, filename := range filenames {
		fbs = append(fbs, b.Get(filename))
	}
	return fbs
}

// Position locates a byte offset in a buffer. Line and Column are
// 1-indexed.
type Position struct {
	Filename string
	Offset   int
	Line     int
	Column   int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

type FileBuffer struct {
	filename string
	buf      bytes.Buffer
	offset   int
	offsets  []int
	mu       sync.Mutex
}

func New(filename string) *FileBuffer {
	return &FileBuffer{
		filename: filename,
	}
}

func (fb *FileBuffer) Filename() string {
	return fb.filename
}

// Len returns the number of newline terminated lines written so far.
func (fb *FileBuffer) Len() int {
	return len(fb.offsets)
}

func (fb *FileBuffer) Bytes() []byte {
	return fb.buf.Bytes()
}

func (fb *FileBuffer) Write(p []byte) (n int, err error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	n, err = fb.buf.Write(p)

	start := 0
	index := bytes.IndexByte(p[:n], byte('\n'))
	for index >= 0 {
		fb.offsets = append(fb.offsets, fb.offset+start+index)
		start += index + 1
		index = bytes.IndexByte(p[start:n], byte('\n'))
	}
	fb.offset += n

	return n, err
}

// Reset discards the buffer contents so a full document sync can
// rewrite it in place.
func (fb *FileBuffer) Reset() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.buf.Reset()
	fb.offset = 0
	fb.offsets = nil
}

func (fb *FileBuffer) Position(line, column int) Position {
	var offset int
	if line-2 < 0 {
		offset = column - 1
	} else {
		offset = fb.offsets[line-2] + column - 1
	}
	return Position{
		Filename: fb.filename,
		Offset:   offset,
		Line:     line,
		Column:   column,
	}
}

// Line returns the contents of the 0-indexed line ln, without its
// trailing newline. The final line may be unterminated.
func (fb *FileBuffer) Line(ln int) ([]byte, error) {
	if ln > len(fb.offsets) {
		return nil, fmt.Errorf("line %d outside of offsets", ln)
	}

	start := 0
	if ln > 0 {
		start = fb.offsets[ln-1] + 1
	}

	end := fb.buf.Len()
	if ln < len(fb.offsets) {
		end = fb.offsets[ln]
	}

	return fb.read(start, end)
}

func (fb *FileBuffer) read(start, end int) ([]byte, error) {
	r := bytes.NewReader(fb.buf.Bytes())

	_, err := r.Seek(int64(start), io.SeekStart)
	if err != nil {
		return nil, err
	}

	line := make([]byte, end-start)
	n, err := r.Read(line)
	if err != nil && err != io.EOF {
		return nil, err
	}

	return line[:n], nil
}
