package compress

import "fmt"

// Compress encodes and decodes stored entry bodies.
type Compress interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
	Name() string
}

const (
	NopName    = "nop"
	GZipName   = "gzip"
	BrotliName = "brotli"
	LZ4Name    = "lz4"
)

// New returns the codec registered under name. An empty name selects Nop.
func New(name string) (Compress, error) {
	switch name {
	case "", NopName:
		return NewNop(), nil
	case GZipName:
		return NewGZip(), nil
	case BrotliName:
		return NewBrotli(), nil
	case LZ4Name:
		return NewLZ4(), nil
	default:
		return nil, fmt.Errorf("unknown compression: %q", name)
	}
}
