package compress

import (
	"bytes"
	"compress/gzip"
	"io"
)

// GZip compresses bodies with gzip at BestSpeed.
type GZip struct {
	level int
}

func NewGZip() GZip {
	return GZip{level: gzip.BestSpeed}
}

func (g GZip) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode treats an empty slice as an empty body.
func (g GZip) Decode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

func (g GZip) Name() string {
	return GZipName
}
