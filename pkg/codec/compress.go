package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/dsnplabs/graphsdk/pkg/errors"
)

// compress applies raw DEFLATE at the best compression level.
func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "creating deflate writer")
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecEncode, err, "compressing graph data")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecEncode, err, "compressing graph data")
	}
	return buf.Bytes(), nil
}

// decompress inflates raw DEFLATE data.
func decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecDecode, err, "decompressing graph data")
	}
	return out, nil
}
