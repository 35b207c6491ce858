package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/shoppos/pos-backend/api/validators"
)

// bufferBody reads the request body up to the JSON size cap and puts it back so the
// handler can decode it again.
func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, validators.MaxBodyBytes))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
