package object

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// sniffLimit matches the read limit mimetype uses for container formats.
const sniffLimit = 3072

var allowedUploads = map[string]struct{}{
	MimePDF:  {},
	MimeDOCX: {},
}

// Sniff reads the head of r, detects its MIME type and returns a reader that
// replays the consumed bytes followed by the rest of r.
func Sniff(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLimit)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("read sniff: %w", err)
	}
	head = head[:n]
	mtype := baseType(mimetype.Detect(head).String())
	return mtype, io.MultiReader(bytes.NewReader(head), r), nil
}

// AllowedUpload reports whether documents of this MIME type may be stored.
func AllowedUpload(mimeType string) bool {
	_, ok := allowedUploads[baseType(mimeType)]
	return ok
}

func baseType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
