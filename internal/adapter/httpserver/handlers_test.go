package httpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedMIMEFor(t *testing.T) {
	t.Parallel()
	cases := []struct {
		mime     string
		filename string
		want     bool
	}{
		{"application/pdf", "cv.pdf", true},
		{"text/plain; charset=utf-8", "cv.pdf", false},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "cv.docx", true},
		{"application/zip", "cv.docx", true},
		{"application/msword", "cv.doc", true},
		{"application/x-ole-storage", "cv.doc", true},
		{"application/zip", "bundle.zip", true},
		{"application/pdf", "bundle.zip", false},
		{"application/pdf", "cv.xls", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, allowedMIMEFor(tc.mime, tc.filename), "%s as %s", tc.mime, tc.filename)
	}
}
