package sourcestore

import "strings"

type textReader struct {
	*strings.Reader
}

func newTextReader(text string) *textReader {
	return &textReader{Reader: strings.NewReader(text)}
}

func (r *textReader) Close() error {
	return nil
}
