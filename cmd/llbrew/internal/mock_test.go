package internal

import (
	"context"
	"io"
)

// fakeVCS fails every operation; tests embed it and override what they use.
type fakeVCS struct{}

func (fakeVCS) Sync(context.Context, string, string, string) error {
	return io.ErrUnexpectedEOF
}

func (fakeVCS) Head(context.Context, string) (string, error) {
	return "", io.ErrUnexpectedEOF
}

func (fakeVCS) Tags(context.Context, string) ([]string, error) {
	return nil, io.ErrUnexpectedEOF
}

func (fakeVCS) Latest(context.Context, string) (string, error) {
	return "", io.ErrUnexpectedEOF
}
